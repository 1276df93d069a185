package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ferry/internal/daemon"
	"ferry/internal/testsupport"
)

type ntfyCapture struct {
	server *httptest.Server
	titles chan string
	bodies chan string
}

func newNtfyCapture(t *testing.T) *ntfyCapture {
	t.Helper()
	c := &ntfyCapture{titles: make(chan string, 8), bodies: make(chan string, 8)}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.titles <- r.Header.Get("Title")
		c.bodies <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *ntfyCapture) next(t *testing.T) (string, string) {
	t.Helper()
	select {
	case title := <-c.titles:
		return title, <-c.bodies
	case <-time.After(5 * time.Second):
		t.Fatal("expected a notification")
		return "", ""
	}
}

func TestFailedVolatileUploadPublishesLostNotification(t *testing.T) {
	capture := newNtfyCapture(t)
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPersistMiB(1))
	cfg.Notifications.NtfyTopic = capture.server.URL
	d, _, mem := newDaemon(t, cfg)
	mem.FailAll(errors.New("bucket offline"))
	startDaemon(t, d)

	ctx := context.Background()
	enq, err := d.Enqueue(ctx, bytesHandle("big.bin", 2<<20), daemon.EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if enq.Durable {
		t.Fatal("expected oversized item to be volatile")
	}
	if err := enq.Wait(ctx); err == nil {
		t.Fatal("expected upload failure")
	}

	title, body := capture.next(t)
	if title != "ferry - Upload Lost" {
		t.Fatalf("unexpected title %q", title)
	}
	if !strings.Contains(body, "big.bin") || !strings.Contains(body, "bucket offline") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRestorePassPublishesSummary(t *testing.T) {
	capture := newNtfyCapture(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = capture.server.URL
	d, store, _ := newDaemon(t, cfg)
	testsupport.MustPut(t, store, testsupport.NewItem("pending-1", 256))
	testsupport.MustPut(t, store, testsupport.NewItem("pending-2", 256))
	startDaemon(t, d)

	if _, err := d.SetReady(true); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if _, err := d.SignIn("dana"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	title, body := capture.next(t)
	if title != "ferry - Restore Complete" {
		t.Fatalf("unexpected title %q", title)
	}
	if !strings.HasPrefix(body, "Resumed 2 pending upload(s)") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestTestNotificationWithoutTopicIsNoop(t *testing.T) {
	d, _, _ := newDaemon(t, testsupport.NewConfig(t))
	if err := d.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
}

func TestShutdownDuringRestoreSendsNoSummary(t *testing.T) {
	capture := newNtfyCapture(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = capture.server.URL
	d, store, mem := newDaemon(t, cfg)
	gate := make(chan struct{})
	defer close(gate)
	mem.SetGate(gate)
	testsupport.MustPut(t, store, testsupport.NewItem("slow-1", 256))
	testsupport.MustPut(t, store, testsupport.NewItem("slow-2", 256))
	startDaemon(t, d)

	if _, err := d.SetReady(true); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if _, err := d.SignIn("erin"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	testsupport.WaitFor(t, 2*time.Second, func() bool { return mem.Attempts("slow-1") == 1 })
	d.Stop()

	select {
	case title := <-capture.titles:
		t.Fatalf("unexpected notification %q after shutdown", title)
	case <-time.After(200 * time.Millisecond):
	}
}
