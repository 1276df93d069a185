package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ferry/internal/api"
	"ferry/internal/daemon"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/testsupport"
)

type testServer struct {
	handler http.Handler
	daemon  *daemon.Daemon
	store   *queue.Store
	remote  *testsupport.RemoteStore
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCompletionGrace(200))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	mem := testsupport.NewRemoteStore()
	d, err := daemon.New(cfg, store, mem, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	srv := api.NewServer(d, api.Options{Token: token, Heartbeat: 20 * time.Millisecond}, logging.NewNop())
	return &testServer{handler: srv.Handler(), daemon: d, store: store, remote: mem}
}

func doJSONRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v (body %s)", err, data)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthIsOpenButAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t, "secret")

	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodGet, "/health", nil, nil), http.StatusOK)
	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/summary", nil, nil), http.StatusUnauthorized)
	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/summary", nil,
		map[string]string{"Authorization": "Bearer wrong"}), http.StatusUnauthorized)

	rec := doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/summary", nil,
		map[string]string{"Authorization": "Bearer secret"})
	assertStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestMultipartUploadFlow(t *testing.T) {
	ts := newTestServer(t, "")
	gate := make(chan struct{})
	ts.remote.SetGate(gate)

	body, contentType := multipartBody(t, map[string][]byte{
		"one.txt": []byte("first file"),
		"two.txt": []byte("second file"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusAccepted)

	var resp api.EnqueueResponse
	decodeJSON(t, rec.Body.Bytes(), &resp)
	if resp.BatchID == "" || len(resp.Items) != 2 {
		t.Fatalf("unexpected enqueue response: %+v", resp)
	}
	for _, item := range resp.Items {
		if !item.Durable || item.ItemID == "" {
			t.Fatalf("unexpected item: %+v", item)
		}
	}

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/queue", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var queued api.QueueListResponse
	decodeJSON(t, rec.Body.Bytes(), &queued)
	if len(queued.Items) != 2 {
		t.Fatalf("expected 2 queued records while uploads are gated, got %d", len(queued.Items))
	}

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/batches/"+resp.BatchID, nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var batch api.BatchCount
	decodeJSON(t, rec.Body.Bytes(), &batch)
	if batch.Total != 2 || batch.Completed != 0 {
		t.Fatalf("unexpected batch counts: %+v", batch)
	}

	close(gate)
	ts.daemon.Wait()

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/queue", nil, nil)
	decodeJSON(t, rec.Body.Bytes(), &queued)
	if len(queued.Items) != 0 {
		t.Fatalf("expected empty queue after uploads, got %d", len(queued.Items))
	}
	if ts.remote.Len() != 2 {
		t.Fatalf("expected 2 remote objects, got %d", ts.remote.Len())
	}

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/status", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var status api.DaemonStatus
	decodeJSON(t, rec.Body.Bytes(), &status)
	if !status.Running || status.UploadsOK != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestMultipartUploadRequiresFiles(t *testing.T) {
	ts := newTestServer(t, "")
	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestTextUploadAndDismiss(t *testing.T) {
	ts := newTestServer(t, "")
	gate := make(chan struct{})
	ts.remote.SetGate(gate)
	defer close(gate)

	rec := doJSONRequest(t, ts.handler, http.MethodPost, "/api/v1/uploads/text",
		map[string]string{"kind": "link", "content": "https://example.com"}, nil)
	assertStatus(t, rec, http.StatusAccepted)
	var resp api.EnqueueResponse
	decodeJSON(t, rec.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].MimeType != "text/uri-list" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	itemID := resp.Items[0].ItemID

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/uploads", nil, nil)
	var list api.UploadListResponse
	decodeJSON(t, rec.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].Kind != "link" || list.Items[0].DisplayName != "link.url" {
		t.Fatalf("unexpected uploads: %+v", list.Items)
	}

	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodDelete, "/api/v1/uploads/"+itemID, nil, nil), http.StatusNoContent)
	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodDelete, "/api/v1/uploads/"+itemID, nil, nil), http.StatusNotFound)

	rec = doJSONRequest(t, ts.handler, http.MethodGet, "/api/v1/summary", nil, nil)
	var summary api.Summary
	decodeJSON(t, rec.Body.Bytes(), &summary)
	if summary.Count != 0 || summary.InFlight {
		t.Fatalf("expected empty summary after dismiss, got %+v", summary)
	}
}

func TestTextUploadRequiresContent(t *testing.T) {
	ts := newTestServer(t, "")
	rec := doJSONRequest(t, ts.handler, http.MethodPost, "/api/v1/uploads/text", map[string]string{"kind": "note"}, nil)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestSessionRoutesRestoreAndClear(t *testing.T) {
	ts := newTestServer(t, "")
	testsupport.MustPut(t, ts.store, testsupport.NewItem("pending-1", 128))

	rec := doJSONRequest(t, ts.handler, http.MethodPost, "/api/v1/session", map[string]string{"identity": "alice"}, nil)
	assertStatus(t, rec, http.StatusOK)
	var session api.SessionResponse
	decodeJSON(t, rec.Body.Bytes(), &session)
	if session.RestoreStarted {
		t.Fatal("restore must wait for readiness")
	}

	assertStatus(t, doJSONRequest(t, ts.handler, http.MethodPut, "/api/v1/session/ready", map[string]any{}, nil), http.StatusBadRequest)

	rec = doJSONRequest(t, ts.handler, http.MethodPut, "/api/v1/session/ready", map[string]bool{"ready": true}, nil)
	assertStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec.Body.Bytes(), &session)
	if !session.RestoreStarted {
		t.Fatal("expected restore to start")
	}
	if _, _, err := ts.daemon.WaitRestore(context.Background()); err != nil {
		t.Fatalf("WaitRestore: %v", err)
	}
	if ts.remote.Attempts("pending-1") != 1 {
		t.Fatal("expected pending item uploaded")
	}

	testsupport.MustPut(t, ts.store, testsupport.NewItem("pending-2", 128))
	rec = doJSONRequest(t, ts.handler, http.MethodDelete, "/api/v1/session", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec.Body.Bytes(), &session)
	if session.Cleared != 1 {
		t.Fatalf("expected one cleared record, got %+v", session)
	}
}

func TestClearQueue(t *testing.T) {
	ts := newTestServer(t, "")
	testsupport.MustPut(t, ts.store, testsupport.NewItem("a", 16))
	testsupport.MustPut(t, ts.store, testsupport.NewItem("b", 16))

	rec := doJSONRequest(t, ts.handler, http.MethodDelete, "/api/v1/queue", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var resp api.ClearResponse
	decodeJSON(t, rec.Body.Bytes(), &resp)
	if resp.Removed != 2 {
		t.Fatalf("expected 2 removed, got %d", resp.Removed)
	}
}

func TestProgressStream(t *testing.T) {
	ts := newTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ts.handler.ServeHTTP(rec, req)
	}()

	// Give the handler time to subscribe before enqueueing.
	time.Sleep(50 * time.Millisecond)
	enq := doJSONRequest(t, ts.handler, http.MethodPost, "/api/v1/uploads/text",
		map[string]string{"kind": "note", "content": "hello"}, nil)
	assertStatus(t, enq, http.StatusAccepted)
	ts.daemon.Wait()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after client disconnect")
	}

	body := rec.Body.String()
	for _, want := range []string{"event:snapshot", "event:progress", `"completed":true`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in stream, got:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestNotificationTestRoute(t *testing.T) {
	ts := newTestServer(t, "")

	rec := doJSONRequest(t, ts.handler, http.MethodPost, "/api/v1/notifications/test", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var resp api.NotificationResponse
	decodeJSON(t, rec.Body.Bytes(), &resp)
	if !resp.Sent {
		t.Fatal("expected sent=true")
	}
}
