package main

import (
	"strings"
	"testing"

	"ferry/internal/preflight"
	"ferry/internal/queue"
)

func TestRenderStatusPlain(t *testing.T) {
	out := renderStatus(statusReport{
		ConfigBackend: "local",
		APIBind:       "127.0.0.1:7521",
		Queue:         queue.Stats{Pending: 2, PendingBytes: 3 << 20},
		Checks: []preflight.Result{
			{Name: "State directory", Passed: true, Detail: "/tmp/state"},
			{Name: "Remote store", Passed: false, Detail: "bucket missing"},
		},
	}, false)

	for _, want := range []string{
		"== Instance ==",
		"[WARN] not running",
		"[INFO] local",
		"Pending size:",
		"3.0 MiB",
		"[OK] /tmp/state",
		"[ERROR] bucket missing",
	} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("plain output must not contain ANSI escapes")
	}
}

func TestRenderStatusColorized(t *testing.T) {
	out := renderStatus(statusReport{InstanceHeld: true}, true)
	requireContains(t, out, ansiGreen)
	requireContains(t, out, ansiReset)
}
