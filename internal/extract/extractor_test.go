package extract_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/extract"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/testsupport"
)

func TestExtractFileHandle(t *testing.T) {
	ex := extract.New(logging.NewNop())
	defer ex.Close()

	path := testsupport.WriteFile(t, t.TempDir(), "data.bin", 70000)
	res := ex.Extract(context.Background(), extract.FileHandle{Path: path}, "item-1")
	if res.Err != nil {
		t.Fatalf("Extract: %v", res.Err)
	}
	if res.ItemID != "item-1" || res.DisplayName != "data.bin" {
		t.Fatalf("unexpected identity: %#v", res)
	}
	if res.SizeBytes != 70000 || !bytes.Equal(res.Payload, testsupport.Pattern(70000)) {
		t.Fatalf("payload mismatch: size=%d", res.SizeBytes)
	}
	if res.MimeType == "" {
		t.Fatal("expected a MIME type")
	}
}

func TestExtractSniffsMimeType(t *testing.T) {
	ex := extract.New(nil)
	defer ex.Close()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	res := ex.Extract(context.Background(), extract.BytesHandle{DisplayName: "pic", Data: png}, "img")
	if res.Err != nil {
		t.Fatalf("Extract: %v", res.Err)
	}
	if res.MimeType != "image/png" {
		t.Fatalf("MimeType = %q, want image/png", res.MimeType)
	}

	note := ex.Extract(context.Background(), extract.BytesHandle{DisplayName: "note", Data: []byte("hi"), MimeType: "text/markdown"}, "n")
	if note.MimeType != "text/markdown" {
		t.Fatalf("explicit MIME type ignored: %q", note.MimeType)
	}
}

func TestExtractTransfersOwnership(t *testing.T) {
	ex := extract.New(nil)
	defer ex.Close()

	src := []byte("original")
	res := ex.Extract(context.Background(), extract.BytesHandle{DisplayName: "x", Data: src}, "own")
	src[0] = 'X'
	if string(res.Payload) != "original" {
		t.Fatalf("payload shares memory with the source: %q", res.Payload)
	}
}

func TestExtractMissingFileReportsError(t *testing.T) {
	ex := extract.New(nil)
	defer ex.Close()

	res := <-ex.Submit(context.Background(), extract.FileHandle{Path: filepath.Join(t.TempDir(), "nope")}, "missing")
	if res.Err == nil {
		t.Fatal("expected an error result")
	}
	if !errors.Is(res.Err, services.ErrExtraction) {
		t.Fatalf("expected extraction marker, got %v", res.Err)
	}
	if res.ItemID != "missing" || res.Payload != nil {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestExtractAfterClose(t *testing.T) {
	ex := extract.New(nil)
	ex.Close()
	ex.Close()

	res := ex.Extract(context.Background(), extract.BytesHandle{DisplayName: "late", Data: []byte("x")}, "late")
	if !errors.Is(res.Err, extract.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", res.Err)
	}
}

func TestExtractCanceledContext(t *testing.T) {
	ex := extract.New(nil)
	defer ex.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := ex.Extract(ctx, extract.BytesHandle{DisplayName: "c", Data: []byte("x")}, "c")
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
}

func TestDisplayNameNormalization(t *testing.T) {
	decomposed := "Cafe\u0301.txt"
	if got := extract.DisplayName(decomposed); got != "Caf\u00e9.txt" {
		t.Fatalf("expected NFC form, got %q", got)
	}
	if got := extract.DisplayName("  a/b\\c  "); got != "a_b_c" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	for _, in := range []string{"", "   ", ".."} {
		if got := extract.DisplayName(in); !strings.EqualFold(got, "untitled") {
			t.Fatalf("DisplayName(%q) = %q", in, got)
		}
	}
}
