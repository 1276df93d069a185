package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/testsupport"
)

func TestUploadCommandUploadsFilesAndEmptiesQueue(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	first := testsupport.WriteFile(t, dir, "first.bin", 4096)
	second := testsupport.WriteFile(t, dir, "second.bin", 1024)

	out, _, err := runCLI(t, []string{"upload", "--json", first, second}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	var outcomes []uploadOutcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode upload output: %v\n%s", err, out)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, outcome := range outcomes {
		if outcome.Error != "" {
			t.Fatalf("upload %s failed: %s", outcome.DisplayName, outcome.Error)
		}
		if !outcome.Durable {
			t.Fatalf("expected %s to be durable", outcome.DisplayName)
		}
		stored, err := os.ReadFile(filepath.Join(env.cfg.Remote.LocalDir, "uploads", outcome.ItemID, outcome.DisplayName))
		if err != nil {
			t.Fatalf("read uploaded object: %v", err)
		}
		if !bytes.Equal(stored, testsupport.Pattern(int(outcome.SizeBytes))) {
			t.Fatalf("uploaded bytes for %s differ from source", outcome.DisplayName)
		}
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestUploadCommandAcceptsNote(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"upload", "--note", "remember the milk"}, env.configPath)
	if err != nil {
		t.Fatalf("upload note: %v", err)
	}
	requireContains(t, out, "note.txt")
	requireContains(t, out, "uploaded")
}

func TestUploadCommandRequiresInput(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"upload"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without inputs")
	}
	requireContains(t, err.Error(), "nothing to upload")
}

func TestUploadCommandRejectsDirectories(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"upload", t.TempDir()}, env.configPath)
	if err == nil {
		t.Fatal("expected error for directory argument")
	}
	requireContains(t, err.Error(), "is a directory")
}
