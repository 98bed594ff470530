package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCheckpoint_MissingFileIsEmpty(t *testing.T) {
	cp, err := LoadCheckpoint(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.Len() != 0 {
		t.Errorf("expected an empty checkpoint, got %d entries", cp.Len())
	}
	if cp.Has("invoice.jpg") {
		t.Error("expected no checkpointed images")
	}
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.checkpoint.json")

	cp, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp.Set("invoice.jpg", "Posten\tBetrag")
	cp.Set("receipt.png", "Summe\t42,00")
	if err := cp.Save(); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	reloaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("reload checkpoint: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", reloaded.Len())
	}
	if !reloaded.Has("invoice.jpg") || !reloaded.Has("receipt.png") {
		t.Error("expected both images checkpointed")
	}
	text, ok := reloaded.Text("invoice.jpg")
	if !ok || text != "Posten\tBetrag" {
		t.Errorf("expected the checkpointed text, got %q (ok=%v)", text, ok)
	}
	if _, ok := reloaded.Text("other.jpg"); ok {
		t.Error("expected no text for an unknown image")
	}
}

func TestLoadCheckpoint_CorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadCheckpoint(path); err == nil {
		t.Fatal("expected an error for a corrupt checkpoint")
	}
}
