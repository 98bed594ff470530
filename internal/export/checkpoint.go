package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint records which images of a table run are already recognized,
// keyed by image file name, so an interrupted run resumes where it
// stopped. It is rewritten after every completed image.
type Checkpoint struct {
	path string
	done map[string]string
}

// LoadCheckpoint reads the checkpoint at path. A missing file yields an
// empty checkpoint, not an error; a present but unreadable one is an
// error so progress is never silently discarded.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	cp := &Checkpoint{path: path, done: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp.done); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return cp, nil
}

// Has reports whether the image was already recognized in an earlier run.
func (c *Checkpoint) Has(name string) bool {
	_, ok := c.done[name]
	return ok
}

// Text returns the recognized text checkpointed for the image.
func (c *Checkpoint) Text(name string) (string, bool) {
	text, ok := c.done[name]
	return text, ok
}

// Len returns the number of checkpointed images.
func (c *Checkpoint) Len() int {
	return len(c.done)
}

// Set records the recognized text for an image. Call Save to persist.
func (c *Checkpoint) Set(name, text string) {
	c.done[name] = text
}

// Save writes the checkpoint atomically via a temp file in its directory.
func (c *Checkpoint) Save() error {
	data, err := json.MarshalIndent(c.done, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
