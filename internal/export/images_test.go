package export

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestListImages_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "notes.txt", "c.jpeg", "B.PNG", "tables.xlsx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatalf("make subdir: %v", err)
	}

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"B.PNG", "a.png", "b.jpg", "c.jpeg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestListImages_MissingDirectory(t *testing.T) {
	if _, err := ListImages(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestImageMIME(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"scan.png", "image/png"},
		{"scan.PNG", "image/png"},
		{"scan.jpg", "image/jpeg"},
		{"scan.jpeg", "image/jpeg"},
	}

	for _, tc := range cases {
		if got := ImageMIME(tc.name); got != tc.want {
			t.Errorf("ImageMIME(%q) = %q, expected %q", tc.name, got, tc.want)
		}
	}
}
