package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ListImages returns the names of the image files (jpg, jpeg, png)
// directly inside dir. os.ReadDir already sorts by file name, which is
// the order the sheets keep.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// ImageMIME returns the media type for an image file name.
func ImageMIME(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
