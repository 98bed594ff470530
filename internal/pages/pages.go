// Package pages turns an input PDF into the ordered page images the
// pipeline dispatches.
//
// Validation and page counting happen natively; rasterization is delegated
// to poppler's pdftoppm, which must be installed on the host. Every failure
// in this package is a *SourceError and occurs before any backend call.
package pages

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"pdf2word/internal/ocr"
)

const defaultDPI = 200

// Options control rasterization.
type Options struct {
	// DPI is the render resolution; 0 means 200.
	DPI int

	// PopplerPath overrides the pdftoppm binary looked up on PATH.
	PopplerPath string

	// Grayscale renders single-channel pages, which OCR handles just as
	// well for a fraction of the payload.
	Grayscale bool
}

// Validate checks that path names a readable PDF document and returns its
// page count. It performs no rasterization, so callers can reject bad
// input before paying for backend construction or rendering.
func Validate(path string) (int, error) {
	return pageCount(path)
}

// Extract validates the document at path, rasterizes every page and
// returns the page images ordered by index. Page.Index is the sole
// ordering key downstream; consumers must never reorder by arrival time.
func Extract(ctx context.Context, path string, opts Options) ([]ocr.PageImage, error) {
	count, err := pageCount(path)
	if err != nil {
		return nil, err
	}

	bin := opts.PopplerPath
	if bin == "" {
		bin = "pdftoppm"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, sourceError(path, fmt.Errorf("%w: %v", ErrRasterizer, err))
	}

	dpi := opts.DPI
	if dpi == 0 {
		dpi = defaultDPI
	}

	tmpDir, err := os.MkdirTemp("", "pdf2word-pages-")
	if err != nil {
		return nil, sourceError(path, fmt.Errorf("%w: %v", ErrRasterizer, err))
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-jpeg", "-r", strconv.Itoa(dpi)}
	if opts.Grayscale {
		args = append(args, "-gray")
	}
	args = append(args, path, prefix)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, sourceError(path, fmt.Errorf("%w: pdftoppm: %s", ErrRasterizer, clip(detail, 300)))
	}

	files, err := renderedPages(prefix)
	if err != nil {
		return nil, sourceError(path, err)
	}
	if len(files) != count {
		return nil, sourceError(path, fmt.Errorf("%w: rasterized %d of %d pages", ErrRasterizer, len(files), count))
	}

	pages := make([]ocr.PageImage, 0, count)
	for i, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, sourceError(path, fmt.Errorf("%w: %v", ErrRasterizer, err))
		}
		pages = append(pages, ocr.PageImage{
			Index: i,
			Name:  fmt.Sprintf("page %d", i+1),
			Data:  data,
			MIME:  "image/jpeg",
		})
	}
	return pages, nil
}

// pageCount validates the path and returns the document's page count.
func pageCount(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, sourceError(path, fmt.Errorf("%w: %v", ErrNotFound, err))
	}
	if info.IsDir() {
		return 0, sourceError(path, fmt.Errorf("%w: path is a directory", ErrNotFound))
	}

	header, err := readHeader(path)
	if err != nil {
		return 0, sourceError(path, fmt.Errorf("%w: %v", ErrNotFound, err))
	}
	if !bytes.HasPrefix(header, []byte("%PDF")) {
		return 0, sourceError(path, fmt.Errorf("%w: missing PDF header", ErrInvalidPDF))
	}

	file, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, sourceError(path, fmt.Errorf("%w: %v", ErrInvalidPDF, err))
	}
	defer file.Close()

	count := reader.NumPage()
	if count < 1 {
		return 0, sourceError(path, ErrEmptyDocument)
	}
	return count, nil
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, _ := f.Read(header)
	return header[:n], nil
}

// renderedPages lists pdftoppm's output files sorted by their page number
// suffix. pdftoppm zero-pads the suffix, but parsing it keeps the order
// right regardless of padding.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterizer, err)
	}

	type rendered struct {
		num  int
		path string
	}
	files := make([]rendered, 0, len(matches))
	for _, match := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(match, prefix+"-"), ".jpg")
		num, err := strconv.Atoi(suffix)
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected output file %q", ErrRasterizer, filepath.Base(match))
		}
		files = append(files, rendered{num: num, path: match})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
