package pages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// writeMinimalPDF builds a valid single-body PDF with the given page count
// and a hand-computed cross-reference table, which is all the validator
// needs to open and count it.
func writeMinimalPDF(t *testing.T, path string, pageCount int) {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, pageCount)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Count %d /Kids [%s] >>\nendobj\n",
		pageCount, strings.Join(kids, " ")))
	for i := 0; i < pageCount; i++ {
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", i+3))
	}

	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf fixture: %v", err)
	}
}

// fakeRasterizer installs a shell script standing in for pdftoppm.
func fakeRasterizer(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake rasterizer needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "pdftoppm")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake rasterizer: %v", err)
	}
	return path
}

func TestValidate_CountsPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 3)

	count, err := Validate(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 pages, got %d", count)
	}
}

func TestValidate_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.pdf")

	_, err := Validate(path)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected a *SourceError, got %T", err)
	}
	if srcErr.Path != path {
		t.Errorf("expected path %q, got %q", path, srcErr.Path)
	}
}

func TestValidate_DirectoryRejected(t *testing.T) {
	_, err := Validate(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a directory, got %v", err)
	}
}

func TestValidate_NonPDFContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("just some text, no header"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := Validate(path)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Fatalf("expected ErrInvalidPDF, got %v", err)
	}
}

func TestValidate_CorruptBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	content := "%PDF-1.4\n" + strings.Repeat("garbage where objects should be\n", 8)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := Validate(path)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Fatalf("expected ErrInvalidPDF, got %v", err)
	}
}

func TestValidate_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	writeMinimalPDF(t, path, 0)

	_, err := Validate(path)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtract_MissingRasterizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 1)

	_, err := Extract(context.Background(), path, Options{PopplerPath: "pdf2word-test-missing-rasterizer"})
	if !errors.Is(err, ErrRasterizer) {
		t.Fatalf("expected ErrRasterizer, got %v", err)
	}
}

// pdftoppm zero-pads its output suffixes, but the suffix parser must keep
// page order even when it does not: with unpadded names a lexical sort
// would put page 10 right after page 1.
func TestExtract_OrdersPagesNumerically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 10)

	bin := fakeRasterizer(t, `for last; do :; done
i=1
while [ "$i" -le 10 ]; do
  printf 'img-%s' "$i" > "${last}-${i}.jpg"
  i=$((i+1))
done
`)

	pages, err := Extract(context.Background(), path, Options{PopplerPath: bin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 10 {
		t.Fatalf("expected 10 pages, got %d", len(pages))
	}

	for i, page := range pages {
		if page.Index != i {
			t.Errorf("page %d: expected index %d, got %d", i, i, page.Index)
		}
		if want := fmt.Sprintf("img-%d", i+1); string(page.Data) != want {
			t.Errorf("page %d: expected data %q, got %q", i, want, page.Data)
		}
		if want := fmt.Sprintf("page %d", i+1); page.Name != want {
			t.Errorf("page %d: expected name %q, got %q", i, want, page.Name)
		}
		if page.MIME != "image/jpeg" {
			t.Errorf("page %d: expected MIME image/jpeg, got %q", i, page.MIME)
		}
	}
}

func TestExtract_PassesRenderOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeMinimalPDF(t, path, 1)

	argsFile := filepath.Join(dir, "rasterizer.args")
	bin := fakeRasterizer(t, fmt.Sprintf(`printf '%%s\n' "$@" > %q
for last; do :; done
printf 'img-1' > "${last}-1.jpg"
`, argsFile))

	if _, err := Extract(context.Background(), path, Options{PopplerPath: bin, DPI: 300, Grayscale: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(args) != 6 {
		t.Fatalf("expected 6 arguments, got %d: %q", len(args), args)
	}
	for i, want := range []string{"-jpeg", "-r", "300", "-gray", path} {
		if args[i] != want {
			t.Errorf("argument %d: expected %q, got %q", i, want, args[i])
		}
	}
}

func TestExtract_CountMismatchFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 3)

	bin := fakeRasterizer(t, `for last; do :; done
printf 'img-1' > "${last}-1.jpg"
printf 'img-2' > "${last}-2.jpg"
`)

	_, err := Extract(context.Background(), path, Options{PopplerPath: bin})
	if !errors.Is(err, ErrRasterizer) {
		t.Fatalf("expected ErrRasterizer, got %v", err)
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("expected the mismatch counts in the error, got %q", err)
	}
}

func TestExtract_RasterizerFailureSurfacesStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 1)

	bin := fakeRasterizer(t, `echo "poppler exploded" >&2
exit 1
`)

	_, err := Extract(context.Background(), path, Options{PopplerPath: bin})
	if !errors.Is(err, ErrRasterizer) {
		t.Fatalf("expected ErrRasterizer, got %v", err)
	}
	if !strings.Contains(err.Error(), "poppler exploded") {
		t.Errorf("expected the rasterizer stderr in the error, got %q", err)
	}
}
