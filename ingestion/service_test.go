package ingestion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fabfab/psy-assistant/config"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func TestIngestCatalogRequiresEmbedder(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, 3, 500, 50)
	if _, err := svc.IngestCatalog(context.Background(), t.TempDir(), nil); err == nil {
		t.Fatal("expected error when embedder is missing")
	}
}

func TestIngestCatalogRequiresPool(t *testing.T) {
	svc := NewService(nil, nil, stubEmbedder{}, nil, 3, 500, 50)
	catalog := []config.DocumentEntry{{Path: "absent.pdf", Title: "Absent"}}
	if _, err := svc.IngestCatalog(context.Background(), t.TempDir(), catalog); err == nil {
		t.Fatal("expected error when postgres pool is missing")
	}
}

func TestNewServiceDefaultsChunking(t *testing.T) {
	svc := NewService(nil, nil, stubEmbedder{}, nil, 3, 0, 0)
	if svc.size != defaultChunkSize || svc.overlap != defaultChunkOverlap {
		t.Fatalf("expected default chunking, got %d/%d", svc.size, svc.overlap)
	}
}

func TestResolvePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "guide.pdf")
	cases := []struct {
		dir, path, want string
	}{
		{"app/documents", "digno.pdf", filepath.Join("app/documents", "digno.pdf")},
		{"app/documents", abs, abs},
		{"", "digno.pdf", "digno.pdf"},
	}
	for _, tc := range cases {
		if got := ResolvePath(tc.dir, tc.path); got != tc.want {
			t.Errorf("ResolvePath(%q, %q) = %q, want %q", tc.dir, tc.path, got, tc.want)
		}
	}
}

func TestExtractPagesRejectsNonPDF(t *testing.T) {
	if _, err := ExtractPages([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for non-pdf payload")
	}
}

func TestSourcePathKeepsLoadDirectory(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "guide.pdf")
	cases := []struct {
		dir, path, want string
	}{
		{"app/documents", "digno.pdf", "app/documents/digno.pdf"},
		{"app/documents/", "./digno.pdf", "app/documents/digno.pdf"},
		{"", "digno.pdf", "digno.pdf"},
		{"app/documents", abs, filepath.ToSlash(abs)},
	}
	for _, tc := range cases {
		if got := SourcePath(tc.dir, tc.path); got != tc.want {
			t.Errorf("SourcePath(%q, %q) = %q, want %q", tc.dir, tc.path, got, tc.want)
		}
	}
}
