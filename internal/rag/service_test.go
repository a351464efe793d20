package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spectralhq/spectral/internal/memory"
	"github.com/spectralhq/spectral/internal/storage"
	"github.com/spectralhq/spectral/pkg/models"
)

func newTestService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	store, err := storage.OpenJSONFile("")
	if err != nil {
		t.Fatal(err)
	}
	mem := memory.NewManager(store)
	svc := NewService(mem, ServiceConfig{
		Chunker:    ChunkerConfig{ChunkSize: 200, ChunkOverlap: 20},
		TopK:       2,
		SnippetLen: 120,
	})
	return svc, mem
}

func TestIngestDocumentStoresChunks(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	content := strings.Repeat("The mkdir tool creates directories. ", 20)
	n, err := svc.IngestDocument(ctx, content, "mkdir.md", models.MemoryToolKnowledge, nil)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if n < 2 {
		t.Fatalf("chunks written = %d, want at least 2", n)
	}

	entries, err := mem.GetMemoriesByCategory(ctx, models.CategoryKnowledgeChunks, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("stored entries = %d, want %d", len(entries), n)
	}
	found := false
	for _, tag := range entries[0].Tags {
		if tag == "source:mkdir.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("entry tags = %v, want source tag", entries[0].Tags)
	}
}

func TestRetrieveRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	docs := []struct {
		content string
		source  string
		mtype   models.MemoryType
	}{
		{"mkdir creates directories, optionally with parents via the -p flag.", "mkdir.md", models.MemoryToolKnowledge},
		{"xdotool automates keyboard and mouse input under X11.", "xdotool.md", models.MemoryToolKnowledge},
		{"The user prefers dark themes and terse replies.", "prefs.md", models.MemoryUserPreference},
	}
	for _, d := range docs {
		if _, err := svc.IngestDocument(ctx, d.content, d.source, d.mtype, nil); err != nil {
			t.Fatal(err)
		}
	}

	results, err := svc.Retrieve(ctx, "create directories with mkdir", RetrieveOptions{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Retrieve returned nothing")
	}
	if results[0].Chunk.SourceDoc != "mkdir.md" {
		t.Errorf("best chunk source = %q, want mkdir.md", results[0].Chunk.SourceDoc)
	}
	if results[0].Score <= 0 || results[0].Snippet == "" {
		t.Errorf("result = %+v, want positive score and snippet", results[0])
	}

	filtered, err := svc.Retrieve(ctx, "what does the user prefer", RetrieveOptions{
		MemoryTypes: []models.MemoryType{models.MemoryUserPreference},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range filtered {
		if r.Chunk.MemoryType != models.MemoryUserPreference {
			t.Errorf("type filter leaked %q", r.Chunk.MemoryType)
		}
	}

	none, err := svc.Retrieve(ctx, "", RetrieveOptions{})
	if err != nil || none != nil {
		t.Errorf("Retrieve empty query = %v, %v, want nil, nil", none, err)
	}
}

func TestRetrieveHonorsTopK(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		doc := "archive tools pack files into archives"
		if _, err := svc.IngestDocument(ctx, doc, "doc"+string(rune('a'+i)), models.MemoryToolKnowledge, nil); err != nil {
			t.Fatal(err)
		}
	}
	results, err := svc.Retrieve(ctx, "archive files", RetrieveOptions{TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("results = %d, want TopK override 3", len(results))
	}
}

func TestEnrichPrompt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.IngestDocument(ctx, "tar packs directories into archives.", "tar.md", models.MemoryToolKnowledge, nil); err != nil {
		t.Fatal(err)
	}

	base := "Plan the following request."
	enriched, err := svc.EnrichPrompt(ctx, base, "pack a directory into an archive", RetrieveOptions{})
	if err != nil {
		t.Fatalf("EnrichPrompt: %v", err)
	}
	if !strings.HasPrefix(enriched, "Relevant contextual knowledge:") {
		t.Errorf("enriched prompt missing knowledge block:\n%s", enriched)
	}
	if !strings.HasSuffix(enriched, base) {
		t.Errorf("enriched prompt does not end with the base prompt:\n%s", enriched)
	}

	unchanged, err := svc.EnrichPrompt(ctx, base, "zzqy unrelated nonsense", RetrieveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if unchanged != base {
		t.Errorf("EnrichPrompt with no hits = %q, want base prompt unchanged", unchanged)
	}
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("first knowledge file."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("second knowledge file."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	n, err := svc.IngestDirectory(ctx, dir, models.MemoryToolKnowledge)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if n != 2 {
		t.Errorf("chunks = %d, want 2", n)
	}

	missing, err := svc.IngestDirectory(ctx, filepath.Join(dir, "absent"), models.MemoryToolKnowledge)
	if err != nil || missing != 0 {
		t.Errorf("IngestDirectory(absent) = %d, %v, want 0, nil", missing, err)
	}
}
