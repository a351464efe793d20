package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spectralhq/spectral/internal/memory"
	"github.com/spectralhq/spectral/pkg/models"
)

// Service chunks documents into the knowledge store and retrieves them with
// BM25 scoring to enrich prompts. Safe for concurrent readers.
type Service struct {
	mem        *memory.Manager
	chunker    ChunkerConfig
	topK       int
	snippetLen int
	logger     *slog.Logger
}

// ServiceConfig parameterizes retrieval.
type ServiceConfig struct {
	Chunker    ChunkerConfig
	TopK       int
	SnippetLen int
}

// NewService creates a RAG service over the memory manager.
func NewService(mem *memory.Manager, cfg ServiceConfig) *Service {
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker = DefaultChunkerConfig()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.SnippetLen <= 0 {
		cfg.SnippetLen = 200
	}
	return &Service{
		mem:        mem,
		chunker:    cfg.Chunker,
		topK:       cfg.TopK,
		snippetLen: cfg.SnippetLen,
		logger:     slog.Default().With("component", "rag"),
	}
}

// IngestDocument splits content into chunks and stores each as a memory
// entry under knowledge_chunks. Returns the number of chunks written.
func (s *Service) IngestDocument(ctx context.Context, content, sourceDoc string, memoryType models.MemoryType, metadata map[string]any) (int, error) {
	pieces := SplitText(content, s.chunker)
	for i, piece := range pieces {
		chunk := models.DocumentChunk{
			ChunkID:    uuid.New().String(),
			Content:    piece,
			ChunkIndex: i,
			SourceDoc:  sourceDoc,
			MemoryType: memoryType,
			Metadata:   metadata,
			CreatedAt:  time.Now().UTC(),
		}
		value := map[string]any{
			"chunk_id":    chunk.ChunkID,
			"content":     chunk.Content,
			"chunk_index": chunk.ChunkIndex,
			"source_doc":  chunk.SourceDoc,
			"memory_type": string(chunk.MemoryType),
			"metadata":    chunk.Metadata,
			"created_at":  chunk.CreatedAt.Format(time.RFC3339Nano),
		}
		_, err := s.mem.CreateMemory(ctx, memory.CreateParams{
			Category:   models.CategoryKnowledgeChunks,
			Key:        fmt.Sprintf("%s_chunk_%d", sourceDoc, i),
			Value:      value,
			EntityType: "knowledge_chunk",
			Tags:       []string{string(memoryType), "source:" + sourceDoc},
			Module:     "rag",
		})
		if err != nil {
			return i, err
		}
	}
	return len(pieces), nil
}

// IngestDirectory ingests every regular file under dir as tool knowledge.
// Used at startup to bootstrap the knowledge store.
func (s *Service) IngestDirectory(ctx context.Context, dir string, memoryType models.MemoryType) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read knowledge dir: %w", err)
	}
	total := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable knowledge file", "file", ent.Name(), "error", err)
			continue
		}
		n, err := s.IngestDocument(ctx, string(data), ent.Name(), memoryType, nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// RetrieveOptions filter candidates before scoring.
type RetrieveOptions struct {
	// MemoryTypes any-match filter; empty means all.
	MemoryTypes []models.MemoryType
	// Tags any-match filter; empty means all.
	Tags []string
	// TopK overrides the service default when positive.
	TopK int
}

// Retrieve scores stored chunks against the query with BM25 and returns the
// top results, best first, each with a display snippet.
func (s *Service) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]models.RetrievedChunk, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	entries, err := s.mem.GetMemoriesByCategory(ctx, models.CategoryKnowledgeChunks, 0)
	if err != nil {
		return nil, err
	}

	var chunks []models.DocumentChunk
	for _, entry := range entries {
		chunk, ok := chunkFromEntry(entry)
		if !ok {
			continue
		}
		if !matchesMemoryTypes(chunk.MemoryType, opts.MemoryTypes) {
			continue
		}
		if !matchesTags(entry.Tags, opts.Tags) {
			continue
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(chunks))
	for i, chunk := range chunks {
		docs[i] = tokenize(chunk.Content)
	}
	scores := scoreBM25(queryTokens, docs)

	type scored struct {
		chunk models.DocumentChunk
		score float64
	}
	var ranked []scored
	for i, chunk := range chunks {
		if scores[i] > 0 {
			ranked = append(ranked, scored{chunk, scores[i]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	k := opts.TopK
	if k <= 0 {
		k = s.topK
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]models.RetrievedChunk, len(ranked))
	for i, r := range ranked {
		out[i] = models.RetrievedChunk{
			Chunk:   r.chunk,
			Score:   r.score,
			Snippet: makeSnippet(r.chunk.Content, queryTokens, s.snippetLen),
		}
	}
	return out, nil
}

// EnrichPrompt prepends a contextual-knowledge block to basePrompt when the
// query retrieves anything; otherwise returns basePrompt unchanged.
func (s *Service) EnrichPrompt(ctx context.Context, basePrompt, query string, opts RetrieveOptions) (string, error) {
	results, err := s.Retrieve(ctx, query, opts)
	if err != nil {
		return basePrompt, err
	}
	if len(results) == 0 {
		return basePrompt, nil
	}

	var b strings.Builder
	b.WriteString("Relevant contextual knowledge:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- [%s | %s] %s\n", r.Chunk.MemoryType, r.Chunk.SourceDoc, r.Snippet)
	}
	b.WriteString("\n")
	b.WriteString(basePrompt)
	return b.String(), nil
}

func chunkFromEntry(entry *models.MemoryEntry) (models.DocumentChunk, bool) {
	var chunk models.DocumentChunk
	content, ok := entry.Value["content"].(string)
	if !ok || content == "" {
		return chunk, false
	}
	chunk.Content = content
	chunk.ChunkID, _ = entry.Value["chunk_id"].(string)
	chunk.SourceDoc, _ = entry.Value["source_doc"].(string)
	if mt, ok := entry.Value["memory_type"].(string); ok {
		chunk.MemoryType = models.MemoryType(mt)
	}
	if idx, ok := entry.Value["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(idx)
	}
	if meta, ok := entry.Value["metadata"].(map[string]any); ok {
		chunk.Metadata = meta
	}
	if ts, ok := entry.Value["created_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			chunk.CreatedAt = parsed
		}
	}
	return chunk, true
}

func matchesMemoryTypes(have models.MemoryType, want []models.MemoryType) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if have == w {
			return true
		}
	}
	return false
}

func matchesTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
