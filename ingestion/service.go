package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/psy-assistant/config"
	"github.com/fabfab/psy-assistant/database"
	"github.com/fabfab/psy-assistant/embeddings"
	"github.com/fabfab/psy-assistant/knowledge"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

type Service struct {
	pool      *pgxpool.Pool
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	logger    *slog.Logger
	dimension int
	size      int
	overlap   int
}

// Report counts what one catalog pass did.
type Report struct {
	Ingested  int
	Unchanged int
	Skipped   int
}

// NewService wires the stores used by ingestion. driver may be nil when the
// page graph is disabled.
func NewService(pool *pgxpool.Pool, driver neo4j.DriverWithContext, embedder embeddings.Embedder, logger *slog.Logger, dimension, chunkSize, chunkOverlap int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
		chunkOverlap = defaultChunkOverlap
	}

	return &Service{
		pool:      pool,
		driver:    driver,
		embedder:  embedder,
		logger:    logger,
		dimension: dimension,
		size:      chunkSize,
		overlap:   chunkOverlap,
	}
}

// IngestCatalog ingests each catalogued PDF found under dir. Missing files
// are skipped with a warning; a failing document does not stop the others.
func (s *Service) IngestCatalog(ctx context.Context, dir string, catalog []config.DocumentEntry) (Report, error) {
	var report Report
	if s.embedder == nil {
		return report, fmt.Errorf("embedder is not configured")
	}
	if s.pool == nil {
		return report, fmt.Errorf("postgres pool is not configured")
	}
	if err := database.EnsureSchema(ctx, s.pool, s.dimension); err != nil {
		return report, fmt.Errorf("ensure schema: %w", err)
	}

	for _, entry := range catalog {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := ResolvePath(dir, entry.Path)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("catalogued document not found, skipping", "path", path)
				report.Skipped++
				continue
			}
			s.logger.Error("read document failed", "path", path, "error", err)
			report.Skipped++
			continue
		}

		changed, err := s.ingestDocument(ctx, entry, SourcePath(dir, entry.Path), data)
		if err != nil {
			s.logger.Error("ingest failed", "path", path, "error", err)
			report.Skipped++
			continue
		}
		if changed {
			report.Ingested++
		} else {
			report.Unchanged++
		}
	}

	s.logger.Info("catalog ingestion finished",
		"ingested", report.Ingested,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (s *Service) ingestDocument(ctx context.Context, entry config.DocumentEntry, source string, data []byte) (changed bool, err error) {
	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	var existingHash string
	err = s.pool.QueryRow(ctx, "SELECT sha256 FROM psy_documents WHERE source_path = $1", source).Scan(&existingHash)
	switch {
	case err == nil && existingHash == hashHex:
		s.logger.Debug("document unchanged", "path", source)
		return false, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("query document: %w", err)
	}

	pages, err := ExtractPages(data)
	if err != nil {
		return false, err
	}
	chunks := ChunkPages(pages, s.size, s.overlap)
	if len(chunks) == 0 {
		return false, fmt.Errorf("no text extracted from %d pages", len(pages))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return false, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	docID, err := upsertDocument(ctx, tx, source, entry.Title, hashHex, len(pages))
	if err != nil {
		return false, err
	}
	if _, err = tx.Exec(ctx, "DELETE FROM psy_chunks WHERE document_id = $1", docID); err != nil {
		return false, fmt.Errorf("clear existing chunks: %w", err)
	}

	graphPages := make([]knowledge.Page, 0, len(pages))
	pageIndex := make(map[int]int, len(pages))
	for i, chunk := range chunks {
		chunkID := uuid.New()
		if _, err = tx.Exec(ctx, `
			INSERT INTO psy_chunks (id, document_id, page, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, chunkID, docID, chunk.Page, chunk.Index, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return false, fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}

		pos, ok := pageIndex[chunk.Page]
		if !ok {
			pos = len(graphPages)
			pageIndex[chunk.Page] = pos
			graphPages = append(graphPages, knowledge.Page{Number: chunk.Page})
		}
		graphPages[pos].Chunks = append(graphPages[pos].Chunks, knowledge.Chunk{
			ID:    chunkID.String(),
			Index: chunk.Index,
			Text:  chunk.Text,
		})
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	if s.driver != nil {
		doc := knowledge.Document{
			ID:    docID.String(),
			Path:  source,
			Title: entry.Title,
			SHA:   hashHex,
			Pages: graphPages,
		}
		if syncErr := knowledge.SyncDocument(ctx, s.driver, doc); syncErr != nil {
			s.logger.Warn("sync page graph failed", "path", source, "error", syncErr)
		}
	}

	s.logger.Info("ingested document", "path", source, "pages", len(pages), "chunks", len(chunks))
	return true, nil
}

func upsertDocument(ctx context.Context, tx pgx.Tx, source, title, sha string, pageCount int) (uuid.UUID, error) {
	var docID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO psy_documents (id, source_path, title, sha256, page_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (source_path) DO UPDATE
		SET title = EXCLUDED.title,
		    sha256 = EXCLUDED.sha256,
		    page_count = EXCLUDED.page_count,
		    updated_at = NOW()
		RETURNING id
	`, uuid.New(), source, title, sha, pageCount).Scan(&docID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert document: %w", err)
	}
	return docID, nil
}

// ResolvePath joins a catalogued path onto dir unless it is already absolute.
func ResolvePath(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// SourcePath is the key a document is stored and cited under: the path it
// was loaded from, with forward slashes.
func SourcePath(dir, path string) string {
	return filepath.ToSlash(ResolvePath(dir, path))
}
