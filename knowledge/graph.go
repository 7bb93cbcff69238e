package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Document mirrors one ingested PDF as a Document node with one Page node
// per extracted page.
type Document struct {
	ID    string
	Path  string
	Title string
	SHA   string
	Pages []Page
}

type Page struct {
	Number int
	Chunks []Chunk
}

type Chunk struct {
	ID    string
	Index int
	Text  string
}

func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.path = $path,
			    d.title = $title,
			    d.sha256 = $sha,
			    d.updated_at = datetime()
		`, map[string]any{
			"id":    doc.ID,
			"path":  doc.Path,
			"title": doc.Title,
			"sha":   doc.SHA,
		}); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_PAGE]->(p:Page)
			OPTIONAL MATCH (p)-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE p, c
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing pages: %w", err)
		}

		for _, page := range doc.Pages {
			pageID := fmt.Sprintf("%s:%d", doc.ID, page.Number)
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (p:Page {id: $page_id})
				SET p.number = $page_number
				MERGE (d)-[:HAS_PAGE {number: $page_number}]->(p)
			`, map[string]any{
				"doc_id":      doc.ID,
				"page_id":     pageID,
				"page_number": page.Number,
			}); err != nil {
				return nil, fmt.Errorf("upsert page %d: %w", page.Number, err)
			}

			for _, chunk := range page.Chunks {
				if _, err := tx.Run(ctx, `
					MATCH (p:Page {id: $page_id})
					MERGE (c:Chunk {id: $chunk_id})
					SET c.index = $chunk_index,
					    c.text = $chunk_text
					MERGE (p)-[:HAS_CHUNK {order: $chunk_index}]->(c)
				`, map[string]any{
					"page_id":     pageID,
					"chunk_id":    chunk.ID,
					"chunk_index": chunk.Index,
					"chunk_text":  chunk.Text,
				}); err != nil {
					return nil, fmt.Errorf("upsert chunk node: %w", err)
				}
			}
		}

		return nil, nil
	})
	return err
}

// Purge removes every Document, Page and Chunk node.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (n)
			WHERE n:Document OR n:Page OR n:Chunk
			DETACH DELETE n
		`, nil); err != nil {
			return nil, fmt.Errorf("purge graph: %w", err)
		}
		return nil, nil
	})
	return err
}
