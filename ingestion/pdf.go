package ingestion

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageText is the cleaned text of one PDF page. Number is 1-based.
type PageText struct {
	Number int
	Text   string
}

// ExtractPages reads every page of a PDF. Pages without text are kept with
// an empty Text so numbering stays aligned with the document.
func ExtractPages(data []byte) ([]PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]PageText, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, PageText{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}
		pages = append(pages, PageText{Number: i, Text: CleanText(text)})
	}
	return pages, nil
}

// PageChunk is a chunk that remembers the page it was cut from.
type PageChunk struct {
	Page  int
	Index int
	Text  string
}

// ChunkPages splits each page independently so no chunk spans two pages.
// Index runs across the whole document.
func ChunkPages(pages []PageText, size, overlap int) []PageChunk {
	chunks := make([]PageChunk, 0)
	for _, page := range pages {
		for _, text := range SplitText(page.Text, size, overlap) {
			chunks = append(chunks, PageChunk{Page: page.Number, Index: len(chunks), Text: text})
		}
	}
	return chunks
}
