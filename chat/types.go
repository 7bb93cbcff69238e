package chat

import "fmt"

// Source identifies a cited document passage. Two sources are the same
// citation when title and page match; the path in Source is ignored.
type Source struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Page   int    `json:"page"`
}

// Label is the bullet text shown for a cited source.
func (s Source) Label() string {
	return fmt.Sprintf("%s (Page %d)", s.Title, s.Page)
}

// Answer is the backend reply to one question.
type Answer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
	// Keyed is an optional explicit section mapping. Backends that only send
	// Response are split positionally.
	Keyed *Sections `json:"sections,omitempty"`
}

// Sections returns the four answer zones, preferring the keyed mapping.
func (a Answer) Sections() Sections {
	if a.Keyed != nil && !a.Keyed.IsZero() {
		return *a.Keyed
	}
	return SplitSections(a.Response)
}

type Sections struct {
	Evaluation      string `json:"evaluation"`
	Diagnosis       string `json:"diagnosis"`
	Recommendations string `json:"recommendations"`
	Disclaimer      string `json:"disclaimer"`
}

func (s Sections) IsZero() bool {
	return s == Sections{}
}

// ChunkResult is one retrieved passage with its citation metadata.
type ChunkResult struct {
	ChunkID    string
	DocumentID string
	SourcePath string
	Title      string
	Page       int
	Content    string
	Score      float64
}

func (c ChunkResult) Source() Source {
	return Source{Source: c.SourcePath, Title: c.Title, Page: c.Page}
}
