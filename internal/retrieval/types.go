package retrieval

import (
	"context"

	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region searcher
// Searcher returns campus resources that ground a reply.
type Searcher interface {
	Search(ctx context.Context, query, intent string) ([]state.Citation, error)
}

// #endregion searcher

// #region config
// Config holds limits for citation retrieval.
type Config struct {
	TopK          int // max citations per turn
	MaxDistance   int // fuzzy match: max edit distance per query token
	MaxSnippetLen int // chars of description kept in citation snippets
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopK:          3,
		MaxDistance:   2,
		MaxSnippetLen: 600,
	}
}

// #endregion config

// #region resource
// Resource is one entry of the local fallback corpus.
type Resource struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	Description string   `json:"description"`
	Published   string   `json:"published,omitempty"`
	Tags        []string `json:"tags"`
	Text        string   `json:"text,omitempty"`
}

// #endregion resource
