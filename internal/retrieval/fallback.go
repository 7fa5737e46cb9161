package retrieval

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region index-searcher
// RemoteIndex is the search contract of the inference sidecar.
type RemoteIndex interface {
	Search(ctx context.Context, query, intent string, topK int) ([]state.Citation, error)
}

// IndexSearcher adapts a RemoteIndex to Searcher.
type IndexSearcher struct {
	index  RemoteIndex
	config Config
}

// NewIndexSearcher creates an IndexSearcher.
func NewIndexSearcher(index RemoteIndex, config Config) *IndexSearcher {
	return &IndexSearcher{index: index, config: config}
}

// Search queries the remote index and validates what comes back.
func (s *IndexSearcher) Search(ctx context.Context, query, intent string) ([]state.Citation, error) {
	results, err := s.index.Search(ctx, query, intent, s.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	return consistencyCheck(results, s.config.TopK), nil
}

// #endregion index-searcher

// #region fallback-searcher
// FallbackSearcher tries Primary and uses Fallback when it errors or finds
// nothing.
type FallbackSearcher struct {
	primary  Searcher
	fallback Searcher
	logger   *zap.Logger
}

// NewFallbackSearcher creates a FallbackSearcher. primary may be nil.
func NewFallbackSearcher(primary, fallback Searcher, logger *zap.Logger) *FallbackSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackSearcher{primary: primary, fallback: fallback, logger: logger}
}

// Search never returns the primary's error; it only fails if the fallback does.
func (s *FallbackSearcher) Search(ctx context.Context, query, intent string) ([]state.Citation, error) {
	if s.primary != nil {
		results, err := s.primary.Search(ctx, query, intent)
		switch {
		case err != nil:
			s.logger.Warn("primary search failed", zap.Error(err))
		case len(results) > 0:
			return results, nil
		}
	}
	if s.fallback == nil {
		return nil, nil
	}
	s.logger.Debug("falling back to local corpus", zap.String("query", query))
	return s.fallback.Search(ctx, query, intent)
}

// #endregion fallback-searcher

// #region consistency-check
// consistencyCheck drops results without a title and duplicate IDs, then caps
// the list at topK.
func consistencyCheck(results []state.Citation, topK int) []state.Citation {
	valid := lo.Filter(results, func(c state.Citation, _ int) bool { return c.Title != "" })
	valid = lo.UniqBy(valid, func(c state.Citation) string {
		if c.ID == "" {
			return c.URL
		}
		return c.ID
	})
	if topK > 0 && len(valid) > topK {
		valid = valid[:topK]
	}
	return valid
}

// #endregion consistency-check
