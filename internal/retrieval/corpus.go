package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// LocalSource labels citations that came from the local corpus.
const LocalSource = "Local Corpus"

// #region load
// LoadCorpus reads a JSON array of resources. A missing file is an empty
// corpus, not an error.
func LoadCorpus(path string) ([]Resource, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return resources, nil
}

// #endregion load

// #region corpus-searcher
// CorpusSearcher matches queries against an in-memory resource list.
type CorpusSearcher struct {
	resources []Resource
	blobs     []string
	words     [][]string
	config    Config
}

// NewCorpusSearcher indexes resources for searching.
func NewCorpusSearcher(resources []Resource, config Config) *CorpusSearcher {
	s := &CorpusSearcher{
		resources: resources,
		blobs:     make([]string, len(resources)),
		words:     make([][]string, len(resources)),
		config:    config,
	}
	for i, r := range resources {
		blob := strings.ToLower(strings.Join([]string{r.Title, r.Description, strings.Join(r.Tags, " ")}, " "))
		s.blobs[i] = blob
		s.words[i] = lo.Uniq(strings.FieldsFunc(blob, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
		}))
	}
	return s
}

// Len returns the number of indexed resources.
func (s *CorpusSearcher) Len() int {
	return len(s.resources)
}

// Search returns up to TopK resources in corpus order. A resource matches
// when the first three query words all occur in its text, when every
// content word of the query is within MaxDistance edits of one of its
// words, or when the intent is one of its tags.
func (s *CorpusSearcher) Search(_ context.Context, query, intent string) ([]state.Citation, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	content := tokenize(query)
	if len(content) > 3 {
		content = content[:3]
	}

	var matches []state.Citation
	for i, r := range s.resources {
		if s.config.TopK > 0 && len(matches) >= s.config.TopK {
			break
		}
		switch {
		case len(keywords) > 0 && containsAll(s.blobs[i], keywords):
		case len(content) > 0 && s.fuzzyAll(s.words[i], content):
		case intent != "" && lo.Contains(r.Tags, intent):
		default:
			continue
		}
		matches = append(matches, s.citation(r))
	}
	return matches, nil
}

func (s *CorpusSearcher) fuzzyAll(words, tokens []string) bool {
	return lo.EveryBy(tokens, func(tok string) bool {
		// short tokens are too ambiguous to match approximately
		if len(tok) < 4 {
			return lo.Contains(words, tok)
		}
		return lo.SomeBy(words, func(w string) bool {
			return fuzzy.LevenshteinDistance(tok, w) <= s.config.MaxDistance
		})
	})
}

func (s *CorpusSearcher) citation(r Resource) state.Citation {
	id := r.ID
	if id == "" {
		id = "fallback"
	}
	title := r.Title
	if title == "" {
		title = "NJIT Resource"
	}
	snippet := truncateRunes(r.Description, s.config.MaxSnippetLen)
	return state.Citation{
		ID:        id,
		Title:     title,
		URL:       r.URL,
		Source:    LocalSource,
		Snippet:   snippet,
		Published: r.Published,
	}
}

// truncateRunes keeps at most n characters of s. n <= 0 keeps everything.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func containsAll(blob string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(blob, t) {
			return false
		}
	}
	return true
}

// #endregion corpus-searcher
