package retrieval

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// NoResourcesLine replaces the resource block when nothing matched.
const NoResourcesLine = "No resources matched. If the topic requires facts, acknowledge the gap."

// FormatCitations renders citations as numbered prompt lines.
func FormatCitations(citations []state.Citation) string {
	if len(citations) == 0 {
		return NoResourcesLine
	}
	lines := make([]string, len(citations))
	for i, c := range citations {
		snippet := c.Snippet
		if len(snippet) > 220 {
			snippet = snippet[:220]
		}
		lines[i] = fmt.Sprintf("[%d] %s - %s (Source: %s) %s", i+1, c.Title, snippet, c.Source, c.URL)
	}
	return strings.Join(lines, "\n")
}
