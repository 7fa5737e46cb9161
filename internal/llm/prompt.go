package llm

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/retrieval"
)

// HistoryLines is how many prior messages a reply prompt includes.
const HistoryLines = 5

// #region build-prompt

// BuildPrompt assembles the reply prompt: persona voice, mentoring rules, the
// resources block, recent history and the latest message, ending on the
// persona's name so the model continues in voice.
func BuildPrompt(in PromptInput) string {
	name := displayName(in.Persona)

	var b strings.Builder
	b.WriteString(in.Persona.Prompt)
	b.WriteString("\n\n")
	b.WriteString("You mentor an NJIT student. Respond in the goddess's voice, precise and encouraging.\n")
	b.WriteString("Ground every factual statement in the provided resources. When you cite, use inline brackets like [1]. ")
	b.WriteString("Offer next steps and keep responses under 180 words.\n")
	b.WriteString("If resources are missing for the request, state that you will follow up after checking with campus partners.\n\n")

	b.WriteString("Resources:\n")
	b.WriteString(retrieval.FormatCitations(in.Citations))
	b.WriteString("\n\n")

	b.WriteString("Conversation so far:\n")
	history := in.History
	if len(history) > HistoryLines {
		history = history[len(history)-HistoryLines:]
	}
	for _, m := range history {
		speaker := "Student"
		if m.Role == "assistant" {
			speaker = name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}

	fmt.Fprintf(&b, "\nStudent: %s\n%s:", in.Message, name)
	return b.String()
}

func displayName(p persona.Persona) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// #endregion build-prompt

// #region handoff-texts

// SuggestionQuestion is appended to the current persona's reply when a
// handoff is suggested.
func SuggestionQuestion(to persona.Persona) string {
	domain := to.Domain
	if domain == "" {
		domain = "this"
	}
	return fmt.Sprintf("It sounds like %s, who guides %s, could help you best here. Would you like me to bring %s in? (yes/no)",
		displayName(to), strings.ToLower(domain), displayName(to))
}

// Reprompt asks again for a yes/no answer while a suggestion is pending.
func Reprompt(to persona.Persona) string {
	return fmt.Sprintf("Before we go on: would you like to continue with %s? Please answer yes or no.", displayName(to))
}

// ConfirmAck opens the new persona's first reply after a confirmed handoff.
func ConfirmAck(to persona.Persona) string {
	return fmt.Sprintf("%s here. Let's pick up where you left off.", displayName(to))
}

// DeclineAck acknowledges a declined handoff in the current persona's voice.
func DeclineAck(current persona.Persona) string {
	return fmt.Sprintf("No problem, %s will keep helping you. What would you like to work on?", displayName(current))
}

// NoPendingNotice answers a confirm or decline with nothing pending.
const NoPendingNotice = "There is no mentor handoff waiting for your answer right now."

// FallbackReply is used when no generator is configured or it fails.
func FallbackReply(p persona.Persona) string {
	return fmt.Sprintf("%s is gathering the right campus resources for you. I will follow up after checking with campus partners.", displayName(p))
}

// #endregion handoff-texts
