package signals

import (
	"regexp"
	"strings"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
)

// #region cues

var switchCues = wordPatterns(
	"switch", "change", "connect", "talk to", "speak to", "speak with", "transfer",
	"hand me", "put me", "let me talk", "can i talk", "bring", "i want",
)

// fillers may surround a bare persona name without making it conversational.
var fillers = map[string]bool{
	"please": true, "pls": true, "plz": true, "hi": true, "hey": true, "hello": true,
	"ok": true, "okay": true, "now": true, "thanks": true, "thank": true, "you": true,
}

var wordRe = regexp.MustCompile(`[a-z0-9][a-z0-9'-]*`)

// #endregion cues

// #region explicit-parse

type mention struct {
	id    string
	start int
	end   int
}

// ExplicitParser finds personas the user asks for by name. Name patterns are
// compiled once per registry.
type ExplicitParser struct {
	names []namePattern
}

type namePattern struct {
	id string
	re *regexp.Regexp
}

// NewExplicitParser compiles the id and display name of every persona in reg.
// A nil registry yields a parser that never matches.
func NewExplicitParser(reg *persona.Registry) *ExplicitParser {
	ep := &ExplicitParser{}
	if reg == nil {
		return ep
	}
	for _, p := range reg.All() {
		names := []string{p.ID}
		if dn := strings.ToLower(p.DisplayName); dn != "" && dn != p.ID {
			names = append(names, dn)
		}
		for _, re := range wordPatterns(names...) {
			ep.names = append(ep.names, namePattern{id: p.ID, re: re})
		}
	}
	return ep
}

// ParseExplicitPersona is a one-off Parse over reg.
func ParseExplicitPersona(reg *persona.Registry, message string) string {
	return NewExplicitParser(reg).Parse(message)
}

// Parse returns the id of a persona the user asked for by name, or "" when
// the message names no persona in a requesting way. A name counts when it
// appears with a switch cue, or alone or trailing after a comma.
func (ep *ExplicitParser) Parse(message string) string {
	if len(ep.names) == 0 {
		return ""
	}
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return ""
	}

	mentions := ep.findMentions(text)
	if len(mentions) == 0 {
		return ""
	}

	if id := standaloneName(text, mentions); id != "" {
		return id
	}
	if id := trailingName(text, mentions); id != "" {
		return id
	}

	cue := firstCue(text)
	if cue < 0 {
		return ""
	}
	// prefer the first name after the cue; names introduced by "from" or
	// "instead of" are what the user is leaving
	var fallback string
	for _, m := range mentions {
		if excluded(text, m.start) {
			continue
		}
		if m.start >= cue {
			return m.id
		}
		if fallback == "" {
			fallback = m.id
		}
	}
	return fallback
}

func (ep *ExplicitParser) findMentions(text string) []mention {
	var out []mention
	for _, n := range ep.names {
		for _, loc := range n.re.FindAllStringIndex(text, -1) {
			out = append(out, mention{id: n.id, start: loc[0], end: loc[1]})
		}
	}
	// order by position, registry order on equal starts
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].start < out[j-1].start; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func standaloneName(text string, mentions []mention) string {
	var rest []string
	for _, w := range wordRe.FindAllString(text, -1) {
		if !fillers[w] {
			rest = append(rest, w)
		}
	}
	if len(rest) == 0 {
		return ""
	}
	joined := strings.Join(rest, " ")
	for _, m := range mentions {
		if joined == text[m.start:m.end] {
			return m.id
		}
	}
	return ""
}

func trailingName(text string, mentions []mention) string {
	last := mentions[len(mentions)-1]
	before := strings.TrimRight(text[:last.start], " ")
	if !strings.HasSuffix(before, ",") {
		return ""
	}
	for _, w := range wordRe.FindAllString(text[last.end:], -1) {
		if !fillers[w] {
			return ""
		}
	}
	return last.id
}

func firstCue(text string) int {
	first := -1
	for _, re := range switchCues {
		if loc := re.FindStringIndex(text); loc != nil && (first < 0 || loc[0] < first) {
			first = loc[0]
		}
	}
	return first
}

func wordPatterns(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

func excluded(text string, start int) bool {
	before := strings.TrimRight(text[:start], " ")
	return strings.HasSuffix(before, " from") || before == "from" ||
		strings.HasSuffix(before, "instead of") || strings.HasSuffix(before, " not") || before == "not"
}

// #endregion explicit-parse

// #region reply-parse

// Reply classifies an answer to a pending handoff question.
type Reply int

const (
	ReplyOther Reply = iota
	ReplyYes
	ReplyNo
)

func (r Reply) String() string {
	switch r {
	case ReplyYes:
		return "yes"
	case ReplyNo:
		return "no"
	default:
		return "other"
	}
}

var yesPhrases = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "ya": true, "sure": true,
	"ok": true, "okay": true, "please": true, "please do": true, "do it": true, "go ahead": true,
	"switch": true, "switch me": true, "sounds good": true, "yes please": true, "absolutely": true,
	"connect me": true, "let's do it": true, "lets do it": true, "of course": true, "definitely": true,
	"sure thing": true, "alright": true, "why not": true,
}

var noPhrases = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "no thanks": true, "no thank you": true,
	"stay": true, "not now": true, "maybe later": true, "later": true, "i'll stay": true,
	"keep": true, "don't": true, "dont": true, "cancel": true, "no way": true, "not really": true,
	"i'm good": true, "im good": true, "stay here": true,
}

var clauseRe = regexp.MustCompile(`[,.!?;]`)

// ParseReply reads a yes or no out of a short answer. The whole message, or its
// first clause, must be a known phrase; anything else is ReplyOther.
func ParseReply(message string) Reply {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return ReplyOther
	}
	if r := matchReply(normalizeReply(text)); r != ReplyOther {
		return r
	}
	if loc := clauseRe.FindStringIndex(text); loc != nil {
		return matchReply(normalizeReply(text[:loc[0]]))
	}
	return ReplyOther
}

func normalizeReply(s string) string {
	s = strings.Trim(s, " .!?,;")
	return strings.Join(strings.Fields(s), " ")
}

func matchReply(s string) Reply {
	switch {
	case yesPhrases[s]:
		return ReplyYes
	case noPhrases[s]:
		return ReplyNo
	default:
		return ReplyOther
	}
}

// #endregion reply-parse
