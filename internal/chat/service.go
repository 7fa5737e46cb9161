package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/llm"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// historyLimit bounds the history read for classification and prompting.
const historyLimit = 10

// #region service

// Service runs chat turns: routing, reply generation and persistence.
type Service struct {
	registry  *persona.Registry
	machine   *handoff.Machine
	extractor *signals.Extractor
	matcher   *matcher.Matcher
	searcher  Searcher
	generator llm.Generator
	store     SessionStore
	decisions DecisionLogger
	logger    *zap.Logger
	clock     func() time.Time
}

// Deps wires a Service. Searcher, Generator, Decisions and Logger may be nil.
type Deps struct {
	Registry  *persona.Registry
	Machine   *handoff.Machine
	Extractor *signals.Extractor
	Matcher   *matcher.Matcher
	Searcher  Searcher
	Generator llm.Generator
	Store     SessionStore
	Decisions DecisionLogger
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Service{
		registry:  d.Registry,
		machine:   d.Machine,
		extractor: d.Extractor,
		matcher:   d.Matcher,
		searcher:  d.Searcher,
		generator: d.Generator,
		store:     d.Store,
		decisions: d.Decisions,
		logger:    d.Logger,
		clock:     d.Clock,
	}
}

// Registry returns the persona registry the service routes over.
func (s *Service) Registry() *persona.Registry {
	return s.registry
}

// #endregion service

// #region handle-turn

// HandleTurn routes one user message and returns the reply. Collaborator
// failures degrade the turn; only store failures are returned.
func (s *Service) HandleTurn(ctx context.Context, userID, message string) (Response, error) {
	message = strings.TrimSpace(message)
	unlock := s.store.Lock(userID)
	defer unlock()

	before, err := s.load(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	// Normalize once up front so Pending sees the repaired stage.
	st, _ := s.machine.Normalize(before)

	t := &turn{id: uuid.New().String(), userID: userID, message: message, from: st.CurrentPersona}
	in := handoff.TurnInput{Message: message}
	if s.machine.Pending(st, message).NeedsSignals() {
		in = s.gather(ctx, t, st.CurrentPersona)
	}

	out := s.machine.RouteTurn(userID, before, in)
	t.input = in
	return s.finish(ctx, t, out)
}

// gather runs the collaborators for a routed turn.
func (s *Service) gather(ctx context.Context, t *turn, current string) handoff.TurnInput {
	history, err := s.store.History(ctx, t.userID, current, historyLimit)
	if err != nil {
		t.degrade("history", err)
		history = nil
	}
	turns := lo.Map(history, func(m state.ChatMessage, _ int) signals.Turn {
		return signals.Turn{Role: m.Role, Content: m.Content}
	})

	sig := s.extractor.Extract(ctx, t.message, turns)
	if sig.Degraded() {
		t.degraded = append(t.degraded, "classifier")
	}
	cand := s.matcher.Match(ctx, t.message, sig.RoutingIntent())

	var cites []state.Citation
	if s.searcher != nil && t.message != "" {
		cites, err = s.searcher.Search(ctx, t.message, sig.Category)
		if err != nil {
			t.degrade("search", err)
			cites = nil
		}
	}
	return handoff.TurnInput{Message: t.message, Signal: sig, Candidate: cand, Citations: cites}
}

// #endregion handle-turn

// #region confirm-decline

// Confirm adopts the pending suggestion and answers the original request in
// the new persona. With nothing pending the result is ResultNoHandoffPending.
func (s *Service) Confirm(ctx context.Context, userID string) (Response, error) {
	return s.explicitReply(ctx, userID, handoff.ActionConfirm)
}

// Decline refuses the pending suggestion and starts its cooldown.
func (s *Service) Decline(ctx context.Context, userID string) (Response, error) {
	return s.explicitReply(ctx, userID, handoff.ActionDecline)
}

func (s *Service) explicitReply(ctx context.Context, userID string, action handoff.Action) (Response, error) {
	unlock := s.store.Lock(userID)
	defer unlock()

	before, err := s.load(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	st, notes := s.machine.Normalize(before)

	out := handoff.TurnOutcome{Action: action, Notes: notes}
	switch action {
	case handoff.ActionConfirm:
		out.State, out.Resumed, out.Result = s.machine.Confirm(st)
		out.Decision = policy.Decision{Mode: policy.ModeStay, Target: out.State.CurrentPersona, Reason: "handoff confirmed"}
	default:
		out.State, out.Result = s.machine.Decline(st)
		out.Decision = policy.Decision{Mode: policy.ModeStay, Target: out.State.CurrentPersona, Reason: "handoff declined"}
	}
	if out.Result == handoff.ResultNoHandoffPending {
		out.Decision.Reason = "no handoff pending"
	}

	t := &turn{id: uuid.New().String(), userID: userID, from: st.CurrentPersona}
	return s.finish(ctx, t, out)
}

// #endregion confirm-decline

// #region finish

// turn accumulates per-turn bookkeeping.
type turn struct {
	id       string
	userID   string
	message  string
	from     string // active persona before the turn
	input    handoff.TurnInput
	degraded []string
}

func (t *turn) degrade(what string, err error) {
	t.degraded = append(t.degraded, fmt.Sprintf("%s: %v", what, err))
}

// finish renders the reply for an outcome, then persists state, messages,
// intents and the provenance row.
func (s *Service) finish(ctx context.Context, t *turn, out handoff.TurnOutcome) (Response, error) {
	responder, _ := s.registry.Resolve(out.State.CurrentPersona)
	intent := t.input.Signal.Category
	citations := t.input.Citations
	var text string

	switch {
	case out.Result == handoff.ResultNoHandoffPending:
		text = llm.NoPendingNotice

	case out.Action == handoff.ActionConfirm:
		request := t.message
		if out.Resumed != nil {
			request = out.Resumed.OriginatingMessage
			intent = out.Resumed.Intent
			citations = out.Resumed.Citations
		}
		reply := s.generate(ctx, t, responder, request, citations)
		text = llm.ConfirmAck(responder) + "\n\n" + reply

	case out.Action == handoff.ActionDecline:
		text = llm.DeclineAck(responder)

	case out.Action == handoff.ActionReprompt:
		suggested, _ := s.registry.Resolve(out.State.SuggestedPersona)
		text = llm.Reprompt(suggested)

	default:
		text = s.generate(ctx, t, responder, t.message, citations)
		if out.Decision.Mode == policy.ModeSuggest {
			suggested, _ := s.registry.Resolve(out.Decision.Suggested)
			text += "\n\n" + llm.SuggestionQuestion(suggested)
		}
	}

	versionID, err := s.store.Put(ctx, t.userID, out.State)
	if err != nil {
		return Response{}, fmt.Errorf("persist routing state: %w", err)
	}
	s.persistConversation(ctx, t, responder.ID, intent, text, citations)

	if citations == nil {
		citations = []state.Citation{}
	}
	resp := Response{
		Message:   text,
		Persona:   responder.ID,
		Intent:    intent,
		Citations: citations,
		Decision:  out.Decision,
		Result:    out.Result,
		Stage:     out.State.Stage,
		Suggested: out.State.SuggestedPersona,
		Trace: Trace{
			TurnID:    t.id,
			VersionID: versionID,
			Action:    out.Action,
			Signal:    t.input.Signal,
			Candidate: t.input.Candidate,
			Notes:     out.Notes,
			Degraded:  t.degraded,
		},
	}
	s.record(ctx, resp, t)

	s.logger.Info("turn routed",
		zap.String("user", t.userID),
		zap.String("turn", t.id),
		zap.String("action", string(out.Action)),
		zap.String("mode", string(out.Decision.Mode)),
		zap.String("persona", responder.ID),
		zap.Bool("handoff", out.Changed(t.from)),
		zap.String("stage", string(out.State.Stage)),
		zap.String("reason", out.Decision.Reason),
	)
	return resp, nil
}

func (s *Service) generate(ctx context.Context, t *turn, p persona.Persona, message string, citations []state.Citation) string {
	history, err := s.store.History(ctx, t.userID, p.ID, llm.HistoryLines)
	if err != nil {
		t.degrade("history", err)
	}
	text, err := llm.Respond(ctx, s.generator, llm.PromptInput{
		Persona:   p,
		Citations: citations,
		History:   history,
		Message:   message,
	})
	if err != nil {
		t.degrade("llm", err)
	}
	return text
}

// persistConversation files both sides of the turn under the responding
// persona. Failures are logged; the routing state is already committed.
func (s *Service) persistConversation(ctx context.Context, t *turn, personaID, intent, reply string, citations []state.Citation) {
	if _, err := s.store.UpsertUser(ctx, t.userID, "", ""); err != nil {
		s.logger.Warn("upsert user failed", zap.String("user", t.userID), zap.Error(err))
	}
	if t.message != "" {
		if _, err := s.store.AddMessage(ctx, state.ChatMessage{
			UserID: t.userID, Role: "user", Content: t.message, Persona: personaID, Intent: intent,
		}); err != nil {
			s.logger.Warn("store user message failed", zap.String("user", t.userID), zap.Error(err))
		}
	}
	if _, err := s.store.AddMessage(ctx, state.ChatMessage{
		UserID: t.userID, Role: "assistant", Content: reply, Persona: personaID, Intent: intent, Citations: citations,
	}); err != nil {
		s.logger.Warn("store reply failed", zap.String("user", t.userID), zap.Error(err))
	}
	if intent != "" {
		if err := s.store.AppendIntents(ctx, t.userID, intent); err != nil {
			s.logger.Warn("append intents failed", zap.String("user", t.userID), zap.Error(err))
		}
	}
}

func (s *Service) record(ctx context.Context, resp Response, t *turn) {
	if s.decisions == nil {
		return
	}
	err := s.decisions.Record(ctx, logging.Entry{
		TurnID:           t.id,
		UserID:           t.userID,
		VersionID:        resp.Trace.VersionID,
		Action:           string(resp.Trace.Action),
		Message:          t.message,
		Intent:           resp.Intent,
		IntentConfidence: t.input.Signal.Confidence,
		Candidate:        t.input.Candidate.PersonaID,
		CandidateScore:   t.input.Candidate.Score,
		ExplicitPersona:  t.input.Signal.ExplicitPersona,
		Mode:             string(resp.Decision.Mode),
		Target:           resp.Decision.Target,
		Suggested:        resp.Decision.Suggested,
		Reason:           resp.Decision.Reason,
		StageAfter:       string(resp.Stage),
		PersonaAfter:     resp.Persona,
		CreatedAt:        s.clock().UTC(),
	})
	if err != nil {
		s.logger.Warn("record decision failed", zap.String("turn", t.id), zap.Error(err))
	}
}

// #endregion finish

// #region state

// load returns the stored state or a fresh one on first contact.
func (s *Service) load(ctx context.Context, userID string) (state.RoutingState, error) {
	st, err := s.store.Get(ctx, userID)
	if errors.Is(err, state.ErrNotFound) {
		return s.machine.NewState(userID), nil
	}
	if err != nil {
		return state.RoutingState{}, fmt.Errorf("load routing state: %w", err)
	}
	return st, nil
}

// State returns the user's normalized routing state without changing it.
func (s *Service) State(ctx context.Context, userID string) (state.RoutingState, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return state.RoutingState{}, err
	}
	st, _ = s.machine.Normalize(st)
	return st, nil
}

// #endregion state
