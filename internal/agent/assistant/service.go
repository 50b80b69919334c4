package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/audit"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/conversations"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/guardrails"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/runner"
	errx "github.com/MedBuddy-core-poc-v1/server/internal/core/error"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

const (
	WelcomeMessage = "Namaste! 🙏 I'm **MedBuddy**, your Medical Representative AI.\n" +
		"Type 'New Patient' to start fresh or 'End Chat' to stop."
	GoodbyeMessage = "🛑 Chat ended. Memory wiped.\n\n" + WelcomeMessage
)

// Outcomes recorded on responses and audit entries.
const (
	OutcomeGreeting  = "greeting"
	OutcomeRejected  = "rejected"
	OutcomeReset     = "reset"
	OutcomeAnswered  = "answered"
	OutcomeBlocked   = "output_blocked"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrEmptyQuery  = errors.New("query is empty")
)

const defaultTurnTimeout = 90 * time.Second

type Request struct {
	Query     string
	SessionID string
	Mode      string
	Reset     bool
}

type Response struct {
	Status    guardrails.Status   `json:"status"`
	Category  guardrails.Category `json:"category,omitempty"`
	Message   string              `json:"message,omitempty"`
	Mode      model.Mode          `json:"mode"`
	SessionID string              `json:"session_id"`
	// Response is the structured answer of the doctor and patient modes.
	Response *model.MedicalResponse `json:"response,omitempty"`
	// Answer is the text answer of the agent mode.
	Answer     string `json:"answer,omitempty"`
	Iterations int    `json:"iterations"`
	Outcome    string `json:"outcome"`
}

// AgentRunner is the tool-calling loop.
type AgentRunner interface {
	Run(ctx context.Context, query string, history []*schema.Message) (*runner.Result, error)
}

type Config struct {
	Input       *guardrails.InputGuardrail
	Output      *guardrails.OutputGuardrail
	Doctor      graph.ChainRunner
	Patient     graph.ChainRunner
	Agent       AgentRunner
	Sessions    *conversations.MessagesManager
	Audit       *audit.Logger
	TurnTimeout time.Duration
}

// Service routes a query through guardrails, the selected mode, session
// memory and the audit log.
type Service struct {
	input       *guardrails.InputGuardrail
	output      *guardrails.OutputGuardrail
	doctor      graph.ChainRunner
	patient     graph.ChainRunner
	agent       AgentRunner
	sessions    *conversations.MessagesManager
	audit       *audit.Logger
	turnTimeout time.Duration
	locks       *sessionLocks
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Doctor == nil || cfg.Patient == nil || cfg.Agent == nil {
		return nil, errors.New("doctor, patient and agent runners are required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is nil")
	}
	if cfg.Audit == nil {
		return nil, errors.New("audit logger is nil")
	}
	if cfg.Input == nil {
		cfg.Input = guardrails.NewInputGuardrail(nil)
	}
	if cfg.Output == nil {
		cfg.Output = guardrails.NewOutputGuardrail()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	return &Service{
		input:       cfg.Input,
		output:      cfg.Output,
		doctor:      cfg.Doctor,
		patient:     cfg.Patient,
		agent:       cfg.Agent,
		sessions:    cfg.Sessions,
		audit:       cfg.Audit,
		turnTimeout: cfg.TurnTimeout,
		locks:       newSessionLocks(),
	}, nil
}

// turn carries what a mode handler produced for auditing.
type turn struct {
	resp      *Response
	toolCalls []audit.ToolCall
	costUSD   float64
	// reply is what gets stored in session memory; empty means nothing is stored.
	reply string
}

// Handle answers one query. Invalid requests return a 400 AppError; model
// faults return a 502/504 AppError after the turn has been audited.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	mode, ok := model.ParseMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if !ok {
		return nil, errx.New(fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode), http.StatusBadRequest, "mode must be one of doctor, patient, agent")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errx.New(ErrEmptyQuery, http.StatusBadRequest, "query must not be empty")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	unlock := s.locks.lock(sessionID)
	defer unlock()

	t, err := s.handle(ctx, mode, sessionID, query, req.Reset)
	if err != nil {
		s.record(ctx, mode, sessionID, query, &turn{resp: &Response{Outcome: OutcomeError}}, err)
		metrics.TurnsTotal.WithLabelValues(string(mode), OutcomeError).Inc()
		return nil, err
	}

	t.resp.Mode = mode
	t.resp.SessionID = sessionID
	if t.reply != "" {
		if err := s.sessions.SaveTurn(ctx, sessionID, query, t.reply); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to save turn")
		}
	}
	s.record(ctx, mode, sessionID, query, t, nil)
	metrics.TurnsTotal.WithLabelValues(string(mode), t.resp.Outcome).Inc()
	return t.resp, nil
}

func (s *Service) handle(ctx context.Context, mode model.Mode, sessionID, query string, reset bool) (*turn, error) {
	action := conversations.DetectReset(query)
	if reset || action != conversations.ResetNone {
		if err := s.sessions.Reset(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	if action == conversations.ResetOnly {
		return &turn{resp: &Response{Status: guardrails.StatusAllowed, Message: GoodbyeMessage, Outcome: OutcomeReset}}, nil
	}

	verdict := s.input.Evaluate(query)
	guardrails.Record(guardrails.StageInput, verdict)
	if verdict.Category == guardrails.CategoryGreeting {
		return &turn{resp: &Response{Status: verdict.Status, Category: verdict.Category, Message: WelcomeMessage, Outcome: OutcomeGreeting}}, nil
	}
	if !verdict.Allowed() {
		return &turn{resp: &Response{Status: verdict.Status, Category: verdict.Category, Message: verdict.Message, Outcome: OutcomeRejected}}, nil
	}

	switch mode {
	case model.ModeDoctor:
		history, err := s.sessions.History(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.runChain(ctx, s.doctor, model.ChainInput{SessionID: sessionID, Query: query, History: history}, true)
	case model.ModePatient:
		return s.runChain(ctx, s.patient, model.ChainInput{SessionID: sessionID, Query: query}, false)
	default:
		return s.runAgent(ctx, sessionID, query)
	}
}

func (s *Service) runChain(ctx context.Context, chain graph.ChainRunner, in model.ChainInput, remember bool) (*turn, error) {
	out, err := chain.Invoke(ctx, in)
	if err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("retrieval chain failed")
		return nil, errx.WrapModel(err)
	}

	t := &turn{costUSD: out.TotalCostUSD}
	verdict := s.output.Evaluate(out.Response.Summary, retrieval.Evidence(out.Evidence))
	guardrails.Record(guardrails.StageOutput, verdict)
	if !verdict.Allowed() {
		t.resp = &Response{Status: verdict.Status, Category: verdict.Category, Message: verdict.Message, Outcome: OutcomeBlocked}
		return t, nil
	}

	out.Response.Normalize()
	t.resp = &Response{Status: guardrails.StatusAllowed, Response: out.Response, Outcome: OutcomeAnswered}
	if remember {
		// memory keeps what the guardrail let through, disclaimer included
		t.reply = verdict.Text()
	}
	return t, nil
}

func (s *Service) runAgent(ctx context.Context, sessionID, query string) (*turn, error) {
	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.agent.Run(ctx, query, history)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("tool loop failed")
		return nil, errx.WrapModel(err)
	}

	t := &turn{costUSD: res.TotalCostUSD}
	for _, tc := range res.ToolTrace {
		t.toolCalls = append(t.toolCalls, audit.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, Executed: tc.Executed})
	}

	resp := &Response{Answer: res.Answer, Iterations: res.Iterations}
	switch {
	case res.State == runner.Exhausted:
		resp.Status = guardrails.StatusAllowed
		resp.Outcome = OutcomeExhausted
	case !res.Verdict.Allowed():
		resp.Status = res.Verdict.Status
		resp.Category = res.Verdict.Category
		resp.Message = res.Verdict.Message
		resp.Answer = ""
		resp.Outcome = OutcomeBlocked
	default:
		resp.Status = guardrails.StatusAllowed
		resp.Outcome = OutcomeAnswered
		t.reply = res.Answer
	}
	t.resp = resp
	return t, nil
}

// record writes the audit entry. Audit failures are logged, never surfaced.
func (s *Service) record(ctx context.Context, mode model.Mode, sessionID, query string, t *turn, turnErr error) {
	entry := audit.Entry{
		SessionID:  sessionID,
		Mode:       string(mode),
		Query:      query,
		Status:     string(t.resp.Status),
		Category:   string(t.resp.Category),
		Response:   responseText(t.resp),
		ToolCalls:  t.toolCalls,
		Iterations: t.resp.Iterations,
		Outcome:    t.resp.Outcome,
		CostUSD:    t.costUSD,
	}
	if turnErr != nil {
		entry.Status = "error"
		_, entry.Response = errx.StatusOf(errx.WrapModel(turnErr))
	}
	// audit even when the turn deadline has passed
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.audit.Record(actx, entry); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("audit record failed")
	}
}

func responseText(r *Response) string {
	switch {
	case r.Response != nil:
		return r.Response.Summary
	case r.Answer != "":
		return r.Answer
	}
	return r.Message
}

// ClearSession drops a session's history.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	return s.sessions.Reset(ctx, sessionID)
}
