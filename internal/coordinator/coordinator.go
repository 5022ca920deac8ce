// Package coordinator runs conversation turns: it drives the reasoning
// engine, gates and executes tools and handoffs, applies results to the
// session and persists it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/wellness-planner/internal/agent"
	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/guardrail"
	"github.com/ashureev/wellness-planner/internal/identity"
	"github.com/ashureev/wellness-planner/internal/metrics"
	"github.com/ashureev/wellness-planner/internal/store"
	"github.com/ashureev/wellness-planner/internal/tools"
	"github.com/ashureev/wellness-planner/internal/updater"
)

const (
	apologyMessage  = "I apologize, but I couldn't generate a response. Please try again or type 'clear' to reset the conversation."
	rephraseMessage = "I'm having trouble generating a response. Try rephrasing your question or type 'clear' to reset the conversation."
	clearedMessage  = "Conversation history cleared."

	// ClearCommand is the utterance that clears the conversation history.
	ClearCommand = "clear"
)

var rejectionMessages = map[guardrail.Domain]string{
	guardrail.DomainGoal:   `That doesn't look like a goal I can work with. Try something like "lose 5kg in 2 months" or "build muscle in 12 weeks".`,
	guardrail.DomainDiet:   "Tell me about your diet preferences first, for example vegetarian, vegan, keto, mediterranean or balanced.",
	guardrail.DomainInjury: `Please describe the injury or limitation, for example "knee pain when running".`,
	guardrail.DomainNone:   "I couldn't process that request. Please add a bit more detail and try again.",
}

// Config tunes the turn loop.
type Config struct {
	// MaxSteps bounds engine decisions per turn.
	MaxSteps int
	// EngineTimeout bounds the whole decision loop of one turn.
	EngineTimeout time.Duration
	// FailureThreshold is the consecutive failure count at which the
	// rephrase message replaces the apology.
	FailureThreshold int
	// HistoryWindow is how many recent messages the engine sees. Zero sends all.
	HistoryWindow int
	SaveRetries   int
	SaveBackoff   time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:         6,
		EngineTimeout:    30 * time.Second,
		FailureThreshold: 3,
		HistoryWindow:    20,
		SaveRetries:      3,
		SaveBackoff:      100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.EngineTimeout <= 0 {
		c.EngineTimeout = def.EngineTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.HistoryWindow < 0 {
		c.HistoryWindow = 0
	}
	if c.SaveRetries < 0 {
		c.SaveRetries = 0
	}
	if c.SaveBackoff <= 0 {
		c.SaveBackoff = def.SaveBackoff
	}
	return c
}

// Result is the outcome of one turn.
type Result struct {
	TurnID    string                `json:"turn_id"`
	Response  string                `json:"response"`
	Agent     string                `json:"agent"`
	ToolsUsed []tools.Name          `json:"tools_used"`
	Handoff   *domain.HandoffRecord `json:"handoff,omitempty"`
	Rejected  bool                  `json:"rejected"`
	Fallback  bool                  `json:"fallback"`
}

// Coordinator is the single entry point for turns and session lifecycle.
type Coordinator struct {
	repo     store.Repository
	registry *agent.Registry
	engine   agent.Engine
	convLog  agent.ConversationLogger
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	locks store.KeyedMutex

	mu       sync.Mutex
	pending  map[int64]*domain.Session
	failures map[int64]int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConversationLogger records every turn to l.
func WithConversationLogger(l agent.ConversationLogger) Option {
	return func(c *Coordinator) { c.convLog = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator.
func New(repo store.Repository, registry *agent.Registry, engine agent.Engine, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		registry: registry,
		engine:   engine,
		convLog:  agent.NopConversationLogger(),
		logger:   slog.Default(),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		pending:  make(map[int64]*domain.Session),
		failures: make(map[int64]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an identity with its empty session.
func (c *Coordinator) Register(ctx context.Context, name, email, credential string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	email = domain.NormalizeEmail(email)
	if email != "" && credential == "" {
		return nil, fmt.Errorf("%w: a credential is required with an email", domain.ErrInvalidInput)
	}
	hash, err := identity.HashCredential(credential)
	if err != nil {
		return nil, err
	}
	s, err := c.repo.CreateUser(ctx, name, email, hash)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Registered user", "user_id", s.UID)
	return s, nil
}

// Authenticate verifies a credential and returns the user's session.
func (c *Coordinator) Authenticate(ctx context.Context, email, credential string) (*domain.Session, error) {
	u, err := c.repo.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := identity.CheckCredential(u.CredentialHash, credential); err != nil {
		c.logger.Info("Authentication failed", "user_id", u.UID)
		return nil, err
	}
	if err := c.repo.UpdateLastLogin(ctx, u.UID, c.now()); err != nil {
		c.logger.Warn("Failed to record last login", "user_id", u.UID, "error", err)
	}

	unlock := c.locks.Lock(u.UID)
	defer unlock()
	return c.session(ctx, u.UID)
}

// Export returns the reporting projection of a session.
func (c *Coordinator) Export(ctx context.Context, uid int64) (domain.Export, error) {
	unlock := c.locks.Lock(uid)
	defer unlock()
	s, err := c.session(ctx, uid)
	if err != nil {
		return domain.Export{}, err
	}
	return s.Export(), nil
}

// ListSessions returns one summary per registered user.
func (c *Coordinator) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return c.repo.ListSessions(ctx)
}

// ClearHistory empties the conversation history and persists the session.
func (c *Coordinator) ClearHistory(ctx context.Context, uid int64) error {
	unlock := c.locks.Lock(uid)
	defer unlock()

	s, err := c.session(ctx, uid)
	if err != nil {
		return err
	}
	c.clear(s)
	return c.persist(ctx, s)
}

func (c *Coordinator) clear(s *domain.Session) {
	s.ClearHistory()
	c.mu.Lock()
	delete(c.failures, s.UID)
	c.mu.Unlock()
}

// DeleteAccount removes the identity and session of uid.
func (c *Coordinator) DeleteAccount(ctx context.Context, uid int64) error {
	unlock := c.locks.Lock(uid)
	defer unlock()

	if err := c.repo.DeleteUser(ctx, uid); err != nil {
		return err
	}
	c.mu.Lock()
	if _, ok := c.pending[uid]; ok {
		delete(c.pending, uid)
		metrics.PendingSessions.Dec()
	}
	delete(c.failures, uid)
	c.mu.Unlock()
	c.logger.Info("Deleted account", "user_id", uid)
	return nil
}

// Converse runs one turn for uid and returns the reply. The reply is valid
// even when the returned error wraps domain.ErrStorageFailure; the session
// is then kept in memory until a later save succeeds.
func (c *Coordinator) Converse(ctx context.Context, uid int64, utterance string) (Result, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Result{}, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	start := time.Now()
	unlock := c.locks.Lock(uid)
	defer unlock()

	s, err := c.session(ctx, uid)
	if err != nil {
		return Result{}, err
	}

	turnID := uuid.NewString()
	if strings.EqualFold(utterance, ClearCommand) {
		c.clear(s)
		res := Result{TurnID: turnID, Response: clearedMessage, Agent: c.registry.Primary().Name}
		return res, c.persist(ctx, s)
	}

	s.AppendMessage(domain.RoleUser, utterance, c.now())
	c.logEvent(uid, turnID, "in", "user_message", "", utterance, nil)

	res, runErr := c.run(ctx, s, utterance, turnID)
	outcome := metrics.OutcomeAnswered
	switch {
	case runErr != nil:
		outcome = metrics.OutcomeFallback
		metrics.EngineFailures.WithLabelValues(c.engine.Name()).Inc()
		res.Response = c.fallback(uid)
		res.Fallback = true
		c.logger.Warn("Turn fell back to canned response",
			"user_id", uid, "turn_id", turnID, "agent", res.Agent, "error", runErr)
	case res.Rejected:
		outcome = metrics.OutcomeRejected
		c.resetFailures(uid)
	default:
		c.resetFailures(uid)
	}

	s.AppendMessage(domain.RoleAssistant, res.Response, c.now())
	c.logEvent(uid, turnID, "out", "assistant_message", res.Agent, res.Response, map[string]any{
		"outcome":    outcome,
		"tools_used": res.ToolsUsed,
	})

	if err := c.persist(ctx, s); err != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeUnsaved).Inc()
		metrics.TurnDuration.Observe(time.Since(start).Seconds())
		return res, err
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

// run drives the engine until it produces a final answer, a gate rejects the
// turn or the step budget is spent. Each turn starts at the primary agent.
func (c *Coordinator) run(ctx context.Context, s *domain.Session, utterance, turnID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EngineTimeout)
	defer cancel()

	active := c.registry.Primary()
	res := Result{TurnID: turnID, Agent: active.Name}
	req := agent.DecisionRequest{Utterance: utterance, Session: s}

	c.logger.Debug("Agent started", "user_id", s.UID, "turn_id", turnID, "agent", active.Name)
	for step := 0; step < c.cfg.MaxSteps; step++ {
		req.Agent = active
		req.History = s.RecentMessages(c.cfg.HistoryWindow)

		d, err := c.engine.Decide(ctx, req)
		if err != nil {
			if !errors.Is(err, domain.ErrEngineFailure) {
				err = fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
			}
			return res, err
		}

		switch d.Kind {
		case agent.DecisionFinal:
			text := strings.TrimSpace(d.Text)
			if text == "" {
				return res, fmt.Errorf("%w: %s returned an empty response", domain.ErrEngineFailure, active.Name)
			}
			res.Response = text
			c.logger.Debug("Agent ended", "user_id", s.UID, "turn_id", turnID, "agent", active.Name, "steps", step+1)
			return res, nil

		case agent.DecisionToolCall:
			call := d.Call
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d", len(req.Outcomes)+1)
			}
			result, rejected, guard, err := c.invokeTool(s, active, call, req.Utterance, turnID)
			if err != nil {
				return res, err
			}
			if rejected {
				return c.reject(res, guard), nil
			}
			res.ToolsUsed = append(res.ToolsUsed, call.Name)
			req.Outcomes = append(req.Outcomes, agent.ToolOutcome{Call: call, Result: result})

		case agent.DecisionHandoff:
			h, ok := active.Handoff(d.Target)
			if !ok {
				return res, fmt.Errorf("%w: %s has no handoff to %q", domain.ErrEngineFailure, active.Name, d.Target)
			}
			target, ok := c.registry.Get(h.Target)
			if !ok {
				return res, fmt.Errorf("%w: unknown agent %q", domain.ErrEngineFailure, h.Target)
			}
			if !guardrail.Check(h.Guard, utterance) {
				c.logger.Info("Handoff rejected by guard",
					"user_id", s.UID, "turn_id", turnID, "agent", active.Name, "target", h.Target, "guard", h.Guard)
				return c.reject(res, h.Guard), nil
			}

			reason := strings.TrimSpace(d.Reason)
			if reason == "" {
				reason = h.Description
			}
			rec := domain.HandoffRecord{
				FromAgent: active.Name,
				ToAgent:   target.Name,
				Reason:    reason,
				Timestamp: c.now().UTC(),
			}
			s.RecordHandoff(rec)
			if h.Guard == guardrail.DomainInjury {
				s.InjuryNotes = utterance
			}
			metrics.Handoffs.WithLabelValues(rec.FromAgent, rec.ToAgent).Inc()
			c.logger.Debug("Handoff", "user_id", s.UID, "turn_id", turnID, "from", rec.FromAgent, "to", rec.ToAgent)
			c.logEvent(s.UID, turnID, "internal", "handoff", rec.ToAgent, rec.Reason, map[string]any{"from": rec.FromAgent})

			res.Handoff = &rec
			res.Agent = target.Name
			req.HandoffFrom = rec.FromAgent
			req.HandoffReason = rec.Reason
			req.Outcomes = nil
			active = target

		default:
			return res, fmt.Errorf("%w: unknown decision kind %v", domain.ErrEngineFailure, d.Kind)
		}
	}
	return res, fmt.Errorf("%w: no final response after %d steps", domain.ErrEngineFailure, c.cfg.MaxSteps)
}

// invokeTool gates, executes and applies one tool call. When rejected is
// true the turn ends with the rejection message for guard.
func (c *Coordinator) invokeTool(s *domain.Session, active *agent.Definition, call tools.Call, utterance, turnID string) (result tools.Result, rejected bool, guard guardrail.Domain, err error) {
	if !active.HasTool(call.Name) {
		return nil, false, "", fmt.Errorf("%w: %s cannot call tool %q", domain.ErrEngineFailure, active.Name, call.Name)
	}
	spec, _ := tools.Lookup(call.Name)
	text := call.Text()
	tool := string(call.Name)

	c.logger.Debug("Tool started", "user_id", s.UID, "turn_id", turnID, "agent", active.Name, "tool", tool)
	if !guardrail.Check(spec.Guard, text) {
		metrics.ToolInvocations.WithLabelValues(tool, "rejected").Inc()
		c.logger.Info("Tool call rejected by guard", "user_id", s.UID, "turn_id", turnID, "tool", tool, "guard", spec.Guard)
		return nil, true, spec.Guard, nil
	}

	result, err = tools.Execute(call, s.UID, c.now())
	if err != nil {
		metrics.ToolInvocations.WithLabelValues(tool, "error").Inc()
		c.logger.Info("Tool rejected input", "user_id", s.UID, "turn_id", turnID, "tool", tool, "error", err)
		return nil, true, spec.Guard, nil
	}

	updater.Apply(s, result, utterance, c.now())
	metrics.ToolInvocations.WithLabelValues(tool, "ok").Inc()
	c.logger.Debug("Tool ended", "user_id", s.UID, "turn_id", turnID, "tool", tool)
	c.logEvent(s.UID, turnID, "internal", "tool_result", active.Name, agent.PayloadJSON(result), map[string]any{"tool": tool})
	return result, false, "", nil
}

func (c *Coordinator) reject(res Result, d guardrail.Domain) Result {
	msg, ok := rejectionMessages[d]
	if !ok {
		msg = rejectionMessages[guardrail.DomainNone]
	}
	res.Response = msg
	res.Rejected = true
	return res
}

func (c *Coordinator) fallback(uid int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[uid]++
	if c.failures[uid] >= c.cfg.FailureThreshold {
		return rephraseMessage
	}
	return apologyMessage
}

func (c *Coordinator) resetFailures(uid int64) {
	c.mu.Lock()
	delete(c.failures, uid)
	c.mu.Unlock()
}

// session returns the pending in-memory session for uid or loads it. The
// caller must hold the uid lock.
func (c *Coordinator) session(ctx context.Context, uid int64) (*domain.Session, error) {
	c.mu.Lock()
	s, ok := c.pending[uid]
	c.mu.Unlock()
	if ok {
		return s, nil
	}
	return c.repo.LoadSession(ctx, uid)
}

// persist saves s with retries. On failure s is kept pending so no mutation
// is lost. The caller must hold the uid lock.
func (c *Coordinator) persist(ctx context.Context, s *domain.Session) error {
	ctx = context.WithoutCancel(ctx)
	delay := c.cfg.SaveBackoff

	var err error
	for attempt := 0; attempt <= c.cfg.SaveRetries; attempt++ {
		if attempt > 0 {
			metrics.SaveRetries.Inc()
			time.Sleep(delay)
			delay *= 2
		}
		if err = c.repo.SaveSession(ctx, s); err == nil {
			c.clearPending(s.UID)
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			c.clearPending(s.UID)
			return err
		}
		c.logger.Warn("Session save failed", "user_id", s.UID, "attempt", attempt+1, "error", err)
	}

	c.mu.Lock()
	if _, ok := c.pending[s.UID]; !ok {
		metrics.PendingSessions.Inc()
	}
	c.pending[s.UID] = s
	c.mu.Unlock()
	if !errors.Is(err, domain.ErrStorageFailure) {
		err = fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return fmt.Errorf("save session %d: %w", s.UID, err)
}

func (c *Coordinator) clearPending(uid int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[uid]; ok {
		delete(c.pending, uid)
		metrics.PendingSessions.Dec()
	}
}

// Pending reports how many sessions await a successful save.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// RetryPending tries to persist every pending session and returns how many
// were saved.
func (c *Coordinator) RetryPending(ctx context.Context) (int, error) {
	c.mu.Lock()
	uids := make([]int64, 0, len(c.pending))
	for uid := range c.pending {
		uids = append(uids, uid)
	}
	c.mu.Unlock()

	saved := 0
	var errs []error
	for _, uid := range uids {
		if err := c.retryOne(ctx, uid); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (c *Coordinator) retryOne(ctx context.Context, uid int64) error {
	unlock := c.locks.Lock(uid)
	defer unlock()

	c.mu.Lock()
	s, ok := c.pending[uid]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.persist(ctx, s)
}

// RunRetryLoop retries pending saves every interval until ctx is done.
func (c *Coordinator) RunRetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Pending() == 0 {
				continue
			}
			saved, err := c.RetryPending(ctx)
			if err != nil {
				c.logger.Warn("Pending session retry incomplete", "saved", saved, "error", err)
			} else if saved > 0 {
				c.logger.Info("Persisted pending sessions", "saved", saved)
			}
		}
	}
}

func (c *Coordinator) logEvent(uid int64, turnID, direction, eventType, agentName, content string, meta map[string]any) {
	c.convLog.Log(agent.ConversationLogEvent{
		UserID:     fmt.Sprint(uid),
		TurnID:     turnID,
		Channel:    "chat",
		Direction:  direction,
		EventType:  eventType,
		Agent:      agentName,
		ContentRaw: content,
		Meta:       meta,
	})
}
