package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/client"
	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/metrics"
)

// RaiseRequest carries the agent's reason for handing a decision to a
// human. Urgency and category are normalized broker-side, never rejected.
type RaiseRequest struct {
	Reason         string
	Urgency        string
	Category       string
	ContextDetails string
}

// waitingContext is everything needed to drive the waiting period for one
// pending escalation.
type waitingContext struct {
	reason  string
	details string
	history []escalation.Turn
	filler  *fillerTask
	stream  *client.Stream
}

// Coordinator is the per-conversation escalation state machine. It raises
// escalations through the broker client, stalls the conversation while a
// human decides, and injects the decision the moment it arrives. Broker
// failures never crash the conversation; they are logged and the
// conversation continues without a pending escalation.
type Coordinator struct {
	log     *zap.SugaredLogger
	cfg     config.Agent
	client  *client.Client
	model   Model
	persona Persona
	session *Session

	mu      sync.Mutex
	waiting map[string]*waitingContext
	wg      sync.WaitGroup
}

func NewCoordinator(log *zap.SugaredLogger, cfg config.Agent, c *client.Client, model Model, session *Session) *Coordinator {
	return &Coordinator{
		log:     log,
		cfg:     cfg,
		client:  c,
		model:   model,
		persona: PersonaFromConfig(cfg.Persona),
		session: session,
		waiting: make(map[string]*waitingContext),
	}
}

// Session returns the conversation state this coordinator drives.
func (c *Coordinator) Session() *Session {
	return c.session
}

// Persona returns the resolved agent persona.
func (c *Coordinator) Persona() Persona {
	return c.persona
}

// OnTurn is the conversation engine's turn hook. Non-blocking.
func (c *Coordinator) OnTurn(turn escalation.Turn) {
	c.session.OnTurn(turn)
}

// OnClose is the conversation engine's close hook: it cancels all filler
// tasks, closes all reply streams and joins every background task before
// returning.
func (c *Coordinator) OnClose() {
	c.mu.Lock()
	snapshot := c.waiting
	c.waiting = make(map[string]*waitingContext)
	c.mu.Unlock()

	for id, wctx := range snapshot {
		c.log.Debugw("Cancelling waiting escalation on close", "escalationID", id)
		if wctx.stream != nil {
			wctx.stream.Close()
		}
		wctx.filler.Stop()
	}
	c.wg.Wait()
	c.session.LogSummary(c.log)
}

// RaiseEscalation hands a decision to a human operator. Returns the
// escalation id and true when one was created; false when the dedup guard
// suppressed the attempt or the broker was unreachable.
func (c *Coordinator) RaiseEscalation(ctx context.Context, req RaiseRequest) (string, bool) {
	if !c.session.tryAcquireGate(c.cfg.Cooldown()) {
		metrics.EscalationsSuppressed.Inc()
		c.log.Debugw("Escalation suppressed by dedup guard",
			"conversationID", c.session.ConversationID(), "reason", req.Reason)
		return "", false
	}

	history := c.session.RecentHistory(escalation.MaxHistoryTurns)
	created, err := c.client.Escalations().Create(ctx, broker.CreateRequest{
		ConversationID: c.session.ConversationID(),
		RequesterID:    c.session.RequesterID(),
		Reason:         req.Reason,
		Urgency:        req.Urgency,
		Category:       req.Category,
		ContextDetails: req.ContextDetails,
		RecentHistory:  history,
	})
	if err != nil {
		// The conversation continues without a pending escalation; the gate
		// reopens so a later attempt can retry.
		c.log.Errorw("Failed to create escalation, continuing without",
			"conversationID", c.session.ConversationID(), "error", err)
		c.session.releaseGate()
		return "", false
	}
	c.log.Infow("Escalation raised",
		"escalationID", created.ID,
		"conversationID", c.session.ConversationID(),
		"urgency", req.Urgency,
		"category", req.Category)

	wctx := &waitingContext{
		reason:  req.Reason,
		details: req.ContextDetails,
		history: history,
	}

	stream, err := c.client.ReplyStream(ctx, created.ID)
	if err != nil {
		// Without the stream the response push will be missed; the filler
		// still runs so the conversation does not go silent.
		c.log.Warnw("Failed to open reply stream",
			"escalationID", created.ID, "error", err)
	} else {
		wctx.stream = stream
	}

	wctx.filler = startFiller(c.log, c.cfg.Filler, c.model, created.ID, req.Reason, req.ContextDetails, history)

	c.mu.Lock()
	c.waiting[created.ID] = wctx
	c.mu.Unlock()

	if wctx.stream != nil {
		c.wg.Add(1)
		go c.awaitResolution(created.ID, wctx)
	}
	return created.ID, true
}

// Waiting reports whether the given escalation is still pending from this
// coordinator's perspective.
func (c *Coordinator) Waiting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.waiting[id]
	return ok
}

func (c *Coordinator) awaitResolution(id string, wctx *waitingContext) {
	defer c.wg.Done()

	response, err := wctx.stream.AwaitResponse(context.Background())
	if err != nil {
		// Stream ended without a response: the escalation was deleted or the
		// conversation is closing.
		c.log.Debugw("Reply stream ended without response", "escalationID", id, "error", err)
		if popped := c.pop(id); popped != nil {
			popped.filler.Stop()
			if popped.stream != nil {
				popped.stream.Close()
			}
		}
		return
	}

	c.injectResponse(id, response)
}

// injectResponse surfaces the human decision. The filler task is cancelled
// and joined first so a stale stall utterance can never follow the real
// answer.
func (c *Coordinator) injectResponse(id, response string) {
	wctx := c.pop(id)
	if wctx == nil {
		return
	}

	wctx.filler.Stop()
	if wctx.stream != nil {
		wctx.stream.Close()
	}

	ctx := context.Background()
	if interrupter, ok := c.model.(Interrupter); ok {
		if err := interrupter.Interrupt(ctx); err != nil {
			c.log.Warnw("Failed to interrupt in-progress utterance", "escalationID", id, "error", err)
		}
	}

	instructions, err := renderInjectionInstructions(response)
	if err != nil {
		c.log.Errorw("Failed to render injection instructions", "escalationID", id, "error", err)
		return
	}
	text, err := c.model.Generate(ctx, instructions)
	if err != nil {
		c.log.Errorw("Failed to generate response injection", "escalationID", id, "error", err)
		return
	}
	if err := c.model.Speak(ctx, text); err != nil {
		c.log.Errorw("Failed to speak injected response", "escalationID", id, "error", err)
		return
	}
	c.log.Infow("Human response injected", "escalationID", id)
}

// pop removes and returns the waiting context for id, or nil when another
// path already claimed it.
func (c *Coordinator) pop(id string) *waitingContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, ok := c.waiting[id]
	if !ok {
		return nil
	}
	delete(c.waiting, id)
	return wctx
}
