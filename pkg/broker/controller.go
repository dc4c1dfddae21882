package broker

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/apiresponses"
	"github.com/handoff-sh/handoff/pkg/system"
)

// EscalationController exposes the broker operations over REST and upgrades
// the two stream kinds (operator fan-out, agent reply).
type EscalationController struct {
	broker     *Broker
	log        *zap.SugaredLogger
	middleware []gin.HandlerFunc
}

func NewEscalationController(log *zap.SugaredLogger, broker *Broker, middleware ...gin.HandlerFunc) *EscalationController {
	return &EscalationController{
		broker:     broker,
		log:        log,
		middleware: middleware,
	}
}

func (ec *EscalationController) Register(rg *gin.RouterGroup) error {
	rg.POST("/", ec.handleCreate)
	rg.GET("/pending", ec.handleListPending)
	rg.GET("/ws", ec.handleOperatorStream)
	rg.GET("/:id", ec.handleGet)
	rg.POST("/:id/resolve", ec.handleResolve)
	rg.DELETE("/:id", ec.handleDelete)
	rg.GET("/:id/reply", ec.handleAgentStream)
	return nil
}

func (EscalationController) BasePath() string {
	return "escalation/"
}

func (ec EscalationController) Handlers() []gin.HandlerFunc {
	return ec.middleware
}

type createResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (ec *EscalationController) handleCreate(c *gin.Context) {
	reqLog := system.GetReqLogger(c, ec.log)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(c, "invalid escalation payload")
		return
	}
	if req.ConversationID == "" {
		apiresponses.RespondBadRequest(c, "conversationId is required")
		return
	}

	rec := ec.broker.Create(c.Request.Context(), req)
	reqLog.Debugw("Escalation create accepted", system.EscalationFields(rec.ID, rec.ConversationID)...)
	apiresponses.RespondCreated(c, createResponse{ID: rec.ID, Status: string(rec.Status)})
}

func (ec *EscalationController) handleListPending(c *gin.Context) {
	apiresponses.RespondOK(c, ec.broker.ListPending())
}

func (ec *EscalationController) handleGet(c *gin.Context) {
	rec, err := ec.broker.Get(c.Param("id"))
	if err != nil {
		apiresponses.RespondNotFound(c, "escalation", c.Param("id"))
		return
	}
	apiresponses.RespondOK(c, rec)
}

type resolveRequest struct {
	ResponseText string `json:"responseText"`
}

func (ec *EscalationController) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(c, "invalid resolve payload")
		return
	}
	if req.ResponseText == "" {
		apiresponses.RespondBadRequest(c, "responseText is required")
		return
	}

	rec, err := ec.broker.Resolve(c.Request.Context(), c.Param("id"), req.ResponseText)
	switch {
	case errors.Is(err, ErrNotFound):
		apiresponses.RespondNotFound(c, "escalation", c.Param("id"))
	case errors.Is(err, ErrConflict):
		apiresponses.RespondConflict(c, "escalation already resolved")
	case err != nil:
		apiresponses.RespondInternalError(c, "resolve escalation", err, system.GetReqLogger(c, ec.log))
	default:
		apiresponses.RespondOK(c, rec)
	}
}

func (ec *EscalationController) handleDelete(c *gin.Context) {
	err := ec.broker.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		apiresponses.RespondNotFound(c, "escalation", c.Param("id"))
	case errors.Is(err, ErrConflict):
		apiresponses.RespondConflict(c, "resolved escalations are immutable history")
	case err != nil:
		apiresponses.RespondInternalError(c, "delete escalation", err, system.GetReqLogger(c, ec.log))
	default:
		apiresponses.RespondNoContent(c)
	}
}
