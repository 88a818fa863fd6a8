// Webhook HTTP handlers.
//
// These endpoints are called by the WhatsApp bridge process:
//   - POST /api/webhook/message  (inbound customer message)
//   - POST /api/webhook/status   (channel connection status report)
//
// Handlers are transport-thin: they validate input, call the services, and
// translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sushiaki/sora-backend/internal/domain"
	"github.com/sushiaki/sora-backend/internal/http/middleware"
	"github.com/sushiaki/sora-backend/internal/services"
)

// ConversationService defines the turn pipeline and operator operations
// consumed by the HTTP handlers. Implementations must be safe for concurrent
// use and honor the provided context.
type ConversationService interface {
	HandleInbound(ctx context.Context, chatID, text string) (*services.InboundResult, error)
	Takeover(ctx context.Context, chatID string) (domain.Conversation, error)
	Release(ctx context.Context, chatID string) (domain.Conversation, error)
	SendOperatorMessage(ctx context.Context, chatID, text string) (domain.Conversation, error)
	List() []domain.Conversation
	Get(chatID string) (domain.Conversation, error)
	Delete(chatID string) error
	ClearAll() int
	TestProvider(ctx context.Context) (string, error)
}

// SettingsService exposes runtime settings to the HTTP layer.
type SettingsService interface {
	Get() domain.Settings
	Update(ctx context.Context, u domain.SettingsUpdate) (domain.Settings, error)
}

// StatusService exposes the channel status to the HTTP layer.
type StatusService interface {
	Get() domain.ChannelStatus
	Merge(u domain.StatusUpdate) domain.ChannelStatus
}

// Handlers groups the HTTP endpoints of the backend.
type Handlers struct {
	convSvc     ConversationService
	settingsSvc SettingsService
	statusSvc   StatusService
}

// New constructs a Handlers instance bound to the given services.
func New(convSvc ConversationService, settingsSvc SettingsService, statusSvc StatusService) *Handlers {
	return &Handlers{convSvc: convSvc, settingsSvc: settingsSvc, statusSvc: statusSvc}
}

//
// DTOs
//

// InboundMessageRequest is the payload the bridge posts per customer message.
type InboundMessageRequest struct {
	ChatID  string `json:"chat_id" binding:"required" example:"5541999990000@s.whatsapp.net"`
	Message string `json:"message" binding:"required" example:"qual o cardápio?"`
}

// InboundMessageResponse carries the generated reply, or the reason none was
// produced.
type InboundMessageResponse struct {
	Response *string `json:"response"`
	Reason   string  `json:"reason,omitempty" example:"human_active"`
}

//
// Handlers
//

// ReceiveMessage godoc
// @ID          receiveMessage
// @Summary     Inbound customer message
// @Description Records the message, applies the handover policy and returns the generated reply (null when suppressed).
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.InboundMessageRequest  true  "Inbound message"
//
// @Success     200  {object}  handlers.InboundMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook/message [post]
func (h *Handlers) ReceiveMessage(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id and message are required")
		return
	}

	res, err := h.convSvc.HandleInbound(c.Request.Context(), req.ChatID, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	out := InboundMessageResponse{Reason: res.Skipped}
	if res.Skipped == "" {
		out.Response = &res.Reply
		middleware.RepliesGenerated.WithLabelValues("generated").Inc()
	} else {
		middleware.RepliesGenerated.WithLabelValues(res.Skipped).Inc()
	}
	ok(c, http.StatusOK, out)
}

// ReceiveStatus godoc
// @ID          receiveStatus
// @Summary     Channel status report
// @Description Merges a partial connection status update from the bridge and notifies the dashboard.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  domain.StatusUpdate  true  "Partial status"
//
// @Success     200  {object}  domain.ChannelStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /webhook/status [post]
func (h *Handlers) ReceiveStatus(c *gin.Context) {
	var upd domain.StatusUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ok(c, http.StatusOK, h.statusSvc.Merge(upd))
}
