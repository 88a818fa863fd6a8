// Administrative HTTP handlers, consumed by the operator dashboard:
//   - GET    /api/status                      (overview)
//   - GET    /api/config                      (read settings, secrets masked)
//   - POST   /api/config                      (partial settings update)
//   - GET    /api/conversations               (list)
//   - GET    /api/conversations/{chat_id}     (fetch)
//   - DELETE /api/conversations/{chat_id}     (delete one)
//   - DELETE /api/conversations               (clear all)
//   - POST   /api/takeover/{chat_id}          (operator takeover)
//   - POST   /api/release/{chat_id}           (hand back to bot)
//   - POST   /api/send-message                (operator-authored message)
//   - POST   /api/test-provider               (provider connectivity probe)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sushiaki/sora-backend/internal/domain"
	"github.com/sushiaki/sora-backend/internal/provider"
	"github.com/sushiaki/sora-backend/internal/services"
)

//
// DTOs
//

// StatusResponse is the dashboard overview.
type StatusResponse struct {
	Channel            domain.ChannelStatus `json:"channel"`
	Config             domain.Settings      `json:"config"`
	Conversations      int                  `json:"conversations"`
	ProviderConfigured bool                 `json:"provider_configured"`
}

// OperatorMessageRequest is the payload for sending a message as an operator.
type OperatorMessageRequest struct {
	ChatID  string `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// ModeResponse reports the conversation mode after a handover operation.
type ModeResponse struct {
	ChatID string      `json:"chat_id"`
	Mode   domain.Mode `json:"mode"`
}

// TestProviderResponse carries the probe reply.
type TestProviderResponse struct {
	Reply string `json:"reply"`
}

//
// Handlers
//

// GetStatus godoc
// @ID          getStatus
// @Summary     Backend overview
// @Description Channel status, masked settings, conversation count and whether the selected provider has its credential.
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object}  handlers.StatusResponse
// @Router      /status [get]
func (h *Handlers) GetStatus(c *gin.Context) {
	settings := h.settingsSvc.Get()
	ok(c, http.StatusOK, StatusResponse{
		Channel:            h.statusSvc.Get(),
		Config:             settings.Redacted(),
		Conversations:      len(h.convSvc.List()),
		ProviderConfigured: settings.ProviderConfigured(),
	})
}

// GetConfig godoc
// @ID          getConfig
// @Summary     Read runtime settings
// @Description API keys are masked; use POST to replace them.
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object}  domain.Settings
// @Router      /config [get]
func (h *Handlers) GetConfig(c *gin.Context) {
	ok(c, http.StatusOK, h.settingsSvc.Get().Redacted())
}

// UpdateConfig godoc
// @ID          updateConfig
// @Summary     Update runtime settings
// @Description Partial update: only present fields change. Persisted immediately; a missing provider credential does not block the update.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       body  body  domain.SettingsUpdate  true  "Partial settings"
//
// @Success     200  {object}  domain.Settings
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Persistence failure"
// @Router      /config [post]
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var upd domain.SettingsUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	settings, err := h.settingsSvc.Update(c.Request.Context(), upd)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeConfigSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, settings.Redacted())
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description All conversations in creation order, full transcripts included.
// @Tags        Conversations
// @Produce     json
//
// @Success     200  {array}  domain.Conversation
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ok(c, http.StatusOK, h.convSvc.List())
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch one conversation
// @Tags        Conversations
// @Produce     json
//
// @Param       chat_id  path  string  true  "Chat identifier"
//
// @Success     200  {object}  domain.Conversation
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown chat"
// @Router      /conversations/{chat_id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := h.convSvc.Get(c.Param("chat_id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, conv)
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete one conversation
// @Tags        Conversations
// @Produce     json
//
// @Param       chat_id  path  string  true  "Chat identifier"
//
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown chat"
// @Router      /conversations/{chat_id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := h.convSvc.Delete(chatID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": chatID})
}

// ClearConversations godoc
// @ID          clearConversations
// @Summary     Delete every conversation
// @Tags        Conversations
// @Produce     json
//
// @Success     200  {object}  map[string]any
// @Router      /conversations [delete]
func (h *Handlers) ClearConversations(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"deleted": h.convSvc.ClearAll()})
}

// Takeover godoc
// @ID          takeoverConversation
// @Summary     Operator takeover
// @Description Puts the operator in control; the bot stays quiet until release or timeout.
// @Tags        Handover
// @Produce     json
//
// @Param       chat_id  path  string  true  "Chat identifier"
//
// @Success     200  {object}  handlers.ModeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown chat"
// @Router      /takeover/{chat_id} [post]
func (h *Handlers) Takeover(c *gin.Context) {
	conv, err := h.convSvc.Takeover(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, ModeResponse{ChatID: conv.ChatID, Mode: conv.Mode})
}

// Release godoc
// @ID          releaseConversation
// @Summary     Hand the conversation back to the bot
// @Tags        Handover
// @Produce     json
//
// @Param       chat_id  path  string  true  "Chat identifier"
//
// @Success     200  {object}  handlers.ModeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown chat"
// @Router      /release/{chat_id} [post]
func (h *Handlers) Release(c *gin.Context) {
	conv, err := h.convSvc.Release(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, ModeResponse{ChatID: conv.ChatID, Mode: conv.Mode})
}

// SendMessage godoc
// @ID          sendOperatorMessage
// @Summary     Send a message as the operator
// @Description Delivers through the WhatsApp bridge first; a delivery failure returns 502 and the message is not recorded.
// @Tags        Handover
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.OperatorMessageRequest  true  "Operator message"
//
// @Success     200  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Bridge delivery failed"
// @Router      /send-message [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req OperatorMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id and message are required")
		return
	}

	conv, err := h.convSvc.SendOperatorMessage(c.Request.Context(), req.ChatID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrDeliveryFailed):
			fail(c, http.StatusBadGateway, ErrCodeDeliveryFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, conv)
}

// TestProvider godoc
// @ID          testProvider
// @Summary     Probe the configured provider
// @Description Runs a minimal completion against the selected provider and returns its raw reply.
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object}  handlers.TestProviderResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Provider not configured"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider call failed"
// @Router      /test-provider [post]
func (h *Handlers) TestProvider(c *gin.Context) {
	reply, err := h.convSvc.TestProvider(c.Request.Context())
	if err != nil {
		var cfgErr *provider.ConfigError
		if errors.As(err, &cfgErr) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeProviderConfig, cfgErr.Error())
			return
		}
		fail(c, http.StatusBadGateway, ErrCodeProviderFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TestProviderResponse{Reply: reply})
}
