package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/filter"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/message-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// AdminConfig identifies the single moderation account.
type AdminConfig struct {
	Username string
	Token    string
}

// Handler handles HTTP requests for message service.
type Handler struct {
	messages       service.MessageService
	moderation     service.ModerationService
	authMiddleware *middleware.AuthMiddleware
	postLimit      gin.HandlerFunc
	admin          AdminConfig
}

// NewHandler creates a new HTTP handler. postLimit guards message
// creation and may be nil.
func NewHandler(messages service.MessageService, moderation service.ModerationService, authMiddleware *middleware.AuthMiddleware, postLimit gin.HandlerFunc, admin AdminConfig) *Handler {
	if postLimit == nil {
		postLimit = func(c *gin.Context) { c.Next() }
	}
	return &Handler{
		messages:       messages,
		moderation:     moderation,
		authMiddleware: authMiddleware,
		postLimit:      postLimit,
		admin:          admin,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		messages := api.Group("/messages")
		{
			messages.GET("", h.ListMessages)
			messages.POST("", h.authMiddleware.RequireAuth(), h.postLimit, h.PostMessage)
			messages.POST("/:id/recall", h.authMiddleware.RequireAuth(), h.RecallMessage)
		}

		admin := api.Group("/admin")
		admin.Use(h.authMiddleware.RequireAuth(), middleware.RequireAdmin(h.admin.Username, h.admin.Token))
		{
			admin.POST("/ban", h.Ban)
			admin.POST("/unban", h.Unban)
			admin.GET("/sensitive-words", h.GetSensitiveWords)
			admin.PUT("/sensitive-words", h.SetSensitiveWords)
		}
	}
}

// ListMessages returns conversation history.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var q domain.ListMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query")
		return
	}

	messages, err := h.messages.List(ctx, &q)
	if err != nil {
		l.Error().Err(err).Msg("list messages failed")
		response.InternalError(c, "failed to list messages")
		return
	}

	response.Success(c, domain.MessageListResponse{Messages: messages})
}

// PostMessage creates a message.
func (h *Handler) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	username := middleware.GetUsername(c)
	if username == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	if c.ContentType() != gin.MIMEJSON {
		response.Error(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "unsupported_media_type")
		return
	}

	var req domain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid post message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Post(ctx, username, &req)
	if err != nil {
		if errors.Is(err, filter.ErrInvalidContent) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, "failed to post message")
		return
	}

	response.Created(c, domain.MessageResponse{Message: msg})
}

// RecallMessage recalls one of the caller's messages.
func (h *Handler) RecallMessage(c *gin.Context) {
	ctx := c.Request.Context()
	username := middleware.GetUsername(c)
	if username == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid_id")
		return
	}

	msg, err := h.messages.Recall(ctx, username, id)
	if err != nil {
		// Unknown ids are indistinguishable from other users' messages.
		if errors.Is(err, repository.ErrNotSender) || errors.Is(err, repository.ErrMessageNotFound) {
			response.Forbidden(c, "forbidden")
			return
		}
		response.InternalError(c, "failed to recall message")
		return
	}

	response.Success(c, domain.MessageResponse{Message: msg})
}

// Ban bans a user.
func (h *Handler) Ban(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid ban request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.moderation.Ban(ctx, middleware.GetUsername(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameRequired) {
			response.BadRequest(c, "username_required")
			return
		}
		response.InternalError(c, "failed to ban user")
		return
	}

	response.Success(c, result)
}

// Unban lifts a ban.
func (h *Handler) Unban(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UnbanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid unban request")
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.moderation.Unban(ctx, middleware.GetUsername(c), &req); err != nil {
		if errors.Is(err, service.ErrUsernameRequired) {
			response.BadRequest(c, "username_required")
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "not_found")
			return
		}
		response.InternalError(c, "failed to unban user")
		return
	}

	response.Success(c, gin.H{"message": "unbanned"})
}

// GetSensitiveWords lists the sensitive words.
func (h *Handler) GetSensitiveWords(c *gin.Context) {
	response.Success(c, domain.SensitiveWordsResponse{Words: h.moderation.SensitiveWords(c.Request.Context())})
}

// SetSensitiveWords replaces the sensitive words.
func (h *Handler) SetSensitiveWords(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SensitiveWordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid sensitive words request")
		response.BadRequest(c, err.Error())
		return
	}

	words, err := h.moderation.SetSensitiveWords(ctx, middleware.GetUsername(c), req.Words)
	if err != nil {
		response.InternalError(c, "failed to update sensitive words")
		return
	}

	response.Success(c, domain.SensitiveWordsResponse{Words: words})
}
