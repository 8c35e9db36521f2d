package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Handler serves audit queries over the durable log.
type Handler struct {
	queries service.QueryService
}

func NewHandler(queries service.QueryService) *Handler {
	return &Handler{queries: queries}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/log")
	{
		api.GET("/conversations/:conversation_id/records", h.GetRecords)
	}
}

// GetRecords returns the newest log records of a conversation.
func (h *Handler) GetRecords(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	conversationID := c.Param("conversation_id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	resp, err := h.queries.Records(ctx, conversationID, limit)
	if err != nil {
		if errors.Is(err, service.ErrConversationRequired) {
			response.BadRequest(c, err.Error())
			return
		}
		l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to query log records")
		response.InternalError(c, "failed to query log records")
		return
	}

	response.Success(c, resp)
}
