package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/message-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// AuthHandler serves account registration and login.
type AuthHandler struct {
	accounts service.AccountService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// RegisterRoutes registers the public auth routes.
func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

// Register handles account registration.
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid register request")
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.accounts.Register(ctx, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername):
			response.BadRequest(c, "invalid_username")
		case errors.Is(err, service.ErrInvalidPassword):
			response.BadRequest(c, "password_invalid")
		case errors.Is(err, repository.ErrAccountExists):
			response.Conflict(c, "account_exists")
		default:
			response.InternalError(c, "failed to register account")
		}
		return
	}

	response.Created(c, gin.H{"message": "registered"})
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, "username_password_required")
		return
	}

	result, err := h.accounts.Login(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername):
			response.BadRequest(c, "invalid_username")
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(c, "invalid_credentials")
		case errors.Is(err, service.ErrBanned):
			response.Forbidden(c, "banned")
		default:
			response.InternalError(c, "failed to log in")
		}
		return
	}

	response.Success(c, result)
}
