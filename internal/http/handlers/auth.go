package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dkuznetsov/authsvc/internal/auth"
	"github.com/dkuznetsov/authsvc/internal/config"
	"github.com/dkuznetsov/authsvc/internal/domain/account"
	"github.com/dkuznetsov/authsvc/internal/http/middlewares"
	"github.com/dkuznetsov/authsvc/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

// AccountService is the service surface the auth handlers depend on.
// Kept as an interface so handler tests can fake it.
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (account.Account, error)
	Login(ctx context.Context, email, password string) (auth.TokenPair, bool, error)
	Refresh(ctx context.Context, token string) (auth.TokenPair, error)
	FindByID(ctx context.Context, id string) (account.Account, error)
	DeleteByID(ctx context.Context, id string) (account.Account, error)
	SetRole(ctx context.Context, id string, role account.Role) (account.Account, error)
	ListPage(ctx context.Context, skip, take int) ([]account.Account, error)
}

type AuthHandler struct {
	svc AccountService
}

func NewAuthHandler(svc AccountService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateAccountRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=100"`
	PasswordOld string `json:"passwordOld" binding:"required,min=8,max=100"`
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

type IDRequest struct {
	ID string `json:"id" binding:"required,uuid"`
}

const (
	maxPageSize    = 100
	handlerTimeout = 3 * time.Second
)

// Create registers a new account. The confirmation field must equal the
// password before anything touches the store.
func (h *AuthHandler) Create(ctx *gin.Context) {
	var req CreateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Password != req.PasswordOld {
		RespondBadRequest(ctx, "passwords_mismatch", "Passwords do not match.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	a, err := h.svc.Register(cctx, req.Name, req.Email, req.Password)

	if err != nil {
		RespondBadRequest(ctx, "creation_failed", "Could not create account.", nil)
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// Login exchanges credentials for a token pair. Unknown email and wrong
// password produce the same response.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	pair, ok, err := h.svc.Login(cctx, req.Login, req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not log in")
		return
	}

	if !ok {
		RespondBadRequest(ctx, "invalid_credentials", "Email or password is incorrect.", nil)
		return
	}

	ctx.JSON(http.StatusOK, pair)
}

// Refresh validates a refresh token and reissues a fresh pair.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	pair, err := h.svc.Refresh(cctx, req.Token)

	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			RespondUnauthorized(ctx, "token_expired", "Refresh token expired.")
			return
		}

		RespondUnauthorized(ctx, "unauthorized", "Invalid refresh token.")
		return
	}

	ctx.JSON(http.StatusOK, pair)
}

// Account returns the caller's own account, resolved from the verified
// token payload.
func (h *AuthHandler) Account(ctx *gin.Context) {
	id, ok := middlewares.AccountIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	a, err := h.svc.FindByID(cctx, id)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			RespondBadRequest(ctx, "account_not_found", "Account not found.", nil)
			return
		}

		RespondInternal(ctx, "Could not fetch account")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// Delete removes an account by id and echoes the deleted record.
func (h *AuthHandler) Delete(ctx *gin.Context) {
	var req IDRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	a, err := h.svc.DeleteByID(cctx, req.ID)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			RespondBadRequest(ctx, "account_not_found", "Account not found.", nil)
			return
		}

		RespondInternal(ctx, "Could not delete account")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// SetAdmin promotes an account to ADMIN.
func (h *AuthHandler) SetAdmin(ctx *gin.Context) {
	h.setRole(ctx, account.RoleAdmin)
}

// SetUser demotes an account to USER.
func (h *AuthHandler) SetUser(ctx *gin.Context) {
	h.setRole(ctx, account.RoleUser)
}

func (h *AuthHandler) setRole(ctx *gin.Context, role account.Role) {
	var req IDRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	a, err := h.svc.SetRole(cctx, req.ID, role)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			RespondBadRequest(ctx, "account_not_found", "Account not found.", nil)
			return
		}

		RespondInternal(ctx, "Could not update role")
		return
	}

	ctx.JSON(http.StatusOK, a)
}

// Several returns a page of accounts addressed by skip/take path params.
func (h *AuthHandler) Several(ctx *gin.Context) {
	skip, err := strconv.Atoi(ctx.Param("skip"))

	if err != nil || skip < 0 {
		RespondBadRequest(ctx, "invalid_request", "skip must be a non-negative integer", nil)
		return
	}

	take, err := strconv.Atoi(ctx.Param("take"))

	if err != nil || take < 1 || take > maxPageSize {
		RespondBadRequest(ctx, "invalid_request", "take must be between 1 and 100", nil)
		return
	}

	cctx, cancel := config.WithTimeout(handlerTimeout)

	defer cancel()

	accounts, err := h.svc.ListPage(cctx, skip, take)

	if err != nil {
		RespondBadRequest(ctx, "account_not_found", "Could not list accounts.", nil)
		return
	}

	ctx.JSON(http.StatusOK, accounts)
}
