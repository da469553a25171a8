package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkuznetsov/authsvc/internal/auth"
	"github.com/dkuznetsov/authsvc/internal/domain/account"
	"github.com/dkuznetsov/authsvc/internal/observability"
	"github.com/dkuznetsov/authsvc/internal/repo/postgres"
	"github.com/dkuznetsov/authsvc/internal/security"
)

// ErrCreationFailed wraps any store failure during registration, including
// a duplicate email.
var ErrCreationFailed = errors.New("account creation failed")

// AccountStore is the slice of the accounts repository the service needs.
// Kept small so tests can fake it.
type AccountStore interface {
	Create(ctx context.Context, name, email, passwordHash string, role account.Role) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	GetByID(ctx context.Context, id string) (account.Account, error)
	Delete(ctx context.Context, id string) (account.Account, error)
	SetRole(ctx context.Context, id string, role account.Role) (account.Account, error)
	List(ctx context.Context, skip, take int) ([]account.Account, error)
}

// AuthService orchestrates account persistence, password hashing and
// token issuance. All dependencies come in through the constructor.
type AuthService struct {
	store  AccountStore
	tokens *auth.Manager
	log    *slog.Logger
	prom   *observability.Prom
}

func NewAuthService(store AccountStore, tokens *auth.Manager, log *slog.Logger, prom *observability.Prom) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		log:    log,
		prom:   prom,
	}
}

// Register hashes the password and persists a new USER account.
// The returned account carries its hash internally but the hash never
// serializes to JSON.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (account.Account, error) {
	hash, err := security.HashPassword(password)

	if err != nil {
		return account.Account{}, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	a, err := s.store.Create(ctx, name, email, hash, account.RoleUser)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			return account.Account{}, fmt.Errorf("%w: %v", ErrCreationFailed, err)
		}

		s.log.ErrorContext(ctx, "account create failed", "err", err)

		return account.Account{}, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	return a, nil
}

// FindByID looks up an account by id. Absence is postgres.ErrAccountNotFound.
func (s *AuthService) FindByID(ctx context.Context, id string) (account.Account, error) {
	return s.store.GetByID(ctx, id)
}

// DeleteByID removes an account and returns the deleted record.
func (s *AuthService) DeleteByID(ctx context.Context, id string) (account.Account, error) {
	return s.store.Delete(ctx, id)
}

// SetRole updates an account's role.
func (s *AuthService) SetRole(ctx context.Context, id string, role account.Role) (account.Account, error) {
	if !role.Valid() {
		return account.Account{}, fmt.Errorf("invalid role %q", role)
	}

	return s.store.SetRole(ctx, id, role)
}

// IsRole reports whether the account exists and holds the given role.
// Any lookup failure, including absence, reads as false rather than an error.
func (s *AuthService) IsRole(ctx context.Context, id string, role account.Role) bool {
	a, err := s.store.GetByID(ctx, id)

	if err != nil {
		return false
	}

	return a.Role == role
}

// ListPage returns a page of accounts in the store's default order.
func (s *AuthService) ListPage(ctx context.Context, skip, take int) ([]account.Account, error) {
	return s.store.List(ctx, skip, take)
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password both come back as ok=false with a nil error so callers
// cannot distinguish the two. A non-nil error means infrastructure failure.
func (s *AuthService) Login(ctx context.Context, email, password string) (auth.TokenPair, bool, error) {
	a, err := s.store.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			s.prom.CountLogin("rejected")
			return auth.TokenPair{}, false, nil
		}

		s.prom.CountLogin("error")
		return auth.TokenPair{}, false, err
	}

	err = security.CheckPassword(a.PasswordHash, password)

	if err != nil {
		s.prom.CountLogin("rejected")
		return auth.TokenPair{}, false, nil
	}

	pair, err := s.tokens.IssuePair(auth.Payload{ID: a.ID})

	if err != nil {
		s.prom.CountLogin("error")
		return auth.TokenPair{}, false, err
	}

	s.prom.CountLogin("ok")

	return pair, true, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair.
// Verification is stateless: the refresh token itself is the credential.
func (s *AuthService) Refresh(ctx context.Context, token string) (auth.TokenPair, error) {
	payload, err := s.tokens.VerifyRefresh(token)

	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			s.prom.CountRefresh("expired")
		} else {
			s.prom.CountRefresh("invalid")
		}

		return auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(payload)

	if err != nil {
		return auth.TokenPair{}, err
	}

	s.prom.CountRefresh("ok")

	return pair, nil
}
