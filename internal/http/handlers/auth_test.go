package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkuznetsov/authsvc/internal/auth"
	"github.com/dkuznetsov/authsvc/internal/domain/account"
	"github.com/dkuznetsov/authsvc/internal/http/handlers"
	"github.com/dkuznetsov/authsvc/internal/http/middlewares"
	"github.com/dkuznetsov/authsvc/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake service implementation of the handlers.AccountService interface

type fakeService struct {
	registerFn func(ctx context.Context, name, email, password string) (account.Account, error)
	loginFn    func(ctx context.Context, email, password string) (auth.TokenPair, bool, error)
	refreshFn  func(ctx context.Context, token string) (auth.TokenPair, error)
	findFn     func(ctx context.Context, id string) (account.Account, error)
	deleteFn   func(ctx context.Context, id string) (account.Account, error)
	setRoleFn  func(ctx context.Context, id string, role account.Role) (account.Account, error)
	listFn     func(ctx context.Context, skip, take int) ([]account.Account, error)
}

func (f *fakeService) Register(ctx context.Context, name, email, password string) (account.Account, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, name, email, password)
	}
	return account.Account{}, nil
}

func (f *fakeService) Login(ctx context.Context, email, password string) (auth.TokenPair, bool, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return auth.TokenPair{}, false, nil
}

func (f *fakeService) Refresh(ctx context.Context, token string) (auth.TokenPair, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, token)
	}
	return auth.TokenPair{}, nil
}

func (f *fakeService) FindByID(ctx context.Context, id string) (account.Account, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return account.Account{}, nil
}

func (f *fakeService) DeleteByID(ctx context.Context, id string) (account.Account, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return account.Account{}, nil
}

func (f *fakeService) SetRole(ctx context.Context, id string, role account.Role) (account.Account, error) {
	if f.setRoleFn != nil {
		return f.setRoleFn(ctx, id, role)
	}
	return account.Account{}, nil
}

func (f *fakeService) ListPage(ctx context.Context, skip, take int) ([]account.Account, error) {
	if f.listFn != nil {
		return f.listFn(ctx, skip, take)
	}
	return []account.Account{}, nil
}

func setupRouter(method, path string, h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h...)

	return r
}

func doJSON(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestCreateHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		svcSetUp       func(*fakeService)
		wantStatusCode int
		wantRole       string
	}{
		{
			name: "success",
			body: `{"name":"test","email":"test@test.ru","password":"pw123456","passwordOld":"pw123456"}`,
			svcSetUp: func(f *fakeService) {
				f.registerFn = func(ctx context.Context, name, email, password string) (account.Account, error) {
					return account.Account{
						ID:           "acc-1",
						Name:         name,
						Email:        email,
						PasswordHash: "$2a$10$secret",
						Role:         account.RoleUser,
						CreatedAt:    now,
						UpdatedAt:    now,
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantRole:       "USER",
		},
		{
			name: "password_mismatch",
			body: `{"name":"test","email":"test@test.ru","password":"pw123456","passwordOld":"pw654321"}`,
			svcSetUp: func(f *fakeService) {
				f.registerFn = func(ctx context.Context, name, email, password string) (account.Account, error) {
					t.Fatalf("service must not be called on password mismatch")
					return account.Account{}, nil
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_short_name",
			body:           `{"name":"t","email":"test@test.ru","password":"pw123456","passwordOld":"pw123456"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_bad_email",
			body:           `{"name":"test","email":"not-an-email","password":"pw123456","passwordOld":"pw123456"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_short_password",
			body:           `{"name":"test","email":"test@test.ru","password":"short","passwordOld":"short"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "creation_failed",
			body: `{"name":"test","email":"taken@test.ru","password":"pw123456","passwordOld":"pw123456"}`,
			svcSetUp: func(f *fakeService) {
				f.registerFn = func(ctx context.Context, name, email, password string) (account.Account, error) {
					return account.Account{}, errors.New("email taken")
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewAuthHandler(svc)

			r := setupRouter(http.MethodPut, "/api/auth/create", h.Create)

			w := doJSON(r, http.MethodPut, "/api/auth/create", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantRole != "" {
				var got map[string]any

				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("unmarshal response: %v", err)
				}

				if got["role"] != tt.wantRole {
					t.Fatalf("role = %v, want %v", got["role"], tt.wantRole)
				}

				// hash must never serialize
				if _, ok := got["passwordHash"]; ok {
					t.Fatalf("response leaked passwordHash: %s", w.Body.String())
				}
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcSetUp       func(*fakeService)
		wantStatusCode int
		wantTokens     bool
	}{
		{
			name: "success",
			body: `{"login":"test@test.ru","password":"pw123456"}`,
			svcSetUp: func(f *fakeService) {
				f.loginFn = func(ctx context.Context, email, password string) (auth.TokenPair, bool, error) {
					return auth.TokenPair{Token: "access", RefreshToken: "refresh"}, true, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantTokens:     true,
		},
		{
			name: "rejected",
			body: `{"login":"test@test.ru","password":"wrong"}`,
			svcSetUp: func(f *fakeService) {
				f.loginFn = func(ctx context.Context, email, password string) (auth.TokenPair, bool, error) {
					return auth.TokenPair{}, false, nil
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_missing_password",
			body:           `{"login":"test@test.ru"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "infra_error",
			body: `{"login":"test@test.ru","password":"pw123456"}`,
			svcSetUp: func(f *fakeService) {
				f.loginFn = func(ctx context.Context, email, password string) (auth.TokenPair, bool, error) {
					return auth.TokenPair{}, false, errors.New("db down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewAuthHandler(svc)

			r := setupRouter(http.MethodPost, "/api/auth/login", h.Login)

			w := doJSON(r, http.MethodPost, "/api/auth/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantTokens {
				var pair auth.TokenPair

				if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
					t.Fatalf("unmarshal pair: %v", err)
				}

				if pair.Token == "" || pair.RefreshToken == "" {
					t.Fatalf("expected both tokens, body=%s", w.Body.String())
				}
			}
		})
	}
}

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcSetUp       func(*fakeService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"token":"some-refresh-token"}`,
			svcSetUp: func(f *fakeService) {
				f.refreshFn = func(ctx context.Context, token string) (auth.TokenPair, error) {
					return auth.TokenPair{Token: "new-access", RefreshToken: "new-refresh"}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "expired",
			body: `{"token":"expired-token"}`,
			svcSetUp: func(f *fakeService) {
				f.refreshFn = func(ctx context.Context, token string) (auth.TokenPair, error) {
					return auth.TokenPair{}, auth.ErrTokenExpired
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "invalid",
			body: `{"token":"garbage"}`,
			svcSetUp: func(f *fakeService) {
				f.refreshFn = func(ctx context.Context, token string) (auth.TokenPair, error) {
					return auth.TokenPair{}, auth.ErrTokenInvalid
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "validation_missing_token",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewAuthHandler(svc)

			r := setupRouter(http.MethodPost, "/api/auth/refresh", h.Refresh)

			w := doJSON(r, http.MethodPost, "/api/auth/refresh", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// fake verifier for mounting the real auth middleware in front of handlers

type fakeVerifier struct {
	payload auth.Payload
	err     error
}

func (f *fakeVerifier) VerifyAccess(token string) (auth.Payload, error) {
	return f.payload, f.err
}

func TestAccountHandler(t *testing.T) {
	now := time.Now().UTC()

	svc := &fakeService{
		findFn: func(ctx context.Context, id string) (account.Account, error) {
			if id != "acc-1" {
				return account.Account{}, postgres.ErrAccountNotFound
			}

			return account.Account{ID: id, Name: "test", Email: "test@test.ru", Role: account.RoleUser, CreatedAt: now, UpdatedAt: now}, nil
		},
	}

	h := handlers.NewAuthHandler(svc)
	mw := middlewares.NewAuthMiddleware(&fakeVerifier{payload: auth.Payload{ID: "acc-1"}})

	r := setupRouter(http.MethodGet, "/api/auth/account", mw.RequireUser(), h.Account)

	w := doJSON(r, http.MethodGet, "/api/auth/account", "", "Authorization", "Bearer tok")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var got map[string]any

	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if got["id"] != "acc-1" {
		t.Fatalf("id = %v, want acc-1", got["id"])
	}

	// deleted account behind a still-valid token
	mwGone := middlewares.NewAuthMiddleware(&fakeVerifier{payload: auth.Payload{ID: "acc-gone"}})
	r2 := setupRouter(http.MethodGet, "/api/auth/account", mwGone.RequireUser(), h.Account)

	w2 := doJSON(r2, http.MethodGet, "/api/auth/account", "", "Authorization", "Bearer tok")

	if w2.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w2.Code, w2.Body.String())
	}
}

func TestDeleteHandler(t *testing.T) {
	const knownID = "7b6a3a39-19fa-4c3e-8e5b-07c1f1a3c001"

	tests := []struct {
		name           string
		body           string
		svcSetUp       func(*fakeService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"id":"` + knownID + `"}`,
			svcSetUp: func(f *fakeService) {
				f.deleteFn = func(ctx context.Context, id string) (account.Account, error) {
					return account.Account{ID: id, Role: account.RoleUser}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			body: `{"id":"` + knownID + `"}`,
			svcSetUp: func(f *fakeService) {
				f.deleteFn = func(ctx context.Context, id string) (account.Account, error) {
					return account.Account{}, postgres.ErrAccountNotFound
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_not_uuid",
			body:           `{"id":"42"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewAuthHandler(svc)

			r := setupRouter(http.MethodDelete, "/api/auth/account", h.Delete)

			w := doJSON(r, http.MethodDelete, "/api/auth/account", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestSetRoleHandlers(t *testing.T) {
	const knownID = "7b6a3a39-19fa-4c3e-8e5b-07c1f1a3c001"

	var gotRole account.Role

	svc := &fakeService{
		setRoleFn: func(ctx context.Context, id string, role account.Role) (account.Account, error) {
			gotRole = role
			return account.Account{ID: id, Role: role}, nil
		},
	}

	h := handlers.NewAuthHandler(svc)

	r := gin.New()
	r.POST("/api/auth/set-admin", h.SetAdmin)
	r.POST("/api/auth/set-user", h.SetUser)

	w := doJSON(r, http.MethodPost, "/api/auth/set-admin", `{"id":"`+knownID+`"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("set-admin got status %d, body=%s", w.Code, w.Body.String())
	}

	if gotRole != account.RoleAdmin {
		t.Fatalf("set-admin passed role %q, want ADMIN", gotRole)
	}

	w = doJSON(r, http.MethodPost, "/api/auth/set-user", `{"id":"`+knownID+`"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("set-user got status %d, body=%s", w.Code, w.Body.String())
	}

	if gotRole != account.RoleUser {
		t.Fatalf("set-user passed role %q, want USER", gotRole)
	}
}

func TestSeveralHandler(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		svcSetUp       func(*fakeService)
		wantStatusCode int
		wantCount      int
	}{
		{
			name: "success",
			path: "/api/auth/several/0/2",
			svcSetUp: func(f *fakeService) {
				f.listFn = func(ctx context.Context, skip, take int) ([]account.Account, error) {
					if skip != 0 || take != 2 {
						t.Fatalf("got skip=%d take=%d, want 0/2", skip, take)
					}

					return []account.Account{{ID: "a"}, {ID: "b"}}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      2,
		},
		{
			name:           "negative_skip",
			path:           "/api/auth/several/-1/5",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "zero_take",
			path:           "/api/auth/several/0/0",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "take_above_cap",
			path:           "/api/auth/several/0/500",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "non_numeric",
			path:           "/api/auth/several/abc/def",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewAuthHandler(svc)

			r := setupRouter(http.MethodGet, "/api/auth/several/:skip/:take", h.Several)

			w := doJSON(r, http.MethodGet, tt.path, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantCount > 0 {
				var items []account.Account

				if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
					t.Fatalf("unmarshal list: %v", err)
				}

				if len(items) != tt.wantCount {
					t.Fatalf("got %d items, want %d", len(items), tt.wantCount)
				}
			}
		})
	}
}
