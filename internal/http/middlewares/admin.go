package middlewares

import (
	"context"
	"time"

	"github.com/dkuznetsov/authsvc/internal/cache"
	"github.com/dkuznetsov/authsvc/internal/domain/account"
	"github.com/gin-gonic/gin"
)

// RoleChecker answers whether an account holds a role. Absence of the
// account reads as false, never an error.
type RoleChecker interface {
	IsRole(ctx context.Context, id string, role account.Role) bool
}

type AdminMiddleware struct {
	roles RoleChecker
	memo  *cache.Cache[bool]
}

func NewAdminMiddleware(roles RoleChecker, ttl time.Duration) *AdminMiddleware {
	return &AdminMiddleware{
		roles: roles,
		memo:  cache.New[bool](ttl),
	}
}

// RequireAdmin runs after RequireUser and re-checks the caller's role
// against the store. Positive answers are memoized briefly; demotions
// take effect once the memo entry expires.
func (m *AdminMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := AccountIDFromContext(c)

		if !ok || id == "" {
			abortUnauthorized(c, "unauthorized", "Missing identity context")
			return
		}

		if isAdmin, ok := m.memo.Get(id); ok && isAdmin {
			c.Next()
			return
		}

		if !m.roles.IsRole(c.Request.Context(), id, account.RoleAdmin) {
			abortUnauthorized(c, "admin_not_found", "Administrator not found")
			return
		}

		m.memo.Set(id, true)

		c.Next()
	}
}

// Forget drops a memoized role answer, for callers that just changed it.
func (m *AdminMiddleware) Forget(id string) {
	m.memo.Delete(id)
}
