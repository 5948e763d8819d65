package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"retail-ledger/internal/core"
)

type authClaimsKey struct{}

// AuthClaims holds the caller's identity extracted from the JWT. Tokens are
// issued by an external identity service; this adapter only verifies them.
type AuthClaims struct {
	TenantID int
	UserID   int
	BranchID int // 0 when the user has no default branch
	Role     string
}

// Actor returns the tenant/user pair passed to the application layer.
func (c *AuthClaims) Actor() core.Actor {
	return core.Actor{TenantID: c.TenantID, UserID: c.UserID}
}

// branchOr returns requested when set, else the caller's default branch.
func (c *AuthClaims) branchOr(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.BranchID
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for parsing.
type jwtClaims struct {
	TenantID int    `json:"tenant_id"`
	UserID   int    `json:"user_id"`
	BranchID int    `json:"branch_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// tokenFromRequest reads a bearer token, falling back to the auth_token cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handler) parseToken(raw string) (*AuthClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.TenantID <= 0 || claims.UserID <= 0 {
		return nil, fmt.Errorf("token missing tenant_id or user_id")
	}
	return &AuthClaims{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		BranchID: claims.BranchID,
		Role:     claims.Role,
	}, nil
}

// RequireAuth is chi middleware that validates the bearer token and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		claims, err := h.parseToken(raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not in roles with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := authFromContext(r.Context())
			if claims == nil || !contains(roles, claims.Role) {
				writeError(w, r, "insufficient permissions", "FORBIDDEN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
