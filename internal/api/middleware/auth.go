package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

type contextKey string

const serverContextKey contextKey = "server"

// Claims is the token payload issued to staff. The subject is the staff ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and loads the calling server
type Authenticator struct {
	secret []byte
	issuer string
	staff  repositories.StaffRepository
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(secret, issuer string, staff repositories.StaffRepository) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		staff:  staff,
	}
}

// IssueToken signs a token for server valid for ttl from now
func (a *Authenticator) IssueToken(server *entities.Server, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(server.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   server.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate resolves the request's bearer token to a staff member
func (a *Authenticator) Authenticate(r *http.Request) (*entities.Server, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, apperrors.NewUnauthorizedError("missing bearer token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		unauthorized := apperrors.NewUnauthorizedError("invalid token")
		unauthorized.Err = err
		return nil, unauthorized
	}

	server, err := a.staff.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError("unknown staff member")
		}
		return nil, err
	}
	if string(server.Role) != claims.Role {
		return nil, apperrors.NewUnauthorizedError("token role does not match staff record")
	}
	return server, nil
}

// RequireServer admits any authenticated doctor or lab technician
func (a *Authenticator) RequireServer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, err := a.Authenticate(r)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		next(w, r.WithContext(WithServer(r.Context(), server)))
	}
}

// RequireRole admits only authenticated servers holding role
func (a *Authenticator) RequireRole(role entities.ServerRole, next http.HandlerFunc) http.HandlerFunc {
	return a.RequireServer(func(w http.ResponseWriter, r *http.Request) {
		server, _ := ServerFromContext(r.Context())
		if server.Role != role {
			response.Error(w, r, apperrors.NewForbiddenError("this action requires the "+string(role)+" role").
				WithCode(apperrors.CodeRoleRequired).
				WithDetail("required_role", role))
			return
		}
		next(w, r)
	})
}

// WithServer stores the authenticated server in ctx
func WithServer(ctx context.Context, server *entities.Server) context.Context {
	return context.WithValue(ctx, serverContextKey, server)
}

// ServerFromContext returns the authenticated server, if any
func ServerFromContext(ctx context.Context) (*entities.Server, bool) {
	server, ok := ctx.Value(serverContextKey).(*entities.Server)
	return server, ok && server != nil
}
