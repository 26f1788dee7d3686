package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// Identity is the authenticated caller attached to each request.
type Identity struct {
	UserID string
	Role   domain.Role
}

// Authorizer validates the bearer tokens minted by the identity provider.
// Tokens are HS256 JWTs carrying the user id in `sub` and the classroom role
// in a `role` claim.
type Authorizer struct {
	secret []byte
	leeway time.Duration
}

// NewAuthorizer builds an authorizer around a shared HS256 secret.
func NewAuthorizer(secret []byte) (*Authorizer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Authorizer{secret: secret, leeway: 30 * time.Second}, nil
}

type classroomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate validates a token and returns the identity it carries.
func (a *Authorizer) Authenticate(token string) (Identity, error) {
	claims := &classroomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}
	if !parsed.Valid {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "invalid token")
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "token has no subject")
	}
	role := domain.Role(strings.TrimSpace(claims.Role))
	if role != domain.RoleStudent && role != domain.RoleTeacher {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "token has no classroom role")
	}
	return Identity{UserID: userID, Role: role}, nil
}

// IssueToken mints a token for one identity. Used by tests and local setups;
// production tokens come from the identity provider with the same secret.
func (a *Authorizer) IssueToken(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := classroomClaims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
