package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token body issued by this service and expected from OIDC issuers.
type Claims struct {
	TenantID string        `json:"tenant_id,omitempty"`
	Role     string        `json:"role,omitempty"`
	Type     PrincipalType `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) principal() (*Principal, error) {
	if c.Subject == "" {
		return nil, errors.New("subject claim not found in token")
	}
	typ := c.Type
	switch typ {
	case TypeWorker, TypeUser, TypeAdmin:
	case "":
		typ = TypeUser
	default:
		return nil, fmt.Errorf("unknown principal type %q", typ)
	}
	p := &Principal{
		ID:       c.Subject,
		TenantID: c.TenantID,
		Role:     c.Role,
		Type:     typ,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p, nil
}

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// IssueToken signs an HS256 access token for p. It returns the token and its expiry.
func IssueToken(secret []byte, p Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("token secret is not configured")
	}
	expires := now.Add(ttl)
	claims := Claims{
		TenantID: p.TenantID,
		Role:     p.Role,
		Type:     p.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}
