package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
)

var secret = []byte("test-secret")

func issue(t *testing.T, p auth.Principal) string {
	token, _, err := auth.IssueToken(secret, p, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func TestHMACRoundTrip(t *testing.T) {
	v, err := auth.NewVerifier(context.Background(), auth.AuthPolicy{Mode: auth.ModeHMAC, Secret: secret})
	require.NoError(t, err)

	token := issue(t, auth.Principal{ID: "w-1", TenantID: "tenant-a", Role: "operator", Type: auth.TypeWorker})
	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "w-1", p.ID)
	assert.Equal(t, "tenant-a", p.TenantID)
	assert.Equal(t, auth.TypeWorker, p.Type)
	assert.NotEmpty(t, p.TokenID)
	assert.False(t, p.ExpiresAt.IsZero())
}

func TestHMACRejectsForeignAndExpiredTokens(t *testing.T) {
	v := &auth.HMACVerifier{Secret: secret}

	other, _, err := auth.IssueToken([]byte("other"), auth.Principal{ID: "u"}, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), other)
	assert.Error(t, err)

	expired, _, err := auth.IssueToken(secret, auth.Principal{ID: "u"}, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.Error(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), unsigned)
	assert.Error(t, err)
}

func TestInsecureDevAcceptsUnsignedTokens(t *testing.T) {
	v, err := auth.NewVerifier(context.Background(), auth.AuthPolicy{AllowInsecureDev: true})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "typ": "user"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	p, err := v.Verify(context.Background(), unsigned)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, auth.TypeUser, p.Type)
}

func TestNewVerifierRequiresConfiguration(t *testing.T) {
	_, err := auth.NewVerifier(context.Background(), auth.AuthPolicy{Mode: auth.ModeHMAC})
	assert.Error(t, err)
	_, err = auth.NewVerifier(context.Background(), auth.AuthPolicy{Mode: auth.ModeOIDC})
	assert.Error(t, err)
	_, err = auth.NewVerifier(context.Background(), auth.AuthPolicy{Mode: "ldap", Secret: secret})
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(hash, "s3cret"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
}

func TestMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	revocations := auth.NewRevocationList(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	v := &auth.HMACVerifier{Secret: secret}

	var seen *auth.Principal
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	open := auth.Middleware(v, revocations, logger.Discard())(final)
	workersOnly := auth.Middleware(v, revocations, logger.Discard())(auth.RequireType(auth.TypeWorker)(final))

	do := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	seen = nil
	assert.Equal(t, http.StatusNoContent, do(open, ""))
	assert.Nil(t, seen)

	assert.Equal(t, http.StatusUnauthorized, do(open, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, do(workersOnly, ""))

	userToken := issue(t, auth.Principal{ID: "u-1", Type: auth.TypeUser})
	assert.Equal(t, http.StatusForbidden, do(workersOnly, userToken))

	workerToken := issue(t, auth.Principal{ID: "w-1", TenantID: "tenant-a", Type: auth.TypeWorker})
	assert.Equal(t, http.StatusNoContent, do(workersOnly, workerToken))
	require.NotNil(t, seen)
	assert.Equal(t, "w-1", seen.ID)

	require.NoError(t, revocations.Revoke(context.Background(), seen.TokenID, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, do(workersOnly, workerToken))
}

func TestRevocationOutageRefusesStaffTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	revocations := auth.NewRevocationList(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h := auth.Middleware(&auth.HMACVerifier{Secret: secret}, revocations, logger.Discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	mr.Close()

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do(issue(t, auth.Principal{ID: "u-1", Type: auth.TypeUser})))
	assert.Equal(t, http.StatusInternalServerError, do(issue(t, auth.Principal{ID: "w-1", TenantID: "tenant-a", Type: auth.TypeWorker})))
	assert.Equal(t, http.StatusInternalServerError, do(issue(t, auth.Principal{ID: "a-1", TenantID: "tenant-a", Type: auth.TypeAdmin})))
}

func TestRequireAdmin(t *testing.T) {
	h := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"operator", &auth.Principal{ID: "w", TenantID: "t", Role: "operator", Type: auth.TypeWorker}, http.StatusForbidden},
		{"admin without tenant", &auth.Principal{ID: "a", Type: auth.TypeAdmin}, http.StatusForbidden},
		{"worker admin", &auth.Principal{ID: "w", TenantID: "t", Role: "admin", Type: auth.TypeWorker}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.principal != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), tc.principal))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
