package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/config"
)

type claims struct {
	issuer   string
	audience string
	subject  string
	role     string
	issued   time.Time
	expires  time.Time
}

func sign(t *testing.T, alg jwa.SignatureAlgorithm, c claims) string {
	t.Helper()
	b := jwt.NewBuilder().Issuer(c.issuer).Subject(c.subject).IssuedAt(c.issued).NotBefore(c.issued).Expiration(c.expires)
	if c.audience != "" {
		b = b.Audience([]string{c.audience})
	}
	if c.role != "" {
		b = b.Claim(roleClaim, c.role)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func verifierAt(t *testing.T, now time.Time, skew time.Duration) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: testSecret, Issuer: "identity", Audience: "vaxcart", Skew: skew})
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "want AppError, got %v", err)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestParseAccessTokenExtractsPrincipal(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	v := verifierAt(t, now, time.Second)
	token := sign(t, jwa.HS256, claims{issuer: "identity", audience: "vaxcart", subject: "user-1", role: "admin", issued: now, expires: now.Add(time.Minute)})

	p, err := v.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, common.Principal{UserID: "user-1", Role: "admin"}, p)
}

func TestParseAccessTokenRejects(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	v := verifierAt(t, now, 0)
	valid := claims{issuer: "identity", audience: "vaxcart", subject: "user-1", issued: now, expires: now.Add(time.Minute)}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"other issuer":   sign(t, jwa.HS256, claims{issuer: "other", audience: "vaxcart", subject: "user-1", issued: now, expires: now.Add(time.Minute)}),
		"other audience": sign(t, jwa.HS256, claims{issuer: "identity", audience: "shop", subject: "user-1", issued: now, expires: now.Add(time.Minute)}),
		"expired":        sign(t, jwa.HS256, claims{issuer: "identity", audience: "vaxcart", subject: "user-1", issued: now.Add(-2 * time.Hour), expires: now.Add(-time.Minute)}),
		"no subject":     sign(t, jwa.HS256, claims{issuer: "identity", audience: "vaxcart", issued: now, expires: now.Add(time.Minute)}),
		"hs512":          sign(t, jwa.HS512, valid),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.ParseAccessToken(token)
			requireUnauthorized(t, err)
		})
	}
}

func TestParseAccessTokenSkewToleratesNotBefore(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	token := sign(t, jwa.HS256, claims{issuer: "identity", audience: "vaxcart", subject: "user-1", issued: now.Add(2 * time.Second), expires: now.Add(time.Minute)})

	_, err := verifierAt(t, now, 0).ParseAccessToken(token)
	requireUnauthorized(t, err)

	_, err = verifierAt(t, now, 5*time.Second).ParseAccessToken(token)
	require.NoError(t, err)
}
