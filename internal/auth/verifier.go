package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/config"
)

// roleClaim is the private claim carrying the caller's role.
const roleClaim = "role"

// Verifier checks bearer tokens minted by the hosted identity backend.
// Tokens are never issued here. Only HS256 is accepted.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	now      func() time.Time
}

// NewVerifier builds a Verifier from the auth configuration.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		skew:     cfg.Skew,
		now:      time.Now,
	}, nil
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}

// ParseAccessToken verifies the signature and the registered claims, then
// returns the caller identified by sub and role.
func (v *Verifier) ParseAccessToken(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return common.Principal{}, unauthorized(err)
	}
	if algorithm != jwa.HS256 {
		return common.Principal{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(jwa.HS256, v.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized(err)
	}
	if err := jwt.Validate(parsed, v.validateOptions()...); err != nil {
		return common.Principal{}, unauthorized(err)
	}
	return principal(parsed)
}

func (v *Verifier) validateOptions() []jwt.ValidateOption {
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.skew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.skew))
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}
	return options
}

func principal(tok jwt.Token) (common.Principal, error) {
	subject := strings.TrimSpace(tok.Subject())
	if subject == "" {
		return common.Principal{}, unauthorized(errors.New("token has no subject"))
	}
	p := common.Principal{UserID: subject}
	if raw, ok := tok.Get(roleClaim); ok {
		if role, ok := raw.(string); ok {
			p.Role = role
		}
	}
	return p, nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
			continue
		}
		if algorithm != alg {
			return "", errors.New("auth: token has mixed algorithms")
		}
	}
	return algorithm, nil
}
