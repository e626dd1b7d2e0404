package providers

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"genstudio/internal/domain"
)

// authFunc yields the header carrying credentials for one request.
type authFunc func(cfg domain.ProviderConfig, now time.Time) (header, value string, err error)

var errMissingCredential = errors.New("provider credential is not configured")

func credentialKey(cfg domain.ProviderConfig) (string, error) {
	key := strings.TrimSpace(cfg.Credential.Key)
	if key == "" {
		return "", errMissingCredential
	}
	return key, nil
}

func bearerAuth(cfg domain.ProviderConfig, _ time.Time) (string, string, error) {
	key, err := credentialKey(cfg)
	if err != nil {
		return "", "", err
	}
	return "Authorization", "Bearer " + key, nil
}

func apiKeyAuth(cfg domain.ProviderConfig, _ time.Time) (string, string, error) {
	key, err := credentialKey(cfg)
	if err != nil {
		return "", "", err
	}
	return "X-API-Key", key, nil
}

func tokenAuth(cfg domain.ProviderConfig, _ time.Time) (string, string, error) {
	key, err := credentialKey(cfg)
	if err != nil {
		return "", "", err
	}
	return "Authorization", "Token " + key, nil
}

// usesKeyScheme reports whether a falGenerate config targets the vendor that
// authenticates with "Key <key>".
func usesKeyScheme(cfg domain.ProviderConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.AuthScheme), "Key")
}

func falAuth(cfg domain.ProviderConfig, now time.Time) (string, string, error) {
	if !usesKeyScheme(cfg) {
		return bearerAuth(cfg, now)
	}
	key, err := credentialKey(cfg)
	if err != nil {
		return "", "", err
	}
	return "Authorization", "Key " + key, nil
}

func klingAuth(cfg domain.ProviderConfig, now time.Time) (string, string, error) {
	token, err := KlingToken(cfg.Credential.Key, cfg.Credential.Secret, now)
	if err != nil {
		return "", "", err
	}
	return "Authorization", "Bearer " + token, nil
}

// Kling tokens are valid for 30 minutes, with a small not-before skew.
const (
	klingTokenTTL  = 1800 * time.Second
	klingClockSkew = 5 * time.Second
)

// KlingToken signs the short-lived HS256 token Kling expects: issuer is the
// access key, signed with the secret key.
func KlingToken(accessKey, secretKey string, now time.Time) (string, error) {
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if accessKey == "" || secretKey == "" {
		return "", errMissingCredential
	}
	now = now.Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Issuer:    accessKey,
		NotBefore: jwt.NewNumericDate(now.Add(-klingClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(klingTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}
