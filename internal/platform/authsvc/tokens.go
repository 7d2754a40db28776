// Package authsvc issues and verifies the platform's HMAC-signed tokens.
// Every successful authentication yields a full triple: a short-lived access
// token, an id token carrying profile claims, and an opaque refresh token the
// caller exchanges later.
package authsvc

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenService struct {
	hmac      []byte
	accessTTL time.Duration
}

func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &TokenService{hmac: []byte(secret), accessTTL: accessTTL}
}

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	Use   string `json:"token_use"` // access|id
	jwt.RegisteredClaims
}

type Identity struct {
	Sub   string
	Email string
	Name  string
	Role  string
}

// Issue signs an access and id token for the identity. The refresh token is
// random; persisting it is the caller's job.
func (s *TokenService) Issue(id Identity) (access, idToken, refresh string, err error) {
	now := time.Now()
	base := Claims{
		Sub:   id.Sub,
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "rosterdash-platform",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	ac := base
	ac.Use = "access"
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, &ac).SignedString(s.hmac)
	if err != nil {
		return "", "", "", err
	}

	idc := base
	idc.Use = "id"
	idc.Name = id.Name
	idToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, &idc).SignedString(s.hmac)
	if err != nil {
		return "", "", "", err
	}

	return access, idToken, newOpaqueToken(), nil
}

func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

func newOpaqueToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
