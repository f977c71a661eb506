// Package auth verifies packet-provisioned accounts and issues JWTs.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"arbiter/internal/packet"
	appErr "arbiter/pkg/errors"
)

// Config holds token settings.
type Config struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry_hours"`
	Issuer      string `yaml:"issuer"`
}

// Claims is the JWT payload.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates against the packet's account list.
type Service struct {
	cfg Config
	pkt *packet.Packet
}

func NewService(cfg Config, pkt *packet.Packet) (*Service, error) {
	if cfg.Secret == "" {
		return nil, appErr.ValidationError("secret", "required")
	}
	if cfg.ExpiryHours <= 0 {
		cfg.ExpiryHours = 12
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "arbiter"
	}
	return &Service{cfg: cfg, pkt: pkt}, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(username, password string) (string, Claims, error) {
	acc, ok := s.pkt.Account(username)
	if !ok {
		return "", Claims{}, appErr.Newf(appErr.InvalidCredentials, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", Claims{}, appErr.Newf(appErr.InvalidCredentials, "invalid username or password")
	}

	now := time.Now()
	claims := Claims{
		Username: acc.Username,
		Role:     acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   acc.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", Claims{}, appErr.Wrapf(err, appErr.TokenGenerationFailed, "sign token failed")
	}
	return signed, claims, nil
}

// Verify parses and validates a token.
func (s *Service) Verify(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErr.Newf(appErr.TokenInvalid, "unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, appErr.Wrapf(err, appErr.TokenExpired, "token expired")
		}
		return Claims{}, appErr.Wrapf(err, appErr.TokenInvalid, "token validation failed")
	}
	if !token.Valid {
		return Claims{}, appErr.Newf(appErr.TokenInvalid, "token is not valid")
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash for provisioning tooling.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.InternalServerError, "hash password failed")
	}
	return string(hash), nil
}
