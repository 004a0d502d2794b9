// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrBadPassword  = errors.New("invalid email or password")
)

// BcryptCost 密码哈希成本
var BcryptCost = bcrypt.DefaultCost

// TokenConfig holds the configuration for token generation
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
	// Now 为空时使用 time.Now
	Now func() time.Time
}

func (c *TokenConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Token represents an authentication token
type Token struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
}

// NewTokenConfig 从配置的密钥构造，密钥统一为 32 字节
func NewTokenConfig(secret string, expiration time.Duration) (*TokenConfig, error) {
	var key []byte
	if secret == "" {
		var err error
		key, err = GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
	} else {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenConfig{Secret: key, Expiration: expiration}, nil
}

// GenerateToken creates a new authentication token
func GenerateToken(userID, email string, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("secret key is required")
	}
	if userID == "" || strings.Contains(userID, "|") || strings.Contains(email, "|") {
		return "", fmt.Errorf("invalid token subject")
	}

	now := config.now()
	payload := fmt.Sprintf("%s|%s|%d|%d", userID, email, now.Add(config.Expiration).Unix(), now.Unix())

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	encodedSignature := base64.RawURLEncoding.EncodeToString(sign(config.Secret, []byte(payload)))

	return encodedPayload + "." + encodedSignature, nil
}

// ParseToken parses and validates a token
func ParseToken(tokenString string, config *TokenConfig) (*Token, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("secret key is required")
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	signatureBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidToken, err)
	}

	if !hmac.Equal(signatureBytes, sign(config.Secret, payloadBytes)) {
		return nil, ErrInvalidToken
	}

	payloadParts := strings.Split(string(payloadBytes), "|")
	if len(payloadParts) != 4 {
		return nil, ErrInvalidToken
	}

	expiresAt, err := strconv.ParseInt(payloadParts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	issuedAt, err := strconv.ParseInt(payloadParts[3], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if config.now().Unix() > expiresAt {
		return nil, ErrExpiredToken
	}

	return &Token{
		UserID:    payloadParts[0],
		Email:     payloadParts[1],
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}, nil
}

func sign(secret, payload []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return h.Sum(nil)
}

// GenerateSecureKey generates a secure random key for token signing
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// HashPassword bcrypt 哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 校验失败统一返回 ErrBadPassword
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}
