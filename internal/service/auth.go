package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const totpHeader = "X-TOTP-Code"

// AuthService gates mutating routes behind a TOTP code. With no secret
// configured every request is let through.
type AuthService struct {
	logger     *zap.Logger
	totpSecret string
	now        func() time.Time
}

func NewAuthService(logger *zap.Logger, totpSecret string) *AuthService {
	return &AuthService{
		logger:     logger,
		totpSecret: totpSecret,
		now:        time.Now,
	}
}

func (a *AuthService) Enabled() bool {
	return a.totpSecret != ""
}

// GenerateSecret creates a new base32 TOTP secret and its otpauth URL.
func (a *AuthService) GenerateSecret(accountName string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "AgriPost",
		AccountName: accountName,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

func (a *AuthService) ValidateToken(token string) bool {
	valid, err := totp.ValidateCustom(token, a.totpSecret, a.now().UTC(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	if err != nil || !valid {
		a.logger.Warn("TOTP token validation failed", zap.Error(err))
		return false
	}
	return true
}

func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(totpHeader))
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "TOTP ") {
				token = strings.TrimSpace(strings.TrimPrefix(auth, "TOTP "))
			}
		}

		if token == "" || !a.ValidateToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Next()
	}
}
