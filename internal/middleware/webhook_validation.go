package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tatidev/opms-erp-sync/internal/logger"
)

// WebhookValidationConfig controls how an inbound webhook request is
// authenticated before it reaches a handler.
type WebhookValidationConfig struct {
	SignatureHeader    string
	SignaturePrefix    string
	TimestampHeader    string
	TimestampTolerance time.Duration
	RequireTimestamp   bool
	RequireSignature   bool
}

// ERPWebhookValidation returns the validation middleware for the inbound
// ERP pricing webhook: it requires the HMAC-SHA256 signature header to be
// present and checks no timestamp header (the ERP callback contract does
// not send one). The signature itself is verified later, by
// ValidateWebhookSignature.
func ERPWebhookValidation(log *logger.Logger) gin.HandlerFunc {
	cfg := &WebhookValidationConfig{
		SignatureHeader:  "X-ERP-Signature",
		SignaturePrefix:  "sha256=",
		RequireTimestamp: false,
		RequireSignature: true,
	}
	return createWebhookValidator(cfg, log)
}

func createWebhookValidator(cfg *WebhookValidationConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			log.Error("failed to read webhook body", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set("webhook_raw_body", body)

		if cfg.RequireTimestamp && !validateTimestamp(c, cfg, log) {
			return
		}

		if cfg.RequireSignature {
			signature := c.GetHeader(cfg.SignatureHeader)
			if signature == "" {
				log.Warn("missing webhook signature", "header", cfg.SignatureHeader, "ip", c.ClientIP())
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
				c.Abort()
				return
			}
			c.Set("webhook_signature", signature)
			c.Set("webhook_signature_config", cfg)
		}

		c.Next()
	}
}

// ValidateWebhookSignature checks the signature stashed in context against secret.
func ValidateWebhookSignature(c *gin.Context, secret string) bool {
	rawBody, exists := c.Get("webhook_raw_body")
	if !exists {
		return false
	}
	body, ok := rawBody.([]byte)
	if !ok {
		return false
	}

	signature, exists := c.Get("webhook_signature")
	if !exists {
		return false
	}
	sig, ok := signature.(string)
	if !ok {
		return false
	}

	cfgAny, exists := c.Get("webhook_signature_config")
	if !exists {
		return false
	}
	cfg, ok := cfgAny.(*WebhookValidationConfig)
	if !ok {
		return false
	}

	return verifyHMACSignature(body, sig, secret, cfg)
}

func validateTimestamp(c *gin.Context, cfg *WebhookValidationConfig, log *logger.Logger) bool {
	timestampHeader := c.GetHeader(cfg.TimestampHeader)
	if timestampHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing timestamp"})
		c.Abort()
		return false
	}

	requestTime, err := time.Parse(time.RFC3339, timestampHeader)
	if err != nil {
		log.Warn("invalid webhook timestamp format", "timestamp", timestampHeader)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp format"})
		c.Abort()
		return false
	}

	age := time.Since(requestTime)
	if age < 0 {
		age = -age
	}
	if age > cfg.TimestampTolerance {
		log.Warn("webhook timestamp outside tolerance", "age", age.String())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "request too old"})
		c.Abort()
		return false
	}

	return true
}

func verifyHMACSignature(body []byte, signature, secret string, cfg *WebhookValidationConfig) bool {
	signature = strings.TrimPrefix(signature, cfg.SignaturePrefix)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// WebhookSecurityHeaders adds the minimal header set appropriate for a
// server-to-server callback endpoint (no caching, no framing, no
// information-leaking server banners).
func WebhookSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Server", "")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Next()
	}
}
