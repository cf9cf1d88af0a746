package middlewares

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/utils"
)

const maxCallbackBodyBytes = 64 << 10

// CallbackAuthMiddleware authenticates storage callbacks.
// Header format: Authorization: HMAC <signature>
// Required headers: X-Timestamp (unix seconds)
// Signature: hex HMAC-SHA256 over METHOD\nPATH\nTIMESTAMP\nSHA256(body)
func CallbackAuthMiddleware(cfg *config.EnvConfig, logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		secret, err := cfg.RequireCallbackSecret()
		if err != nil {
			logger.ErrorWithContextf(ctx, err, "[Callback] Callback secret is not configured")
			utils.AbortWithError(c, err)
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "HMAC ") {
			utils.JSON401(c, "HMAC authorization is required")
			return
		}
		signature := strings.TrimSpace(strings.TrimPrefix(authHeader, "HMAC "))
		if signature == "" {
			utils.JSON401(c, "Signature is required")
			return
		}

		timestamp, err := strconv.ParseInt(c.GetHeader("X-Timestamp"), 10, 64)
		if err != nil {
			utils.JSON401(c, "Invalid X-Timestamp")
			return
		}
		if !utils.WithinTolerance(timestamp, time.Now()) {
			utils.JSON401(c, "Request timestamp expired")
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodyBytes))
			if err != nil {
				utils.JSON400(c, "Failed to read request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		expected := utils.SignCallback(secret, c.Request.Method, c.Request.URL.Path, timestamp, body)
		if !utils.SecureCompare(expected, strings.ToLower(signature)) {
			logger.WarningWithContextf(ctx, "[Callback] Invalid signature for %s", c.Request.URL.Path)
			utils.JSON401(c, "Invalid signature")
			return
		}

		c.Next()
	}
}
