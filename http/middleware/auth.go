package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/http/controller"
	"github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/utils"
)

// identityErrorKey holds why the attach gate could not verify a token, for
// the require gate to report.
const identityErrorKey = "identity_error"

// AttachIdentityMiddleware verifies a bearer token when one is present and
// puts the identity on the request context. It never rejects.
func AttachIdentityMiddleware(verifier controller.IdentityVerifier, logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := utils.ExtractToken(c)
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		identity, err := verifier.Verify(ctx, token)
		if err != nil {
			logger.WarningWithContextf(ctx, "[Auth] Bearer token rejected: %s", utils.KindOf(err))
			c.Set(identityErrorKey, err)
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(utils.WithIdentity(ctx, identity))
		c.Next()
	}
}

// RequireIdentityMiddleware stops the request unless an identity was
// attached. Configuration and key fetch failures are server errors, not 401.
func RequireIdentityMiddleware(logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.IdentityFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}

		if v, exists := c.Get(identityErrorKey); exists {
			if err, ok := v.(error); ok && !utils.IsKind(err, utils.KindUnauthenticated) {
				logger.ErrorWithContextf(c.Request.Context(), err, "[Auth] Unable to verify identity")
				utils.AbortWithError(c, err)
				return
			}
		}

		utils.JSON401(c, "unauthorized")
	}
}
