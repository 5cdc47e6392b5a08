package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureChecker validates a webhook signature over the url and form params
type SignatureChecker interface {
	Valid(url string, params map[string]string, signature string) bool
}

// TwilioSignature rejects webhook calls whose X-Twilio-Signature does not match.
// publicURL is the address Twilio was configured with; when empty the request's
// own scheme, host and path are used.
func TwilioSignature(checker SignatureChecker, publicURL string, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("signature")
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid form body"})
			return
		}

		params := make(map[string]string, len(c.Request.PostForm))
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		url := publicURL
		if url == "" {
			url = requestURL(c.Request)
		}

		if !checker.Valid(url, params, c.GetHeader("X-Twilio-Signature")) {
			logger.Warn("rejected unsigned webhook call",
				zap.String("url", url),
				zap.String("remote", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
			return
		}
		c.Next()
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
