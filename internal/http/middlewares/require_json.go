package middlewares

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSON answers 415 to writes whose body is not JSON. Bodiless
// requests such as logout pass through.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if hasBody(c.Request) && !isJSON(c.GetHeader("Content-Type")) {
			abortError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}
		c.Next()
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

// isJSON accepts application/json and structured suffixes like
// application/merge-patch+json, with any parameters.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}
