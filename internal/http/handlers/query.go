package handlers

import (
	"strconv"
	"strings"

	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/gin-gonic/gin"
)

// parsePage reads ?page and ?page_size. On a bad value it has already
// written a 400 and returns false.
func parsePage(ctx *gin.Context) (page.Params, bool) {
	p := page.Params{Page: 1, Size: page.DefaultSize}

	if raw := ctx.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > page.MaxPage {
			RespondInvalidQuery(ctx, "page must be between 1 and "+strconv.Itoa(page.MaxPage))
			return page.Params{}, false
		}
		p.Page = n
	}

	if raw := ctx.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > page.MaxSize {
			RespondInvalidQuery(ctx, "page_size must be between 1 and "+strconv.Itoa(page.MaxSize))
			return page.Params{}, false
		}
		p.Size = n
	}

	return p, true
}

func optionalString(ctx *gin.Context, key string) *string {
	v := strings.TrimSpace(ctx.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

func optionalBool(ctx *gin.Context, key string) (*bool, bool) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return nil, true
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		RespondInvalidQuery(ctx, key+" must be true or false")
		return nil, false
	}
	return &b, true
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
