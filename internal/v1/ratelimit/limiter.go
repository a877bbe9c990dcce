// Package ratelimit implements per-IP rate limiting for the HTTP surface
// using an in-memory store. Rooms live on the instance that created them, so
// a distributed limiter store is unnecessary.
package ratelimit

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultRate bounds room creations per client IP.
const DefaultRate = "60-M"

// Middleware returns a Gin middleware enforcing the formatted rate
// (e.g. "60-M" for sixty requests per minute per IP).
func Middleware(formatted string) (gin.HandlerFunc, error) {
	if formatted == "" {
		formatted = DefaultRate
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}

	store := memory.NewStore()
	return mgin.NewMiddleware(limiter.New(store, rate)), nil
}
