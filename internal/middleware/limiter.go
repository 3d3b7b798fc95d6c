package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"payflow-be/internal/auth"
	"payflow-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Checkout starts hit the gateway (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Gateway callbacks arrive in bursts from a few addresses
	limitCallback = rate.Limit(50)
	burstCallback = 100
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex
)

// init starts the background cleanup routine.
func init() {
	go cleanupVisitors()
}

// getVisitor retrieves or creates a rate limiter for the given key.
func getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes old entries from the visitors map to prevent memory leaks.
func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimitMiddleware checks if the request is allowed by the rate limiter.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := resolveRateTier(r)

		// Prefer the authenticated caller, fall back to IP
		var identity string
		if claims, ok := auth.ClaimsFrom(r.Context()); ok && claims.Subject != "" {
			identity = "sub:" + claims.Subject
		} else {
			identity = "ip:" + utils.ClientIP(r)
		}

		// separate quotas per tier, e.g. "ip:10.0.0.1:callback"
		key := fmt.Sprintf("%s:%s", identity, tier)

		limiter := getVisitor(key, limit, burst)
		if !limiter.Allow() {
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	switch {
	case r.URL.Path == "/webhook/payment" || r.URL.Path == "/payment/return":
		return limitCallback, burstCallback, "callback"
	case strings.HasPrefix(r.URL.Path, "/checkout/transactions"):
		return limitStrict, burstStrict, "strict"
	}
	return limitGeneral, burstGeneral, "general"
}
