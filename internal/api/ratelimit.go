package api

import (
    "net"
    "net/http"
    "os"
    "strconv"
    "sync"

    "golang.org/x/time/rate"
)

// RateLimit wraps a handler with a per-client token bucket. Tuned with
// RATE_RPS and RATE_BURST; unset or zero RATE_RPS disables limiting.
func RateLimit(next http.Handler) http.Handler {
    rps := 0.0
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil { rps = f }
    }
    if rps <= 0 {
        return next
    }
    burst := int(rps)
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { burst = n }
    }
    if burst < 1 { burst = 1 }

    var mu sync.Mutex
    limiters := map[string]*rate.Limiter{}
    get := func(key string) *rate.Limiter {
        mu.Lock()
        defer mu.Unlock()
        l, ok := limiters[key]
        if !ok {
            l = rate.NewLimiter(rate.Limit(rps), burst)
            limiters[key] = l
        }
        return l
    }

    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        host, _, err := net.SplitHostPort(r.RemoteAddr)
        if err != nil { host = r.RemoteAddr }
        if !get(host).Allow() {
            writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "slow down", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
