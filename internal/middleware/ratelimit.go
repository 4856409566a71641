package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit allows each client limit requests per window, refilled smoothly.
// Idle clients are forgotten after a few windows.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	interval := per / time.Duration(limit)
	every := rate.Every(interval)
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(interval.Seconds()))))
	limiters := cache.New(3*per, 10*per)

	limiterFor := func(key string) *rate.Limiter {
		if v, ok := limiters.Get(key); ok {
			limiters.SetDefault(key, v)
			return v.(*rate.Limiter)
		}
		l := rate.NewLimiter(every, limit)
		if err := limiters.Add(key, l, cache.DefaultExpiration); err != nil {
			if v, ok := limiters.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := limiterFor(clientIPForRateLimit(r))
			if !l.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeDetail(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
