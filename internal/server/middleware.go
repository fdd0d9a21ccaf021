package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const contextUserIDKey = "user_id"

// CORS allows any origin. Preflight requests are answered here with an
// empty 200.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

// AuthRequired verifies the caller's HS256 bearer token and stores the
// subject claim as the user id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	secret := []byte(s.cfg.Auth.JWTSecret)
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || len(secret) == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || strings.TrimSpace(sub) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextUserIDKey, sub)
		c.Next()
	}
}

// SchedulerAuth guards the sweep endpoints with the shared scheduler token.
// Without a configured token the endpoints stay open.
func (s *Server) SchedulerAuth() gin.HandlerFunc {
	expected := []byte(s.cfg.Auth.SchedulerToken)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		token, ok := bearerToken(c)
		if !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

// RateLimit applies a per-client-IP token bucket. A non-positive rps
// disables limiting.
func (s *Server) RateLimit() gin.HandlerFunc {
	if s.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !s.limiter.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// prune drops visitors idle for longer than the ttl.
func (l *ipLimiter) prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}
