package web

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// RateLimiter holds rate limiters for different IP addresses
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter
// r is requests per second, b is burst size
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
	}
}

// getLimiter returns the rate limiter for a given IP address
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = limiter
	}

	return limiter
}

// cleanupOldLimiters removes limiters that haven't been used recently
func (rl *RateLimiter) cleanupOldLimiters() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		// Reset the map to free memory from old IPs
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware creates a Gin middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	// Start cleanup goroutine
	go rl.cleanupOldLimiters()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rl.getLimiter(ip)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// MaxBytesMiddleware limits the size of request bodies
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

const viewerKey = "viewer"

// AuthMiddleware resolves Basic-Auth credentials against stored authors.
// Node service accounts are ordinary authors, so a peer's push arrives as
// a real local identity. Requests without credentials pass through
// anonymous; bad credentials are rejected outright.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Next()
			return
		}

		author, err := s.DB.ReadAuthorByUsername(username)
		if errors.Is(err, db.ErrNotFound) {
			unauthorized(c)
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		// Shadow authors hold no verifiable credential
		if author.PasswordHash == domain.UnusablePassword {
			unauthorized(c)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(author.PasswordHash), []byte(password)) != nil {
			unauthorized(c)
			return
		}
		if !author.IsApproved.Bool() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "author awaiting approval"})
			return
		}

		c.Set(viewerKey, author)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="chirpnet"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
}

// RequireAuth aborts anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if viewerFrom(c) == nil {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireStaff aborts requests not made by a staff author.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := viewerFrom(c)
		if viewer == nil {
			unauthorized(c)
			return
		}
		if !viewer.IsStaff.Bool() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

// viewerFrom returns the authenticated author, or nil for anonymous.
func viewerFrom(c *gin.Context) *domain.Author {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	return v.(*domain.Author)
}
