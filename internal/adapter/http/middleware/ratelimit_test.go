package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recharge-store/internal/adapter/http/middleware"
	redisStore "recharge-store/internal/adapter/storage/redis"
	"recharge-store/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(store middleware.RateLimitStore, actor *domain.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	if actor != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.CtxActor, *actor)
			c.Next()
		})
	}

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRateLimitStore(t *testing.T) *redisStore.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func doGet(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newRateLimitStore(t), nil)

	for i := 0; i < 3; i++ {
		w := doGet(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newRateLimitStore(t), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "").Code)
	}

	w := doGet(router, "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_CountsPerClientIP(t *testing.T) {
	router := setupRateLimitRouter(newRateLimitStore(t), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "10.0.0.1:1234").Code)
	}
	assert.Equal(t, 429, doGet(router, "10.0.0.1:1234").Code)
	assert.Equal(t, 200, doGet(router, "10.0.0.2:1234").Code)
}

func TestRateLimiter_CountsPerUser(t *testing.T) {
	store := newRateLimitStore(t)
	alice := &domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	bob := &domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	aliceRouter := setupRateLimitRouter(store, alice)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(aliceRouter, "10.0.0.1:1234").Code)
	}
	assert.Equal(t, 429, doGet(aliceRouter, "10.0.0.1:1234").Code)

	// Same IP, different account: independent counter.
	bobRouter := setupRateLimitRouter(store, bob)
	assert.Equal(t, 200, doGet(bobRouter, "10.0.0.1:1234").Code)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int64, time.Duration) (*redisStore.RateLimitResult, error) {
	return nil, errors.New("connection refused")
}

func TestRateLimiter_StoreFailureAllowsRequest(t *testing.T) {
	router := setupRateLimitRouter(failingStore{}, nil)

	w := doGet(router, "")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(100), rules[middleware.RuleGlobal].Limit)
	assert.Equal(t, int64(5), rules[middleware.RuleAuth].Limit)
	assert.Equal(t, int64(20), rules[middleware.RuleOrders].Limit)
	assert.Equal(t, int64(10), rules[middleware.RulePayments].Limit)
	for name, rule := range rules {
		assert.Equal(t, 15*time.Minute, rule.Window, name)
	}
}
