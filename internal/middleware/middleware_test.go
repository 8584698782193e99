package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-exchange/internal/config"
	"github.com/iliyamo/ticket-exchange/internal/model"
	"github.com/iliyamo/ticket-exchange/internal/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return srv, rdb
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c), "admin": IsAdmin(c)})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth("secret"))
	e.GET("/admin", whoami, JWTAuth("secret"), RequireRole(model.RoleAdmin))

	user, err := utils.NewAccessToken("secret", 5, model.RoleUser, 5)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken("secret", 9, model.RoleAdmin, 5)
	require.NoError(t, err)
	forged, err := utils.NewAccessToken("other", 9, model.RoleAdmin, 5)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/me", user.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5,"role":"USER","admin":false}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", forged.Token).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", user.Token).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", admin.Token).Code)
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "user",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/matches", whoami, JWTAuth("secret"), NewTokenBucket(cfg, rdb, zerolog.Nop()))

	alice, err := utils.NewAccessToken("secret", 1, model.RoleUser, 5)
	require.NoError(t, err)
	bob, err := utils.NewAccessToken("secret", 2, model.RoleUser, 5)
	require.NoError(t, err)

	first := serve(e, http.MethodPost, "/matches", alice.Token)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/matches", alice.Token).Code)

	blocked := serve(e, http.MethodPost, "/matches", alice.Token)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/matches", bob.Token).Code, "buckets are per user")
}

func TestTokenBucketFailsOpen(t *testing.T) {
	srv, rdb := newRedis(t)
	srv.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
	e := echo.New()
	e.POST("/x", whoami, NewTokenBucket(cfg, rdb, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	srv, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	calls := map[string]int{}
	e := echo.New()
	e.GET("/games/:id/tickets", func(c echo.Context) error {
		calls[c.Param("id")]++
		return c.JSON(http.StatusOK, echo.Map{"game": c.Param("id"), "calls": calls[c.Param("id")]})
	}, NewRedisCache(cfg, rdb, zerolog.Nop()))

	miss := serve(e, http.MethodGet, "/games/1/tickets", "")
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := serve(e, http.MethodGet, "/games/1/tickets", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, miss.Header().Get(echo.HeaderContentType), hit.Header().Get(echo.HeaderContentType))

	other := serve(e, http.MethodGet, "/games/2/tickets", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"), "concrete path is part of the key")
	assert.Equal(t, 1, calls["1"])

	srv.FastForward(2 * time.Minute)
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/games/1/tickets", "").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls["1"])
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache"}
	n := 0
	e := echo.New()
	e.GET("/games/:id/tickets", func(c echo.Context) error {
		n++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}, NewRedisCache(cfg, rdb, zerolog.Nop()))

	serve(e, http.MethodGet, "/games/3/tickets", "")
	serve(e, http.MethodGet, "/games/3/tickets", "")
	assert.Equal(t, 2, n)
}
