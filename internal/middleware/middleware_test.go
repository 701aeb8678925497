package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sanjeevika-api/internal/account"
	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/store/memory"
)

func newGate(t *testing.T) (echo.MiddlewareFunc, *auth.TokenService) {
	t.Helper()
	accounts := account.New(memory.New())
	if _, err := accounts.Register(context.Background(), "a@x.com", "A", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return Auth(tokens, accounts), tokens
}

func TestAuth(t *testing.T) {
	gate, tokens := newGate(t)

	good, _ := tokens.Issue("u1", "a@x.com")
	ghost, _ := tokens.Issue("u2", "ghost@x.com")
	past := auth.NewTokenService("test-secret", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _ := past.Issue("u1", "a@x.com")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"ok", good, nil},
		{"missing", "", auth.ErrMissingToken},
		{"garbage", "abc.def.ghi", auth.ErrMalformed},
		{"expired", expired, auth.ErrExpired},
		{"unknown user", ghost, auth.ErrUnknownIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set(auth.Header, tt.token)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			called := false
			err := gate(func(c echo.Context) error {
				called = true
				u, ok := Identity(c)
				if !ok || u.Email != "a@x.com" {
					t.Errorf("identity: %+v", u)
				}
				return nil
			})(c)

			if tt.want == nil {
				if err != nil || !called {
					t.Fatalf("expected pass, err=%v called=%v", err, called)
				}
				return
			}
			if called {
				t.Fatal("handler ran on rejected request")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mw := RateLimit(NewRateLimiter(ctx, 0.001, 2), zerolog.Nop())
	e := echo.New()
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	do := func(ip string) error {
		req := httptest.NewRequest(http.MethodPost, "/signin", nil)
		req.RemoteAddr = ip + ":1234"
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	for i := 0; i < 2; i++ {
		if err := do("10.0.0.1"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := do("10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// separate bucket per client
	if err := do("10.0.0.2"); err != nil {
		t.Errorf("other client: %v", err)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	e := echo.New()
	h := RateLimit(brokenLimiter{}, zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/signup", nil), httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Errorf("expected request through, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1)
	rl.Allow(ctx, "a")
	rl.clients["a"].seen = time.Now().Add(-time.Hour)
	rl.Allow(ctx, "b")

	rl.sweep(3 * time.Minute)
	if _, ok := rl.clients["a"]; ok {
		t.Error("idle client not swept")
	}
	if _, ok := rl.clients["b"]; !ok {
		t.Error("active client swept")
	}
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	key := "test-" + time.Now().Format(time.RFC3339Nano)
	rl := NewRedisLimiter(rdb, 2, time.Minute, "rl-test")
	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, key)
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key); ok {
		t.Error("third request within window allowed")
	}
}

func TestRecovery(t *testing.T) {
	e := echo.New()
	h := Recovery(zerolog.Nop())(func(c echo.Context) error { panic("boom") })
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}
