package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicsync/access"
	"civicsync/models"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const secret = "test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

type resolverFunc func(ctx context.Context, id string) (access.Actor, error)

func (f resolverFunc) Actor(ctx context.Context, id string) (access.Actor, error) { return f(ctx, id) }

func knownCitizens(ctx context.Context, id string) (access.Actor, error) {
	switch id {
	case "citizen-1":
		return access.Citizen{ID: id}, nil
	case "flaky":
		return nil, models.Upstream("get account", errors.New("connection reset"))
	}
	return nil, models.Unauthorizedf("unknown account")
}

func protectedRouter(r ActorResolver, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(secret, r, discard)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ActorID(), "role": actor.Role()})
	})
	router.GET("/me", handlers...)
	return router
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := utils.GenerateToken(secret, userID, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	router := protectedRouter(resolverFunc(knownCitizens))

	cases := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"unknown account", "Bearer " + token(t, "ghost"), "", http.StatusUnauthorized},
		{"store down", "Bearer " + token(t, "flaky"), "", http.StatusBadGateway},
		{"bearer", "Bearer " + token(t, "citizen-1"), "", http.StatusOK},
		{"cookie", "", token(t, "citizen-1"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if tc.status == http.StatusOK && body["id"] != "citizen-1" {
				t.Errorf("body = %v", body)
			}
			if tc.status != http.StatusOK && body["kind"] == nil {
				t.Errorf("error body without kind: %v", body)
			}
		})
	}
}

// fakeCounter implements the three commands the limiter issues.
type fakeCounter struct {
	redis.Cmdable
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) TTL(_ context.Context, key string) *redis.DurationCmd {
	return redis.NewDurationResult(f.expires[key], nil)
}

func TestIssueRateLimiter(t *testing.T) {
	counter := newFakeCounter()
	router := protectedRouter(resolverFunc(knownCitizens), IssueRateLimiter(counter, "issue-limit", 2, discard))
	auth := "Bearer " + token(t, "citizen-1")

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if got := counter.expires["issue-limit:citizen-1"]; got != issueLimitWindow {
		t.Errorf("expiry = %v, want %v", got, issueLimitWindow)
	}
}

func TestIssueRateLimiterRedisDown(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("dial tcp: connection refused")
	router := protectedRouter(resolverFunc(knownCitizens), IssueRateLimiter(counter, "issue-limit", 2, discard))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "citizen-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestIssueRateLimiterRequiresAuth(t *testing.T) {
	router := gin.New()
	router.POST("/issues", IssueRateLimiter(newFakeCounter(), "issue-limit", 2, discard), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/issues", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
