package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"message":"internal error"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), DemoUser(DemoUserID))
	var seen string
	var uid uint64
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		uid = c.GetUint64(UserIDKey)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 26 || w.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected a generated ulid, got %q / %q", seen, w.Header().Get(RequestIDHeader))
	}
	if uid != DemoUserID {
		t.Fatalf("expected demo user, got %d", uid)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "abc-123" {
		t.Fatalf("expected caller id to be kept, got %q", seen)
	}
}
