package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stemsi/jlpt-proctor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	claims *service.Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*service.Claims, error) { return s.claims, s.err }

func userClaims(sub, role string) *service.Claims {
	c := &service.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
	c.AppMetadata.Role = role
	return c
}

func TestRequireJWT(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		v      stubValidator
		want   int
		body   string
	}{
		{"missing token", "", "", stubValidator{}, http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"bearer header", "Bearer abc", "", stubValidator{claims: userClaims("u1", "")}, http.StatusOK, "u1"},
		{"query fallback", "", "abc", stubValidator{claims: userClaims("u2", "")}, http.StatusOK, "u2"},
		{"expired", "Bearer abc", "", stubValidator{err: jwt.ErrTokenExpired}, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"invalid", "Bearer abc", "", stubValidator{err: jwt.ErrSignatureInvalid}, http.StatusUnauthorized, "TOKEN_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", RequireJWT(tt.v), func(c *gin.Context) { c.String(http.StatusOK, GetClaims(c).UserID()) })

			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want || !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("got %d %s, want %d containing %s", w.Code, w.Body.String(), tt.want, tt.body)
			}
		})
	}
}

func TestRequireProctor(t *testing.T) {
	for role, want := range map[string]int{service.RoleProctor: http.StatusOK, "": http.StatusForbidden} {
		r := gin.New()
		r.GET("/", RequireJWT(stubValidator{claims: userClaims("u", role)}), RequireProctor(),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("role %q: status = %d, want %d", role, w.Code, want)
		}
	}
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Unix(0, 0)
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 2, interval: time.Minute, now: func() time.Time { return now }}

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b") {
		t.Error("other visitors are independent")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Error("bucket did not refill")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("stale visitors = %d, want 0", len(rl.visitors))
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("日本語能力試験 ", 400)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusCreated, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q, want br", w.Header().Get("Content-Encoding"))
	}
	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil || string(decoded) != large {
		t.Fatalf("decoded body mismatch (err %v)", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" || w.Code != http.StatusCreated {
		t.Errorf("small body: code=%d encoding=%q body=%q", w.Code, w.Header().Get("Content-Encoding"), w.Body.String())
	}
}
