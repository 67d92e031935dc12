package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"portfolio-api-go/internal/model"
)

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	e := echo.New()

	// 1 request per second, burst of 1: a quick second request should be rejected.
	e.Use(RateLimit(1))
	e.GET("/projects", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/projects", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	var limited *httptest.ResponseRecorder
	for range 10 {
		req = httptest.NewRequest(http.MethodGet, "/projects", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
			break
		}
	}
	if limited == nil {
		t.Fatal("expected at least one 429 response after burst, got none")
	}

	var body model.ErrorEnvelope
	if err := json.Unmarshal(limited.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != http.StatusTooManyRequests || body.Error == "" {
		t.Errorf("body = %+v, want 429 envelope", body)
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(1))
	e.GET("/space", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, ip := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		req := httptest.NewRequest(http.MethodGet, "/space", http.NoBody)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("first request from %s: status = %d, want %d", ip, rec.Code, http.StatusOK)
		}
	}
}
