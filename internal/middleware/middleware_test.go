package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/scoreapp/score/internal/auth"
)

func newApp(am *AuthMiddleware, rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(am.Authenticate())
	app.Post("/upload", rl.UploadLimit(1), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})
	return app
}

func TestAuth_Disabled(t *testing.T) {
	app := newApp(NewAuthMiddleware(nil), NewRateLimiter(nil, nil))

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuth_Enabled(t *testing.T) {
	verifier := auth.NewHMACVerifier("secret")
	app := newApp(NewAuthMiddleware(verifier), NewRateLimiter(nil, nil))

	token, err := verifier.Sign("user-1")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	forged, _ := auth.NewHMACVerifier("other").Sign("user-1")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"bad scheme", "Basic abc", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, fiber.StatusUnauthorized},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/upload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestRateLimiter_NilRedisPassesThrough(t *testing.T) {
	app := newApp(NewAuthMiddleware(nil), NewRateLimiter(nil, nil))

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
}
