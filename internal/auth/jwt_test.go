package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moneihq/monei-voice/domain"
)

func TestGenerateAndValidateServiceToken(t *testing.T) {
	a, err := NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}

	token, err := a.GenerateServiceToken("ops-cli")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Service != "ops-cli" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewAuthenticator("secret-one", time.Hour)
	verifier, _ := NewAuthenticator("secret-two", time.Hour)

	token, err := issuer.GenerateServiceToken("ops-cli")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}
	if _, err := verifier.ValidateToken(token); !domain.IsKind(err, domain.KindAuthenticationFailed) {
		t.Errorf("expected authentication_failed, got %v", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	a, _ := NewAuthenticator("test-secret", -time.Minute)
	token, err := a.GenerateServiceToken("ops-cli")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}
	if _, err := a.ValidateToken(token); !domain.IsKind(err, domain.KindAuthenticationFailed) {
		t.Errorf("expected authentication_failed for expired token, got %v", err)
	}
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	a, _ := NewAuthenticator("test-secret", time.Hour)
	e := echo.New()
	handler := a.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	run := func(authorization string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/voices/refresh", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		err := handler(e.NewContext(req, rec))
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				return he.Code
			}
			t.Fatalf("handler failed: %v", err)
		}
		return rec.Code
	}

	if code := run(""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", code)
	}
	if code := run("Bearer not-a-token"); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", code)
	}

	token, _ := a.GenerateServiceToken("ops-cli")
	if code := run("Bearer " + token); code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d", code)
	}
}
