package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cuckooeats/backoffice/internal/auth"
	"github.com/cuckooeats/backoffice/internal/enum"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()

	token, err := auth.GenerateToken(secret, userID, enum.UserRoleOperador, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.Role != enum.UserRoleOperador {
		t.Errorf("role: got %v, want %v", claims.Role, enum.UserRoleOperador)
	}
	if !claims.IsStaff() {
		t.Error("operador should be staff")
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), enum.UserRoleOperador, 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestGenerateTokenDefaultTTL(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.New(), enum.UserRoleAdministrador, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	// A non-positive ttl falls back to the default, so the token is valid.
	if _, err := auth.ValidateToken("secret", token); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestClientIsNotStaff(t *testing.T) {
	c := &auth.Claims{Role: enum.UserRoleCliente}
	if c.IsStaff() {
		t.Error("cliente should not be staff")
	}
}
