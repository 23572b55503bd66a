package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cuckooeats/backoffice/internal/auth"
	"github.com/cuckooeats/backoffice/internal/enum"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, err := runCommand(t, "token", "issue",
		"--user", "0b7c5f6e-4d8e-4a51-9a0e-1f4f3c2b1a00",
		"--role", enum.UserRoleAdministrador,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := auth.ValidateToken("cli-test-secret", strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID.String() != "0b7c5f6e-4d8e-4a51-9a0e-1f4f3c2b1a00" {
		t.Errorf("unexpected user id %s", claims.UserID)
	}
	if claims.Role != enum.UserRoleAdministrador {
		t.Errorf("expected role %s, got %s", enum.UserRoleAdministrador, claims.Role)
	}
}

func TestTokenIssueRejectsInput(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	tests := []struct {
		name string
		args []string
	}{
		{"customer role", []string{"token", "issue", "--role", enum.UserRoleCliente}},
		{"bad user id", []string{"token", "issue", "--user", "not-a-uuid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCommand(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOrdersPurgeRequiresConfirmation(t *testing.T) {
	_, err := runCommand(t, "orders", "purge")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation error, got %v", err)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"seed"},
		{"orders", "purge"},
		{"orders", "generate"},
		{"feed", "relay"},
		{"token", "issue"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Errorf("command %v not registered", path)
		}
	}
}
