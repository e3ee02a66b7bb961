package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository/memory"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func TestLogin(t *testing.T) {
	store := memory.New()
	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := store.AddUser(domain.User{Username: "xavi", PasswordHash: hash, Role: "Agente"})
	store.AddUser(domain.User{Username: "bot", PasswordHash: hash, Role: "robot"})

	svc := NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5}, store.Users(), nil)

	result, err := svc.Login(context.Background(), " xavi ", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.User.ID != user.ID || result.User.Role != domain.RoleAgent {
		t.Fatalf("user = %+v", result.User)
	}
	claims, err := svc.TokenManager().ParseToken(result.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleAgent {
		t.Fatalf("claims = %+v", claims)
	}

	tests := []struct {
		name     string
		username string
		password string
		code     string
	}{
		{"wrong password", "xavi", "nope", apperrors.CodeUnauthorized},
		{"unknown user", "nadie", "s3cret", apperrors.CodeUnauthorized},
		{"empty password", "xavi", "", apperrors.CodeValidation},
		{"non-interactive role", "bot", "s3cret", apperrors.CodeForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.username, tc.password)
			wantCode(t, err, tc.code)
		})
	}
}
