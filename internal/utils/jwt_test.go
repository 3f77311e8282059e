package utils

import (
	"testing"

	"github.com/MrZacked/Healem/internal/config"
	"github.com/MrZacked/Healem/internal/models"
)

func testJWTConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret-for-tests",
		JWTRefreshSecret:          "refresh-secret-for-tests",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
	}
}

func testUser() *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: "user-1"},
		Email:     "sarah.chen@clinic.test",
		Role:      models.RoleDoctor,
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := testJWTConfig()

	access, refresh, err := GenerateTokens(testUser(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty tokens")
	}
	if access == refresh {
		t.Error("access and refresh tokens must differ")
	}

	claims, err := ValidateToken(access, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("access token did not validate: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.Role != models.RoleDoctor {
		t.Errorf("Role = %s, want doctor", claims.Role)
	}

	if _, err := ValidateToken(refresh, cfg.JWTRefreshSecret); err != nil {
		t.Errorf("refresh token did not validate: %v", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	access, _, err := GenerateTokens(testUser(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ValidateToken(access, "some-other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
	// An access token never validates against the refresh secret.
	if _, err := ValidateToken(access, cfg.JWTRefreshSecret); err == nil {
		t.Error("expected error for cross-secret validation")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.JWTExpirationMinutes = -5

	access, _, err := GenerateTokens(testUser(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ValidateToken(access, cfg.JWTSecret); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token", "secret"); err == nil {
		t.Error("expected error for malformed token")
	}
}
