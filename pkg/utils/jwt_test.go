package utils

import (
	"testing"
	"time"

	"doc-tracker/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

func setupJWTConfig(t *testing.T) {
	if err := config.InitTest(); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	setupJWTConfig(t)

	token, err := GenerateToken(1)
	if err != nil {
		t.Errorf("GenerateToken() error = %v", err)
		return
	}
	if token == "" {
		t.Error("GenerateToken() returned empty token")
	}
}

func TestParseToken(t *testing.T) {
	setupJWTConfig(t)

	tests := []struct {
		name    string
		ownerID uint
		wantErr bool
	}{
		{
			name:    "Valid token",
			ownerID: 1,
			wantErr: false,
		},
		{
			name:    "Another valid token",
			ownerID: 2,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 首先生成token
			token, err := GenerateToken(tt.ownerID)
			if err != nil {
				t.Fatalf("Failed to generate token: %v", err)
			}

			// 解析token
			claims, err := ParseToken(token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims.OwnerID != tt.ownerID {
				t.Errorf("ParseToken() got OwnerID = %v, want %v", claims.OwnerID, tt.ownerID)
			}
		})
	}
}

func TestParseExpiredToken(t *testing.T) {
	setupJWTConfig(t)

	claims := Claims{
		OwnerID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken() expected error for expired token")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	setupJWTConfig(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{OwnerID: 1}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken() expected error for token signed with another secret")
	}
}
