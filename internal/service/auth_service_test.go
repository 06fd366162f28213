package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stemsi/jlpt-proctor/internal/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims(sub string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "authenticated",
	}
}

func TestValidateToken(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: testSecret, JWTAudience: "authenticated"})

	proctor := validClaims("user-2")
	proctor.AppMetadata.Role = RoleProctor

	expired := validClaims("user-3")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAud := validClaims("user-4")
	wrongAud.Audience = jwt.ClaimStrings{"anon"}

	tests := []struct {
		name    string
		token   string
		wantErr bool
		user    string
		proctor bool
	}{
		{"valid", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-1")), false, "user-1", false},
		{"proctor", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), proctor), false, "user-2", true},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), true, "", false},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud), true, "", false},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("user-1")), true, "", false},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("user-1")), true, "", false},
		{"missing subject", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")), true, "", false},
		{"garbage", "not-a-token", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := auth.ValidateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if claims.UserID() != tt.user || claims.IsProctor() != tt.proctor {
				t.Errorf("claims = %s proctor=%v", claims.UserID(), claims.IsProctor())
			}
		})
	}
}

func TestValidateTokenMissingSubjectIsInvalid(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: testSecret})
	_, err := auth.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")))
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
