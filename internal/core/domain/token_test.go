package domain

import (
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !ValidateTokenFormat(plaintext) {
		t.Errorf("plaintext %q fails format check", plaintext)
	}
	if !ValidateTokenHashFormat(hash) {
		t.Errorf("hash %q fails format check", hash)
	}
	if HashToken(plaintext) != hash {
		t.Error("HashToken(plaintext) should equal the returned hash")
	}
	if !VerifyTokenHash(plaintext, hash) {
		t.Error("VerifyTokenHash should accept the matching token")
	}

	other, _, _ := GenerateToken()
	if VerifyTokenHash(other, hash) {
		t.Error("VerifyTokenHash should reject another token")
	}
}

func TestValidateTokenFormat(t *testing.T) {
	good, _, _ := GenerateToken()
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"issued token", good, true},
		{"empty", "", false},
		{"wrong prefix", "xxtk_" + good[len(TokenPrefix):], false},
		{"too short", good[:len(good)-1], false},
		{"bad alphabet", TokenPrefix + strings.Repeat("*", TokenBodyLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateTokenFormat(tt.token); got != tt.want {
				t.Errorf("ValidateTokenFormat(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestMaskToken(t *testing.T) {
	tok, _, _ := GenerateToken()
	masked := MaskToken(tok)
	if !strings.HasPrefix(masked, TokenPrefix) || !strings.Contains(masked, "...") {
		t.Errorf("MaskToken() = %q", masked)
	}
	if strings.Contains(masked, tok[len(TokenPrefix)+3:len(tok)-3]) {
		t.Error("MaskToken() leaked the token body")
	}
	if MaskToken("short") != "***REDACTED***" {
		t.Error("MaskToken() should fully redact unknown values")
	}
}
