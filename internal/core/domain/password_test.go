package domain

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	SetPasswordParams(PasswordParams{Memory: 1024, Time: 1, Parallelism: 1})
	os.Exit(m.Run())
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected PHC prefix: %s", hash)
	}
	if !VerifyPassword("correct horse battery", hash) {
		t.Error("VerifyPassword() rejected the right password")
	}
	if VerifyPassword("correct horse batterx", hash) {
		t.Error("VerifyPassword() accepted a wrong password")
	}
}

func TestHashPassword_SaltIsPerHash(t *testing.T) {
	h1, _ := HashPassword("same password")
	h2, _ := HashPassword("same password")
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		if VerifyPassword("anything", h) {
			t.Errorf("VerifyPassword() accepted malformed hash %q", h)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		min      int
		wantErr  bool
	}{
		{"long enough", "abcdefgh", 8, false},
		{"too short", "abc", 8, true},
		{"default minimum", "abcdefg", 0, true},
		{"blank", "          ", 8, true},
		{"multibyte counted as runes", "ąęśćżźńół", 8, false},
		{"too long", strings.Repeat("x", MaxPasswordBytes+1), 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.min)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrWeakPassword) {
				t.Errorf("error = %v, want ErrWeakPassword", err)
			}
		})
	}
}

func TestBurnPasswordCheck(t *testing.T) {
	// Must not panic and must work repeatedly.
	BurnPasswordCheck("x")
	BurnPasswordCheck("y")
}

func TestBurnPasswordCheck_ConcurrentParamChange(t *testing.T) {
	cheap := PasswordParams{Memory: 1024, Time: 1, Parallelism: 1}
	other := PasswordParams{Memory: 2048, Time: 1, Parallelism: 1}
	t.Cleanup(func() { SetPasswordParams(cheap) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				BurnPasswordCheck("guess")
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if (i+j)%2 == 0 {
					SetPasswordParams(cheap)
				} else {
					SetPasswordParams(other)
				}
			}
		}(i)
	}
	wg.Wait()

	SetPasswordParams(other)
	if h := dummyPasswordHash(); !strings.Contains(h, "$m=2048,t=1,p=1$") {
		t.Errorf("dummy hash %q does not use the current parameters", h)
	}
	if !VerifyPassword(dummyPassword, dummyPasswordHash()) {
		t.Error("dummy hash does not verify")
	}
}
