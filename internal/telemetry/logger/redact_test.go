package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive_TokenValue(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	tok := "wwtk_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq"
	l.Info("cookie parsed", "value", tok)

	if got := decode(t, buf)["value"]; got != "wwtk_ABC...opq" {
		t.Errorf("token mask = %v, want wwtk_ABC...opq", got)
	}
}

func TestRedactSensitive_KeyNames(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"password", "hunter22", redactedValue},
		{"csrf_token", "abc", redactedValue},
		{"storage_dsn", "postgres://u:p@h/db", redactedValue},
		{"Set-Cookie", "wwwhisper-sessionid=x", redactedValue},
		{"password", "", ""},
		{"email", "alice@example.com", "alice@example.com"},
		{"path", "/docs/readme", "/docs/readme"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			l, buf := newBufferLogger(t, "info", "json")
			l.Info("m", tt.key, tt.value)
			if got := decode(t, buf)[tt.key]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	l.Info("login", slog.Group("form", slog.String("email", "a@example.com"), slog.String("password", "hunter22")))

	form, ok := decode(t, buf)["form"].(map[string]any)
	if !ok {
		t.Fatal("expected form group in log")
	}
	if form["password"] != redactedValue || form["email"] != "a@example.com" {
		t.Errorf("group not redacted: %v", form)
	}
}

func TestRedactString(t *testing.T) {
	if got := RedactString("wwtk_abcdefghijkl"); got != "wwtk_abc...jkl" {
		t.Errorf("RedactString() = %q", got)
	}
	if got := RedactString("wwtk_ab"); got != "wwtk_***" {
		t.Errorf("RedactString(short) = %q", got)
	}
	if got := RedactString("/plain/path"); got != "/plain/path" {
		t.Errorf("RedactString(plain) = %q", got)
	}
}
