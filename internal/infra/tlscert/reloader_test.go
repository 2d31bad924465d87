package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePair(t *testing.T, certFile, keyFile string, serial int64) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: "wwwhisper.test"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	// Key first, so a watcher never pairs a new cert with an old key.
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		t.Fatal(err)
	}
}

func pairPaths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key")
}

func serialOf(t *testing.T, r *Reloader) int64 {
	t.Helper()
	cert, err := r.GetCertificate(nil)
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("certificate leaf not parsed")
	}
	return cert.Leaf.SerialNumber.Int64()
}

func TestNew(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 1)

	r, err := New(certFile, keyFile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Stop()

	if got := serialOf(t, r); got != 1 {
		t.Errorf("serial = %d, want 1", got)
	}
}

func TestNew_Errors(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	_ = os.WriteFile(certFile, []byte("invalid"), 0o644)
	_ = os.WriteFile(keyFile, []byte("invalid"), 0o600)

	tests := []struct {
		name      string
		cert, key string
	}{
		{"invalid pem", certFile, keyFile},
		{"missing files", "/nonexistent/tls.crt", "/nonexistent/tls.key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cert, tt.key); err == nil {
				t.Fatal("New() should fail")
			}
		})
	}
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 7)

	r, err := New(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(certFile, []byte("garbage"), 0o644)

	if err := r.Reload(); err == nil {
		t.Fatal("Reload() of a broken pair should fail")
	}
	if got := serialOf(t, r); got != 7 {
		t.Errorf("serial after failed reload = %d, want 7", got)
	}
}

func TestOptions(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 1)

	r, err := New(certFile, keyFile, WithDebounce(200*time.Millisecond), WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	if r.debounce != 200*time.Millisecond {
		t.Errorf("debounce = %v", r.debounce)
	}
	if r.log == nil {
		t.Error("WithLogger(nil) should keep the default logger")
	}
}

func TestStartStop(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 1)

	r, err := New(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Start() }()
	time.Sleep(50 * time.Millisecond)

	r.Stop()
	r.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestReloadOnChange(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 1)

	r, err := New(certFile, keyFile, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	r.StartAsync()
	defer r.Stop()
	time.Sleep(100 * time.Millisecond)

	writePair(t, certFile, keyFile, 2)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if serialOf(t, r) == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	// A late event may still be debounced away; force the last state.
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := serialOf(t, r); got != 2 {
		t.Errorf("serial = %d, want 2", got)
	}
}

func TestTLSConfig(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, 3)

	r, err := New(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}
	cfg := r.TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}
	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
}

func TestGetCertificate_Empty(t *testing.T) {
	r := &Reloader{}
	if _, err := r.GetCertificate(nil); err != ErrNoCertificate {
		t.Errorf("GetCertificate() error = %v, want ErrNoCertificate", err)
	}
}
