package tlscert

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// DefaultDebounce is the minimum gap between two reloads.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoCertificate is returned when no key pair has been loaded yet.
var ErrNoCertificate = errors.New("tlscert: no certificate loaded")

// Reloader holds the current key pair and swaps it when the files change.
type Reloader struct {
	certFile string
	keyFile  string
	log      logger.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate

	reloadMu   sync.Mutex
	lastReload time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(log logger.Logger) Option {
	return func(r *Reloader) {
		if log != nil {
			r.log = log
		}
	}
}

// WithDebounce sets the minimum gap between reloads.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// New loads the key pair once and returns a Reloader serving it.
func New(certFile, keyFile string, opts ...Option) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		log:      logger.Nop(),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlscert: initial load: %w", err)
	}
	return r, nil
}

// TLSConfig returns a server configuration that always presents the
// current certificate.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil {
		return nil, ErrNoCertificate
	}
	return r.cert, nil
}

// Reload reads the key pair from disk. A broken pair leaves the previous
// certificate in place.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	fields := []any{"cert_file", r.certFile}
	if cert.Leaf != nil {
		fields = append(fields, "not_after", cert.Leaf.NotAfter)
	}
	r.log.Info("certificate loaded", fields...)
	return nil
}

// Start watches the directories holding the key pair and blocks until
// Stop is called. Directories are watched rather than files so that
// atomic renames by renewal tools are seen.
func (r *Reloader) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlscert: create watcher: %w", err)
	}
	defer fw.Close()

	certDir := filepath.Dir(r.certFile)
	keyDir := filepath.Dir(r.keyFile)
	if err := fw.Add(certDir); err != nil {
		return fmt.Errorf("tlscert: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := fw.Add(keyDir); err != nil {
			return fmt.Errorf("tlscert: watch %s: %w", keyDir, err)
		}
	}

	r.log.Info("certificate watcher started", "cert_file", r.certFile, "key_file", r.keyFile)

	certBase := filepath.Base(r.certFile)
	keyBase := filepath.Base(r.keyFile)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if name != certBase && name != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			r.log.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			if err := r.debouncedReload(); err != nil {
				r.log.Error("certificate reload failed", "error", err, "cert_file", r.certFile)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			r.log.Error("certificate watcher error", "error", err)

		case <-r.done:
			return nil
		}
	}
}

// StartAsync runs Start in a goroutine.
func (r *Reloader) StartAsync() {
	go func() {
		if err := r.Start(); err != nil {
			r.log.Error("certificate watcher stopped", "error", err)
		}
	}()
}

// Stop ends watching. It is safe to call more than once.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Reloader) debouncedReload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	now := time.Now()
	if now.Sub(r.lastReload) < r.debounce {
		return nil
	}
	r.lastReload = now

	// Let the writer finish the second file of the pair.
	time.Sleep(100 * time.Millisecond)
	return r.Reload()
}
