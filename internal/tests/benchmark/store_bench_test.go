package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/storage"
)

// openStore opens one backend for benchmarking.
func openStore(b *testing.B, backend string) service.Store {
	b.Helper()
	cfg := storage.Config{Backend: backend, DataDir: b.TempDir()}
	if backend == storage.BackendBadger {
		cfg.Badger = storage.DefaultBadgerConfig(filepath.Join(cfg.DataDir, storage.DefaultBadgerDir))
		cfg.Badger.SyncWrites = false
	}
	s, err := storage.Open(context.Background(), cfg, nil)
	if err != nil {
		b.Fatalf("Open(%s): %v", backend, err)
	}
	b.Cleanup(func() { _ = s.Close() })
	return s
}

var benchBackends = []string{storage.BackendMemory, storage.BackendBadger, storage.BackendSQLite}

// BenchmarkStore_TouchSession measures the sliding-expiry update that every
// authorized request performs.
func BenchmarkStore_TouchSession(b *testing.B) {
	for _, backend := range benchBackends {
		b.Run(backend, func(b *testing.B) {
			s := openStore(b, backend)
			ctx := context.Background()
			now := time.Now()

			u := domain.NewUser("bench@example.com", "unused", false, now)
			if err := s.CreateUser(ctx, u); err != nil {
				b.Fatal(err)
			}
			hashes := make([]string, 100)
			for i := range hashes {
				_, hash, err := domain.GenerateToken()
				if err != nil {
					b.Fatal(err)
				}
				sess, err := domain.NewSession(u.ID, hash, now)
				if err != nil {
					b.Fatal(err)
				}
				if err := s.CreateSession(ctx, sess); err != nil {
					b.Fatal(err)
				}
				hashes[i] = hash
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := s.TouchSession(ctx, hashes[i%len(hashes)], time.Now(), time.Hour); err != nil {
					b.Fatalf("TouchSession: %v", err)
				}
			}
		})
	}
}

// BenchmarkStore_FindLocationsByPath measures the candidate lookup behind
// every authorization decision.
func BenchmarkStore_FindLocationsByPath(b *testing.B) {
	for _, backend := range benchBackends {
		b.Run(backend, func(b *testing.B) {
			s := openStore(b, backend)
			ctx := context.Background()
			for i := 0; i < 500; i++ {
				loc := domain.NewLocation(fmt.Sprintf("/area-%d/docs", i), i%2 == 0, time.Now())
				if err := s.CreateLocation(ctx, loc); err != nil {
					b.Fatal(err)
				}
			}
			candidates := domain.CandidatePaths("/area-42/docs/guide/index.html")

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				locs, err := s.FindLocationsByPath(ctx, candidates)
				if err != nil {
					b.Fatal(err)
				}
				if len(locs) != 1 {
					b.Fatalf("FindLocationsByPath() = %d entries, want 1", len(locs))
				}
			}
		})
	}
}
