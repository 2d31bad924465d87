// Package buildinfo exposes the version stamped into wwwhisper binaries.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/nguyendn/wwwhisper/internal/infra/buildinfo.Version=v1.2.0 \
//	  -X github.com/nguyendn/wwwhisper/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Fields left unset fall back to what the Go toolchain recorded in the
// binary (module version, vcs revision and time, compiler version).
package buildinfo
