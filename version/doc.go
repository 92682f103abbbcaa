// Package version reports the build of the smokedb binary.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/smokedb/version.Version=0.4.0 \
//	    -X github.com/kbukum/smokedb/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/smokedb
//
// Values left empty fall back to the VCS stamp the Go toolchain embeds.
package version
