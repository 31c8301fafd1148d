// Package version reports the kalikit build. Release builds set it with
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/kalikit/version.Version=1.0.0 \
//	    -X github.com/kbukum/kalikit/version.Commit=$(git rev-parse --short HEAD)" ./cmd/kalikit
package version
