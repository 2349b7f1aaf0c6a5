// Package build holds version information injected with -ldflags:
//
//	go build -ldflags "-X github.com/haivivi/tonewave/cmd/tonewave/internal/build.Version=v0.1.0 \
//	  -X github.com/haivivi/tonewave/cmd/tonewave/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/haivivi/tonewave/cmd/tonewave/internal/build.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the version report of the binary.
type Info struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	Go       string `json:"go" yaml:"go"`
	Platform string `json:"platform" yaml:"platform"`
}

// Current returns the version report.
func Current() Info {
	return Info{
		Version:  Version,
		Commit:   Commit,
		Date:     Date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line version string.
func String() string {
	return fmt.Sprintf("tonewave %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
