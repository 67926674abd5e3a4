package build

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0
)

var (
	// Commit is set at link time with -ldflags "-X ...build.Commit=...".
	Commit string

	// RawTags lists the build tags, comma separated, set at link time.
	RawTags string

	// CommitHash and GoVersion are read from the binary's build info.
	CommitHash string
	GoVersion  string
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	GoVersion = info.GoVersion
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			CommitHash = s.Value
		}
	}
}

// Version returns the semantic version of the build.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}

// Tags returns the build tags.
func Tags() []string {
	if RawTags == "" {
		return nil
	}

	return strings.Split(RawTags, ",")
}
