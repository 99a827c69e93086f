// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/longkey1/chatai/internal/version.Version=..."
var (
	Version   = "dev"
	CommitSHA = ""
	BuildTime = ""
)

// Short returns the version number.
func Short() string {
	return Version
}

// Info returns the full build information.
func Info() string {
	commit, built := CommitSHA, BuildTime
	if commit == "" || built == "" {
		c, b := fromBuildInfo()
		if commit == "" {
			commit = c
		}
		if built == "" {
			built = b
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("chatai %s\n  commit:     %s\n  built:      %s\n  go version: %s\n  platform:   %s/%s",
		Version, commit, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with every request to the chat server.
func UserAgent() string {
	return "chatai/" + Version
}

func fromBuildInfo() (commit, built string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.time":
			built = s.Value
		}
	}
	return commit, built
}
