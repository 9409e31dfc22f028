// Package version holds the build identity of the rbmap binary. The
// variables are overridden at link time with -ldflags "-X ...".
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the semantic version of the binary.
var Version = "dev"

// BinaryGitHash is the Git hash of the rbmap binary file which is executing.
var BinaryGitHash = "<unknown>"

// BuildDate is the UTC build timestamp.
var BuildDate = "<unknown>"

func init() {
	if BinaryGitHash != "<unknown>" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			BinaryGitHash = setting.Value
		}
	}
}

// String renders the full build identity on one line.
func String() string {
	return fmt.Sprintf("rbmap %s (commit %s, built %s)", Version, BinaryGitHash, BuildDate)
}
