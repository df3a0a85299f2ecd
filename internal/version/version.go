// Package version provides version information for the wbundle CLI.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set via ldflags.
var (
	// Version is the CLI version (set via ldflags).
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Module paths whose versions are reported.
const (
	cueModule     = "cuelang.org/go"
	esbuildModule = "github.com/evanw/esbuild"
)

// Info contains version information.
type Info struct {
	// Version is the CLI version (set via ldflags).
	Version string `json:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"gitCommit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"buildDate"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"goVersion"`

	// CUESDKVersion is the CUE SDK version that validates config files.
	CUESDKVersion string `json:"cueSDKVersion"`

	// EsbuildVersion is the bundler library version.
	EsbuildVersion string `json:"esbuildVersion"`
}

// Get returns the current version information.
func Get() Info {
	info := Info{
		Version:        Version,
		GitCommit:      GitCommit,
		BuildDate:      BuildDate,
		GoVersion:      runtime.Version(),
		CUESDKVersion:  "unknown",
		EsbuildVersion: "unknown",
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}
	return info
}

// applyBuildInfo fills dependency versions from the embedded module list.
func applyBuildInfo(info *Info, bi *debug.BuildInfo) {
	for _, dep := range bi.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		switch dep.Path {
		case cueModule:
			info.CUESDKVersion = dep.Version
		case esbuildModule:
			info.EsbuildVersion = dep.Version
		}
	}
	if Version == "v0.0.0-dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("wbundle version %s\n  Commit:    %s\n  Built:     %s\n  Go:        %s\n  CUE SDK:   %s\n  esbuild:   %s",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.CUESDKVersion, i.EsbuildVersion)
}
