package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	require.NotEmpty(t, info.GoVersion)
	require.NotEmpty(t, info.CUESDKVersion)
	require.NotEmpty(t, info.EsbuildVersion)
}

func TestApplyBuildInfo(t *testing.T) {
	info := Info{Version: Version, CUESDKVersion: "unknown", EsbuildVersion: "unknown"}
	applyBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/opmodel/wbundle", Version: "v1.2.0"},
		Deps: []*debug.Module{
			{Path: "cuelang.org/go", Version: "v0.15.4"},
			{Path: "github.com/evanw/esbuild", Version: "v0.25.0", Replace: &debug.Module{Path: "github.com/evanw/esbuild", Version: "v0.25.10"}},
			{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
		},
	})

	assert.Equal(t, "v0.15.4", info.CUESDKVersion)
	assert.Equal(t, "v0.25.10", info.EsbuildVersion)
	assert.Equal(t, "v1.2.0", info.Version)
}

func TestApplyBuildInfo_DevelBuild(t *testing.T) {
	info := Info{Version: Version}
	applyBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, Version, info.Version)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:        "v1.0.0",
		GitCommit:      "abc123",
		BuildDate:      "2026-01-29",
		GoVersion:      "go1.25",
		CUESDKVersion:  "v0.15.4",
		EsbuildVersion: "v0.25.10",
	}

	str := info.String()

	assert.Contains(t, str, "wbundle version v1.0.0")
	assert.Contains(t, str, "abc123")
	assert.Contains(t, str, "go1.25")
	assert.Contains(t, str, "v0.15.4")
	assert.Contains(t, str, "v0.25.10")
}
