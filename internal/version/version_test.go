package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestGetStamped(t *testing.T) {
	stamp(t, "v1.2.3", "0123456789abcdef", "2024-05-01T10:00:00Z")

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestShort(t *testing.T) {
	stamp(t, "v1.2.3", "0123456789abcdef", "unknown")
	assert.Equal(t, "v1.2.3 (0123456)", Short())

	stamp(t, "dev", "0123456789abcdef", "unknown")
	assert.Equal(t, "dev-0123456", Short())
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.0.0", GitCommit: "unknown", GoVersion: "go1.24", Platform: "linux/amd64"}
	assert.Equal(t, "Version: v1.0.0\nGo: go1.24\nPlatform: linux/amd64", info.String())
}
