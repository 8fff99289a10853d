package version

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown", "unknown") })

	SetVersionInfo("1.2.0", "abc123", "2026-10-01T00:00:00Z", "goreleaser")
	info := Get()

	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "2026-10-01T00:00:00Z", info.Date)
	assert.Equal(t, "goreleaser", info.BuiltBy)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "1.2.0 (commit: abc123, date: 2026-10-01T00:00:00Z)", info.String())
}

func TestWrite(t *testing.T) {
	info := Info{Version: "1.2.0", Commit: "abc123", Date: "today", BuiltBy: "ci", GoVersion: "go1.23.8", Platform: "linux/amd64"}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, write(&buf, info, "text"))

		assert.Equal(t,
			"db-initializer version 1.2.0\n  commit: abc123\n  built at: today\n  built by: ci\n  go: go1.23.8 linux/amd64\n",
			buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, write(&buf, info, "json"))

		var decoded Info
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, info, decoded)
	})

	t.Run("unknown format", func(t *testing.T) {
		require.Error(t, write(&bytes.Buffer{}, info, "xml"))
	})
}
