package buildinfo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	info := Get("expopulse")

	assert.Equal(t, "expopulse", info.ServiceName)
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestStringFormat(t *testing.T) {
	assert.Equal(t, "dev (unknown, unknown)", String())

	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "v1.2.3"
	Commit = "abc123d"
	BuildTime = "2026-02-07T10:30:00Z"

	assert.Equal(t, "v1.2.3 (abc123d, 2026-02-07T10:30:00Z)", String())
}

func TestHandler(t *testing.T) {
	handler := Handler("expopulse")
	req := httptest.NewRequest(http.MethodGet, "/buildinfo", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var info Info
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, "expopulse", info.ServiceName)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
