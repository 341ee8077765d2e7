package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	// Save original values
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2024-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	// Reset viper for clean test
	viper.Reset()
	defer viper.Reset()

	// Call setDefaults
	setDefaults()

	// Verify server defaults
	assert.Equal(t, "localhost", viper.GetString("server.host"))
	assert.Equal(t, 8080, viper.GetInt("server.port"))

	// Verify logging defaults
	assert.Equal(t, "info", viper.GetString("logging.level"))
	assert.Equal(t, "json", viper.GetString("logging.format"))

	// Verify workspace default
	assert.Equal(t, "./jobs", viper.GetString("jobs_root"))
}

func TestExitError(t *testing.T) {
	cause := errors.New("underlying failure")
	err := exitError(42, "Something broke", cause)

	var coded *codedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 42, coded.code)
	assert.Contains(t, err.Error(), "Something broke")
	assert.Contains(t, err.Error(), "underlying failure")
	assert.ErrorIs(t, err, cause)
}

func TestExitError_NoCause(t *testing.T) {
	err := exitError(7, "Plain message", nil)
	assert.Equal(t, "Plain message", err.Error())
}
