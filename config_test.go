package xantippe

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsToCurrentDir(t *testing.T) {
	os.Unsetenv("XANTIPPE_DATA_DIR")
	cfg := LoadConfig("")
	assert.Equal(t, ".", cfg.Path)
	assert.Equal(t, ChecksumXXH3, cfg.Checksum)
}

func TestLoadConfigExplicitOverrideWins(t *testing.T) {
	os.Setenv("XANTIPPE_DATA_DIR", "/from/env")
	defer os.Unsetenv("XANTIPPE_DATA_DIR")

	cfg := LoadConfig("/explicit/path")
	assert.Equal(t, "/explicit/path", cfg.Path)
}

func TestLoadConfigReadsEnvVarWhenNoOverride(t *testing.T) {
	os.Setenv("XANTIPPE_DATA_DIR", "/from/env")
	defer os.Unsetenv("XANTIPPE_DATA_DIR")

	cfg := LoadConfig("")
	assert.Equal(t, "/from/env", cfg.Path)
}

func TestLoadConfigTrimsTrailingSlash(t *testing.T) {
	cfg := LoadConfig("/data/")
	assert.Equal(t, "/data", cfg.Path)
}
