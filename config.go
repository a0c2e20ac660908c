// Database configuration. The only required setting is the data directory
// (§6); it can be supplied programmatically or via the XANTIPPE_DATA_DIR
// environment variable, following the bunbase/pkg pattern of a thin Viper
// wrapper with a typed Config struct.
package xantippe

import (
	"strings"

	"github.com/spf13/viper"
)

// ChecksumAlgorithm selects the hash used for content-store extent
// checksums (store.go), mirroring the teacher's three-way hash choice.
type ChecksumAlgorithm int

const (
	ChecksumXXH3 ChecksumAlgorithm = iota // default, fastest
	ChecksumBlake2b
	ChecksumNone
)

// Config holds the settings needed to open a database.
type Config struct {
	// Path is the data directory holding the four .dbx catalog files and
	// the content store's documents.dbx/contents.dbx.
	Path string

	// Checksum selects the algorithm used to verify stored content extents.
	Checksum ChecksumAlgorithm

	// ReadBuffer is a buffer size carried in the configuration (default
	// 64 KiB). No code in this package reads it; retrieval streams are not
	// buffered.
	ReadBuffer int

	// MaxRecordSize is a per-document size carried in the configuration
	// (default 16 MiB). No code in this package reads it; document size is
	// not limited during indexing or validation.
	MaxRecordSize int
}

// LoadConfig builds a Config from an explicit path override, the
// XANTIPPE_DATA_DIR environment variable, and defaults, in that priority
// order.
func LoadConfig(pathOverride string) Config {
	v := viper.New()
	v.SetEnvPrefix("XANTIPPE")
	v.AutomaticEnv()
	v.SetDefault("data_dir", ".")

	cfg := Config{
		Path:          v.GetString("data_dir"),
		Checksum:      ChecksumXXH3,
		ReadBuffer:    64 * 1024,
		MaxRecordSize: 16 * 1024 * 1024,
	}
	if pathOverride != "" {
		cfg.Path = pathOverride
	}
	cfg.Path = strings.TrimRight(cfg.Path, "/")
	if cfg.Path == "" {
		cfg.Path = "."
	}
	return cfg
}
