package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable, read from TINYIMG_* environment variables.
// Command-line flags override individual fields after loading.
type Config struct {
	MaxFiles    int   `envconfig:"MAX_FILES" default:"20"`
	MaxFileSize int64 `envconfig:"MAX_FILE_SIZE" default:"4194304"`

	Compression struct {
		MaxSizeBytes         int64   `split_words:"true" default:"4194304"`
		MaxWidthOrHeight     int     `split_words:"true" default:"1920"`
		MaxIteration         int     `split_words:"true" default:"10"`
		InitialQuality       float64 `split_words:"true" default:"0.3"`
		NormalizeOrientation bool    `split_words:"true" default:"true"`
	}

	Concurrency     int           `envconfig:"CONCURRENCY" default:"0"`
	CompressTimeout time.Duration `envconfig:"COMPRESS_TIMEOUT" default:"0s"`

	OutputDir   string `envconfig:"OUTPUT_DIR" default:"."`
	ArchiveName string `envconfig:"ARCHIVE_NAME" default:"tinified.zip"`

	MaxDepth       int      `envconfig:"MAX_DEPTH" default:"-1"`
	FollowSymlinks bool     `envconfig:"FOLLOW_SYMLINKS" default:"false"`
	Excludes       []string `envconfig:"EXCLUDES"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFile  string `envconfig:"LOG_FILE"`

	Dropbox struct {
		Token   string `split_words:"true"`
		Folder  string `split_words:"true" default:"/tinified"`
		BaseURL string `split_words:"true" default:"https://content.dropboxapi.com"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("tinyimg", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogPath is where the interactive UI writes its log, since stdout belongs
// to the terminal UI.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(os.TempDir(), "tinyimg.log")
}

// CloudEnabled reports whether a Dropbox token is configured.
func (c *Config) CloudEnabled() bool {
	return c.Dropbox.Token != ""
}
