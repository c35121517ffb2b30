package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler"
)

// defaultConfig is looked up in the working directory when -config is not
// given.
const defaultConfig = "kdl.toml"

// Config is the optional project file.
type Config struct {
	Sources     []string `toml:"sources"`
	SearchPaths []string `toml:"search_paths"`
	ByteOrder   string   `toml:"byte_order"`
	Database    string   `toml:"database"`
	MaxDepth    int      `toml:"max_depth"`
	LogLevel    string   `toml:"log_level"`
}

// loadConfig reads path. A missing file is only an error when the user
// named it explicitly. Relative paths inside the file are taken relative
// to the file itself.
func loadConfig(path string, explicit bool) (*Config, error) {
	cfg := &Config{ByteOrder: "big", Database: "resources.db", LogLevel: "warn"}
	if path == "" {
		path = defaultConfig
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	switch cfg.ByteOrder {
	case "big", "little":
	default:
		return nil, fmt.Errorf("config %s: byte_order must be big or little, got %q", path, cfg.ByteOrder)
	}

	dir := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range cfg.Sources {
		cfg.Sources[i] = rel(cfg.Sources[i])
	}
	for i := range cfg.SearchPaths {
		cfg.SearchPaths[i] = rel(cfg.SearchPaths[i])
	}
	cfg.Database = rel(cfg.Database)
	return cfg, nil
}

func (c *Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// options builds compiler options; extra search paths from the command
// line come first.
func (c *Config) options(log *slog.Logger, include []string) compiler.Options {
	return compiler.Options{
		Logger:       log,
		SearchPaths:  append(append([]string(nil), include...), c.SearchPaths...),
		LittleEndian: c.ByteOrder == "little",
		MaxDepth:     c.MaxDepth,
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
