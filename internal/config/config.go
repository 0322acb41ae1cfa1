// Package config loads pool settings from YAML or JSON files
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jzx17/jobpool/pkg/sink"
	"github.com/jzx17/jobpool/pkg/worker"
)

// FileConfig is the layout of a pool configuration file
type FileConfig struct {
	Pool PoolSection `yaml:"pool" json:"pool"`
	Log  LogSection  `yaml:"log" json:"log"`
}

// PoolSection holds scheduler and allocator settings.
// Unset fields keep the values of worker.DefaultPoolConfig.
type PoolSection struct {
	Workers     int    `yaml:"workers" json:"workers"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
	MaxPages    int    `yaml:"max_pages" json:"max_pages"`
	PinWorkers  *bool  `yaml:"pin_workers" json:"pin_workers"`
	NameThreads *bool  `yaml:"name_threads" json:"name_threads"`
	ErrorSink   string `yaml:"error_sink" json:"error_sink"`
}

// LogSection configures the slog logger handed to the pool
type LogSection struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoadFile reads a .yaml, .yml or .json configuration file
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Logger builds a logger writing to w from the log section
func (f *FileConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if f.Log.Level != "" {
		if err := level.UnmarshalText([]byte(f.Log.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(f.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", f.Log.Format)
	}
}

// ToPoolConfig overlays the file settings onto worker.DefaultPoolConfig.
// logger is used for lifecycle records and by the "log" error sink.
func (f *FileConfig) ToPoolConfig(logger *slog.Logger) (*worker.PoolConfig, error) {
	pc := f.Pool

	// defaults first
	config := worker.DefaultPoolConfig()
	config.Logger = logger

	if pc.Workers < 0 || pc.PageSize < 0 || pc.MaxPages < 0 {
		return nil, fmt.Errorf("pool sizes cannot be negative: workers=%d page_size=%d max_pages=%d",
			pc.Workers, pc.PageSize, pc.MaxPages)
	}
	if pc.Workers > 0 {
		config.Workers = pc.Workers
	}
	if pc.PageSize > 0 {
		config.PageSize = pc.PageSize
	}
	config.MaxPages = pc.MaxPages

	if pc.PinWorkers != nil {
		config.PinWorkers = *pc.PinWorkers
	}
	if pc.NameThreads != nil {
		config.NameThreads = *pc.NameThreads
	}

	switch strings.ToLower(pc.ErrorSink) {
	case "", "log":
		config.ErrorSink = sink.NewLogSink(logger)
	case "log_stacks":
		config.ErrorSink = sink.NewLogSink(logger).WithStacks()
	case "discard":
		config.ErrorSink = sink.Discard
	default:
		return nil, fmt.Errorf("unknown error sink: %s", pc.ErrorSink)
	}

	return config, nil
}
