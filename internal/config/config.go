// Package config provides YAML-based configuration management for the upload service.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CUSTOMS_"

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Upload limits, named after the host directives they emulate
	Uploads UploadConfig `yaml:"uploads"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Outcome ledger
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging options
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int    `yaml:"port"`
	BindAddress          string `yaml:"bind_address"`
	EnableCORS           bool   `yaml:"enable_cors"`
	AllowOrigins         string `yaml:"allow_origins"`
	ReadTimeout          int    `yaml:"read_timeout_seconds"`
	WriteTimeout         int    `yaml:"write_timeout_seconds"`
	IdleTimeout          int    `yaml:"idle_timeout_seconds"`
	BodyLimit            string `yaml:"body_limit"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
}

// UploadConfig mirrors the host file-upload directives.
type UploadConfig struct {
	FileUploads       bool   `yaml:"file_uploads"`
	UploadTmpDir      string `yaml:"upload_tmp_dir"`
	UploadMaxFilesize string `yaml:"upload_max_filesize"`
	PostMaxSize       string `yaml:"post_max_size"`
	MaxFileUploads    int    `yaml:"max_file_uploads"`
	MaxInputVars      int    `yaml:"max_input_vars"`
	BlockedExtensions string `yaml:"blocked_extensions"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	Backend          string   `yaml:"backend"`
	DataDirectory    string   `yaml:"data_directory"`
	UploadsDirectory string   `yaml:"uploads_directory"`
	S3               S3Config `yaml:"s3"`
}

// S3Config selects the bucket used by the s3 backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	Prefix    string `yaml:"prefix"`
}

// LedgerConfig contains DuckDB settings
type LedgerConfig struct {
	Path        string `yaml:"path"`
	Threads     int    `yaml:"threads"`
	MemoryLimit string `yaml:"memory_limit"`
}

// LoggingConfig selects the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8089,
			BindAddress:          "0.0.0.0",
			EnableCORS:           false,
			AllowOrigins:         "*",
			ReadTimeout:          30,
			WriteTimeout:         30,
			IdleTimeout:          120,
			BodyLimit:            "64M",
			EnableRequestLogging: true,
		},
		Uploads: UploadConfig{
			FileUploads:       true,
			UploadTmpDir:      "./data/tmp",
			UploadMaxFilesize: "2M",
			PostMaxSize:       "8M",
			MaxFileUploads:    20,
			MaxInputVars:      1000,
			BlockedExtensions: "",
		},
		Storage: StorageConfig{
			Backend:          BackendLocal,
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
		},
		Ledger: LedgerConfig{
			Path:        "./data/ledger.duckdb",
			Threads:     2,
			MemoryLimit: "256MB",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		if err := config.applyEnvironmentOverrides(); err != nil {
			return nil, err
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# customs upload service configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// overrides lists the values that can be set from the environment. Unset
// variables leave the file value untouched.
type overrides struct {
	Port              int    `env:"PORT"`
	BindAddress       string `env:"BIND_ADDRESS"`
	DataDir           string `env:"DATA_DIR"`
	UploadsDir        string `env:"UPLOADS_DIR"`
	FileUploads       bool   `env:"FILE_UPLOADS"`
	UploadTmpDir      string `env:"UPLOAD_TMP_DIR"`
	UploadMaxFilesize string `env:"UPLOAD_MAX_FILESIZE"`
	PostMaxSize       string `env:"POST_MAX_SIZE"`
	MaxFileUploads    int    `env:"MAX_FILE_UPLOADS"`
	StorageBackend    string `env:"STORAGE_BACKEND"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3KeyID           string `env:"S3_KEY_ID"`
	S3KeySecret       string `env:"S3_KEY_SECRET"`
	LedgerPath        string `env:"LEDGER_PATH"`
	LogLevel          string `env:"LOG_LEVEL"`
	LogFormat         string `env:"LOG_FORMAT"`
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	o := overrides{
		Port:              c.Server.Port,
		BindAddress:       c.Server.BindAddress,
		DataDir:           c.Storage.DataDirectory,
		UploadsDir:        c.Storage.UploadsDirectory,
		FileUploads:       c.Uploads.FileUploads,
		UploadTmpDir:      c.Uploads.UploadTmpDir,
		UploadMaxFilesize: c.Uploads.UploadMaxFilesize,
		PostMaxSize:       c.Uploads.PostMaxSize,
		MaxFileUploads:    c.Uploads.MaxFileUploads,
		StorageBackend:    c.Storage.Backend,
		S3Bucket:          c.Storage.S3.Bucket,
		S3Region:          c.Storage.S3.Region,
		S3Endpoint:        c.Storage.S3.Endpoint,
		S3KeyID:           c.Storage.S3.KeyID,
		S3KeySecret:       c.Storage.S3.KeySecret,
		LedgerPath:        c.Ledger.Path,
		LogLevel:          c.Logging.Level,
		LogFormat:         c.Logging.Format,
	}
	if err := env.Parse(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	c.Server.Port = o.Port
	c.Server.BindAddress = o.BindAddress
	c.Storage.DataDirectory = o.DataDir
	c.Storage.UploadsDirectory = o.UploadsDir
	c.Uploads.FileUploads = o.FileUploads
	c.Uploads.UploadTmpDir = o.UploadTmpDir
	c.Uploads.UploadMaxFilesize = o.UploadMaxFilesize
	c.Uploads.PostMaxSize = o.PostMaxSize
	c.Uploads.MaxFileUploads = o.MaxFileUploads
	c.Storage.Backend = o.StorageBackend
	c.Storage.S3.Bucket = o.S3Bucket
	c.Storage.S3.Region = o.S3Region
	c.Storage.S3.Endpoint = o.S3Endpoint
	c.Storage.S3.KeyID = o.S3KeyID
	c.Storage.S3.KeySecret = o.S3KeySecret
	c.Ledger.Path = o.LedgerPath
	c.Logging.Level = o.LogLevel
	c.Logging.Format = o.LogFormat
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Uploads.UploadTmpDir,
		&c.Ledger.Path,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Timeouts returns the read, write and idle timeouts of the HTTP server.
func (c *AppConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(c.Server.ReadTimeout) * time.Second,
		time.Duration(c.Server.WriteTimeout) * time.Second,
		time.Duration(c.Server.IdleTimeout) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Uploads.UploadTmpDir,
		filepath.Dir(c.Ledger.Path),
	}
	if c.Storage.Backend != BackendS3 {
		dirs = append(dirs, c.Storage.UploadsDirectory)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// IsEnabled reports whether file uploads are accepted at all.
func (u UploadConfig) IsEnabled() bool {
	return u.FileUploads
}

// UploadWorkingPath returns the directory uploads are held in while the
// request is processed. It falls back to the system temporary directory when
// the configured one is missing or not writable.
func (u UploadConfig) UploadWorkingPath() string {
	if u.UploadTmpDir != "" && isWritableDir(u.UploadTmpDir) {
		return u.UploadTmpDir
	}
	return os.TempDir()
}

// SystemMaxUploadBytes is the server-wide per-file limit: the lower of
// upload_max_filesize and post_max_size. math.MaxInt64 means no limit.
func (u UploadConfig) SystemMaxUploadBytes() int64 {
	return limit(parseSize(u.PostMaxSize), parseSize(u.UploadMaxFilesize))
}

// FormMaxUploadBytes returns the MAX_FILE_SIZE submitted with the form, or
// math.MaxInt64 when the form carried none.
func (u UploadConfig) FormMaxUploadBytes(form map[string][]string) int64 {
	values, ok := form["MAX_FILE_SIZE"]
	if !ok || len(values) == 0 {
		return math.MaxInt64
	}
	n, err := strconv.ParseInt(strings.TrimSpace(values[len(values)-1]), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// MaxFileUploadsLimit is the number of files accepted per request. math.MaxInt64
// means no limit.
func (u UploadConfig) MaxFileUploadsLimit() int64 {
	return limit(int64(u.MaxFileUploads), int64(u.MaxInputVars))
}

// Extensions returns the blocked extensions as a list.
func (u UploadConfig) Extensions() []string {
	var out []string
	for _, ext := range strings.Split(u.BlockedExtensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// ChannelSettings builds the limits enforced by the upload channel.
func (u UploadConfig) ChannelSettings(logger *slog.Logger) upload.Settings {
	maxFiles := 0
	if n := u.MaxFileUploadsLimit(); n < math.MaxInt64 && n <= math.MaxInt32 {
		maxFiles = int(n)
	}
	return upload.Settings{
		Enabled:           u.IsEnabled(),
		WorkingPath:       u.UploadWorkingPath(),
		SystemMaxBytes:    u.SystemMaxUploadBytes(),
		MaxFileUploads:    maxFiles,
		BlockedExtensions: u.Extensions(),
		Logger:            logger,
	}
}

// limit combines two values that follow the "zero or less is unlimited"
// pattern.
func limit(a, b int64) int64 {
	switch {
	case a > 0 && b > 0:
		return min(a, b)
	case a <= 0 && b <= 0:
		return math.MaxInt64
	default:
		return max(a, b)
	}
}

// parseSize reads sizes such as "2M" or "8MB". Anything unparsable counts as
// unlimited.
func parseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := bytes.Parse(s)
	if err != nil {
		return 0
	}
	return n
}

func isWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
