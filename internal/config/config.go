package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-bom-reader/internal/pdf/raster"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultDPI         = raster.DefaultDPI
	DefaultOCRLanguage = "eng"
	DefaultRasterizer  = raster.KindEmbedded

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "BOM_READER"
)

// Config holds all configuration for the BOM reader
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document configuration
	BOMDirectory string
	TemplatePath string // blank DD1750 used when a request names none

	// OCR configuration
	DPI            int
	OCRLanguage    string
	TessdataPrefix string
	Rasterizer     string // "embedded" or "pdftoppm"
	PdftoppmPath   string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio,
		Host:         DefaultHost,
		Port:         DefaultPort,
		BOMDirectory: currentDir,
		DPI:          DefaultDPI,
		OCRLanguage:  DefaultOCRLanguage,
		Rasterizer:   DefaultRasterizer,
		Version:      "1.0.0",
		ServerName:   "mcp-bom-reader",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys lists every flag; each doubles as the viper key and, upper-cased
// with dashes as underscores, the BOM_READER_ environment suffix.
var flagKeys = []string{
	"mode", "host", "port", "dir", "template", "log-level", "max-file-size",
	"dpi", "ocr-lang", "tessdata", "rasterizer", "pdftoppm",
}

func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.BOMDirectory)
	viper.SetDefault("template", cfg.TemplatePath)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("dpi", cfg.DPI)
	viper.SetDefault("ocr-lang", cfg.OCRLanguage)
	viper.SetDefault("tessdata", cfg.TessdataPrefix)
	viper.SetDefault("rasterizer", cfg.Rasterizer)
	viper.SetDefault("pdftoppm", cfg.PdftoppmPath)
}

func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.BOMDirectory, "Directory containing BOM PDF files")
	pflag.String("template", cfg.TemplatePath, "Blank DD1750 template PDF")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("dpi", cfg.DPI, "Rasterization resolution for OCR")
	pflag.String("ocr-lang", cfg.OCRLanguage, "Tesseract language(s), '+' separated")
	pflag.String("tessdata", cfg.TessdataPrefix, "Tesseract tessdata directory")
	pflag.String("rasterizer", cfg.Rasterizer, raster.KindUsage)
	pflag.String("pdftoppm", cfg.PdftoppmPath, "pdftoppm binary (pdftoppm rasterizer only)")
}

func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP BOM Reader - OCR extraction and DD1750 generation over the Model Context Protocol\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/boms --template=blank_1750.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 --dir=/path/to/boms\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rasterizer=pdftoppm --dpi=400\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range flagKeys {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", envPrefix, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.BOMDirectory = viper.GetString("dir")
	cfg.TemplatePath = viper.GetString("template")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.DPI = viper.GetInt("dpi")
	cfg.OCRLanguage = viper.GetString("ocr-lang")
	cfg.TessdataPrefix = viper.GetString("tessdata")
	cfg.Rasterizer = viper.GetString("rasterizer")
	cfg.PdftoppmPath = viper.GetString("pdftoppm")
}

func expandPaths(cfg *Config) {
	if cfg.BOMDirectory != "" {
		if abs, err := filepath.Abs(cfg.BOMDirectory); err == nil {
			cfg.BOMDirectory = abs
		}
	}
	if cfg.TemplatePath != "" {
		if abs, err := filepath.Abs(cfg.TemplatePath); err == nil {
			cfg.TemplatePath = abs
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.BOMDirectory == "" {
		return errors.New("BOM directory cannot be empty")
	}

	if _, err := os.Stat(c.BOMDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.BOMDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create BOM directory %s: %w", c.BOMDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access BOM directory %s: %w", c.BOMDirectory, err)
	}

	if c.TemplatePath != "" {
		info, err := os.Stat(c.TemplatePath)
		if err != nil {
			return fmt.Errorf("cannot access template %s: %w", c.TemplatePath, err)
		}
		if info.IsDir() {
			return fmt.Errorf("template %s is a directory", c.TemplatePath)
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.DPI < 72 || c.DPI > 1200 {
		return fmt.Errorf("dpi must be between 72 and 1200, got %d", c.DPI)
	}

	if strings.TrimSpace(c.OCRLanguage) == "" {
		return errors.New("OCR language cannot be empty")
	}

	if c.Rasterizer != raster.KindEmbedded && c.Rasterizer != raster.KindPdftoppm {
		return fmt.Errorf("invalid rasterizer: %s (must be one of: %s, %s)", c.Rasterizer, raster.KindEmbedded, raster.KindPdftoppm)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// OCRLanguages splits the '+' separated language list.
func (c *Config) OCRLanguages() []string {
	var langs []string
	for _, l := range strings.Split(c.OCRLanguage, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, BOMDirectory: %s, TemplatePath: %s, "+
		"Rasterizer: %s, DPI: %d, OCRLanguage: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.BOMDirectory, c.TemplatePath,
		c.Rasterizer, c.DPI, c.OCRLanguage, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
