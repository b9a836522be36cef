package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeChat   = "chat"
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultForm        = "ar-11.pdf"
	DefaultMaxFileSize = 25 * 1024 * 1024 // 25MB

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to every environment variable name
	EnvPrefix = "PDF_FORMFILL"
)

// Config holds all configuration for the form filler
type Config struct {
	// Shell configuration
	Mode string // "chat", "stdio" or "server"
	Host string
	Port int

	// Form configuration
	FormDirectory   string
	DefaultForm     string
	OutputDirectory string
	AnswersFile     string
	Verify          bool

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
		Mode:            ModeChat,
		Host:            DefaultHost,
		Port:            DefaultPort,
		FormDirectory:   currentDir,
		DefaultForm:     DefaultForm,
		OutputDirectory: currentDir,
		Verify:          true,
		Version:         "1.0.0",
		ServerName:      "pdf-formfill",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
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

	for _, dir := range []*string{&cfg.FormDirectory, &cfg.OutputDirectory} {
		if *dir == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*dir); err == nil {
			*dir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.FormDirectory)
	viper.SetDefault("form", cfg.DefaultForm)
	viper.SetDefault("out", cfg.OutputDirectory)
	viper.SetDefault("answers", cfg.AnswersFile)
	viper.SetDefault("verify", cfg.Verify)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Shell: 'chat' for the terminal, 'stdio' for MCP standard I/O, 'server' for HTTP")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.FormDirectory, "Directory containing PDF forms")
	pflag.String("form", cfg.DefaultForm, "Form used when none is uploaded, relative to --dir")
	pflag.String("out", cfg.OutputDirectory, "Directory receiving filled forms")
	pflag.String("answers", cfg.AnswersFile, "YAML file of answers to fill without prompting (chat mode only)")
	pflag.Bool("verify", cfg.Verify, "Read filled forms back and check every answer")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "form", "out", "answers", "verify", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Form Filler - fill PDF forms one question at a time\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # chat in the terminal with ./ar-11.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --form=w-9.pdf --dir=/path/to/forms # chat with another form\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --answers=answers.yaml             # fill without prompting\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                       # MCP over standard I/O\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081          # HTTP upload, chat and download\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE        Shell mode\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_HOST        Server host\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_PORT        Server port\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_DIR         Form directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_FORM        Default form\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_OUT         Output directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_ANSWERS     Answers file\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_VERIFY      Read-back verification\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_LOGLEVEL    Log level\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MAXFILESIZE Maximum file size\n", EnvPrefix)
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

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.FormDirectory = viper.GetString("dir")
	cfg.DefaultForm = viper.GetString("form")
	cfg.OutputDirectory = viper.GetString("out")
	cfg.AnswersFile = viper.GetString("answers")
	cfg.Verify = viper.GetBool("verify")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeChat && c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be one of 'chat', 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.FormDirectory == "" {
		return errors.New("form directory cannot be empty")
	}

	// The output directory is created on demand, the form directory is not.
	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}
	if _, err := os.Stat(c.OutputDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.OutputDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", c.OutputDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access output directory %s: %w", c.OutputDirectory, err)
	}

	if c.AnswersFile != "" && c.Mode != ModeChat {
		return errors.New("an answers file can only be used in chat mode")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
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

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultFormPath returns the default form joined to the form directory
func (c *Config) DefaultFormPath() string {
	if c.DefaultForm == "" || filepath.IsAbs(c.DefaultForm) {
		return c.DefaultForm
	}
	return filepath.Join(c.FormDirectory, c.DefaultForm)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, FormDirectory: %s, DefaultForm: %s, "+
		"OutputDirectory: %s, AnswersFile: %s, Verify: %t, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.FormDirectory, c.DefaultForm,
		c.OutputDirectory, c.AnswersFile, c.Verify, c.LogLevel, c.MaxFileSize)
}

// IsChatMode returns true if the terminal chat shell is selected
func (c *Config) IsChatMode() bool {
	return c.Mode == ModeChat
}

// IsServerMode returns true if running as an HTTP server
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if running as an MCP stdio server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
