// Package config resolves codestream settings from defaults, YAML files, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/temirov/codestream/internal/completion"
	"github.com/temirov/codestream/internal/utils"
	"github.com/temirov/codestream/internal/walker"
)

const environmentPrefix = "CODESTREAM"

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	SkipDotEnv       bool
}

// ApplicationConfiguration holds every setting of the server and the CLI.
type ApplicationConfiguration struct {
	Server     ServerConfiguration     `mapstructure:"server"`
	Provider   ProviderConfiguration   `mapstructure:"provider"`
	Walker     WalkerConfiguration     `mapstructure:"walker"`
	Generation GenerationConfiguration `mapstructure:"generation"`
	Tokens     TokenConfiguration      `mapstructure:"tokens"`
	Log        LogConfiguration        `mapstructure:"log"`
}

type ServerConfiguration struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Path            string        `mapstructure:"path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	InboundQueue    int           `mapstructure:"inbound_queue"`
}

// ProviderConfiguration selects the completion provider. APIKey is never logged.
type ProviderConfiguration struct {
	Name    string        `mapstructure:"name"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WalkerConfiguration struct {
	Root            string   `mapstructure:"root"`
	OnConnect       bool     `mapstructure:"on_connect"`
	IncludeContent  bool     `mapstructure:"include_content"`
	MaxContentBytes int64    `mapstructure:"max_content_bytes"`
	Exclude         []string `mapstructure:"exclude"`
	UseGitignore    bool     `mapstructure:"use_gitignore"`
	UseIgnoreFile   bool     `mapstructure:"use_ignore"`
	IncludeGit      bool     `mapstructure:"include_git"`
}

type GenerationConfiguration struct {
	Triggers []string `mapstructure:"triggers"`
}

// TokenConfiguration controls token usage logging.
type TokenConfiguration struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

type LogConfiguration struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaultValues = map[string]any{
	"server.host":              "",
	"server.port":              8080,
	"server.path":              "/ws",
	"server.shutdown_timeout":  "5s",
	"server.ping_interval":     "30s",
	"server.inbound_queue":     8,
	"provider.name":            completion.ProviderOpenAI,
	"provider.api_key":         "",
	"provider.base_url":        "",
	"provider.model":           completion.DefaultModel,
	"provider.timeout":         "2m",
	"walker.root":              ".",
	"walker.on_connect":        true,
	"walker.include_content":   false,
	"walker.max_content_bytes": 1 << 20,
	"walker.exclude":           []string{},
	"walker.use_gitignore":     true,
	"walker.use_ignore":        true,
	"walker.include_git":       false,
	"generation.triggers":      []string{"create application"},
	"tokens.enabled":           false,
	"tokens.model":             completion.DefaultModel,
	"log.level":                "info",
	"log.format":               utils.LogFormatConsole,
}

// Environment names kept from the deployment the dashboard was built for.
var environmentAliases = map[string]string{
	"provider.api_key": "OPENAI_API_KEY",
	"server.port":      "PORT",
	"walker.root":      "CODESTREAM_ROOT",
}

// LoadApplicationConfiguration merges defaults, the global file, the local or
// explicit file, the .env file of the working directory and the environment.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	if !options.SkipDotEnv {
		if err := loadDotEnv(filepath.Join(workingDirectory, utils.DotEnvFileName)); err != nil {
			return ApplicationConfiguration{}, err
		}
	}

	reader := viper.New()
	for key, value := range defaultValues {
		reader.SetDefault(key, value)
	}
	reader.SetEnvPrefix(environmentPrefix)
	reader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	reader.AutomaticEnv()
	for key, alias := range environmentAliases {
		prefixed := environmentPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := reader.BindEnv(key, alias, prefixed); err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("bind environment for %s: %w", key, err)
		}
	}

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		if err := mergeConfigurationFile(reader, globalPath, false); err != nil {
			return ApplicationConfiguration{}, err
		}
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if err := mergeConfigurationFile(reader, localPath, options.ExplicitFilePath != ""); err != nil {
		return ApplicationConfiguration{}, err
	}

	var configuration ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&configuration); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration: %w", decodeErr)
	}
	configuration.Walker.Exclude = utils.DeduplicatePatterns(configuration.Walker.Exclude)
	return configuration, nil
}

func loadDotEnv(path string) error {
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, statErr)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName)
}

func mergeConfigurationFile(reader *viper.Viper, path string, required bool) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return nil
		}
		return fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return fmt.Errorf("configuration path %s is a directory", path)
	}
	reader.SetConfigFile(path)
	if mergeErr := reader.MergeInConfig(); mergeErr != nil {
		return fmt.Errorf("read configuration from %s: %w", path, mergeErr)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (configuration ApplicationConfiguration) Validate() error {
	var problems []error
	switch strings.ToLower(strings.TrimSpace(configuration.Provider.Name)) {
	case completion.ProviderOpenAI:
		if strings.TrimSpace(configuration.Provider.APIKey) == "" {
			problems = append(problems, errors.New("provider.api_key is required for the openai provider (set OPENAI_API_KEY)"))
		}
	case completion.ProviderEcho:
	default:
		problems = append(problems, fmt.Errorf("provider.name %q is not one of %s, %s", configuration.Provider.Name, completion.ProviderOpenAI, completion.ProviderEcho))
	}
	if configuration.Server.Port <= 0 || configuration.Server.Port > 65535 {
		problems = append(problems, fmt.Errorf("server.port %d is out of range", configuration.Server.Port))
	}
	if !strings.HasPrefix(configuration.Server.Path, "/") || configuration.Server.Path == "/" {
		problems = append(problems, fmt.Errorf("server.path %q must start with / and differ from /", configuration.Server.Path))
	}
	if strings.TrimSpace(configuration.Walker.Root) == "" {
		problems = append(problems, errors.New("walker.root is empty"))
	}
	if configuration.Walker.MaxContentBytes < 0 {
		problems = append(problems, errors.New("walker.max_content_bytes is negative"))
	}
	return errors.Join(problems...)
}

// Address returns the listen address of the server.
func (server ServerConfiguration) Address() string {
	return net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
}

// IgnoreFiles lists the per-directory pattern files the walker honors.
func (configuration WalkerConfiguration) IgnoreFiles() []string {
	var names []string
	if configuration.UseIgnoreFile {
		names = append(names, walker.IgnoreFileName)
	}
	if configuration.UseGitignore {
		names = append(names, walker.GitIgnoreFileName)
	}
	return names
}

// IgnorePatterns returns the configured exclusions plus the git directory
// unless it is explicitly included.
func (configuration WalkerConfiguration) IgnorePatterns() []string {
	patterns := append([]string{}, configuration.Exclude...)
	if !configuration.IncludeGit {
		patterns = append(patterns, walker.GitDirectoryPattern)
	}
	return utils.DeduplicatePatterns(patterns)
}

// Options converts the configuration into walker options for one walk.
func (configuration WalkerConfiguration) Options() walker.Options {
	return walker.Options{
		Root:            configuration.Root,
		IgnorePatterns:  configuration.IgnorePatterns(),
		IgnoreFiles:     configuration.IgnoreFiles(),
		IncludeContent:  configuration.IncludeContent,
		MaxContentBytes: configuration.MaxContentBytes,
	}
}
