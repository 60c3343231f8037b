// Package config provides configuration management for astral using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration file is .astral.yml. Every key can be overridden from
// the environment with the ASTRAL_ prefix, for example
// ASTRAL_SERVER_PORT=4000 or ASTRAL_COMPILER_MODE=production.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/astral/internal/errors"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "ASTRAL"

// ConfigFileEnv names a config file to read instead of .astral.yml.
const ConfigFileEnv = "ASTRAL_CONFIG_FILE"

type Config struct {
	Project  ProjectConfig  `mapstructure:"project" yaml:"project"`
	Compiler CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
	Runtime  RuntimeConfig  `mapstructure:"runtime" yaml:"runtime"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ProjectConfig locates the project directories. Every directory except Root
// is relative to Root.
type ProjectConfig struct {
	Root   string `mapstructure:"root" yaml:"root"`
	Src    string `mapstructure:"src" yaml:"src"`
	Pages  string `mapstructure:"pages" yaml:"pages"`
	Public string `mapstructure:"public" yaml:"public"`
	Dist   string `mapstructure:"dist" yaml:"dist"`
}

type CompilerConfig struct {
	// Mode is development or production. Production compresses styles.
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Extensions maps extra component extensions, given without the
	// leading dot, to a framework plugin.
	Extensions map[string]string `mapstructure:"extensions" yaml:"extensions"`
	// ParserCommand is the template parser command line. The file name is
	// appended and the source is written to its stdin.
	ParserCommand string `mapstructure:"parser_command" yaml:"parser_command"`
	// SassBinary is the dart-sass executable. Empty uses the one on PATH.
	SassBinary string `mapstructure:"sass_binary" yaml:"sass_binary"`
	// Workers bounds parallel compiles. 0 uses one per CPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type RuntimeConfig struct {
	// Site is the public origin used for canonical URLs.
	Site        string `mapstructure:"site" yaml:"site"`
	NodeCommand string `mapstructure:"node_command" yaml:"node_command"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type BuildConfig struct {
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
	// CacheSize is the number of compiled modules kept in memory.
	CacheSize int      `mapstructure:"cache_size" yaml:"cache_size"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.src", "src")
	v.SetDefault("project.pages", "src/pages")
	v.SetDefault("project.public", "public")
	v.SetDefault("project.dist", "dist")

	v.SetDefault("compiler.mode", "development")
	v.SetDefault("compiler.extensions", map[string]string{})
	v.SetDefault("compiler.parser_command", "")
	v.SetDefault("compiler.sass_binary", "")
	v.SetDefault("compiler.workers", 0)

	v.SetDefault("runtime.site", "")
	v.SetDefault("runtime.node_command", "node")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)

	v.SetDefault("build.cache_dir", ".astral/cache")
	v.SetDefault("build.cache_size", 512)
	v.SetDefault("build.exclude", []string{"**/node_modules/**", "**/.*/**"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Setup points v at the config file and enables ASTRAL_ environment
// overrides. file takes precedence over ASTRAL_CONFIG_FILE, which takes
// precedence over .astral.yml in the working directory. A missing default
// file is not an error.
func Setup(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := true
	switch {
	case file != "":
		v.SetConfigFile(file)
	case os.Getenv(ConfigFileEnv) != "":
		v.SetConfigFile(os.Getenv(ConfigFileEnv))
	default:
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".astral")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && !explicit {
			return nil
		}
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "reading config file: "+err.Error())
	}
	return nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "decoding configuration: "+err.Error())
	}

	// Environment overrides of slice keys arrive as one string.
	if len(cfg.Build.Exclude) == 1 && strings.Contains(cfg.Build.Exclude[0], ",") {
		cfg.Build.Exclude = strings.Split(cfg.Build.Exclude[0], ",")
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Root is the absolute project root.
func (c *Config) Root() string {
	root := c.Project.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}

func (c *Config) dir(rel string) string {
	return filepath.Join(c.Root(), filepath.FromSlash(rel))
}

// SrcDir is the component source directory.
func (c *Config) SrcDir() string { return c.dir(c.Project.Src) }

// PagesDir is the routed pages directory.
func (c *Config) PagesDir() string { return c.dir(c.Project.Pages) }

// PublicDir holds files served as is.
func (c *Config) PublicDir() string { return c.dir(c.Project.Public) }

// DistDir is the static build output directory.
func (c *Config) DistDir() string { return c.dir(c.Project.Dist) }

// CacheDir holds the compile cache and server bundles.
func (c *Config) CacheDir() string { return c.dir(c.Build.CacheDir) }

// Production reports whether the compiler runs in production mode.
func (c *Config) Production() bool {
	return c.Compiler.Mode == "production"
}

// ExtensionOverrides returns Compiler.Extensions keyed by dotted extension.
func (c *Config) ExtensionOverrides() map[string]string {
	out := make(map[string]string, len(c.Compiler.Extensions))
	for ext, fw := range c.Compiler.Extensions {
		out["."+ext] = fw
	}
	return out
}

// Workers is the effective compile parallelism.
func (c *Config) Workers() int {
	if c.Compiler.Workers > 0 {
		return c.Compiler.Workers
	}
	return runtime.NumCPU()
}
