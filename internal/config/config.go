package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the install and build configuration for gmxup.
type Config struct {
	Version int           `yaml:"version"`
	Install InstallConfig `yaml:"install"`
	Build   BuildConfig   `yaml:"build"`
	Shell   ShellConfig   `yaml:"shell"`
}

// InstallConfig controls where GROMACS is installed from and to.
type InstallConfig struct {
	Prefix      string `yaml:"prefix"`
	URLTemplate string `yaml:"url_template"`
}

// BuildConfig contains knobs passed to the external build system.
type BuildConfig struct {
	MaxJobs   int    `yaml:"max_jobs"`
	BuildType string `yaml:"build_type"`
}

// ShellConfig describes the shell profile wiring done after install.
type ShellConfig struct {
	RCFile string `yaml:"rc_file"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Install: InstallConfig{
			Prefix:      "/usr/local/gromacs",
			URLTemplate: "https://ftp.gromacs.org/gromacs/gromacs-%s.tar.gz",
		},
		Build: BuildConfig{
			MaxJobs:   4,
			BuildType: "Release",
		},
		Shell: ShellConfig{
			RCFile: "",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to disk as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Install.Prefix) == "" {
		c.Install.Prefix = def.Install.Prefix
	}
	if strings.TrimSpace(c.Install.URLTemplate) == "" {
		c.Install.URLTemplate = def.Install.URLTemplate
	}
	if c.Build.MaxJobs <= 0 {
		c.Build.MaxJobs = def.Build.MaxJobs
	}
	if strings.TrimSpace(c.Build.BuildType) == "" {
		c.Build.BuildType = def.Build.BuildType
	}
}

// SourceURL renders the download URL for the requested version.
func (c Config) SourceURL(version string) string {
	return fmt.Sprintf(c.Install.URLTemplate, version)
}
