package config

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	extErrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir holds the per-project configuration, relative to the project root.
	ConfigDir = ".vp"
	// ConfigFile is the YAML document inside ConfigDir.
	ConfigFile = "config.yaml"

	DefaultPlatformName = "vast"
	DefaultWorkingDir   = "/workspace"
	DefaultDataDir      = "data"
	DefaultBaseImage    = "python:3.11-slim"
)

// DefaultExcludePatterns seed the sync exclude list for new projects.
var DefaultExcludePatterns = []string{
	".git/",
	".vp/",
	"__pycache__/",
	"*.pyc",
	".DS_Store",
	"node_modules/",
	".env",
}

// ProjectConfig identifies the project and where it lives on the instance.
type ProjectConfig struct {
	Name       string `yaml:"name" validate:"required"`
	DataDir    string `yaml:"data_dir"`
	WorkingDir string `yaml:"working_dir"`
	BaseImage  string `yaml:"base_image"`
}

// PlatformConfig is the per-platform credential block.
type PlatformConfig struct {
	APIKey          string `yaml:"api_key"`
	Enabled         bool   `yaml:"enabled"`
	AllowSimulation bool   `yaml:"allow_simulation"`
}

// PlatformsConfig maps platform names to their credentials plus the default
// selection. The YAML shape keeps "default" as a sibling of the named
// platforms, so (un)marshalling is custom.
type PlatformsConfig struct {
	Default string
	Named   map[string]PlatformConfig
}

func (p *PlatformsConfig) UnmarshalYAML(value *yaml.Node) error {
	p.Named = make(map[string]PlatformConfig)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if key == "default" {
			if err := value.Content[i+1].Decode(&p.Default); err != nil {
				return err
			}
			continue
		}
		var cfg PlatformConfig
		if err := value.Content[i+1].Decode(&cfg); err != nil {
			return err
		}
		p.Named[key] = cfg
	}
	return nil
}

func (p PlatformsConfig) MarshalYAML() (interface{}, error) {
	out := make(map[string]interface{}, len(p.Named)+1)
	out["default"] = p.Default
	for name, cfg := range p.Named {
		out[name] = cfg
	}
	return out, nil
}

// DockerConfig controls the local image build step.
type DockerConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Dockerfile   string            `yaml:"dockerfile"`
	BuildContext string            `yaml:"build_context"`
	BuildArgs    map[string]string `yaml:"build_args"`
}

// SyncConfig controls which files travel to the instance.
type SyncConfig struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
	IncludePatterns []string `yaml:"include_patterns"`
}

// Config is the full configuration document.
type Config struct {
	Project   ProjectConfig   `yaml:"project" validate:"required"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Docker    DockerConfig    `yaml:"docker"`
	Sync      SyncConfig      `yaml:"sync"`
}

// Manager exposes the configuration document behind a narrow read interface.
type Manager struct {
	path string
	data Config
}

// DefaultPath returns the config file location under baseDir.
func DefaultPath(baseDir string) string {
	return filepath.Join(baseDir, ConfigDir, ConfigFile)
}

// Load reads and validates the configuration at path.
func Load(path string) (*Manager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, extErrors.Wrapf(err, "Configuration file not found: %s (run 'vp init' to create one)", path)
		}
		return nil, extErrors.Wrap(err, "Cannot read configuration file")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, extErrors.Wrap(err, "Invalid YAML in configuration file")
	}

	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, extErrors.Wrap(err, "Invalid configuration")
	}

	return &Manager{
		path: path,
		data: cfg,
	}, nil
}

// New builds a fresh configuration for a project, with cost-conservative
// defaults. Platforms with an empty key stay disabled.
func New(projectName, vastAPIKey, runpodAPIKey, defaultPlatform string) *Manager {
	if defaultPlatform == "" {
		defaultPlatform = DefaultPlatformName
	}
	cfg := Config{
		Project: ProjectConfig{
			Name:       projectName,
			DataDir:    DefaultDataDir,
			WorkingDir: DefaultWorkingDir,
			BaseImage:  DefaultBaseImage,
		},
		Platforms: PlatformsConfig{
			Default: defaultPlatform,
			Named: map[string]PlatformConfig{
				"vast":   {APIKey: vastAPIKey, Enabled: vastAPIKey != ""},
				"runpod": {APIKey: runpodAPIKey, Enabled: runpodAPIKey != ""},
			},
		},
		Docker: DockerConfig{
			Enabled:      false,
			Dockerfile:   "Dockerfile",
			BuildContext: ".",
			BuildArgs:    map[string]string{},
		},
		Sync: SyncConfig{
			ExcludePatterns: append([]string{}, DefaultExcludePatterns...),
			IncludePatterns: []string{"*"},
		},
	}
	applyDefaults(&cfg)
	return &Manager{data: cfg}
}

func applyDefaults(cfg *Config) {
	if cfg.Project.WorkingDir == "" {
		cfg.Project.WorkingDir = DefaultWorkingDir
	}
	if cfg.Project.DataDir == "" {
		cfg.Project.DataDir = DefaultDataDir
	}
	if cfg.Platforms.Default == "" {
		cfg.Platforms.Default = DefaultPlatformName
	}
	if cfg.Platforms.Named == nil {
		cfg.Platforms.Named = make(map[string]PlatformConfig)
	}
	if cfg.Docker.Dockerfile == "" {
		cfg.Docker.Dockerfile = "Dockerfile"
	}
	if cfg.Docker.BuildContext == "" {
		cfg.Docker.BuildContext = "."
	}
}

// Save writes the document back to its path, creating the config directory
// when needed.
func (m *Manager) Save(path string) error {
	if path == "" {
		path = m.path
	}
	if path == "" {
		path = DefaultPath(".")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return extErrors.Wrap(err, "Cannot create configuration directory")
	}

	raw, err := yaml.Marshal(&m.data)
	if err != nil {
		return extErrors.Wrap(err, "Cannot marshal configuration")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return extErrors.Wrap(err, "Cannot write configuration file")
	}
	m.path = path
	return nil
}

func (m *Manager) GetProjectConfig() ProjectConfig {
	return m.data.Project
}

// GetPlatformConfig returns the credential block for a named platform. The
// second return is false when the platform is not configured at all.
func (m *Manager) GetPlatformConfig(name string) (PlatformConfig, bool) {
	cfg, ok := m.data.Platforms.Named[name]
	return cfg, ok
}

// SetPlatformAPIKey overrides a platform credential, used for env overrides.
func (m *Manager) SetPlatformAPIKey(name, apiKey string) {
	cfg := m.data.Platforms.Named[name]
	cfg.APIKey = apiKey
	cfg.Enabled = apiKey != ""
	m.data.Platforms.Named[name] = cfg
}

func (m *Manager) GetDockerConfig() DockerConfig {
	return m.data.Docker
}

func (m *Manager) GetSyncConfig() SyncConfig {
	return m.data.Sync
}

func (m *Manager) GetDefaultPlatform() string {
	return m.data.Platforms.Default
}
