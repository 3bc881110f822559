package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderConfig is one [[providers]] entry of the user config.
type ProviderConfig struct {
	ID      string `toml:"id"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
	Enabled bool   `toml:"enabled"`
}

type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"`
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	DefaultProvider string           `toml:"default_provider"`
	DefaultMode     string           `toml:"default_mode"`
	CodeDirectory   string           `toml:"code_directory"`
	Listen          string           `toml:"listen"`
	MaxHistory      int              `toml:"max_history"`
	SystemPrompt    string           `toml:"system_prompt,omitempty"`
	Security        SecurityConfig   `toml:"security"`
	Providers       []ProviderConfig `toml:"providers"`
}

type Config struct {
	DataDirectory   string
	DefaultProvider string
	DefaultMode     string
	CodeDirectory   string
	Listen          string
	MaxHistory      int
	SystemPrompt    string
	Security        SecurityConfig
	Providers       []ProviderConfig

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// CodeDir is where extracted code blocks are written. Relative paths are
// resolved against the working directory.
func (c *Config) CodeDir() string {
	return ExpandPath(c.CodeDirectory)
}

// DatabasePath is the sqlite file holding the artifact ledger and preferences.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "mercurial.db")
}

// Provider returns the configured entry for id, filled in with defaults.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			if p.BaseURL == "" {
				p.BaseURL = DefaultBaseURL(id)
			}
			if p.Model == "" {
				p.Model = DefaultModel(id)
			}
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// ActiveProvider returns the default provider's entry. A default provider
// missing from the [[providers]] list gets a synthesized enabled entry.
func (c *Config) ActiveProvider() ProviderConfig {
	if p, ok := c.Provider(c.DefaultProvider); ok {
		return p
	}
	return ProviderConfig{
		ID:      c.DefaultProvider,
		BaseURL: DefaultBaseURL(c.DefaultProvider),
		Model:   DefaultModel(c.DefaultProvider),
		Enabled: true,
	}
}

// APIKey returns the key for a provider: the credential store first, then
// the provider's conventional environment variable.
func (c *Config) APIKey(providerID string) string {
	if c.CredentialStore != nil {
		if key := c.CredentialStore.Get(providerID); key != "" {
			return key
		}
	}
	if env := APIKeyEnvVar(providerID); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func (c *Config) setActiveProviderField(apply func(p *ProviderConfig)) {
	for i := range c.Providers {
		if c.Providers[i].ID == c.DefaultProvider {
			apply(&c.Providers[i])
			return
		}
	}
	p := c.ActiveProvider()
	apply(&p)
	c.Providers = append(c.Providers, p)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("MERCURIAL_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if provider := os.Getenv("MERCURIAL_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if model := os.Getenv("MERCURIAL_MODEL"); model != "" {
		c.setActiveProviderField(func(p *ProviderConfig) { p.Model = model })
	}
	if baseURL := os.Getenv("MERCURIAL_BASE_URL"); baseURL != "" {
		c.setActiveProviderField(func(p *ProviderConfig) { p.BaseURL = baseURL })
	}
	if mode := os.Getenv("MERCURIAL_MODE"); mode != "" {
		c.DefaultMode = mode
	}
	if codeDir := os.Getenv("MERCURIAL_CODE_DIR"); codeDir != "" {
		c.CodeDirectory = codeDir
	}
	if listen := os.Getenv("MERCURIAL_LISTEN"); listen != "" {
		c.Listen = listen
	}
	if raw := os.Getenv("MERCURIAL_MAX_HISTORY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.MaxHistory = n
		}
	}
}

func (c *Config) applyUserConfig(u *UserConfig) {
	if u.DefaultProvider != "" {
		c.DefaultProvider = u.DefaultProvider
	}
	if u.DefaultMode != "" {
		c.DefaultMode = u.DefaultMode
	}
	if u.CodeDirectory != "" {
		c.CodeDirectory = u.CodeDirectory
	}
	if u.Listen != "" {
		c.Listen = u.Listen
	}
	if u.MaxHistory > 0 {
		c.MaxHistory = u.MaxHistory
	}
	if u.Security.CredentialStorage != "" {
		c.Security = u.Security
	}
	if len(u.Providers) > 0 {
		c.Providers = u.Providers
	}
	c.SystemPrompt = u.SystemPrompt
}

func CheckDebug() bool {
	debug := os.Getenv("MERCURIAL_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log may contain prompts and file paths
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (MERCURIAL_DEBUG=%s) ===", os.Getenv("MERCURIAL_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads settings.toml and <data_dir>/config.toml, creating both with
// defaults on first run, then applies MERCURIAL_* environment overrides and
// loads credentials. A .env file in the working directory is read first.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	def := DefaultUserConfig()
	cfg := &Config{DataDirectory: DefaultSystemConfig().DataDirectory}
	cfg.applyUserConfig(def)

	if dataDir := os.Getenv("MERCURIAL_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		if systemCfg.DataDirectory != "" {
			cfg.DataDirectory = systemCfg.DataDirectory
		}
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	store := NewCredentialStore(SecurityMethod(cfg.Security.CredentialStorage), ExpandPath(cfg.Security.SSHKeyPath))
	if passphrase := os.Getenv("MERCURIAL_SSH_PASSPHRASE"); passphrase != "" {
		store.SetPassphrase(passphrase)
	}
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	return cfg, nil
}
