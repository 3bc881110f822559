package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mercurial reads two files. ~/.config/mercurial/settings.toml only locates
// the data directory; <data_dir>/config.toml holds everything else and is the
// file `mercurial provider set` rewrites.
const userConfigFile = "config.toml"

// UserConfigPath returns the location of config.toml inside dataDir.
func UserConfigPath(dataDir string) string {
	return filepath.Join(dataDir, userConfigFile)
}

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	err := decodeOrCreate(GetSettingsFilePath(), cfg, func() error {
		if err := EnsureDir(GetConfigDir()); err != nil {
			return err
		}
		return createFile(GetSettingsFilePath(), GenerateSystemConfigTemplate())
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	path := UserConfigPath(dataDir)
	if FileExists(path) {
		// [[providers]] in the file replace the default list rather than
		// being merged into it entry by entry.
		cfg.Providers = nil
	}
	err := decodeOrCreate(path, cfg, func() error {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return err
		}
		return createFile(path, GenerateUserConfigTemplate())
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveUserConfig rewrites config.toml. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode %s: %w", userConfigFile, err)
	}

	tmp, err := os.CreateTemp(dataDir, userConfigFile+".*")
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", userConfigFile, err)
	}
	defer os.Remove(tmp.Name())

	// CreateTemp opens with 0600, which config.toml keeps.
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save %s: %w", userConfigFile, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save %s: %w", userConfigFile, err)
	}
	if err := os.Rename(tmp.Name(), UserConfigPath(dataDir)); err != nil {
		return fmt.Errorf("failed to save %s: %w", userConfigFile, err)
	}
	return nil
}

// decodeOrCreate decodes path into dst, or calls create when the file does
// not exist yet and leaves dst at its defaults. Keys that match no setting are
// an error so a misspelt option does not silently fall back to its default.
func decodeOrCreate(path string, dst any, create func() error) error {
	if !FileExists(path) {
		if err := create(); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		return nil
	}

	md, err := toml.DecodeFile(path, dst)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown settings in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// createFile writes content to path with mode 0600 unless path exists.
func createFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
