package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// caseSensitiveSections lists the maps whose keys are credentials.
type caseSensitiveSections struct {
	Auth struct {
		UsernameMap map[string]string `yaml:"username_map"`
		PasswordMap map[string]string `yaml:"password_map"`
	} `yaml:"auth"`
	Storage struct {
		Memory struct {
			Accounts map[string]string `yaml:"accounts"`
		} `yaml:"memory"`
		Badger struct {
			Accounts map[string]string `yaml:"accounts"`
		} `yaml:"badger"`
	} `yaml:"storage"`
}

// restoreCaseSensitiveMaps re-reads credential maps from a YAML config file
// with their keys as written.
func restoreCaseSensitiveMaps(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var sections caseSensitiveSections
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if sections.Auth.UsernameMap != nil {
		cfg.Auth.UsernameMap = sections.Auth.UsernameMap
	}
	if sections.Auth.PasswordMap != nil {
		cfg.Auth.PasswordMap = sections.Auth.PasswordMap
	}
	if accounts := sections.Storage.Memory.Accounts; accounts != nil {
		if cfg.Storage.Memory == nil {
			cfg.Storage.Memory = make(map[string]any)
		}
		cfg.Storage.Memory["accounts"] = accounts
	}
	if accounts := sections.Storage.Badger.Accounts; accounts != nil {
		if cfg.Storage.Badger == nil {
			cfg.Storage.Badger = make(map[string]any)
		}
		cfg.Storage.Badger["accounts"] = accounts
	}
	return nil
}
