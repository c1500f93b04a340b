package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/logger"
)

// defaultConfigTemplate is written by InitUserConfig. Values mirror the
// defaults in defaults.go so the file documents what can be changed.
const defaultConfigTemplate = `# PromptForge configuration
# Precedence: project promptforge.toml > this file > /etc/promptforge/config.toml > environment

[database]
path = "promptforge.db"

[server]
host = "localhost"
port = 8080
debug = false

[providers]
default = "anthropic"

[providers.openai]
# api_key = ""            # or set OPENAI_API_KEY
base_url = "https://api.openai.com/v1"
model = "gpt-4-turbo-preview"

[providers.anthropic]
# api_key = ""            # or set ANTHROPIC_API_KEY
base_url = "https://api.anthropic.com"

[ai]
analysis_model = "claude-3-sonnet-20240229"
execution_model = "claude-3-sonnet-20240229"
max_prompt_length = 50000
analysis_timeout_seconds = 30
execution_timeout_seconds = 60
requests_per_minute = 0       # 0 = unlimited
block_private_ips = false

[library]
import_dir = ""               # watched directory for prompt files, empty = disabled
`

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		logger.Warnf("Failed to delete old backup %s: %v", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// UserConfigPath returns the path to the user config file in ~/.promptforge/config.toml
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".promptforge", "config.toml")
}

// InitUserConfig writes a commented default config file to the user config
// path and returns that path. Existing files are left untouched.
func InitUserConfig() (string, error) {
	configPath := UserConfigPath()
	if configPath == "" {
		return "", errors.New("could not determine home directory")
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, errors.Newf("config file already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return "", errors.Wrap(err, "failed to create .promptforge directory")
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), DefaultFilePermissions); err != nil {
		return "", errors.Wrap(err, "failed to write default config")
	}

	return configPath, nil
}

// loadOrInitializeUserConfig loads the user config file, or creates an empty one if it doesn't exist
func loadOrInitializeUserConfig() (map[string]interface{}, string, error) {
	configPath := UserConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.promptforge directory exists
	userDir := filepath.Dir(configPath)
	if err := os.MkdirAll(userDir, DefaultDirPermissions); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .promptforge directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse user config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveUserConfig writes the config to the user config file with backup
func saveUserConfig(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write user config")
	}

	return nil
}

// SetValue updates a single dotted key (e.g. "providers.default") in the
// user config file, creating intermediate sections as needed. The cached
// configuration is reset so the next Load observes the change.
func SetValue(key string, value interface{}) error {
	if key == "" {
		return errors.New("config key cannot be empty")
	}

	config, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load user config")
	}

	// Walk the dotted path, creating sections as needed
	parts := strings.Split(key, ".")
	section := config
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			section[part] = child
		}
		section = child
	}
	section[parts[len(parts)-1]] = value

	if err := saveUserConfig(config, configPath); err != nil {
		return err
	}

	Reset()
	return nil
}
