package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ClassificationConfig lists the platform literals that mark a message as noise
type ClassificationConfig struct {
	SystemSenders []string `yaml:"system_senders"`
	Placeholders  []string `yaml:"placeholders"`

	// Source is the file the table was read from; empty for the built-in defaults
	Source string `yaml:"-"`
}

// LoadClassificationConfig loads the classification table from a YAML file.
// With an empty path it searches the usual locations and falls back to defaults.
func LoadClassificationConfig(configPath string) (*ClassificationConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/classification.yaml",
			"/etc/chat-relay/classification.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "classification.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, &ConfigError{Field: "CLASSIFICATION_TABLE_PATH", Message: "file not found: " + configPath}
		}
		return DefaultClassificationConfig(), nil
	}

	var config ClassificationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.fillDefaults()
	config.Source = loadedPath

	return &config, nil
}

// fillDefaults fills in default values for lists missing from the file.
// An explicitly empty list in YAML is kept empty.
func (c *ClassificationConfig) fillDefaults() {
	defaults := DefaultClassificationConfig()

	if c.SystemSenders == nil {
		c.SystemSenders = defaults.SystemSenders
	}
	if c.Placeholders == nil {
		c.Placeholders = defaults.Placeholders
	}
}

// DefaultClassificationConfig returns the WeChat table
func DefaultClassificationConfig() *ClassificationConfig {
	return &ClassificationConfig{
		SystemSenders: []string{
			"微信团队",
		},
		Placeholders: []string{
			"收到一条视频/语音聊天消息，请在手机上查看",
			"收到红包，请在手机上查看",
			"收到转账，请在手机上查看",
			"/cgi-bin/mmwebwx-bin/webwxgetpubliclinkimg",
		},
	}
}
