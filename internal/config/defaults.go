package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"reminder": map[string]interface{}{
			"enabled":       true,
			"scan_period":   "20s",
			"startup_grace": "24h",
			"snooze":        "10m",
			"keys_file":     "data/dismissed_reminders.txt",
			"watch_keys":    true,
		},
		"tasks": map[string]interface{}{
			"db_path": "~/.tim/tasks.db",
			"watch":   true,
		},
		"ui": map[string]interface{}{
			"colored_output": true,
		},
		"log": map[string]interface{}{
			"level": "info",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.tim/config.yaml"
}
