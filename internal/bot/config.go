package bot

import (
	"fmt"
	"strings"

	coreconfig "subbot/core/config"
	coredatabase "subbot/core/database"
)

// LedgerConfig tunes ledger store behaviour.
type LedgerConfig struct {
	// LinkPolicy is "reject" (default) or "replace".
	LinkPolicy string `yaml:"link_policy" envconfig:"LEDGER_LINK_POLICY"`
}

// SettingsConfig points at the YAML settings document.
type SettingsConfig struct {
	Path string `yaml:"path" envconfig:"SETTINGS_PATH"`
}

// ReminderConfig controls the periodic unpaid report. Zero disables it.
type ReminderConfig struct {
	IntervalHours int `yaml:"interval_hours" envconfig:"REMINDER_INTERVAL_HOURS"`
}

// FormsConfig tunes the dialogue engine.
type FormsConfig struct {
	IdleTTLMinutes int `yaml:"idle_ttl_minutes" envconfig:"FORMS_IDLE_TTL_MINUTES"`
}

// Config is the application configuration: the core sections inline plus
// the subscription bot's own.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Ledger   LedgerConfig        `yaml:"ledger"`
	Settings SettingsConfig      `yaml:"settings"`
	Reminder ReminderConfig      `yaml:"reminder"`
	Forms    FormsConfig         `yaml:"forms"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads and validates the application configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Settings.Path) == "" {
		cfg.Settings.Path = "settings.yaml"
	}
	if cfg.Reminder.IntervalHours < 0 {
		return nil, fmt.Errorf("reminder.interval_hours must be >= 0")
	}
	if cfg.Forms.IdleTTLMinutes < 0 {
		return nil, fmt.Errorf("forms.idle_ttl_minutes must be >= 0")
	}
	return &cfg, nil
}
