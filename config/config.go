// Package config loads runtime settings from the environment and model
// anchors from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bcdannyboy/localvol/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LV"

const (
	ModeReport = "report"
	ModeSlack  = "slack"
)

// Config is the runtime configuration of the localvol command.
type Config struct {
	Mode       string `envconfig:"MODE" default:"report" validate:"oneof=report slack"`
	ModelFile  string `envconfig:"MODEL_FILE" default:"model.yaml" validate:"required"`
	OutputFile string `envconfig:"OUTPUT_FILE" default:"localvol_report.json" validate:"required"`

	StrikeCount     int     `envconfig:"STRIKE_COUNT" default:"21" validate:"gte=2,lte=10001"`
	StrikeStdevs    float64 `envconfig:"STRIKE_STDEVS" default:"3" validate:"gt=0"`
	MinReturnOnRisk float64 `envconfig:"MIN_ROR" default:"0.15" validate:"gte=0"`
	Confidence      float64 `envconfig:"CONFIDENCE" default:"0.95" validate:"gt=0,lt=1"`
	Workers         int     `envconfig:"WORKERS" default:"0" validate:"gte=0"`
	ShowProgress    bool    `envconfig:"PROGRESS" default:"true"`

	SlackAppToken string `envconfig:"SLACK_APP_TOKEN" validate:"required_if=Mode slack"`
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" validate:"required_if=Mode slack"`

	Log logger.Config `envconfig:"LOG"`
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named; missing files
// are skipped), then the LV_* environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
