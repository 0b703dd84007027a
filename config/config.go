// Package config reads the bot's settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"invite-reward-bot/storage"
	"invite-reward-bot/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix namespaces every variable: INVITEBOT_DATA_FILE and so on. Variables with an
// explicit name are also read without the prefix, so plain TOKEN works.
const Prefix = "invitebot"

type Config struct {
	Token string `envconfig:"TOKEN"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	DataFile       string `envconfig:"DATA_FILE" default:"bot_data.json"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	BadgerDir      string `envconfig:"BADGER_DIR" default:"data/badger"`

	HTTPAddress  string `envconfig:"HTTP_ADDRESS" default:":8080"`
	ServiceToken string `envconfig:"SERVICE_TOKEN"`

	MinAccountAge    time.Duration `envconfig:"MIN_ACCOUNT_AGE" default:"72h"`
	PresenceInterval time.Duration `envconfig:"PRESENCE_INTERVAL" default:"15s"`
	BackupInterval   time.Duration `envconfig:"BACKUP_INTERVAL" default:"6h"`

	R2AccountID       string `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `envconfig:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `envconfig:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `envconfig:"R2_BUCKET_NAME"`
	R2Prefix          string `envconfig:"R2_PREFIX" default:"invite-bot"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"DEVELOPMENT"`
}

// Load reads .env when present, then the environment. dotenv reports whether a .env
// file was found.
func Load() (cfg *Config, dotenv bool, err error) {
	dotenv = godotenv.Load() == nil
	cfg = &Config{}
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, dotenv, fmt.Errorf("error processing environment: %w", err)
	}
	return cfg, dotenv, nil
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StorageBackend) {
	case storage.BackendFile:
		if c.DataFile == "" {
			return errors.New("DATA_FILE must be set for the file backend")
		}
	case storage.BackendPostgres, storage.BackendSqlite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the %s backend", c.StorageBackend)
		}
	case storage.BackendBadger:
		if c.BadgerDir == "" {
			return errors.New("BADGER_DIR must be set for the badger backend")
		}
	default:
		return fmt.Errorf("invalid storage backend %q (must be file, postgres, sqlite or badger)", c.StorageBackend)
	}
	if c.MinAccountAge <= 0 {
		return errors.New("MIN_ACCOUNT_AGE must be positive")
	}
	return nil
}

// ValidateServe adds the checks for running the bot itself.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Token == "" {
		return errors.New("TOKEN must be set")
	}
	if c.PresenceInterval <= 0 {
		return errors.New("PRESENCE_INTERVAL must be positive")
	}
	if c.R2().Enabled() && c.BackupInterval <= 0 {
		return errors.New("BACKUP_INTERVAL must be positive when R2 backups are on")
	}
	return nil
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:     c.StorageBackend,
		DataFile:    c.DataFile,
		DatabaseURL: c.DatabaseURL,
		BadgerDir:   c.BadgerDir,
	}
}

func (c *Config) R2() utils.R2Config {
	return utils.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		AccessKeySecret: c.R2AccessKeySecret,
		Bucket:          c.R2Bucket,
		Prefix:          c.R2Prefix,
	}
}
