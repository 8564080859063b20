// Package config loads service configuration from the environment with an
// optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// Config is the full service configuration.
type Config struct {
	HTTPPort      string   `yaml:"http_port"`
	NATSURL       string   `yaml:"nats_url"`
	NotifyChannel string   `yaml:"notify_channel"`
	Database      Database `yaml:"database"`
	// Texts optionally replaces the built-in reference-text pool.
	Texts []string `yaml:"texts"`
}

// FromEnv reads TYPESPRINT_* and DB_* environment variables with defaults.
func FromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		HTTPPort:      getEnv("TYPESPRINT_PORT", "8080"),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		NotifyChannel: getEnv("TYPESPRINT_NOTIFY_CHANNEL", "typesprint_row_changes"),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "typesprint"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}
}

// Load builds the config from the environment, then overlays the YAML file
// at path if it exists. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
