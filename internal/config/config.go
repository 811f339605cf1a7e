package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Addr   string
	DBPath string

	// Inference backend selection: "embedded" or "remote"
	InferenceMode     string
	InferenceEndpoint string
	InferenceTimeout  time.Duration
	DetectionWorkers  int

	// Blob store selection: "http" or "fs"
	BlobBackend  string
	BlobEndpoint string
	BlobDir      string
	BlobBaseURL  string

	// Alert dispatch: "sendgrid" or "console"
	AlertBackend   string
	SendgridAPIKey string
	AlertFrom      string
	AlertRecipient string

	// Timezone used for the burned-in frame timestamp
	Timezone string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("AULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "aula.db")
	v.SetDefault("inference_mode", "embedded")
	v.SetDefault("inference_endpoint", "http://localhost:9000")
	v.SetDefault("inference_timeout", 30*time.Second)
	v.SetDefault("detection_workers", 2)
	v.SetDefault("blob_backend", "fs")
	v.SetDefault("blob_endpoint", "")
	v.SetDefault("blob_dir", "media")
	v.SetDefault("blob_base_url", "http://localhost:8080/media")
	v.SetDefault("alert_backend", "console")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("alert_from", "noreply@localhost")
	v.SetDefault("alert_recipient", "")
	v.SetDefault("timezone", "Africa/Lagos")

	cfg := Config{
		Addr:              v.GetString("addr"),
		DBPath:            v.GetString("db_path"),
		InferenceMode:     v.GetString("inference_mode"),
		InferenceEndpoint: v.GetString("inference_endpoint"),
		InferenceTimeout:  v.GetDuration("inference_timeout"),
		DetectionWorkers:  v.GetInt("detection_workers"),
		BlobBackend:       v.GetString("blob_backend"),
		BlobEndpoint:      v.GetString("blob_endpoint"),
		BlobDir:           v.GetString("blob_dir"),
		BlobBaseURL:       v.GetString("blob_base_url"),
		AlertBackend:      v.GetString("alert_backend"),
		SendgridAPIKey:    v.GetString("sendgrid_api_key"),
		AlertFrom:         v.GetString("alert_from"),
		AlertRecipient:    v.GetString("alert_recipient"),
		Timezone:          v.GetString("timezone"),
	}

	switch cfg.InferenceMode {
	case "embedded", "remote":
	default:
		return Config{}, fmt.Errorf("invalid inference_mode %q (valid: embedded, remote)", cfg.InferenceMode)
	}
	switch cfg.BlobBackend {
	case "http", "fs":
	default:
		return Config{}, fmt.Errorf("invalid blob_backend %q (valid: http, fs)", cfg.BlobBackend)
	}
	switch cfg.AlertBackend {
	case "sendgrid", "console":
	default:
		return Config{}, fmt.Errorf("invalid alert_backend %q (valid: sendgrid, console)", cfg.AlertBackend)
	}
	if cfg.InferenceMode == "remote" && cfg.InferenceEndpoint == "" {
		return Config{}, fmt.Errorf("inference_endpoint required in remote mode")
	}
	if cfg.BlobBackend == "http" && cfg.BlobEndpoint == "" {
		return Config{}, fmt.Errorf("blob_endpoint required for http blob backend")
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
