package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "CAMPUSHUB"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "campushub.db"
	defaultLogLevel          = "info"
	defaultTokenTTLMinutes   = 30
	defaultSMTPPort          = 587
	defaultMailFromName      = "CampusHub"
	defaultSchoolEmailSuffix = ".ac.kr"
	defaultLinkTTLMinutes    = 15
	defaultJWKSURL           = "https://www.googleapis.com/oauth2/v3/certs"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	GoogleClientID string
	GoogleJWKSURL  string

	SessionSigningKey string
	TokenTTLMinutes   int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	SignupCallbackBaseURL string
	SchoolEmailSuffix     string
	LinkTTLMinutes        int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("smtp.port", defaultSMTPPort)
	configViper.SetDefault("smtp.from_name", defaultMailFromName)
	configViper.SetDefault("signup.school_email_suffix", defaultSchoolEmailSuffix)
	configViper.SetDefault("signup.link_ttl_minutes", defaultLinkTTLMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		DatabasePath:          configViper.GetString("database.path"),
		LogLevel:              configViper.GetString("log.level"),
		GoogleClientID:        configViper.GetString("google.client_id"),
		GoogleJWKSURL:         configViper.GetString("google.jwks_url"),
		SessionSigningKey:     configViper.GetString("auth.signing_secret"),
		TokenTTLMinutes:       configViper.GetInt("token.ttl_minutes"),
		SMTPHost:              configViper.GetString("smtp.host"),
		SMTPPort:              configViper.GetInt("smtp.port"),
		SMTPUsername:          configViper.GetString("smtp.username"),
		SMTPPassword:          configViper.GetString("smtp.password"),
		MailFrom:              configViper.GetString("smtp.from"),
		MailFromName:          configViper.GetString("smtp.from_name"),
		SignupCallbackBaseURL: configViper.GetString("signup.callback_base_url"),
		SchoolEmailSuffix:     configViper.GetString("signup.school_email_suffix"),
		LinkTTLMinutes:        configViper.GetInt("signup.link_ttl_minutes"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SignupCallbackBaseURL) == "" {
		return fmt.Errorf("signup.callback_base_url is required")
	}
	if strings.TrimSpace(c.MailFrom) == "" {
		return fmt.Errorf("smtp.from is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.LinkTTLMinutes <= 0 {
		return fmt.Errorf("signup.link_ttl_minutes must be positive")
	}
	return nil
}
