package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/kbtrust/internal/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// OpenAIConfig holds the optional synthesis collaborator settings. An
// empty key disables the collaborator and the pipeline stays fully
// deterministic.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// VerifierConfig controls verification gating. Blocking false keeps the
// verifier advisory: reports are recorded but never stop persistence.
type VerifierConfig struct {
	Blocking bool
}

// AppConfig is the full server configuration.
type AppConfig struct {
	DB       db.Config
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Verifier VerifierConfig
}

// Load reads config.yaml from configPath, with KB_-prefixed environment
// overrides (e.g. KB_DATABASE_HOST, KB_OPENAI_API_KEY).
func Load(configPath string) (AppConfig, error) {
	cfg := AppConfig{
		DB:     db.DefaultConfig(),
		Server: ServerConfig{Addr: ":8080"},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("KB")

	// Map nested keys to flat env vars
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("openai.api_key")
	v.BindEnv("openai.model")
	v.BindEnv("verifier.blocking")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("openai.api_key") {
		cfg.OpenAI.APIKey = v.GetString("openai.api_key")
	}
	if v.IsSet("openai.model") {
		cfg.OpenAI.Model = v.GetString("openai.model")
	}
	if v.IsSet("verifier.blocking") {
		cfg.Verifier.Blocking = v.GetBool("verifier.blocking")
	}

	return cfg, nil
}
