package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderVertex   = "vertex"
	ProviderMock     = "mock"
)

const (
	BackendNone      = "none"
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendSheets    = "sheets"
)

const (
	envPrefix  = "DOJO"
	configName = "dojo"
	configType = "toml"
	appDir     = "smalltalk-dojo"
)

type Config struct {
	Mode Mode
	Port string

	LogLevel  string
	LogFormat string // "json" or "text"

	LLM    LLMConfig
	GCP    GCPConfig
	Coach  CoachConfig
	Store  StorageConfig
	Sheets SheetsConfig
	Speech SpeechConfig

	PersonasFile string
	SecretsDir   string
}

type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
}

type GCPConfig struct {
	ProjectID string
	Location  string
}

type CoachConfig struct {
	WordLimit        int
	CritiqueLanguage string
}

type StorageConfig struct {
	Backend    string
	SQLitePath string
}

type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

type SpeechConfig struct {
	Enabled            bool
	APIKey             string
	TTSModel           string
	TranscriptionModel string
	Language           string
	AudioDir           string
}

// defaultModels are used when llm.model is not set.
var defaultModels = map[string]string{
	ProviderDeepSeek: "deepseek-chat",
	ProviderOpenAI:   "gpt-4o-mini",
	ProviderGemini:   "gemini-2.5-flash-lite",
	ProviderVertex:   "gemini-2.5-flash-lite",
	ProviderMock:     "mock",
}

// NewViper returns a viper instance with defaults and the DOJO_ env binding.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 1.3)

	v.SetDefault("gcp.project", "")
	v.SetDefault("gcp.location", "us-central1")

	v.SetDefault("coach.word_limit", 50)
	v.SetDefault("coach.critique_language", "Traditional Chinese")

	v.SetDefault("storage.sqlite_path", "dojo.db")

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "Transcript!A:E")
	v.SetDefault("sheets.credentials_file", "")

	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.tts_model", "tts-1")
	v.SetDefault("speech.transcription_model", "whisper-1")
	v.SetDefault("speech.language", "en")
	v.SetDefault("speech.audio_dir", filepath.Join(os.TempDir(), appDir, "audio"))

	v.SetDefault("personas.file", "")
	v.SetDefault("secrets.dir", defaultSecretsDir())

	return v
}

func defaultSecretsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDir, "secrets")
}

// Load reads the optional config file and builds the config. A nil v uses
// NewViper. If v already has a config file set it must exist; otherwise
// dojo.toml is searched in the working directory and the user config dir.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	mode := ModeLocal
	if strings.EqualFold(v.GetString("mode"), string(ModeGCP)) {
		mode = ModeGCP
	}

	cfg := &Config{
		Mode: mode,
		Port: v.GetString("port"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: strings.ToLower(v.GetString("log.format")),

		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			APIKey:      v.GetString("llm.api_key"),
			Temperature: float32(v.GetFloat64("llm.temperature")),
		},
		GCP: GCPConfig{
			ProjectID: v.GetString("gcp.project"),
			Location:  v.GetString("gcp.location"),
		},
		Coach: CoachConfig{
			WordLimit:        v.GetInt("coach.word_limit"),
			CritiqueLanguage: v.GetString("coach.critique_language"),
		},
		Store: StorageConfig{
			Backend:    strings.ToLower(v.GetString("storage.backend")),
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   v.GetString("sheets.spreadsheet_id"),
			Range:           v.GetString("sheets.range"),
			CredentialsFile: v.GetString("sheets.credentials_file"),
		},
		Speech: SpeechConfig{
			Enabled:            v.GetBool("speech.enabled"),
			APIKey:             v.GetString("speech.api_key"),
			TTSModel:           v.GetString("speech.tts_model"),
			TranscriptionModel: v.GetString("speech.transcription_model"),
			Language:           v.GetString("speech.language"),
			AudioDir:           v.GetString("speech.audio_dir"),
		},
		PersonasFile: v.GetString("personas.file"),
		SecretsDir:   v.GetString("secrets.dir"),
	}

	// provider and backend defaults depend on the mode
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderDeepSeek
		if mode == ModeGCP {
			cfg.LLM.Provider = ProviderVertex
		}
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
		if mode == ModeGCP {
			cfg.Store.Backend = BackendFirestore
		}
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == ProviderDeepSeek {
		cfg.LLM.BaseURL = "https://api.deepseek.com"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, ok := defaultModels[c.LLM.Provider]; !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of deepseek, openai, gemini, vertex, mock", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f must be between 0 and 2", c.LLM.Temperature))
	}
	if c.Coach.WordLimit <= 0 {
		errs = append(errs, fmt.Errorf("coach.word_limit must be positive"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.LogFormat))
	}

	switch c.Store.Backend {
	case BackendNone, BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path must be set for the sqlite backend"))
		}
	case BackendFirestore:
		if c.GCP.ProjectID == "" {
			errs = append(errs, errors.New("gcp.project must be set for the firestore backend"))
		}
	case BackendSheets:
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, errors.New("sheets.spreadsheet_id must be set for the sheets backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of none, memory, sqlite, firestore, sheets", c.Store.Backend))
	}

	if c.LLM.Provider == ProviderVertex && c.GCP.ProjectID == "" {
		errs = append(errs, errors.New("gcp.project must be set for the vertex provider"))
	}

	return errors.Join(errs...)
}

// APIKeyEnvAliases lists the conventional provider variables checked after
// DOJO_LLM_API_KEY.
func (c *Config) APIKeyEnvAliases() []string {
	switch c.LLM.Provider {
	case ProviderDeepSeek:
		return []string{"DEEPSEEK_API_KEY"}
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	default:
		return nil
	}
}
