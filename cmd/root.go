package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/sweeper"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "interviewer"
	envPrefix = "INTERVIEWER"
)

type Config struct {
	Interview *InterviewConfig `mapstructure:"interview"`
	Server    *ServerConfig    `mapstructure:"server"`
	Storage   *StorageConfig   `mapstructure:"storage"`
	Sweeper   *SweeperConfig   `mapstructure:"sweeper"`
	AI        *AIConfig        `mapstructure:"ai"`
	Speech    *SpeechConfig    `mapstructure:"speech"`
	Events    *EventsConfig    `mapstructure:"events"`
}

type InterviewConfig struct {
	TotalSteps            int           `mapstructure:"total-steps"`
	MaxTotalSteps         int           `mapstructure:"max-total-steps"`
	RecentQAWindow        int           `mapstructure:"recent-qa-window"`
	ProviderTimeout       time.Duration `mapstructure:"provider-timeout"`
	FallbackQuestionsFile string        `mapstructure:"fallback-questions-file"`
}

type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	Voice bool   `mapstructure:"voice"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SessionTTL time.Duration `mapstructure:"session-ttl"`
	Interval   time.Duration `mapstructure:"interval"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SpeechConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	LanguageCode    string `mapstructure:"language-code"`
	SampleRateHertz int    `mapstructure:"sample-rate-hertz"`
	VoiceName       string `mapstructure:"voice-name"`
}

type EventsConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	Principal string   `mapstructure:"principal"`
}

const (
	providerGemini = "gemini"
	providerNone   = "none"

	storageSQLite = "sqlite"
	storageMemory = "memory"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interviewer runs adaptive technical interviews scored by AI",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interview.total-steps", interview.DefaultTotalSteps)
	v.SetDefault("interview.max-total-steps", interview.DefaultMaxTotalSteps)
	v.SetDefault("interview.recent-qa-window", interview.DefaultRecentQAWindow)
	v.SetDefault("interview.provider-timeout", interview.DefaultProviderTimeout)
	v.SetDefault("interview.fallback-questions-file", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.voice", false)

	v.SetDefault("storage.driver", storageSQLite)
	v.SetDefault("storage.path", "./data/interviews.db")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.session-ttl", sweeper.DefaultTTL)
	v.SetDefault("sweeper.interval", sweeper.DefaultInterval)

	v.SetDefault("ai.provider", providerGemini)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.language-code", "en-US")
	v.SetDefault("speech.sample-rate-hertz", 48000)
	v.SetDefault("speech.voice-name", "en-US-Neural2-F")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "interview.events")
	v.SetDefault("events.principal", app)
}

func initConfig() {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough without a file, but an explicit one must parse.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the config before any component is built.
func (c *Config) Validate() error {
	var errs []error

	if c.Interview == nil || c.Server == nil || c.Storage == nil || c.Sweeper == nil || c.AI == nil || c.Speech == nil || c.Events == nil {
		return errors.New("config sections are missing")
	}

	iv := c.Interview
	if iv.MaxTotalSteps < 1 {
		errs = append(errs, fmt.Errorf("interview.max-total-steps must be positive, got %d", iv.MaxTotalSteps))
	}
	if iv.TotalSteps < 1 || iv.TotalSteps > iv.MaxTotalSteps {
		errs = append(errs, fmt.Errorf("interview.total-steps must be within [1, %d], got %d", iv.MaxTotalSteps, iv.TotalSteps))
	}
	if iv.RecentQAWindow < 1 {
		errs = append(errs, fmt.Errorf("interview.recent-qa-window must be positive, got %d", iv.RecentQAWindow))
	}
	if iv.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("interview.provider-timeout must be positive, got %s", iv.ProviderTimeout))
	}

	switch c.Storage.Driver {
	case storageMemory:
	case storageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver))
	}

	if c.Sweeper.Enabled && (c.Sweeper.SessionTTL <= 0 || c.Sweeper.Interval <= 0) {
		errs = append(errs, errors.New("sweeper.session-ttl and sweeper.interval must be positive"))
	}

	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case providerGemini:
		if c.AI.Gemini == nil {
			errs = append(errs, errors.New("ai.gemini section is required for the gemini provider"))
		}
	case providerNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported ai.provider %q", c.AI.Provider))
	}

	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			errs = append(errs, errors.New("events.brokers are required when events are enabled"))
		}
		if strings.TrimSpace(c.Events.Topic) == "" {
			errs = append(errs, errors.New("events.topic is required when events are enabled"))
		}
	}

	return errors.Join(errs...)
}
