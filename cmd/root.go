package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/ai/embedcache"
	"github.com/spigell/scheme-matcher/internal/ai/gemini"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/recommend"
	"github.com/spigell/scheme-matcher/internal/server"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/store/postgres"
	"github.com/spigell/scheme-matcher/internal/store/supabase"
)

const (
	app = "scheme-matcher"
)

type Config struct {
	Store     StoreConfig       `mapstructure:"store"`
	Gemini    GeminiConfig      `mapstructure:"gemini"`
	Cache     embedcache.Config `mapstructure:"cache"`
	Recommend recommend.Config  `mapstructure:"recommend"`
	Server    server.Config     `mapstructure:"server"`
}

type StoreConfig struct {
	Backend  string          `mapstructure:"backend"`
	Postgres postgres.Config `mapstructure:"postgres"`
	Supabase supabase.Config `mapstructure:"supabase"`
}

type GeminiConfig struct {
	gemini.Config `mapstructure:",squash"`
	APIKeyFile    string `mapstructure:"api-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "scheme-matcher recommends welfare schemes a citizen is eligible for",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scheme-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("store.backend", store.BackendSupabase)
	viper.SetDefault("server.address", ":5000")
	viper.SetDefault("server.allowed-origins", server.DefaultAllowedOrigins)
	viper.SetDefault("recommend.similarity.threshold", 0.7)
	viper.SetDefault("cache.address", "localhost:6379")

	envs := map[string]string{
		"store.supabase.url":      "SUPABASE_URL",
		"store.supabase.key":      "SUPABASE_ANON_KEY",
		"store.postgres.host":     "DATABASE_HOST",
		"store.postgres.password": "DATABASE_PASSWORD",
		"gemini.api-key":          "GEMINI_API_KEY",
		"cache.address":           "REDIS_ADDR",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}

func initConfig() {
	// .env is optional, real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Environment alone is enough when no explicit config was requested.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{
		App:     app,
		Version: buildVersion(),
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	return l
}
