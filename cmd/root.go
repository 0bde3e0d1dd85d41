package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "smart-job-assistant"
)

type Config struct {
	Listen        string           `mapstructure:"listen"`
	UploadDir     string           `mapstructure:"upload-dir"`
	DatabaseFile  string           `mapstructure:"database-file"`
	MaxUploadMB   int              `mapstructure:"max-upload-mb"`
	MaxInputChars int              `mapstructure:"max-input-chars"`
	Interview     *InterviewConfig `mapstructure:"interview"`
	AI            *AIConfig        `mapstructure:"ai"`
}

type InterviewConfig struct {
	QuestionDurationSeconds int          `mapstructure:"question-duration-seconds"`
	DecodeCommand           string       `mapstructure:"decode-command"`
	RTASR                   *RTASRConfig `mapstructure:"rtasr"`
}

type RTASRConfig struct {
	AppID             string `mapstructure:"app-id"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	URL               string `mapstructure:"url"`
	MinTimeoutSeconds int    `mapstructure:"min-timeout-seconds"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "smart-job-assistant is the backend service for tailored resumes and AI mock interviews",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("interview.rtasr.app-id", "XFYUN_APPID"); err != nil {
		log.Fatalf("binding XFYUN_APPID environment variable: %v", err)
	}
	if err := viper.BindEnv("interview.rtasr.api-key-file", "XFYUN_API_KEY_FILE"); err != nil {
		log.Fatalf("binding XFYUN_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is smart-job-assistant.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// An explicitly named config file must parse.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// The service runs fine on defaults and environment variables alone.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Listen == "" {
		config.Listen = ":8080"
	}
	if config.UploadDir == "" {
		config.UploadDir = "./uploads"
	}
	if config.DatabaseFile == "" {
		config.DatabaseFile = "./data/smart-job-assistant.db"
	}
	if config.Interview == nil {
		config.Interview = &InterviewConfig{}
	}
	if config.Interview.RTASR == nil {
		config.Interview.RTASR = &RTASRConfig{}
	}

	return config, nil
}
