package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pomo-ai/pomo/pkg/speech"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type SynthesisConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	VoiceID      string        `mapstructure:"voice_id"`
	ModelID      string        `mapstructure:"model_id"`
	OutputFormat string        `mapstructure:"output_format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type VADConfig struct {
	AccessKey string  `mapstructure:"access_key"`
	Endpoint  string  `mapstructure:"endpoint"`
	Threshold float64 `mapstructure:"threshold"`
}

type Settings struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	VAD       VADConfig       `mapstructure:"vad"`
	Speech    speech.Config   `mapstructure:"speech"`
	Env       string          `mapstructure:"env"`
	Debug     bool            `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if settings.Server.Port == 0 {
		settings.Server.Port = 8080
	}
	if settings.Gemini.Model == "" {
		settings.Gemini.Model = "gemini-2.0-flash"
	}
	if settings.Synthesis.ModelID == "" {
		settings.Synthesis.ModelID = "eleven_turbo_v2_5"
	}
	if settings.Synthesis.OutputFormat == "" {
		settings.Synthesis.OutputFormat = "pcm_16000"
	}
	if settings.Synthesis.VoiceID == "" {
		settings.Synthesis.VoiceID = speech.DefaultVoiceID
	}
	if settings.VAD.Threshold == 0 {
		settings.VAD.Threshold = 0.5
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
