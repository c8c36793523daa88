package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wear-voice/internal/domain"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	STT         STTConfig         `yaml:"stt"`
	TTS         TTSConfig         `yaml:"tts"`
	Routing     RoutingConfig     `yaml:"routing"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Commands    CommandsConfig    `yaml:"commands"`
	Notices     NoticesConfig     `yaml:"notices"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"`
}

type AudioConfig struct {
	Source           string `yaml:"source"`
	FileDir          string `yaml:"file_dir"`
	SampleRate       int    `yaml:"sample_rate"`
	MaxSeconds       int    `yaml:"max_seconds"`
	AuthToken        string `yaml:"auth_token"`
	PlayerSampleRate int    `yaml:"player_sample_rate"`
}

type RecognitionConfig struct {
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	ReadyCue string        `yaml:"ready_cue"`
}

type STTConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
	Proxy    string `yaml:"proxy"`
}

type TTSConfig struct {
	Language string `yaml:"language"`
	Binary   string `yaml:"binary"`
	Rate     int    `yaml:"rate"`
}

type RoutingConfig struct {
	Backend string `yaml:"backend"`
	Pactl   string `yaml:"pactl"`
}

type PermissionsConfig struct {
	Microphone string `yaml:"microphone"`
}

type CommandsConfig struct {
	NewsKeyword string          `yaml:"news_keyword"`
	StopKeyword string          `yaml:"stop_keyword"`
	News        []string        `yaml:"news"`
	Help        string          `yaml:"help"`
	Message     *domain.Message `yaml:"message"`
}

type NoticesConfig struct {
	Pushover PushoverConfig `yaml:"pushover"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	ProviderWhisperHTTP = "whisper-http"
	ProviderOpenAISDK   = "openai-sdk"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML after expanding ${VAR} references from the environment.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Audio.Source == "" {
		c.Audio.Source = "http"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.MaxSeconds == 0 {
		c.Audio.MaxSeconds = 10
	}
	if c.Audio.PlayerSampleRate == 0 {
		c.Audio.PlayerSampleRate = 22050
	}
	if c.Recognition.Language == "" {
		c.Recognition.Language = "pt-BR"
	}
	if c.Recognition.Timeout == 0 {
		c.Recognition.Timeout = 10 * time.Second
	}
	if c.STT.Provider == "" {
		c.STT.Provider = ProviderWhisperHTTP
	}
	if c.STT.Language == "" {
		c.STT.Language = "pt"
	}
	if c.TTS.Language == "" {
		c.TTS.Language = c.Recognition.Language
	}
	if c.Routing.Backend == "" {
		c.Routing.Backend = "pactl"
	}
	if c.Routing.Pactl == "" {
		c.Routing.Pactl = "pactl"
	}
	if c.Permissions.Microphone == "" {
		c.Permissions.Microphone = "prompt"
	}
	if c.Commands.NewsKeyword == "" {
		c.Commands.NewsKeyword = "notícias"
	}
	if c.Commands.StopKeyword == "" {
		c.Commands.StopKeyword = "parar"
	}
	if len(c.Commands.News) == 0 {
		c.Commands.News = domain.DefaultNews()
	}
	if c.Commands.Help == "" {
		c.Commands.Help = domain.DefaultHelp
	}
	if c.Commands.Message == nil {
		m := domain.DefaultMessage()
		c.Commands.Message = &m
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Audio.Source {
	case "http", "file", "microphone":
	default:
		return fmt.Errorf("unknown audio source: %q", c.Audio.Source)
	}
	switch c.STT.Provider {
	case ProviderWhisperHTTP, ProviderOpenAISDK:
	default:
		return fmt.Errorf("unknown stt provider: %q", c.STT.Provider)
	}
	switch c.Routing.Backend {
	case "pactl":
	default:
		return fmt.Errorf("unknown routing backend: %q", c.Routing.Backend)
	}
	switch c.Log.Format {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	if c.Recognition.Timeout < 0 {
		return fmt.Errorf("recognition timeout must be positive, got %s", c.Recognition.Timeout)
	}
	return nil
}
