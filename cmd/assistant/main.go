package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"wear-voice/config"
	"wear-voice/internal/application"
	"wear-voice/internal/infra/audio"
	"wear-voice/internal/infra/httpapi"
	"wear-voice/internal/infra/metrics"
	"wear-voice/internal/infra/openai"
	"wear-voice/internal/infra/permission"
	"wear-voice/internal/infra/pulse"
	"wear-voice/internal/infra/pushover"
	"wear-voice/internal/infra/speech"
	"wear-voice/internal/infra/tts"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to config file")
	envFile := flag.StringP("env", "e", ".env", "env file loaded before the config is expanded")
	logLevel := flag.StringP("log", "l", "", "log level, overrides log.level")
	flag.Parse()

	envErr := godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := setupLogger(cfg.Log)
	if envErr != nil {
		logger.Debug("no env file loaded", "path", *envFile, "error", envErr)
	}
	if err != nil {
		logger.Warn("config file not found, using defaults", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("wear voice stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	hub := httpapi.NewNoticeHub(logger)
	notifier := createNotifier(cfg.Notices, hub, logger)
	instruments := metrics.New()

	pactl := pulse.NewClient(cfg.Routing.Pactl, logger)
	player := audio.NewPlayer(cfg.Audio.PlayerSampleRate, logger)
	synth := instruments.Synthesizer(tts.NewEspeak(cfg.TTS.Binary, cfg.TTS.Rate, player, logger))

	helper := application.NewAudioHelper(
		pactl,
		pactl,
		pulse.NewWatcher(pactl),
		synth,
		notifier,
		cfg.TTS.Language,
		logger,
	)
	defer helper.Release()

	if err := helper.Init(ctx); err != nil {
		logger.Warn("speech output degraded", "error", err)
	}

	source := createAudioSource(cfg.Audio, logger)
	if err := source.Start(ctx); err != nil {
		return err
	}
	defer source.Stop()

	recognizer := speech.NewSessionRecognizer(source, createSTT(cfg.STT, logger), cfg.Recognition.Timeout, logger)
	if cfg.Recognition.ReadyCue != "" {
		recognizer.WithCue(player, cfg.Recognition.ReadyCue)
	}
	defer recognizer.Close()

	policy, err := permission.ParsePolicy(cfg.Permissions.Microphone)
	if err != nil {
		return err
	}
	gate := permission.NewGate(policy, notifier, logger)

	controller := application.NewController(
		helper,
		instruments.Recognizer(recognizer),
		gate,
		instruments.Parser(application.NewKeywordParser(cfg.Commands.NewsKeyword, cfg.Commands.StopKeyword)),
		notifier,
		application.Content{
			News:    cfg.Commands.News,
			Help:    cfg.Commands.Help,
			Message: *cfg.Commands.Message,
		},
		cfg.Recognition.Language,
		logger,
	)
	defer controller.Close()

	unregister, err := helper.OnDeviceChange(ctx, controller.OnOutputAdded)
	if err != nil {
		logger.Warn("audio device changes will not be tracked", "error", err)
	} else {
		defer unregister()
	}

	routes := []httpapi.RouteRegistrar{instruments}
	if r, ok := source.(httpapi.RouteRegistrar); ok {
		routes = append(routes, r)
	}

	server := httpapi.NewServer(cfg.Server.Addr, controller, gate, hub, cfg.Server.RateLimit, logger, routes...)
	if err := server.Start(); err != nil {
		return err
	}

	logger.Info("starting wear voice",
		"audio_source", source.Name(),
		"stt_provider", cfg.STT.Provider,
		"language", cfg.Recognition.Language,
		"permission", policy,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	return nil
}

func createNotifier(cfg config.NoticesConfig, hub *httpapi.NoticeHub, logger *slog.Logger) application.Notifier {
	sinks := []application.Notifier{hub, application.NewLogNotifier(logger)}
	if cfg.Pushover.Enabled {
		sinks = append(sinks, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey))
	}
	return application.NewMultiNotifier(logger, sinks...)
}

func createAudioSource(cfg config.AudioConfig, logger *slog.Logger) application.AudioSource {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir)
	case "microphone":
		return audio.NewMicrophoneSource(cfg.SampleRate, cfg.MaxSeconds, logger)
	default:
		return audio.NewHTTPSource(cfg.AuthToken, logger)
	}
}

func createSTT(cfg config.STTConfig, logger *slog.Logger) application.SpeechToText {
	if cfg.APIKey == "" {
		logger.Warn("stt.api_key not set, only text commands will be recognized")
		return &application.NoopSTT{}
	}

	var httpClient *http.Client
	if cfg.Proxy != "" {
		c, err := openai.NewSocksClient(cfg.Proxy)
		if err != nil {
			logger.Warn("ignoring stt proxy", "proxy", cfg.Proxy, "error", err)
		} else {
			httpClient = c
		}
	}

	if cfg.Provider == config.ProviderOpenAISDK {
		return openai.NewSDKClient(cfg.APIKey, cfg.Language, cfg.BaseURL, httpClient)
	}
	return openai.NewWhisperClient(cfg.APIKey, cfg.Language, cfg.BaseURL, httpClient)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case "tint":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
