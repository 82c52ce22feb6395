package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vietscribe-go/internal/platform/errors"
)

// EnvConfigPath names the environment variable holding an explicit config path.
const EnvConfigPath = "VIETSCRIBE_CONFIG"

var searchPaths = []string{".config.yaml", "config.yaml", "data/config.yaml"}

// Loader reads configuration from YAML, .env and environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that searches the default locations.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file. An empty path keeps the search behaviour.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration: defaults, then the YAML file if any, then
// environment overrides. The result is validated.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// A missing .env is normal.
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	path, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.read", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.parse", fmt.Sprintf("invalid yaml in %s", path), err)
		}
	} else {
		path = "defaults"
	}

	if err := applyEnv(cfg); err != nil {
		return nil, errors.Wrap(errors.KindConfig, "config.env", "invalid environment override", err)
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() (string, error) {
	explicit := l.path
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrap(errors.KindConfig, "config.resolve", "config file not found", err)
		}
		return explicit, nil
	}
	for _, candidate := range searchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func applyEnv(cfg *Config) error {
	cfg.Log.Level = getEnvOrDefault("VIETSCRIBE_LOG_LEVEL", cfg.Log.Level)
	cfg.ASR.Backend = getEnvOrDefault("VIETSCRIBE_ASR_BACKEND", cfg.ASR.Backend)
	cfg.ASR.Model = getEnvOrDefault("VIETSCRIBE_ASR_MODEL", cfg.ASR.Model)
	cfg.ASR.Quality = getEnvOrDefault("VIETSCRIBE_ASR_QUALITY", cfg.ASR.Quality)
	cfg.ASR.BaseURL = getEnvOrDefault("VIETSCRIBE_ASR_BASE_URL", cfg.ASR.BaseURL)
	cfg.ASR.APIKey = getEnvOrDefault("VIETSCRIBE_ASR_API_KEY", cfg.ASR.APIKey)
	if cfg.ASR.APIKey == "" {
		cfg.ASR.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	cfg.Enhance.APIKey = getEnvOrDefault("VIETSCRIBE_ENHANCE_API_KEY", cfg.Enhance.APIKey)
	if cfg.Enhance.APIKey == "" {
		cfg.Enhance.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	cfg.Storage.DSN = getEnvOrDefault("VIETSCRIBE_DB_DSN", cfg.Storage.DSN)
	cfg.Pipeline.WorkDir = getEnvOrDefault("VIETSCRIBE_WORK_DIR", cfg.Pipeline.WorkDir)

	port, err := parseOptionalIntEnv("VIETSCRIBE_SERVER_PORT")
	if err != nil {
		return err
	}
	if port != nil {
		cfg.Server.Port = *port
	}

	diarize, err := parseBoolEnv("VIETSCRIBE_DIARIZE", cfg.Diarization.Enabled)
	if err != nil {
		return err
	}
	cfg.Diarization.Enabled = diarize

	enhance, err := parseBoolEnv("VIETSCRIBE_ENHANCE", cfg.Enhance.Enabled)
	if err != nil {
		return err
	}
	cfg.Enhance.Enabled = enhance
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func (l *Loader) validate(cfg *Config) error {
	invalid := func(op, msg string) error {
		return errors.New(errors.KindConfig, "config.validate."+op, msg)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return invalid("server", fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	switch cfg.ASR.Backend {
	case "openai", "whisper-server", "command":
	default:
		return invalid("asr", fmt.Sprintf("unknown asr backend %q", cfg.ASR.Backend))
	}
	if cfg.ASR.Backend == "command" && cfg.ASR.Command == "" {
		return invalid("asr", "asr.command is required for the command backend")
	}
	if cfg.ASR.Backend == "whisper-server" && cfg.ASR.BaseURL == "" {
		return invalid("asr", "asr.base_url is required for the whisper-server backend")
	}
	if cfg.ASR.Quality != "" {
		if _, ok := QualityPresets[cfg.ASR.Quality]; !ok {
			return invalid("asr", fmt.Sprintf("unknown quality preset %q", cfg.ASR.Quality))
		}
	}
	switch cfg.Segmenter.Strategy {
	case "fixed", "vad":
	default:
		return invalid("segmenter", fmt.Sprintf("unknown segmenter strategy %q", cfg.Segmenter.Strategy))
	}
	if cfg.Segmenter.MinWindow <= 0 || cfg.Segmenter.MaxWindow < cfg.Segmenter.MinWindow {
		return invalid("segmenter", fmt.Sprintf("invalid window bounds [%g, %g]", cfg.Segmenter.MinWindow, cfg.Segmenter.MaxWindow))
	}
	if cfg.Segmenter.MergeGap < 0 {
		return invalid("segmenter", "merge_gap must not be negative")
	}
	if cfg.Readability.MaxWords <= 0 || cfg.Readability.MaxSentences <= 0 {
		return invalid("readability", "max_words and max_sentences must be positive")
	}
	if cfg.Diarization.MaxSpeakers < 1 {
		return invalid("diarization", "max_speakers must be at least 1")
	}
	if cfg.Diarization.MinSilence < 0 {
		return invalid("diarization", "min_silence must not be negative")
	}
	switch cfg.Pipeline.Cleanup {
	case "immediate", "deferred":
	default:
		return invalid("pipeline", fmt.Sprintf("unknown cleanup mode %q", cfg.Pipeline.Cleanup))
	}
	if cfg.Pipeline.StageRetries < 1 {
		return invalid("pipeline", "stage_retries must be at least 1")
	}
	if cfg.Queue.Workers < 1 {
		return invalid("queue", "workers must be at least 1")
	}
	return nil
}
