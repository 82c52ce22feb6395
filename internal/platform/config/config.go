package config

import "time"

type Config struct {
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	ASR           ASRConfig           `yaml:"asr" mapstructure:"asr"`
	Segmenter     SegmenterConfig     `yaml:"segmenter" mapstructure:"segmenter"`
	Readability   ReadabilityConfig   `yaml:"readability" mapstructure:"readability"`
	Diarization   DiarizationConfig   `yaml:"diarization" mapstructure:"diarization"`
	Normalize     NormalizeConfig     `yaml:"normalize" mapstructure:"normalize"`
	Enhance       EnhanceConfig       `yaml:"enhance" mapstructure:"enhance"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Queue         QueueConfig         `yaml:"queue" mapstructure:"queue"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type ServerConfig struct {
	IP          string   `yaml:"ip" mapstructure:"ip"`
	Port        int      `yaml:"port" mapstructure:"port"`
	UploadDir   string   `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadMB int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
}

type StorageConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ASRConfig selects and tunes the recognizer backend.
type ASRConfig struct {
	Backend     string        `yaml:"backend" mapstructure:"backend"`
	Quality     string        `yaml:"quality" mapstructure:"quality"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Language    string        `yaml:"language" mapstructure:"language"`
	Prompt      string        `yaml:"prompt" mapstructure:"prompt"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Command     string        `yaml:"command" mapstructure:"command"`
	Args        []string      `yaml:"args" mapstructure:"args"`
	BeamSize    int           `yaml:"beam_size" mapstructure:"beam_size"`
	BestOf      int           `yaml:"best_of" mapstructure:"best_of"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type SegmenterConfig struct {
	Strategy      string    `yaml:"strategy" mapstructure:"strategy"`
	ChunkSeconds  float64   `yaml:"chunk_seconds" mapstructure:"chunk_seconds"`
	// PeakNormalize scales decoded files so the loudest sample reaches full scale.
	PeakNormalize bool      `yaml:"peak_normalize" mapstructure:"peak_normalize"`
	MergeGap      float64   `yaml:"merge_gap" mapstructure:"merge_gap"`
	MinWindow     float64   `yaml:"min_window" mapstructure:"min_window"`
	MaxWindow     float64   `yaml:"max_window" mapstructure:"max_window"`
	VAD           VADConfig `yaml:"vad" mapstructure:"vad"`
}

type VADConfig struct {
	FrameMs        int     `yaml:"frame_ms" mapstructure:"frame_ms"`
	ThresholdRatio float64 `yaml:"threshold_ratio" mapstructure:"threshold_ratio"`
	MinSpeech      float64 `yaml:"min_speech" mapstructure:"min_speech"`
	MinSilence     float64 `yaml:"min_silence" mapstructure:"min_silence"`
}

type ReadabilityConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	MaxWords     int  `yaml:"max_words" mapstructure:"max_words"`
	MaxSentences int  `yaml:"max_sentences" mapstructure:"max_sentences"`
}

type DiarizationConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	MinSilence  float64 `yaml:"min_silence" mapstructure:"min_silence"`
	MaxSpeakers int     `yaml:"max_speakers" mapstructure:"max_speakers"`
}

type NormalizeConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

type EnhanceConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Model   string        `yaml:"model" mapstructure:"model"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type PipelineConfig struct {
	WorkDir      string        `yaml:"work_dir" mapstructure:"work_dir"`
	Cleanup      string        `yaml:"cleanup" mapstructure:"cleanup"`
	StageRetries int           `yaml:"stage_retries" mapstructure:"stage_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

type QueueConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// QualityPresets maps a quality name to a recognizer model.
var QualityPresets = map[string]string{
	"fast":     "tiny",
	"balanced": "small",
	"accurate": "medium",
}

// ResolvedModel returns the explicit model, or the preset model for Quality.
func (c ASRConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	if m, ok := QualityPresets[c.Quality]; ok {
		return m
	}
	return QualityPresets["balanced"]
}
