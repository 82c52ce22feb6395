package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "vietscribe.log",
		},
		Server: ServerConfig{
			IP:          "0.0.0.0",
			Port:        8080,
			UploadDir:   "data/uploads",
			MaxUploadMB: 512,
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Enabled: true,
			DSN:     "data/vietscribe.db",
		},
		ASR: ASRConfig{
			Backend:     "openai",
			Quality:     "balanced",
			Language:    "vi",
			Temperature: 0,
			BeamSize:    5,
			BestOf:      5,
			Timeout:     5 * time.Minute,
		},
		Segmenter: SegmenterConfig{
			Strategy:      "fixed",
			ChunkSeconds:  45,
			PeakNormalize: true,
			MergeGap:      0.5,
			MinWindow:     20,
			MaxWindow:     30,
			VAD: VADConfig{
				FrameMs:        30,
				ThresholdRatio: 2.0,
				MinSpeech:      0.25,
				MinSilence:     0.3,
			},
		},
		Readability: ReadabilityConfig{
			Enabled:      true,
			MaxWords:     15,
			MaxSentences: 2,
		},
		Diarization: DiarizationConfig{
			Enabled:     false,
			MinSilence:  0.5,
			MaxSpeakers: 2,
		},
		Normalize: NormalizeConfig{
			Enabled: true,
		},
		Enhance: EnhanceConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
			Timeout: 2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			WorkDir:      filepath.Join(os.TempDir(), "vietscribe"),
			Cleanup:      "immediate",
			StageRetries: 3,
			RetryBackoff: 200 * time.Millisecond,
		},
		Queue: QueueConfig{
			Workers:    1,
			MaxRetries: 0,
		},
	}
}
