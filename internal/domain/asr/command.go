package asr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
)

func init() {
	Register(BackendCommand, newCommandRecognizer)
}

// commandRecognizer runs a local program per file. The program prints a JSON
// document shaped like a whisper verbose response on stdout:
//
//	{"text": "...", "language": "vi", "segments": [{"start": 0, "end": 2.5, "text": "..."}]}
//
// Arguments may reference {audio}, {model}, {language}, {prompt},
// {temperature}, {beam_size} and {best_of}.
type commandRecognizer struct {
	cfg    config.ASRConfig
	model  string
	logger *logging.Logger
}

func newCommandRecognizer(cfg config.ASRConfig, logger *logging.Logger) (Recognizer, error) {
	if cfg.Command == "" {
		return nil, errors.New(errors.KindConfig, "asr.command", "command is required")
	}
	return &commandRecognizer{cfg: cfg, model: cfg.ResolvedModel(), logger: logger}, nil
}

func (r *commandRecognizer) Init(context.Context) error {
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		return errors.Wrap(errors.KindConfig, "asr.command.init", fmt.Sprintf("command %q not found", r.cfg.Command), err)
	}
	r.logger.InfoTag("ASR", "recognizer ready: backend=command cmd=%s model=%s", r.cfg.Command, r.model)
	return nil
}

func (r *commandRecognizer) Recognize(ctx context.Context, path string, opts Options) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		return Result{}, errors.Wrap(errors.KindTransientIO, "asr.command.recognize", "staged audio not readable", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(r.cfg.Timeout))
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Command, r.expandArgs(path, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "recognizer command failed"
		}
		return Result{}, errors.Wrap(errors.KindBackend, "asr.command.recognize", msg, err)
	}

	return decodeResult(stdout.Bytes())
}

func (r *commandRecognizer) expandArgs(path string, opts Options) []string {
	replacer := strings.NewReplacer(
		"{audio}", path,
		"{model}", r.model,
		"{language}", opts.Language,
		"{prompt}", opts.Prompt,
		"{temperature}", strconv.FormatFloat(float64(opts.Temperature), 'f', -1, 32),
		"{beam_size}", strconv.Itoa(opts.BeamSize),
		"{best_of}", strconv.Itoa(opts.BestOf),
	)
	args := make([]string, len(r.cfg.Args))
	for i, a := range r.cfg.Args {
		args[i] = replacer.Replace(a)
	}
	return args
}

func decodeResult(raw []byte) (Result, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Result{}, errors.New(errors.KindBackend, "asr.command.decode", "recognizer produced no output")
	}
	var result Result
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return Result{}, errors.Wrap(errors.KindBackend, "asr.command.decode", "recognizer output is not valid JSON", err)
	}
	result.Text = strings.TrimSpace(result.Text)
	for i := range result.Segments {
		result.Segments[i].Text = strings.TrimSpace(result.Segments[i].Text)
	}
	return result, nil
}

func (r *commandRecognizer) Backend() Backend { return BackendCommand }

func (r *commandRecognizer) Model() string { return r.model }

func (r *commandRecognizer) Close() error { return nil }
