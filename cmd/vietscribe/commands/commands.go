// Package commands defines the vietscribe command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"vietscribe-go/internal/app/pipeline"
	"vietscribe-go/internal/bootstrap"
	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/domain/diarization"
	"vietscribe-go/internal/domain/export"
	"vietscribe-go/internal/domain/textnorm"
	"vietscribe-go/internal/domain/transcript"
	platformconfig "vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/logging"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:           "vietscribe",
		Short:         "Transcribe Vietnamese speech recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	Transcribe = &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one recording and write the transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  transcribe,
	}

	Serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket service",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	Rules = &cobra.Command{
		Use:   "rules",
		Short: "Inspect normalization rules",
	}

	RulesCheck = &cobra.Command{
		Use:   "check [rules-file]",
		Short: "Validate a rules file, or the embedded rules when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rulesCheck,
	}

	Normalize = &cobra.Command{
		Use:   "normalize",
		Short: "Normalize text read from stdin",
		Args:  cobra.NoArgs,
		RunE:  normalize,
	}

	Attribute = &cobra.Command{
		Use:   "attribute <transcript-file> <audio-file>",
		Short: "Label the lines of a timestamped transcript with speakers",
		Args:  cobra.ExactArgs(2),
		RunE:  attribute,
	}

	Evaluate = &cobra.Command{
		Use:   "evaluate <reference-file> <hypothesis-file>",
		Short: "Score a transcript against a reference (WER/CER)",
		Args:  cobra.ExactArgs(2),
		RunE:  evaluate,
	}
)

func init() {
	Root.PersistentFlags().String("config", "", "path to the YAML config file")

	Root.AddCommand(Transcribe)
	Root.AddCommand(Serve)
	Root.AddCommand(Rules)
	Rules.AddCommand(RulesCheck)
	Root.AddCommand(Normalize)
	Root.AddCommand(Attribute)
	Root.AddCommand(Evaluate)

	Transcribe.Flags().String("strategy", "", "segmentation strategy: fixed or vad (default from config)")
	Transcribe.Flags().Bool("diarize", false, "attribute segments to speakers")
	Transcribe.Flags().Bool("enhance", false, "run the LLM enhancement pass")
	Transcribe.Flags().String("format", string(export.FormatText), "output format: "+formatNames())
	Transcribe.Flags().StringP("output", "o", "", "output file (default stdout)")
	Transcribe.Flags().Bool("no-store", false, "do not persist the run")
	Transcribe.Flags().Bool("quiet", false, "suppress progress output")

	Normalize.Flags().String("rules", "", "rules file (default embedded rules)")
	Attribute.Flags().Float64("min-silence", 0.5, "pause in seconds that may switch the speaker")
	Attribute.Flags().Int("max-speakers", 2, "number of speakers to rotate through")
	Evaluate.Flags().Bool("json", false, "print the score as JSON")
}

func formatNames() string {
	var names []string
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func bootstrapOptions(cmd *cobra.Command) bootstrap.Options {
	path, _ := cmd.Flags().GetString("config")
	return bootstrap.Options{ConfigPath: path, Console: cmd.ErrOrStderr()}
}

func transcribe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	format, err := export.ParseFormat(mustString(flags.GetString("format")))
	if err != nil {
		return err
	}
	var strategy pipeline.Strategy
	if name := mustString(flags.GetString("strategy")); name != "" {
		if strategy, err = pipeline.ParseStrategy(name); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	opts := bootstrapOptions(cmd)
	opts.NoStore, _ = flags.GetBool("no-store")
	app, err := bootstrap.New(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	req := app.Service.Defaults(args[0])
	req.Title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	if strategy != "" {
		req.Strategy = strategy
	}
	if flags.Changed("diarize") {
		req.Diarize, _ = flags.GetBool("diarize")
	}
	if flags.Changed("enhance") {
		req.Enhance, _ = flags.GetBool("enhance")
	}

	var progress func(processed, total int)
	if quiet, _ := flags.GetBool("quiet"); !quiet {
		stderr := cmd.ErrOrStderr()
		progress = func(processed, total int) {
			_, _ = fmt.Fprintf(stderr, "\rrecognizing %d/%d", processed, total)
			if processed == total {
				_, _ = fmt.Fprintln(stderr)
			}
		}
	}

	doc, err := app.Service.Run(ctx, req, progress)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path := mustString(flags.GetString("output")); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return export.Write(out, format, *doc)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	return bootstrap.Run(ctx, bootstrapOptions(cmd))
}

func rulesCheck(cmd *cobra.Command, args []string) error {
	rules := textnorm.DefaultRules()
	source := "embedded"
	if len(args) == 1 {
		loaded, err := textnorm.LoadRules(args[0])
		if err != nil {
			return err
		}
		rules, source = loaded, args[0]
	}
	if _, err := textnorm.New(rules); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(),
		"%s: ok (version %d, %d fillers, %d dictionary rules, %d patterns, broken sentences %s)\n",
		source, rules.Version, len(rules.Fillers), len(rules.Dictionary), len(rules.Patterns), rules.BrokenSentences.Mode)
	return err
}

func normalize(cmd *cobra.Command, _ []string) error {
	rulesFile, _ := cmd.Flags().GetString("rules")
	n, err := pipeline.NewNormalizer(platformconfig.NormalizeConfig{Enabled: true, RulesFile: rulesFile}, logging.Nop())
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), n.Normalize(string(raw)))
	return err
}

func attribute(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	segments, err := transcript.ParseLines(f)
	if err != nil {
		return err
	}
	sig, err := audio.Load(args[1])
	if err != nil {
		return err
	}
	minSilence, _ := cmd.Flags().GetFloat64("min-silence")
	maxSpeakers, _ := cmd.Flags().GetInt("max-speakers")
	labeled := diarization.Attribute(segments, sig, minSilence, maxSpeakers)
	_, err = fmt.Fprintln(cmd.OutOrStdout(), transcript.FormatSpeakerLines(labeled))
	return err
}

func evaluate(cmd *cobra.Command, args []string) error {
	ref, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}
	hyp, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read hypothesis: %w", err)
	}
	score := export.Evaluate(string(ref), string(hyp))

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		raw, err := sonic.ConfigStd.MarshalIndent(score, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(raw))
		return err
	}
	_, err = fmt.Fprintf(out, "WER %.2f%% (%d/%d words)\nCER %.2f%% (%d/%d chars)\n",
		score.WER*100, score.WordEdits, score.ReferenceWords,
		score.CER*100, score.CharEdits, score.ReferenceChars)
	return err
}

func mustString(s string, _ error) string { return s }
