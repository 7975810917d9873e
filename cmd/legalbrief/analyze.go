package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/legalbrief/internal/analysis"
	"github.com/joelkehle/legalbrief/internal/render"
	"github.com/joelkehle/legalbrief/internal/store"
)

var (
	analyzeLanguage string
	analyzeLevel    string
	analyzeFormat   string
	analyzeSave     bool
	analyzeQuiet    bool
	analyzeOut      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|->",
	Short: "Analyze a plain-text legal document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		if err := validateFormat(analyzeFormat); err != nil {
			return err
		}
		content, err := readInput(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		var progress analysis.StageProgressFn
		if !analyzeQuiet {
			stderr := cmd.ErrOrStderr()
			progress = func(stage, message string) {
				fmt.Fprintf(stderr, "[%s] %s\n", stage, message)
			}
		}
		res, err := env.Pipeline.RunWithProgress(ctx, analysis.Request{
			Content:             content,
			Language:            analysis.Language(analyzeLanguage),
			SimplificationLevel: analysis.SimplificationLevel(analyzeLevel),
		}, progress)
		if err != nil {
			zap.L().Error("analysis failed", zap.String("stage", analysis.StageNameFromError(err)), zap.Error(err))
			return err
		}
		out := analysis.BuildResponse(res)

		if analyzeSave {
			st, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Save(ctx, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved analysis %s to %s\n", out.Analysis.ID, cfg.Store.Path)
		}
		return emitEnvelope(cmd, out, analyzeFormat, analyzeOut)
	},
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", eris.Wrapf(err, "read input %s", path)
	}
	return string(b), nil
}

func validateFormat(format string) error {
	switch strings.ToLower(format) {
	case "json", "markdown", "md", "html":
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want json, markdown or html)", format)
	}
}

// emitEnvelope writes env to outPath, or to stdout when outPath is empty.
func emitEnvelope(cmd *cobra.Command, env analysis.ResponseEnvelope, format, outPath string) error {
	if outPath == "" {
		return writeEnvelope(cmd.OutOrStdout(), env, format)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", outPath)
	}
	if err := writeEnvelope(f, env, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", outPath)
	}
	return nil
}

func writeEnvelope(w io.Writer, env analysis.ResponseEnvelope, format string) error {
	switch strings.ToLower(format) {
	case "markdown", "md":
		_, err := io.WriteString(w, env.ReportMarkdown)
		return err
	case "html":
		page, err := render.HTML(env)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLanguage, "language", "en", "output language (en, hi)")
	analyzeCmd.Flags().StringVar(&analyzeLevel, "level", "simple", "simplification level (professional, simple, eli5)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format (json, markdown, html)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "write output to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "store the result in the SQLite store")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(analyzeCmd)
}
