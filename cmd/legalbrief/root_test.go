package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/legalbrief/internal/analysis"
	"github.com/joelkehle/legalbrief/internal/config"
	"github.com/joelkehle/legalbrief/internal/llm"
	"github.com/joelkehle/legalbrief/internal/store"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"analyze", "serve", "show", "list"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestAnalyzeCmd_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"language": "en",
		"level":    "simple",
		"format":   "json",
		"save":     "false",
		"quiet":    "false",
		"out":      "",
	} {
		f := analyzeCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
}

func TestServeCmd_PortFlag(t *testing.T) {
	f := serveCmd.Flags().Lookup("port")
	require.NotNil(t, f)
	assert.Equal(t, "0", f.DefValue)
}

func TestListCmd_LimitFlag(t *testing.T) {
	f := listCmd.Flags().Lookup("limit")
	require.NotNil(t, f)
	assert.Equal(t, "20", f.DefValue)
}

func TestPipelineOptions(t *testing.T) {
	c := &config.Config{
		LLM: config.LLMConfig{Temperature: 0.3, MaxOutputTokens: 2048, TimeoutSecs: 45},
		Pipeline: config.PipelineConfig{
			ChunkSize: 3000, ChunkOverlap: 300, Concurrency: 4,
			RequestsPerMinute: 50, SummaryContextLimit: 12,
		},
	}
	opts := pipelineOptions(c)
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.3, *opts.Temperature, 1e-9)
	opts.Temperature = nil
	assert.Equal(t, analysis.Options{
		ChunkSize:           3000,
		ChunkOverlap:        300,
		Concurrency:         4,
		RequestsPerMinute:   50,
		ChunkTimeout:        45 * time.Second,
		MaxOutputTokens:     2048,
		SummaryContextLimit: 12,
	}, opts)
}

func TestNewCompleter(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, _, err := newCompleter(context.Background(), config.LLMConfig{Provider: "anthropic"})
		assert.ErrorIs(t, err, llm.ErrCapabilityUnavailable)
	})
	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := newCompleter(context.Background(), config.LLMConfig{Provider: "mystery"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mystery")
	})
	t.Run("anthropic", func(t *testing.T) {
		t.Setenv(llm.NoLLMEnv, "")
		c, closer, err := newCompleter(context.Background(), config.LLMConfig{Provider: "anthropic", AnthropicAPIKey: "sk-test", Model: "m1"})
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, "m1", llm.ModelName(c))
	})
}

func TestInitPipeline_WithoutCredentials(t *testing.T) {
	c := &config.Config{LLM: config.LLMConfig{Provider: "anthropic", TimeoutSecs: 5}}
	env, err := initPipeline(context.Background(), c, nil)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Pipeline.Run(context.Background(), analysis.Request{Content: "The tenant shall pay rent."})
	assert.ErrorIs(t, err, analysis.ErrCapabilityUnavailable)
	assert.Equal(t, "analyze", analysis.StageNameFromError(err))
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"json", "markdown", "md", "HTML"} {
		assert.NoError(t, validateFormat(f), f)
	}
	assert.Error(t, validateFormat("pdf"))
}

func TestReadInput_Stdin(t *testing.T) {
	got, err := readInput("-", strings.NewReader("clause text"))
	require.NoError(t, err)
	assert.Equal(t, "clause text", got)

	_, err = readInput(t.TempDir()+"/missing.txt", nil)
	assert.Error(t, err)
}

func sampleEnvelope() analysis.ResponseEnvelope {
	return analysis.BuildResponse(analysis.Result{
		Analysis: analysis.DocumentAnalysis{
			ID:           "an-1",
			DocumentType: "Lease Agreement",
			PlainSummary: "A one year lease.",
		},
	})
}

func TestWriteEnvelope(t *testing.T) {
	env := sampleEnvelope()

	var js bytes.Buffer
	require.NoError(t, writeEnvelope(&js, env, "json"))
	var decoded analysis.ResponseEnvelope
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "an-1", decoded.Analysis.ID)

	var md bytes.Buffer
	require.NoError(t, writeEnvelope(&md, env, "markdown"))
	assert.Equal(t, env.ReportMarkdown, md.String())

	var page bytes.Buffer
	require.NoError(t, writeEnvelope(&page, env, "html"))
	assert.Contains(t, page.String(), "<html")
}

func TestWriteSummaries(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, writeSummaries(cmd, []store.Summary{{
		ID: "an-1", DocumentType: "Lease Agreement", Language: "en",
		ClauseCount: 3, RiskCount: 2, ChunksTotal: 4, ChunksDropped: 1,
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "CLAUSES")
	assert.Contains(t, lines[1], "an-1")
	assert.Contains(t, lines[1], "2026-03-01 09:30")
	assert.Contains(t, lines[1], "1/4")
}

func TestEmitEnvelope(t *testing.T) {
	env := sampleEnvelope()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, emitEnvelope(cmd, env, "markdown", ""))
	assert.Equal(t, env.ReportMarkdown, out.String())

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, emitEnvelope(cmd, env, "md", path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, env.ReportMarkdown, string(b))

	assert.Error(t, emitEnvelope(cmd, env, "html", filepath.Join(t.TempDir(), "missing", "r.html")))
}
