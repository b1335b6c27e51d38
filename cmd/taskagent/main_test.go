package main

import (
	"testing"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/config"
)

func TestParseArgs_ValueFlags(t *testing.T) {
	opts, err := parseArgs([]string{
		"--llm", "ollama/llama3",
		"--db", "/tmp/test.db",
		"--account", "user@gmail.com",
		"--days", "14",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.llmFlag != "ollama/llama3" {
		t.Errorf("llmFlag = %q, want %q", opts.llmFlag, "ollama/llama3")
	}
	if opts.dbPath != "/tmp/test.db" {
		t.Errorf("dbPath = %q, want %q", opts.dbPath, "/tmp/test.db")
	}
	if opts.account != "user@gmail.com" {
		t.Errorf("account = %q, want %q", opts.account, "user@gmail.com")
	}
	if opts.days != 14 {
		t.Errorf("days = %d, want 14", opts.days)
	}
}

func TestParseArgs_PositionalMixedWithFlags(t *testing.T) {
	opts, err := parseArgs([]string{"review", "--limit", "3", "report", "--json"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(opts.positional) != 2 || opts.positional[0] != "review" || opts.positional[1] != "report" {
		t.Errorf("positional = %v, want [review report]", opts.positional)
	}
	if opts.limit != 3 {
		t.Errorf("limit = %d, want 3", opts.limit)
	}
	if !opts.asJSON {
		t.Error("expected asJSON to be set")
	}
}

func TestParseArgs_MissingValue(t *testing.T) {
	if _, err := parseArgs([]string{"--llm"}); err == nil {
		t.Error("expected error for flag without value")
	}
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	if _, err := parseArgs([]string{"--bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestMaxMessagesFor_LimitBeatsConfig(t *testing.T) {
	cfg := config.ResolvedConfig{
		MaxMessages: config.ResolvedValue{Value: "25", Source: config.SourceConfig},
	}

	if got := maxMessagesFor(&cliOptions{limit: 5}, cfg); got != 5 {
		t.Errorf("with --limit 5, max messages = %d, want 5", got)
	}
	if got := maxMessagesFor(&cliOptions{}, cfg); got != 25 {
		t.Errorf("without --limit, max messages = %d, want 25", got)
	}
	if got := maxMessagesFor(&cliOptions{}, config.ResolvedConfig{}); got != 0 {
		t.Errorf("with nothing set, max messages = %d, want 0 (source default)", got)
	}
}

func TestParseArgs_BadDays(t *testing.T) {
	if _, err := parseArgs([]string{"--days", "zero"}); err == nil {
		t.Error("expected error for non-numeric --days")
	}
	if _, err := parseArgs([]string{"--days", "-2"}); err == nil {
		t.Error("expected error for negative --days")
	}
}
