// Package config resolves runtime configuration from the config file,
// environment variables, and CLI flags, keeping provenance for each value
// so `taskagent config` can show where every setting came from.
//
// Precedence: CLI flag > environment > config file > built-in default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus where it was resolved from.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLILLM     string
	CLIEmbed   string
	CLIDBPath  string
	CLIAccount string
	CLIDays    int
	CLIPrinter string
}

// ResolvedConfig is the fully resolved runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	LLMProvider   ResolvedValue `json:"llm_provider"`
	EmbedProvider ResolvedValue `json:"embed_provider"`
	EmbedEndpoint ResolvedValue `json:"embed_endpoint"`
	EmbedAPIKey   ResolvedValue `json:"embed_api_key"`

	GmailAccount ResolvedValue `json:"gmail_account"`
	GmailQuery   ResolvedValue `json:"gmail_query"`

	PrinterDevice    ResolvedValue `json:"printer_device"`
	PrinterArtifacts ResolvedValue `json:"printer_artifacts"`

	LookbackDays ResolvedValue `json:"lookback_days"`
	MaxMessages  ResolvedValue `json:"max_messages"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Provider string `yaml:"provider"`
	} `yaml:"llm"`
	Embed struct {
		Provider string `yaml:"provider"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"embed"`
	Gmail struct {
		Account    string `yaml:"account"`
		Query      string `yaml:"query"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"gmail"`
	Printer struct {
		Device       string `yaml:"device"`
		ArtifactsDir string `yaml:"artifacts_dir"`
	} `yaml:"printer"`
	Run struct {
		LookbackDays int `yaml:"lookback_days"`
	} `yaml:"run"`
}

// DefaultConfigPath is ~/.taskagent/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskagent", "config.yaml")
}

// ResolveConfig resolves every setting from all sources in precedence order.
// A missing config file is not an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.EmbedProvider, cfg.Embed.Provider, SourceConfig, path)
		apply(&out.EmbedEndpoint, cfg.Embed.Endpoint, SourceConfig, path)
		apply(&out.EmbedAPIKey, cfg.Embed.APIKey, SourceConfig, path)
		apply(&out.GmailAccount, cfg.Gmail.Account, SourceConfig, path)
		apply(&out.GmailQuery, cfg.Gmail.Query, SourceConfig, path)
		apply(&out.PrinterDevice, cfg.Printer.Device, SourceConfig, path)
		apply(&out.PrinterArtifacts, cfg.Printer.ArtifactsDir, SourceConfig, path)
		if cfg.Run.LookbackDays > 0 {
			apply(&out.LookbackDays, strconv.Itoa(cfg.Run.LookbackDays), SourceConfig, path)
		}
		if cfg.Gmail.MaxResults > 0 {
			apply(&out.MaxMessages, strconv.Itoa(cfg.Gmail.MaxResults), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "TASKAGENT_DB")
	applyEnv(&out.LLMProvider, "TASKAGENT_LLM")
	applyEnv(&out.EmbedProvider, "TASKAGENT_EMBED")
	applyEnv(&out.EmbedEndpoint, "TASKAGENT_EMBED_ENDPOINT")
	applyEnv(&out.EmbedAPIKey, "TASKAGENT_EMBED_API_KEY")
	applyEnv(&out.GmailAccount, "USER_EMAIL")
	applyEnv(&out.PrinterDevice, "TASKAGENT_PRINTER")
	applyEnv(&out.LookbackDays, "EMAIL_DAYS_AGO")

	apply(&out.LLMProvider, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.EmbedProvider, opts.CLIEmbed, SourceCLI, "--embed")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.GmailAccount, opts.CLIAccount, SourceCLI, "--account")
	apply(&out.PrinterDevice, opts.CLIPrinter, SourceCLI, "--printer")
	if opts.CLIDays > 0 {
		apply(&out.LookbackDays, strconv.Itoa(opts.CLIDays), SourceCLI, "--days")
	}

	if out.LLMProvider.Value == "" {
		out.LLMProvider = ResolvedValue{Value: "ollama/deepseek-r1:7b", Source: SourceDefault, From: "built-in default"}
	}
	if out.LookbackDays.Value == "" {
		out.LookbackDays = ResolvedValue{Value: "7", Source: SourceDefault, From: "built-in default"}
	}

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// LookbackDaysInt returns the parsed lookback window, or the default when
// the configured value is not a positive integer.
func (r ResolvedConfig) LookbackDaysInt() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.LookbackDays.Value))
	if err != nil || n <= 0 {
		return 7
	}
	return n
}

// MaxMessagesInt returns the parsed fetch cap, 0 when unset.
func (r ResolvedConfig) MaxMessagesInt() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.MaxMessages.Value))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
