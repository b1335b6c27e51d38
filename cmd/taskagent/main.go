package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/config"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/embed"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/mail"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/mcp"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/pipeline"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/printer"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runPipeline(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("taskagent %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliOptions holds flags shared across subcommands, parsed by hand so
// positional arguments can mix with flags.
type cliOptions struct {
	configPath string
	llmFlag    string
	embedFlag  string
	dbPath     string
	account    string
	query      string
	printerDev string
	days       int
	limit      int
	asJSON     bool
	positional []string
}

func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		needsValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		switch {
		case arg == "--config":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.configPath = v
		case arg == "--llm":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.llmFlag = v
		case arg == "--embed":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.embedFlag = v
		case arg == "--db":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.dbPath = v
		case arg == "--account":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.account = v
		case arg == "--query":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.query = v
		case arg == "--printer":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.printerDev = v
		case arg == "--days":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid --days value %q", v)
			}
			opts.days = n
		case arg == "--limit":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid --limit value %q", v)
			}
			opts.limit = n
		case arg == "--json":
			opts.asJSON = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			opts.positional = append(opts.positional, arg)
		}
	}
	return opts, nil
}

func resolve(opts *cliOptions) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath: opts.configPath,
		CLILLM:     opts.llmFlag,
		CLIEmbed:   opts.embedFlag,
		CLIDBPath:  opts.dbPath,
		CLIAccount: opts.account,
		CLIDays:    opts.days,
		CLIPrinter: opts.printerDev,
	})
}

// openStore builds the task store, attaching an embedder when one is
// configured. A missing embedder is not an error: dedup falls back to
// lexical similarity.
func openStore(cfg config.ResolvedConfig) (*store.SQLiteStore, error) {
	var embedder embed.Embedder
	if cfg.EmbedProvider.Value != "" {
		embedCfg, err := embed.ParseEmbedFlag(cfg.EmbedProvider.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing embed config: %w", err)
		}
		if cfg.EmbedEndpoint.Value != "" {
			embedCfg.Endpoint = cfg.EmbedEndpoint.Value
		}
		if cfg.EmbedAPIKey.Value != "" {
			embedCfg.APIKey = cfg.EmbedAPIKey.Value
		}
		client, err := embed.NewClient(embedCfg)
		if err != nil {
			return nil, fmt.Errorf("creating embed client: %w", err)
		}
		embedder = client
	}

	s, err := store.NewStore(store.StoreConfig{
		DBPath:   cfg.DBPath.Value,
		Embedder: embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func buildProvider(cfg config.ResolvedConfig) (llm.Provider, error) {
	llmCfg, err := llm.ParseLLMFlag(cfg.LLMProvider.Value)
	if err != nil {
		return nil, fmt.Errorf("parsing llm config: %w", err)
	}
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	return provider, nil
}

func runPipeline(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	var source mail.Source
	if cfg.GmailAccount.Value != "" {
		gmail := &mail.GmailSource{
			Account: cfg.GmailAccount.Value,
			Query:   cfg.GmailQuery.Value,
		}
		if err := gmail.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: gmail source unavailable (%v), using placeholder emails\n", err)
		} else {
			source = gmail
		}
	}
	if source == nil {
		source = placeholderSource{}
	}

	var p *printer.Printer
	if cfg.PrinterDevice.Value != "" || cfg.PrinterArtifacts.Value != "" {
		p = &printer.Printer{
			DevicePath:   cfg.PrinterDevice.Value,
			ArtifactsDir: cfg.PrinterArtifacts.Value,
		}
	}

	agent := &pipeline.Agent{
		Source:       source,
		LLM:          provider,
		Store:        s,
		Printer:      p,
		LookbackDays: cfg.LookbackDaysInt(),
		MaxMessages:  maxMessagesFor(opts, cfg),
	}

	summary, err := agent.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Print(pipeline.FormatRunSummary(summary))
	return nil
}

// maxMessagesFor picks the fetch cap: --limit beats the configured
// gmail.max_results, same cli > config precedence as the resolver.
func maxMessagesFor(opts *cliOptions, cfg config.ResolvedConfig) int {
	if opts.limit > 0 {
		return opts.limit
	}
	return cfg.MaxMessagesInt()
}

// placeholderSource always fails fetch, so the pipeline's fallback to
// placeholder messages kicks in. Used when no Gmail account is configured.
type placeholderSource struct{}

func (placeholderSource) Fetch(ctx context.Context, w mail.Window) ([]mail.RawMessage, error) {
	return nil, fmt.Errorf("no mail source configured")
}

func runList(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	limit := opts.limit
	if limit == 0 {
		limit = 10
	}

	tasks, err := s.RecentTasks(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks stored yet. Run 'taskagent run' to extract some.")
		return nil
	}

	for _, t := range tasks {
		fmt.Printf("[%d] %s (%s", t.ID, t.Name, pipeline.PriorityLabel(t.Priority))
		if t.DueDate != "" && t.DueDate != "None" {
			fmt.Printf(", due %s", t.DueDate)
		}
		fmt.Println(")")
	}
	return nil
}

func runSearch(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if len(opts.positional) == 0 {
		return fmt.Errorf("usage: taskagent search <query> [--limit N]")
	}
	query := strings.Join(opts.positional, " ")

	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	limit := opts.limit
	if limit == 0 {
		limit = 5
	}

	matches, err := s.FindSimilar(context.Background(), strings.ToLower(strings.TrimSpace(query)), limit)
	if err != nil {
		return fmt.Errorf("searching tasks: %w", err)
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No matching tasks found.")
		return nil
	}

	for _, m := range matches {
		fmt.Printf("%.3f  %s (%s", m.Distance, m.Name, pipeline.PriorityLabel(m.Priority))
		if m.DueDate != "" && m.DueDate != "None" {
			fmt.Printf(", due %s", m.DueDate)
		}
		fmt.Println(")")
	}
	return nil
}

func runStats(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Database:           %s\n", stats.DBPath)
	fmt.Printf("Tasks:              %d\n", stats.TaskCount)
	fmt.Printf("  High priority:    %d\n", stats.HighCount)
	fmt.Printf("  Medium priority:  %d\n", stats.MediumCount)
	fmt.Printf("  Low priority:     %d\n", stats.LowCount)
	fmt.Printf("Processed messages: %d\n", stats.ProcessedMessages)
	return nil
}

func runConfig(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runMCP(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(opts)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: llm provider unavailable (%v), extraction tool disabled\n", err)
		provider = nil
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   s,
		LLM:     provider,
		Version: version,
	})

	fmt.Fprintf(os.Stderr, "taskagent MCP server listening on stdio (db: %s)\n", cfg.DBPath.Value)
	return server.ServeStdio(srv)
}

func printUsage() {
	fmt.Printf(`taskagent %s — Extract tasks from email and print them as receipts

Usage:
  taskagent <command> [arguments]

Commands:
  run                 Fetch recent email, extract tasks, and save new ones
  list                List recently extracted tasks
  search <query>      Find stored tasks similar to a query
  stats               Show task database statistics
  config              Print the resolved configuration and where each value came from
  mcp                 Serve tasks and extraction over MCP on stdio
  version             Print version

Run Flags:
  --account <email>   Gmail account to fetch from (default: placeholder emails)
  --query <q>         Extra Gmail search query
  --days <n>          Lookback window in days (default: 7)
  --limit <n>         Cap on fetched messages
  --printer <dev>     Receipt printer device (e.g. /dev/usb/lp0)

Flags:
  --config <path>     Config file (default: ~/.taskagent/config.yaml)
  --llm <spec>        LLM as provider/model (default: ollama/deepseek-r1:7b)
  --embed <spec>      Embeddings as provider/model (default: lexical matching)
  --db <path>         Database path (default: ~/.taskagent/tasks.db)
  --json              Emit JSON instead of text (list, search, stats)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
