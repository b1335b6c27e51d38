// Package mcp provides a Model Context Protocol server for the task agent.
//
// It exposes the stored tasks (list, search, stats) and the extraction
// pipeline itself as MCP tools, plus recent tasks as an MCP resource.
// Supports stdio transport for MCP-capable clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/mail"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/pipeline"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	LLM     llm.Provider // required for the extract_email tool
	Version string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines, and
// SQLite supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all task tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"TaskAgent",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerListTool(s, cfg.Store)
	registerSearchTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)
	if cfg.LLM != nil {
		registerExtractTool(s, cfg.Store, cfg.LLM)
	}

	registerRecentResource(s, cfg.Store)

	return s
}

// taskJSON is the wire shape for tasks returned by tools.
type taskJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date"`
	Created  string `json:"created_at"`
}

func toTaskJSON(t *store.TaskRecord) taskJSON {
	return taskJSON{
		ID:       t.ID,
		Name:     t.Name,
		Priority: pipeline.PriorityLabel(t.Priority),
		DueDate:  t.DueDate,
		Created:  t.CreatedAt,
	}
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("tasks_list",
		mcp.WithDescription("List the most recently extracted tasks, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tasks (default: 10, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 10
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
			if limit > 100 {
				limit = 100
			}
		}

		tasks, err := st.RecentTasks(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing tasks: %v", err)), nil
		}

		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, toTaskJSON(t))
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("tasks_search",
		mcp.WithDescription("Find stored tasks similar to a query, ranked by similarity distance (0 = identical)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Task name or description to match against"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 5, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 5
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
			if limit > 50 {
				limit = 50
			}
		}

		matches, err := st.FindSimilar(ctx, strings.ToLower(strings.TrimSpace(query)), limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("searching tasks: %v", err)), nil
		}

		type matchJSON struct {
			Name     string  `json:"name"`
			Priority string  `json:"priority"`
			DueDate  string  `json:"due_date"`
			Distance float64 `json:"distance"`
		}
		out := make([]matchJSON, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchJSON{
				Name:     m.Name,
				Priority: pipeline.PriorityLabel(m.Priority),
				DueDate:  m.DueDate,
				Distance: m.Distance,
			})
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("tasks_stats",
		mcp.WithDescription("Database statistics: task counts by priority and processed message count."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerExtractTool(s *server.MCPServer, st store.Store, provider llm.Provider) {
	tool := mcp.NewTool("extract_email",
		mcp.WithDescription("Run the extraction pipeline on one email: filter, extract tasks, deduplicate, and persist new ones. Returns the saved and duplicate tasks."),
		mcp.WithString("sender",
			mcp.Required(),
			mcp.Description("Email sender address"),
		),
		mcp.WithString("subject",
			mcp.Description("Email subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body text"),
		),
		mcp.WithString("date",
			mcp.Description("Email date header"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		sender, err := req.RequireString("sender")
		if err != nil {
			return mcp.NewToolResultError("sender is required"), nil
		}
		body, err := req.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError("body is required"), nil
		}

		msg := mail.RawMessage{Sender: sender, Body: body}
		if subject, err := req.RequireString("subject"); err == nil {
			msg.Subject = subject
		}
		if date, err := req.RequireString("date"); err == nil {
			msg.Date = date
		}

		normalized := mail.Normalize(msg)

		type resultJSON struct {
			Promotional bool           `json:"promotional"`
			NewTasks    []extract.Task `json:"new_tasks"`
			Duplicates  []extract.Task `json:"duplicates"`
		}
		result := resultJSON{NewTasks: []extract.Task{}, Duplicates: []extract.Task{}}

		if extract.IsPromotional(ctx, provider, normalized) {
			result.Promotional = true
			data, _ := json.MarshalIndent(result, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		raw := extract.AnalyzeMessage(ctx, provider, normalized)
		if strings.HasPrefix(raw, extract.ErrPrefix) {
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %s", raw)), nil
		}

		for _, task := range extract.ParseTasks(raw) {
			dup, err := pipeline.IsDuplicate(ctx, st, task)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("checking duplicates: %v", err)), nil
			}
			if dup {
				result.Duplicates = append(result.Duplicates, task)
				continue
			}
			rec := &store.TaskRecord{
				Name:         task.Title,
				Priority:     pipeline.MapPriority(task.Priority),
				DueDate:      strings.TrimSpace(task.Deadline),
				EmailContext: normalized,
			}
			if err := st.AddTask(ctx, rec); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving task: %v", err)), nil
			}
			result.NewTasks = append(result.NewTasks, task)
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"tasks://recent",
		"Recent Tasks",
		mcp.WithResourceDescription("The 20 most recently extracted tasks."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		tasks, err := st.RecentTasks(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("reading recent tasks: %w", err)
		}

		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, toTaskJSON(t))
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling recent tasks: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tasks://recent",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
