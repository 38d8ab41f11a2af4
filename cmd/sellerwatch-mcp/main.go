package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the sellerwatch API error body.
type apiError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type task struct {
	ID            uint       `json:"id"`
	TaskName      string     `json:"task_name"`
	MerchantID    string     `json:"merchant_id"`
	MinPrice      int        `json:"min_price"`
	MaxPrice      int        `json:"max_price"`
	Frequency     int        `json:"frequency"`
	Status        int        `json:"status"`
	LastExecution *time.Time `json:"last_execution"`
}

type snapshot struct {
	ProductID      string  `json:"product_id"`
	Favorites      int     `json:"favorites"`
	Rating         int     `json:"rating"`
	FavoritesAdded int     `json:"favorites_added"`
	RatingAdded    int     `json:"rating_added"`
	Price          float64 `json:"price"`
	Days           string  `json:"days"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

var statusNames = map[int]string{0: "PENDING", 1: "RUNNING", 2: "DONE", 3: "WAITING"}

// client talks to the sellerwatch HTTP API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("SELLERWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("SELLERWATCH_API_KEY"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	s := server.NewMCPServer(
		"sellerwatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List every configured seller-catalog task with its status and last execution time."),
	), c.handleListTasks)

	s.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List the daily engagement snapshots recorded for a task: absolute likes/comments of the day's first observation and the increase since then."),
		mcp.WithNumber("task_id",
			mcp.Required(),
			mcp.Description("Task id as returned by list_tasks"),
		),
		mcp.WithString("day",
			mcp.Description("Restrict to one calendar day, formatted YYYY-MM-DD"),
		),
	), c.handleListSnapshots)

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Add a seller catalog to track. The task is picked up by the next run."),
		mcp.WithString("merchant_id",
			mcp.Required(),
			mcp.Description("Marketplace seller id"),
		),
		mcp.WithNumber("max_price",
			mcp.Required(),
			mcp.Description("Only items priced at or below this amount are tracked"),
		),
		mcp.WithNumber("min_price",
			mcp.Description("Only items priced at or above this amount are tracked (default 0)"),
		),
		mcp.WithString("frequency",
			mcp.Description("'once' runs a single time, 'recurring' (default) reruns after each cooldown"),
			mcp.Enum("once", "recurring"),
		),
		mcp.WithString("task_name",
			mcp.Description("Human-readable label"),
		),
	), c.handleCreateTask)

	s.AddTool(mcp.NewTool("trigger_run",
		mcp.WithDescription("Start a run over all eligible tasks now. Fails if a run is already in progress."),
	), c.handleTriggerRun)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *client) handleListTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp listResponse[task]
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if resp.Total == 0 {
		return mcp.NewToolResultText("No tasks configured."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tasks\n\n", resp.Total)
	for _, t := range resp.Items {
		last := "never"
		if t.LastExecution != nil {
			last = t.LastExecution.Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "#%d %s merchant=%s price=[%d, %d] status=%s last_execution=%s\n",
			t.ID, t.TaskName, t.MerchantID, t.MinPrice, t.MaxPrice, statusNames[t.Status], last)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleListSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireFloat("task_id")
	if err != nil || id < 1 {
		return mcp.NewToolResultError("task_id is required and must be a positive number"), nil
	}
	path := fmt.Sprintf("/api/v1/tasks/%d/snapshots", int(id))
	if day := request.GetString("day", ""); day != "" {
		path += "?day=" + url.QueryEscape(day)
	}

	var resp listResponse[snapshot]
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if resp.Total == 0 {
		return mcp.NewToolResultText("No snapshots recorded."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d snapshots for task %d\n\n", resp.Total, int(id))
	for _, s := range resp.Items {
		fmt.Fprintf(&sb, "%s %s price=%.0f likes=%d (+%d) comments=%d (+%d)\n",
			s.Days, s.ProductID, s.Price, s.Favorites, s.FavoritesAdded, s.Rating, s.RatingAdded)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchant, err := request.RequireString("merchant_id")
	if err != nil {
		return mcp.NewToolResultError("merchant_id is required"), nil
	}
	maxPrice, err := request.RequireFloat("max_price")
	if err != nil {
		return mcp.NewToolResultError("max_price is required"), nil
	}

	frequency := 2
	if request.GetString("frequency", "recurring") == "once" {
		frequency = 1
	}
	payload := map[string]any{
		"task_name":   request.GetString("task_name", merchant),
		"merchant_id": merchant,
		"min_price":   int(request.GetFloat("min_price", 0)),
		"max_price":   int(maxPrice),
		"frequency":   frequency,
	}

	var created task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", payload, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created task #%d for merchant %s.", created.ID, created.MerchantID)), nil
}

func (c *client) handleTriggerRun(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs", nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Run started. Use list_tasks to follow task status."), nil
}
