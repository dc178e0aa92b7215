package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/lmstrack/history"
	"github.com/use-agent/lmstrack/models"
)

func loadHistory(dataFile string) (*history.Dataset, error) {
	return history.Load(dataFile, history.Today(time.Now()))
}

func handleListCourses(dataFile string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ds, err := loadHistory(dataFile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
		}

		query := strings.ToLower(strings.TrimSpace(request.GetString("query", "")))
		records := ds.Records()
		sort.SliceStable(records, func(i, j int) bool { return records[i].Title < records[j].Title })

		var sb strings.Builder
		n := 0
		for _, r := range records {
			if query != "" && !strings.Contains(strings.ToLower(r.Title), query) {
				continue
			}
			n++
			date, enr, comp, ok := r.Latest()
			if !ok {
				fmt.Fprintf(&sb, "- %s (%s): no snapshots\n", r.Title, r.Type)
				continue
			}
			fmt.Fprintf(&sb, "- %s (%s): %d enrolled, %d completed as of %s\n", r.Title, r.Type, enr, comp, date)
		}
		if n == 0 {
			return mcp.NewToolResultText("No courses recorded."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d courses\n\n%s", n, sb.String())), nil
	}
}

func handleCourseHistory(dataFile string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := request.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError("title is required"), nil
		}

		ds, err := loadHistory(dataFile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
		}
		rec, ok := ds.Get(title)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no course titled %q", title)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", rec.Title)
		fmt.Fprintf(&sb, "Type: %s\nCreated: %s\nTraining materials: %s\n\n", rec.Type, rec.CreationDate, rec.TrainingMaterials)
		sb.WriteString("| Date | Enrollments | Completed |\n|---|---|---|\n")
		for _, d := range rec.Dates() {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", d, cell(rec.Enrollments, d), cell(rec.Completed, d))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func cell(m map[string]int, date string) string {
	if v, ok := m[date]; ok {
		return fmt.Sprint(v)
	}
	return "-"
}

type runStarted struct {
	Success bool `json:"success"`
	Data    struct {
		RunID string `json:"run_id"`
	} `json:"data"`
	Error *models.ErrorDetail `json:"error"`
}

func handleStartRun(apiURL, apiKey string) server.ToolHandlerFunc {
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		client.SetHeader("X-API-Key", apiKey)
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var out runStarted
		resp, err := client.R().
			SetContext(ctx).
			SetResult(&out).
			SetError(&out).
			Post("/api/v1/runs")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if !out.Success {
			msg := fmt.Sprintf("API returned %d", resp.StatusCode())
			if out.Error != nil {
				msg = fmt.Sprintf("[%s] %s", out.Error.Code, out.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText("Run started: " + out.Data.RunID), nil
	}
}
