package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/lmstrack/config"
)

func main() {
	cfg := config.Load()
	apiURL := os.Getenv("LMSTRACK_API_URL")
	apiKey := os.Getenv("LMSTRACK_API_KEY")

	s := server.NewMCPServer(
		"lmstrack",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listCoursesTool := mcp.NewTool("list_courses",
		mcp.WithDescription("List every tracked LMS course with its most recent enrollment and completion counts."),
		mcp.WithString("query",
			mcp.Description("Case-insensitive substring the course title must contain"),
		),
	)
	s.AddTool(listCoursesTool, handleListCourses(cfg.Store.DataFile))

	courseHistoryTool := mcp.NewTool("course_history",
		mcp.WithDescription("Return the dated enrollment and completion history of one course."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Exact course title as shown by list_courses"),
		),
	)
	s.AddTool(courseHistoryTool, handleCourseHistory(cfg.Store.DataFile))

	// start_run needs a running "lmstrack serve" to talk to.
	if apiURL != "" {
		startRunTool := mcp.NewTool("start_run",
			mcp.WithDescription("Ask the lmstrack server to scrape the portal now. Returns the run id, or an error if a run is already in progress."),
		)
		s.AddTool(startRunTool, handleStartRun(apiURL, apiKey))
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
