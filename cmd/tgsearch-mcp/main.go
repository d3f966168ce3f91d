package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// searchResponse mirrors the tgsearch API response model.
type searchResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Content string `json:"content"`
	Results []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"results"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("TGSEARCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("TGSEARCH_API_KEY")

	s := server.NewMCPServer(
		"tgsearch",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(searchTool(), handleSearch(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_telegram",
		mcp.WithDescription("Search public Telegram channels and groups by keyword. Returns up to 20 deduplicated results as a Markdown list of names and t.me links. A search renders the source site in a headless browser and takes several seconds."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keywords to search for, e.g. 'python' or 'crypto news'"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based result page (default: 1, max: 50)"),
			mcp.Min(1),
			mcp.Max(50),
		),
	)
}

func handleSearch(apiURL, apiKey string) server.ToolHandlerFunc {
	// Covers the server's own search timeout plus queueing.
	client := &http.Client{Timeout: 90 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		page := request.GetInt("page", 1)
		if page < 1 {
			page = 1
		}

		params := url.Values{}
		params.Set("q", query)
		params.Set("page", strconv.Itoa(page))
		params.Set("format", "markdown")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/search?"+params.Encode(), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var searchResp searchResponse
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (status %d): %v", resp.StatusCode, err)), nil
		}

		if !searchResp.Success {
			errMsg := "search failed"
			if searchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", searchResp.Error.Code, searchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(searchResp.Content), nil
	}
}
