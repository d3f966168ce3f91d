package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "tgsearch API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per query for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Queries spanning popular, niche, non-Latin and empty-result searches.
var testQueries = []struct {
	Label string
	Query string
}{
	{"Popular", "crypto"},
	{"Tech", "golang"},
	{"Phrase", "movie download"},
	{"Cyrillic", "новости"},
	{"Nonsense", "qzxvkjwplm"},
}

// --- Response types (mirrors models package) ---

type searchResponse struct {
	Success    bool         `json:"success"`
	Count      int          `json:"count"`
	EngineUsed string       `json:"engine_used"`
	Timing     timingInfo   `json:"timing"`
	Error      *errorDetail `json:"error,omitempty"`
}

type timingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"total_ms"`
	ClientMs   int64  `json:"client_ms"`
	Count      int    `json:"count"`
	Engine     string `json:"engine,omitempty"`
	HTTPStatus int    `json:"http_status"`
	Success    bool   `json:"success"`
	ErrorCode  string `json:"error_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type queryStats struct {
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    int64   `json:"p50_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgCount float64 `json:"avg_count"`
}

type queryResult struct {
	Query string      `json:"query"`
	Label string      `json:"label"`
	Runs  []runResult `json:"runs"`
	Stats *queryStats `json:"stats,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== tgsearch Benchmark Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure tgsearch is running with the HTTP server enabled\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
	}

	client := &http.Client{Timeout: 90 * time.Second}
	for _, q := range testQueries {
		fmt.Printf("Benchmarking [%s] %q ...\n", q.Label, q.Query)
		qr := queryResult{Query: q.Query, Label: q.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(client, q.Query, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d results\n", rr.TotalMs, rr.Count)
			} else {
				fmt.Printf("FAILED: [%s] %s\n", rr.ErrorCode, rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Stats = computeStats(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkQuery(client *http.Client, query string, run int) runResult {
	rr := runResult{Run: run}

	params := url.Values{}
	params.Set("q", query)
	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.ClientMs = time.Since(start).Milliseconds()

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.Count = sr.Count
	rr.Engine = sr.EngineUsed
	if sr.Error != nil {
		rr.ErrorCode = sr.Error.Code
		rr.Error = sr.Error.Message
	}
	return rr
}

func computeStats(runs []runResult) *queryStats {
	var latencies []int64
	var stats queryStats

	for _, r := range runs {
		if !r.Success {
			continue
		}
		latencies = append(latencies, r.TotalMs)
		stats.AvgMs += float64(r.TotalMs)
		stats.AvgCount += float64(r.Count)
	}
	if len(latencies) == 0 {
		return nil
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	n := float64(len(latencies))
	stats.AvgMs /= n
	stats.AvgCount /= n
	stats.P50Ms = latencies[len(latencies)/2]
	stats.MaxMs = latencies[len(latencies)-1]
	return &stats
}

func printTable(results []queryResult) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Query\tAvg Latency\tp50\tMax\tAvg Results\n")
	fmt.Fprintf(w, "─────\t───────────\t───\t───\t───────────\n")

	for _, r := range results {
		label := fmt.Sprintf("[%s] %s", r.Label, r.Query)
		if r.Stats == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", label)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%.1f\n",
			label,
			int64(r.Stats.AvgMs),
			r.Stats.P50Ms,
			r.Stats.MaxMs,
			r.Stats.AvgCount,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
