package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/mealrank/internal/config"
	"github.com/kalambet/mealrank/internal/privacy"
	"github.com/kalambet/mealrank/internal/ranking"
	"github.com/kalambet/mealrank/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
	Header http.Header
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
			Header: r.Header.Clone(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useTestServer points the CLI commands at ts for the duration of the test.
func useTestServer(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

var ctx = context.Background()

func TestRankCommand_SendsPrivacyHeaders(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /rank": `[{"recipe_id":"r2","composite_score":71.5,"components":{"behavioral":80,"macro_fit":60,"meal_prep":65,"availability":100}},
			{"recipe_id":"r1","composite_score":48,"components":{"behavioral":40,"macro_fit":60,"meal_prep":30,"availability":0}}]`,
	})
	useTestServer(t, ts)
	noColor = true

	out, err := execute(t, "rank", "--user", "u1", "--ids", "r1, r2", "--data-sharing", "--weights", "0.6,0.2,0.2")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Path != "/rank" || r.Auth != "Bearer test-token" {
		t.Errorf("request = %s %s auth=%q", r.Method, r.Path, r.Auth)
	}
	if got := r.Header.Get(privacy.HeaderDataSharing); got != "true" {
		t.Errorf("%s = %q, want true", privacy.HeaderDataSharing, got)
	}
	if got := r.Header.Get(privacy.HeaderLocation); got != "false" {
		t.Errorf("%s = %q, want false", privacy.HeaderLocation, got)
	}

	var body struct {
		UserID       string          `json:"user_id"`
		CandidateIDs []string        `json:"candidate_ids"`
		Weights      ranking.Weights `json:"weights"`
	}
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.UserID != "u1" || len(body.CandidateIDs) != 2 || body.CandidateIDs[1] != "r2" {
		t.Errorf("body = %+v", body)
	}
	if body.Weights.Behavioral != 0.6 {
		t.Errorf("weights = %+v", body.Weights)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "r2") || !strings.Contains(lines[0], "71.50") {
		t.Errorf("output = %q", out)
	}
}

func TestRankCommand_RejectsBadWeightsLocally(t *testing.T) {
	ts := newTestServer(t, nil)
	useTestServer(t, ts)

	_, err := execute(t, "rank", "--user", "u1", "--ids", "r1", "--weights", "0.9,0.9,0.9")
	if !errors.Is(err, ranking.ErrInvalidWeights) {
		t.Errorf("err = %v, want ErrInvalidWeights", err)
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no request to be sent, got %d", len(ts.requests))
	}
	// Reset for later tests sharing rootCmd.
	rankCmd.Flags().Set("weights", "")
}

func TestAvailabilityFilterCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /availability/filter": `{"recipe_ids":["r1"]}`,
	})
	useTestServer(t, ts)

	out, err := execute(t, "availability", "filter", "--user", "u1", "--ids", "r1,r2", "--min-score", "50")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if strings.TrimSpace(out) != "r1" {
		t.Errorf("output = %q, want r1", out)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["min_score"] != float64(50) {
		t.Errorf("min_score = %v, want 50", body["min_score"])
	}
}

func TestMealPrepScoreCommand_File(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /mealprep/score": `{"recipe_id":"chili","score":75}`,
	})
	useTestServer(t, ts)
	noColor = true

	path := filepath.Join(t.TempDir(), "chili.json")
	if err := os.WriteFile(path, []byte(`{"id":"chili","meal_prep":{"batch_friendly":true,"freezable":true}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "mealprep", "score", "--file", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.Contains(out, "chili  75") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(ts.requests[0].Body, `"batch_friendly":true`) {
		t.Errorf("recipe not sent inline: %s", ts.requests[0].Body)
	}
	mealprepScoreCmd.Flags().Set("file", "")
}

func TestFeedbackCommand_Routes(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /feedback":     `{"status":"recorded"}`,
		"POST /saved":        `{"status":"saved"}`,
		"POST /meal-history": `{"id":"h1","status":"recorded"}`,
	})
	useTestServer(t, ts)

	for _, kind := range []string{"like", "save", "ate"} {
		if _, err := execute(t, "feedback", kind, "u1", "r1"); err != nil {
			t.Fatalf("feedback %s: %v", kind, err)
		}
	}
	want := []string{"/feedback", "/saved", "/meal-history"}
	for i, p := range want {
		if ts.requests[i].Path != p {
			t.Errorf("request %d path = %q, want %q", i, ts.requests[i].Path, p)
		}
	}

	if _, err := execute(t, "feedback", "love", "u1", "r1"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestGoalsSetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /macro-goals/u1": `{"calories":2000,"protein":140,"carbs":200,"fat":70}`,
	})
	useTestServer(t, ts)

	if _, err := execute(t, "goals", "set", "u1", "--calories", "2000", "--protein", "140", "--carbs", "200", "--fat", "70"); err != nil {
		t.Fatalf("goals set: %v", err)
	}
	r := ts.requests[0]
	if r.Method != http.MethodPut || r.Path != "/macro-goals/u1" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if !strings.Contains(r.Body, `"calories":2000`) {
		t.Errorf("body = %s", r.Body)
	}
}

func TestParseWeights(t *testing.T) {
	tests := []struct {
		in      string
		want    ranking.Weights
		wantErr bool
	}{
		{"0.5,0.3,0.2", ranking.Weights{Behavioral: 0.5, MacroFit: 0.3, MealPrep: 0.2}, false},
		{"0.4, 0.3, 0.2, 0.1", ranking.Weights{Behavioral: 0.4, MacroFit: 0.3, MealPrep: 0.2, Availability: 0.1}, false},
		{"0.5,0.5", ranking.Weights{}, true},
		{"a,b,c", ranking.Weights{}, true},
		{"1.2,-0.1,-0.1", ranking.Weights{}, true},
	}
	for _, tt := range tests {
		got, err := parseWeights(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseWeights(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && *got != tt.want {
			t.Errorf("parseWeights(%q) = %+v, want %+v", tt.in, *got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,c ,")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("splitList = %q", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Errorf("splitList(\"\") = %q, want empty", got)
	}
}

func TestAuthHeaderSent(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})
	client := ts.client()
	client.token = "my-secret-token"

	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
	if ts.requests[0].Header.Get(privacy.HeaderDataSharing) != "" {
		t.Error("plain requests must not carry privacy headers")
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/recipes/r1")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "hello"); strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "hello"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestPrintRanking(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	printRanking(&buf, nil)
	if !strings.Contains(buf.String(), "No candidates") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	printRanking(&buf, []ranking.RankedResult{{RecipeID: "r1", CompositeScore: 42.126}})
	if !strings.HasPrefix(buf.String(), " 1. r1  42.13") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000

	found := false
	for _, k := range config.ShowAll(cfg) {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestBuildRanking(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	cfg := config.Config{}
	cfg.Ranking.WeightBehavioral = 0.5
	cfg.Ranking.WeightMacroFit = 0.3
	cfg.Ranking.WeightMealPrep = 0.2
	cfg.Ranking.MealsPerDay = 3
	cfg.Ranking.Concurrency = 2
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.OpenTimeout = time.Second

	svc, err := buildRanking(cfg, store)
	if err != nil {
		t.Fatalf("buildRanking: %v", err)
	}
	if svc.DefaultWeights() != ranking.DefaultWeights() {
		t.Errorf("weights = %+v", svc.DefaultWeights())
	}

	cfg.Ranking.WeightAvailability = 0.2
	if _, err := buildRanking(cfg, store); !errors.Is(err, ranking.ErrInvalidWeights) {
		t.Errorf("err = %v, want ErrInvalidWeights for weights summing to 1.2", err)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "data"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}
