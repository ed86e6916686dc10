package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	cases := map[string]struct {
		value   string
		want    loadMode
		wantErr bool
	}{
		"compose":         {value: "compose", want: modeCompose},
		"compose-submit":  {value: " compose-submit ", want: modeComposeSubmit},
		"compose-discard": {value: "compose-discard", want: modeComposeDiscard},
		"unknown":         {value: "create-pay", wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := parseMode(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: %s", got)
			}
		})
	}
}

func TestBuildLatencySummary(t *testing.T) {
	summary := buildLatencySummary([]float64{3, 1, 2})
	if summary.Min != 1 || summary.Max != 3 {
		t.Fatalf("unexpected min/max: %+v", summary)
	}
	if summary.Avg != 2 {
		t.Fatalf("unexpected avg: %f", summary.Avg)
	}
	if summary.P50 != 2 {
		t.Fatalf("unexpected p50: %f", summary.P50)
	}

	empty := buildLatencySummary(nil)
	if empty.Max != 0 {
		t.Fatalf("expected zero summary for no samples: %+v", empty)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float64{10, 20}
	p50 := percentile(sorted, 50)
	if p50 != 15 {
		t.Fatalf("expected interpolated p50=15, got %f", p50)
	}
}

func TestCollectorRecordsSuccessAndFailure(t *testing.T) {
	col := newCollector()
	col.record("CreateDraft", 5*time.Millisecond, http.StatusCreated)
	col.record("CreateDraft", 7*time.Millisecond, http.StatusUnprocessableEntity)
	col.record("scenario", 12*time.Millisecond, http.StatusOK)

	result := col.buildReport(time.Now(), time.Second)
	if result.TotalScenarios != 1 {
		t.Fatalf("unexpected scenario count: %d", result.TotalScenarios)
	}

	create := result.Methods["CreateDraft"]
	if create.Calls != 2 || create.Success != 1 || create.Failed != 1 {
		t.Fatalf("unexpected CreateDraft stats: %+v", create)
	}
	if create.Codes["201"] != 1 || create.Codes["422"] != 1 {
		t.Fatalf("unexpected status codes: %+v", create.Codes)
	}
}

func TestDispatchJobs_CountMode(t *testing.T) {
	jobs := make(chan int, 10)
	dispatchJobs(jobs, config{total: 3})

	var count int
	for range jobs {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 jobs, got %d", count)
	}
}

func TestDispatchJobs_DurationModeRespectsTotalCap(t *testing.T) {
	jobs := make(chan int, 10)
	dispatchJobs(jobs, config{duration: time.Second, total: 2, totalSet: true})

	var count int
	for range jobs {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs, got %d", count)
	}
}

func TestRunScenario_ComposeSubmit(t *testing.T) {
	var submitKeys []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/drafts":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-1"})
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/currency"):
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-1"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/lines"):
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-1"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/submit"):
			submitKeys = append(submitKeys, r.Header.Get(idempotencyHeader))
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "txn-1", "status": "completed"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := config{
		baseURL:   server.URL,
		mode:      modeComposeSubmit,
		currency:  "uzs",
		variantID: "variant-demo-1",
		quantity:  1,
	}
	col := newCollector()

	if err := runScenario(server.Client(), cfg, 7, "run-1", col); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}
	if len(submitKeys) != 1 || submitKeys[0] == "" {
		t.Fatalf("expected submit to carry an idempotency key, got %+v", submitKeys)
	}

	result := col.buildReport(time.Now(), time.Second)
	if result.FailedScenarios != 0 {
		t.Fatalf("unexpected failed scenarios: %+v", result)
	}
	for _, name := range []string{"CreateDraft", "SetCurrency", "AddLine", "Submit"} {
		if result.Methods[name].Calls != 1 {
			t.Fatalf("expected one %s call, got %+v", name, result.Methods[name])
		}
	}
}

func TestRunScenario_FailurePropagatesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/drafts" {
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-1"})
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "currency required"})
	}))
	defer server.Close()

	cfg := config{
		baseURL:   server.URL,
		mode:      modeCompose,
		currency:  "uzs",
		variantID: "variant-demo-1",
		quantity:  1,
	}
	col := newCollector()

	if err := runScenario(server.Client(), cfg, 0, "run-1", col); err == nil {
		t.Fatal("expected scenario failure")
	}

	result := col.buildReport(time.Now(), time.Second)
	if result.FailedScenarios != 1 {
		t.Fatalf("expected one failed scenario, got %+v", result)
	}
	if result.ScenarioLatencyMs.Max <= 0 {
		t.Fatal("expected scenario latency to be recorded")
	}
}
