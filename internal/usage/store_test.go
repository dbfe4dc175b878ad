package usage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nugget/pulse/internal/config"
	"github.com/nugget/pulse/internal/llm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func testPricing() map[string]config.PricingEntry {
	return map[string]config.PricingEntry{
		"llama-3.3-70b-versatile": {InputPerMillion: 0.59, OutputPerMillion: 0.79},
		"gemini-2.5-flash":        {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	}
}

func TestRecord_And_Summary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []Record{
		{Timestamp: now, Model: "llama-3.3-70b-versatile", Provider: "groq", InputTokens: 1000, OutputTokens: 500, CostUSD: 0.001, Role: "chat"},
		{Timestamp: now, Model: "gemini-2.5-flash", Provider: "gemini", InputTokens: 2000, OutputTokens: 1000, CostUSD: 0.003, Role: "analysis"},
		{Timestamp: now.Add(-48 * time.Hour), Model: "gemini-2.5-flash", Provider: "gemini", InputTokens: 9, OutputTokens: 9, Role: "chat"},
	}
	for _, rec := range recs {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sum, err := s.Summary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", sum.TotalRecords)
	}
	if sum.TotalInputTokens != 3000 || sum.TotalOutputTokens != 1500 {
		t.Errorf("tokens = %d/%d, want 3000/1500", sum.TotalInputTokens, sum.TotalOutputTokens)
	}
	if diff := sum.TotalCostUSD - 0.004; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalCostUSD = %f, want 0.004", sum.TotalCostUSD)
	}
}

func TestSummaryByProvider(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, p := range []string{"groq", "groq", "gemini"} {
		if err := s.Record(ctx, Record{Timestamp: now, Model: "m", Provider: p, InputTokens: 10, OutputTokens: 5, Role: "chat"}); err != nil {
			t.Fatal(err)
		}
	}

	result, err := s.SummaryByProvider(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Fatalf("groups = %d, want 2", len(result))
	}
	if g := result["groq"]; g == nil || g.TotalRecords != 2 || g.TotalInputTokens != 20 {
		t.Errorf("groq = %+v", g)
	}
}

func TestSummary_Empty(t *testing.T) {
	s := testStore(t)
	now := time.Now()
	sum, err := s.Summary(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalRecords != 0 || sum.TotalCostUSD != 0 {
		t.Errorf("empty summary = %+v", sum)
	}
}

func TestComputeCost(t *testing.T) {
	pricing := testPricing()
	tests := []struct {
		name  string
		model string
		in    int
		out   int
		want  float64
	}{
		{"groq", "llama-3.3-70b-versatile", 1_000_000, 1_000_000, 1.38},
		{"gemini", "gemini-2.5-flash", 2_000_000, 0, 0.60},
		{"unknown model is free", "mystery", 1000, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCost(tt.model, tt.in, tt.out, pricing)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("ComputeCost = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRecorder_AttributesUserAndTask(t *testing.T) {
	s := testStore(t)
	rec := s.Recorder(testPricing(), nil)

	ctx := WithTask(WithUser(context.Background(), "user-1"), "evening_reflection")
	rec(ctx, &llm.Response{Provider: "groq", Model: "llama-3.3-70b-versatile", InputTokens: 100, OutputTokens: 50}, "chat")

	var userID, task, role string
	var cost float64
	err := s.db.QueryRow(`SELECT user_id, task_name, role, cost_usd FROM usage_records`).Scan(&userID, &task, &role, &cost)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" || task != "evening_reflection" || role != "chat" {
		t.Errorf("record = %s/%s/%s", userID, task, role)
	}
	if cost <= 0 {
		t.Errorf("cost = %f, want > 0", cost)
	}
}
