package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
	"github.com/akashkatte-1/rag-paywatch/internal/repository/memindex"
)

// --- Mocks ---

type mockRates struct {
	rate      float64
	ok        bool
	from, to  string
	callCount int
}

func (m *mockRates) Rate(_ context.Context, from, to string) (float64, bool) {
	m.callCount++
	m.from, m.to = from, to
	return m.rate, m.ok
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 4}, nil
}

// --- Fixtures ---

func run(t *testing.T, tl tool.InvokableTool, args string) string {
	t.Helper()
	return runCtx(t, context.Background(), tl, args)
}

func runCtx(t *testing.T, ctx context.Context, tl tool.InvokableTool, args string) string {
	t.Helper()
	out, err := tl.InvokableRun(ctx, args)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	return out
}

func newSnapshot(t *testing.T, rows [][]string) *domain.Snapshot {
	t.Helper()
	table, err := candidate.New([]string{"Skills", "Exp", "Location", "CTC", "Company"}, rows)
	if err != nil {
		t.Fatalf("candidate.New: %v", err)
	}
	return &domain.Snapshot{Generation: 1, Table: table}
}

func ctcSnapshot(t *testing.T) *domain.Snapshot {
	return newSnapshot(t, [][]string{
		{"go", "2y 6m", "Pune", "10", "Acme"},
		{"java", "3y 0m", "Mumbai", "5", "Globex"},
		{"python", "2y 6m", "Pune", "20", "Initech"},
		{"rust", "5y 1m", "Mumbai", "15", "Hooli"},
		{"sql", "1y 0m", "Pune", "n/a", "Umbrella"},
	})
}

type rankedOut struct {
	Order    string              `json:"order"`
	Location string              `json:"location"`
	Count    int                 `json:"count"`
	Results  []map[string]string `json:"results"`
}

func invokeRanked(t *testing.T, snap *domain.Snapshot, query string) rankedOut {
	t.Helper()
	args, _ := json.Marshal(map[string]string{"query": query})
	out := run(t, &rankedCTC{snap: snap}, string(args))
	var got rankedOut
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	return got
}

func ctcs(r rankedOut) []string {
	out := make([]string, len(r.Results))
	for i, row := range r.Results {
		out[i] = row["CTC"]
	}
	return out
}

// --- ctc_ranked_query ---

func TestRankedCTC_LowestTopTwo(t *testing.T) {
	got := invokeRanked(t, ctcSnapshot(t), "lowest ctc top 2")

	if got.Order != "lowest" || got.Count != 2 {
		t.Fatalf("order=%q count=%d", got.Order, got.Count)
	}
	if c := ctcs(got); c[0] != "5" || c[1] != "10" {
		t.Errorf("ctcs = %v, want [5 10]", c)
	}
	if got.Location != "" {
		t.Errorf("unexpected location %q", got.Location)
	}
}

func TestRankedCTC_DefaultsToHighestThree(t *testing.T) {
	got := invokeRanked(t, ctcSnapshot(t), "who earns the most?")

	if got.Order != "highest" || got.Count != 3 {
		t.Fatalf("order=%q count=%d", got.Order, got.Count)
	}
	want := []string{"20", "15", "10"}
	for i, c := range ctcs(got) {
		if c != want[i] {
			t.Errorf("ctcs = %v, want %v", ctcs(got), want)
			break
		}
	}
}

func TestRankedCTC_LocationFilter(t *testing.T) {
	got := invokeRanked(t, ctcSnapshot(t), "highest ctc in pune top 5")

	if got.Location != "Pune" {
		t.Fatalf("location = %q, want Pune", got.Location)
	}
	// the non-numeric Pune row is excluded
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	for _, r := range got.Results {
		if r["Location"] != "Pune" {
			t.Errorf("row from %q leaked through filter", r["Location"])
		}
	}
}

func TestRankedCTC_ResultsKeepColumns(t *testing.T) {
	got := invokeRanked(t, ctcSnapshot(t), "top 1")
	row := got.Results[0]
	for _, col := range []string{"Skills", "Exp", "Location", "CTC", "Company"} {
		if _, ok := row[col]; !ok {
			t.Errorf("column %q missing from result", col)
		}
	}
}

func TestRankedCTC_NoMatches(t *testing.T) {
	snap := newSnapshot(t, [][]string{{"go", "1y 0m", "Pune", "abc", "X"}})
	out := run(t, &rankedCTC{snap: snap}, `{"query":"lowest"}`)
	if out != noMatches {
		t.Errorf("got %q", out)
	}
}

func TestRankedCTC_DataNotReady(t *testing.T) {
	tests := []struct {
		name string
		snap *domain.Snapshot
	}{
		{"nil snapshot", nil},
		{"empty table", newSnapshot(t, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, &rankedCTC{snap: tt.snap}, `{"query":"top 2"}`)
			if !strings.Contains(out, domain.ErrDataNotReady.Error()) {
				t.Errorf("got %q", out)
			}
		})
	}
}

func TestRankedCTC_MissingCTCColumn(t *testing.T) {
	table, err := candidate.New([]string{"Skills", "Location"}, [][]string{{"go", "Pune"}})
	if err != nil {
		t.Fatal(err)
	}
	out := run(t, &rankedCTC{snap: &domain.Snapshot{Table: table}}, `{"query":"x"}`)
	if !strings.Contains(out, "no CTC column") {
		t.Errorf("got %q", out)
	}
}

// --- all_ctc_values ---

func TestAllCTC_DropsNonNumeric(t *testing.T) {
	out := run(t, &allCTC{snap: ctcSnapshot(t)}, "{}")
	var got []float64
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("not JSON: %q", out)
	}
	want := []float64{10, 5, 20, 15}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestAllCTC_EmptyArray(t *testing.T) {
	snap := newSnapshot(t, [][]string{{"go", "1y 0m", "Pune", "", "X"}})
	if out := run(t, &allCTC{snap: snap}, "{}"); out != "[]" {
		t.Errorf("got %q", out)
	}
}

// --- experience_locations ---

func TestExperienceLocations(t *testing.T) {
	tl := &experienceLocations{snap: ctcSnapshot(t)}
	tests := []struct {
		exp  string
		want string
	}{
		{"2y 6m", "The locations for candidates with 2y 6m of experience are: Pune, Pune"},
		{"2y 06m", "No candidates found with that exact experience."},
		{"2 y 6 m", "No candidates found with that exact experience."},
		{" 2y 6m", "No candidates found with that exact experience."},
	}
	for _, tt := range tests {
		t.Run(tt.exp, func(t *testing.T) {
			args, _ := json.Marshal(map[string]string{"experience": tt.exp})
			if got := run(t, tl, string(args)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExperienceLocations_NoLocationsRecorded(t *testing.T) {
	snap := newSnapshot(t, [][]string{
		{"go", "4y 0m", "", "10", "Acme"},
		{"java", "4y 0m", "", "12", "Globex"},
		{"rust", "2y 0m", "Pune", "9", "Hooli"},
	})
	got := run(t, &experienceLocations{snap: snap}, `{"experience":"4y 0m"}`)
	if got != "No locations are recorded for candidates with 4y 0m of experience." {
		t.Errorf("got %q", got)
	}
}

func TestExperienceLocations_MissingArg(t *testing.T) {
	out := run(t, &experienceLocations{snap: ctcSnapshot(t)}, "{}")
	if !strings.Contains(out, "experience is required") {
		t.Errorf("got %q", out)
	}
}

// --- exchange_rate ---

func TestExchangeRate(t *testing.T) {
	rates := &mockRates{rate: 0.012, ok: true}
	out := run(t, &exchangeRate{rates: rates}, `{"from_currency":"inr","to_currency":" usd "}`)

	if rates.from != "INR" || rates.to != "USD" {
		t.Errorf("codes not normalised: %s -> %s", rates.from, rates.to)
	}
	var got struct {
		From string  `json:"from"`
		To   string  `json:"to"`
		Rate float64 `json:"rate"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("not JSON: %q", out)
	}
	if got.Rate != 0.012 || got.From != "INR" || got.To != "USD" {
		t.Errorf("got %+v", got)
	}
}

func TestExchangeRate_Unavailable(t *testing.T) {
	out := run(t, &exchangeRate{rates: &mockRates{}}, `{"from_currency":"INR","to_currency":"USD"}`)
	if !strings.Contains(out, "Present the figures in INR") {
		t.Errorf("got %q", out)
	}
}

func TestExchangeRate_InvalidCode(t *testing.T) {
	rates := &mockRates{ok: true}
	for _, args := range []string{
		`{"from_currency":"RUPEE","to_currency":"USD"}`,
		`{"from_currency":"INR","to_currency":"U5D"}`,
		`{"from_currency":"INR"}`,
	} {
		out := run(t, &exchangeRate{rates: rates}, args)
		if !strings.HasPrefix(out, "Invalid currency code") {
			t.Errorf("%s: got %q", args, out)
		}
	}
	if rates.callCount != 0 {
		t.Errorf("rate source called %d times", rates.callCount)
	}
}

// --- retrieve_candidates ---

func retrievalSnapshot(t *testing.T) *domain.Snapshot {
	t.Helper()
	snap := ctcSnapshot(t)
	chunks := []domain.Chunk{
		{Row: 0, Text: "go", Metadata: map[string]string{"Location": "Pune", "CTC": "10"}},
		{Row: 1, Text: "java", Metadata: map[string]string{"Location": "Mumbai", "CTC": "5"}},
		{Row: 2, Text: "python", Metadata: map[string]string{"Location": "Pune", "CTC": "20"}},
	}
	idx, err := memindex.New("test", chunks, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})
	if err != nil {
		t.Fatalf("memindex.New: %v", err)
	}
	snap.Index = idx
	return snap
}

func TestRetrieveCandidates(t *testing.T) {
	ctx, usage := domain.NewContextWithUsage(context.Background())
	tl := &retrieveCandidates{snap: retrievalSnapshot(t), embed: &mockEmbedder{vec: []float32{1, 0}}}

	out := runCtx(t, ctx, tl, `{"query":"golang developers top 2"}`)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if lines[0] != "Skills: go, Metadata: {CTC: 10, Location: Pune}" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Skills: python,") {
		t.Errorf("second line = %q", lines[1])
	}
	if usage.Totals().EmbeddingTokens != 4 {
		t.Errorf("embedding tokens = %d", usage.Totals().EmbeddingTokens)
	}
}

func TestRetrieveCandidates_DefaultK(t *testing.T) {
	tl := &retrieveCandidates{snap: retrievalSnapshot(t), embed: &mockEmbedder{vec: []float32{1, 0}}}
	out := run(t, tl, `{"query":"anyone"}`)
	if n := len(strings.Split(out, "\n")); n != 3 {
		t.Errorf("expected 3 hits, got %d", n)
	}
}

func TestRetrieveCandidates_EmbedError(t *testing.T) {
	tl := &retrieveCandidates{snap: retrievalSnapshot(t), embed: &mockEmbedder{err: errors.New("boom")}}
	if _, err := tl.InvokableRun(context.Background(), `{"query":"go"}`); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected embed error, got %v", err)
	}

	r, err := NewRegistry(context.Background(), tl)
	if err != nil {
		t.Fatal(err)
	}
	out := r.Invoke(context.Background(), schema.ToolCall{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: "retrieve_candidates", Arguments: `{"query":"go"}`},
	})
	if !strings.HasPrefix(out, "An error occurred while running retrieve_candidates") || !strings.Contains(out, "boom") {
		t.Errorf("got %q", out)
	}
}

func TestRenderHit_SortsKeys(t *testing.T) {
	got := renderHit(domain.Chunk{Text: "k8s", Metadata: map[string]string{"b": "2", "a": "1"}})
	if got != "Skills: k8s, Metadata: {a: 1, b: 2}" {
		t.Errorf("got %q", got)
	}
}
