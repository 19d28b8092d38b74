package candidate

import (
	"encoding/json"
	"testing"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		[]string{"Name", " Skills ", "Exp", "Location", "CTC"},
		[][]string{
			{"Asha", "Go, SQL", "2y 3m", "Pune", "900000"},
			{"Ravi", "Java", "5y 0m", "Mumbai"},
			{"Meera", "Python", "2y 3m", "Pune", "abc", "extra"},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{"empty header", nil},
		{"blank column", []string{"Skills", "  "}},
		{"duplicate column", []string{"Skills", "CTC", "Skills"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.columns, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTable_PadsAndTruncatesRows(t *testing.T) {
	tbl := sampleTable(t)

	if tbl.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", tbl.Len())
	}
	if got := tbl.Value(1, "CTC"); got != "" {
		t.Errorf("expected padded empty CTC, got %q", got)
	}
	if got := tbl.Value(0, "Skills"); got != "Go, SQL" {
		t.Errorf("expected trimmed header lookup, got %q", got)
	}
	if got := tbl.Value(7, "Skills"); got != "" {
		t.Errorf("expected empty for out-of-range row, got %q", got)
	}
}

func TestTable_Lookup(t *testing.T) {
	tbl := sampleTable(t)

	if c, ok := tbl.Lookup("ctc"); !ok || c != "CTC" {
		t.Errorf("expected case-insensitive match CTC, got %q %v", c, ok)
	}
	if _, ok := tbl.Lookup("Company"); ok {
		t.Error("expected Company to be missing")
	}
}

func TestTable_Distinct(t *testing.T) {
	tbl := sampleTable(t)

	got := tbl.Distinct("Location")
	if len(got) != 2 || got[0] != "Pune" || got[1] != "Mumbai" {
		t.Errorf("expected [Pune Mumbai], got %v", got)
	}
	if tbl.Distinct("Missing") != nil {
		t.Error("expected nil for missing column")
	}
}

func TestTable_WithoutColumn(t *testing.T) {
	tbl := sampleTable(t)

	dropped := tbl.WithoutColumn("name")
	cols := dropped.Columns()
	if len(cols) != 4 || cols[0] != "Skills" {
		t.Fatalf("expected Name dropped, got %v", cols)
	}
	if dropped.Value(0, "Skills") != "Go, SQL" {
		t.Error("expected values shifted with columns")
	}
	if len(tbl.Columns()) != 5 {
		t.Error("expected original table untouched")
	}
	if tbl.WithoutColumn("Nope") != tbl {
		t.Error("expected receiver when nothing matches")
	}
}

func TestRecord_MarshalKeepsHeaderOrder(t *testing.T) {
	tbl := sampleTable(t).WithoutColumn("Name")

	b, err := json.Marshal(tbl.Record(1))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Skills":"Java","Exp":"5y 0m","Location":"Mumbai","CTC":""}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestRecord_Map(t *testing.T) {
	rec := sampleTable(t).Record(1)

	all := rec.Map(false)
	if _, ok := all["CTC"]; !ok {
		t.Error("expected empty CTC kept")
	}
	nonEmpty := rec.Map(true)
	if _, ok := nonEmpty["CTC"]; ok {
		t.Error("expected empty CTC skipped")
	}
	if rec.Get("Exp") != "5y 0m" {
		t.Errorf("expected Exp 5y 0m, got %q", rec.Get("Exp"))
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"900000", 900000, true},
		{" 12.5 ", 12.5, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"9,00,000", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
