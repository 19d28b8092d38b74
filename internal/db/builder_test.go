package db

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("paywatch:idx:abc").
		Prefix("paywatch:chunk:abc:").
		Numeric("row").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Prefixes) != 1 || idx.Prefixes[0] != "paywatch:chunk:abc:" {
		t.Errorf("prefixes = %v", idx.Prefixes)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	v := idx.Fields[1]
	if v.VectorAlgo != VectorHNSW || v.VectorDim != 1536 || v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("unexpected vector field: %+v", v)
	}
}

func TestIndexBuilder_BuildCopies(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first, _ := b.Build()
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("expected built definition to be detached, got %d fields", len(first.Fields))
	}
}

func TestIndexDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Tag("a")},
		{"bad name", NewIndex("has space").Tag("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Tag("a").Numeric("a")},
		{"zero dim", NewIndex("idx").VectorFlat("v", 0, DistanceCosine)},
		{"blank field name", NewIndex("idx").Numeric("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"a", "paywatch:idx:1-2_3", "ABC"} {
		if !IsValidIdentifier(s) {
			t.Errorf("expected %q valid", s)
		}
	}
	for _, s := range []string{"", "a b", "idx*", "индекс"} {
		if IsValidIdentifier(s) {
			t.Errorf("expected %q invalid", s)
		}
	}
}

func TestEncodeVector(t *testing.T) {
	b := EncodeVector([]float32{1.0, -2.5})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	got := math.Float32frombits(binary.LittleEndian.Uint32([]byte(b[4:])))
	if got != -2.5 {
		t.Errorf("expected -2.5 at offset 4, got %v", got)
	}
}
