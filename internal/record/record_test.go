package record

import (
	"errors"
	"testing"
	"time"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Fatalf("ParseType(%s): %v, %v", typ, got, err)
		}
	}
	if _, err := ParseType("invoice"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := ParseType(""); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType for empty, got %v", err)
	}
}

func TestSignableFieldsDeclaredPerType(t *testing.T) {
	rec := Record{
		ID:              "r1",
		Title:           "title",
		CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		StatusChangedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for _, typ := range Types {
		rec.Type = typ
		fields := rec.SignableFields()
		if len(fields) == 0 {
			t.Fatalf("%s: no signable fields declared", typ)
		}
		if fields[0].Name != "ID" || fields[0].Value != "r1" {
			t.Fatalf("%s: first field must be ID, got %+v", typ, fields[0])
		}
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			if seen[f.Name] {
				t.Fatalf("%s: duplicate signable field %s", typ, f.Name)
			}
			seen[f.Name] = true
		}
	}
}

func TestSignableFieldOrderIsStable(t *testing.T) {
	rec := Record{ID: "r1", Type: TypeCAPA, Status: "initiated"}
	first := rec.SignableFields()
	second := rec.SignableFields()
	if len(first) != len(second) {
		t.Fatal("field count changed between calls")
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("field order changed at %d: %s vs %s", i, first[i].Name, second[i].Name)
		}
	}
}
