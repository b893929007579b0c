package signature

import (
	"strings"
	"testing"
	"time"
)

type fakeRecord struct {
	fields []Field
}

func (f fakeRecord) SignableFields() []Field { return f.fields }

func TestCanonicalFormat(t *testing.T) {
	rec := fakeRecord{fields: []Field{
		Str("ID", "rec-1"),
		Str("Status", "approved"),
	}}
	got := Canonical(rec, "sess-9", "Workstation-3")
	want := "SID=sess-9|DEV=Workstation-3|ID=rec-1;Status=approved;"
	if got != want {
		t.Fatalf("canonical mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestSignDeterministic(t *testing.T) {
	rec := fakeRecord{fields: []Field{
		Str("ID", "rec-1"),
		Int("Version", 3),
		Time("At", time.Date(2025, 4, 1, 12, 30, 0, 0, time.UTC)),
	}}
	first := Sign(rec, "s1", "dev")
	for i := 0; i < 5; i++ {
		if again := Sign(rec, "s1", "dev"); again != first {
			t.Fatalf("signature not deterministic: %s vs %s", first, again)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if first != strings.ToUpper(first) {
		t.Fatalf("signature not uppercase: %s", first)
	}
}

func TestSignSensitivity(t *testing.T) {
	base := fakeRecord{fields: []Field{Str("ID", "rec-1"), Str("Status", "open")}}
	sig := Sign(base, "s1", "dev")

	cases := []struct {
		name string
		rec  fakeRecord
		sid  string
		dev  string
	}{
		{"field value", fakeRecord{fields: []Field{Str("ID", "rec-1"), Str("Status", "closed")}}, "s1", "dev"},
		{"field order", fakeRecord{fields: []Field{Str("Status", "open"), Str("ID", "rec-1")}}, "s1", "dev"},
		{"session", base, "s2", "dev"},
		{"device", base, "s1", "other"},
	}
	for _, tc := range cases {
		if got := Sign(tc.rec, tc.sid, tc.dev); got == sig {
			t.Fatalf("%s: expected signature to change", tc.name)
		}
	}
}

func TestFieldRendering(t *testing.T) {
	if f := Time("At", time.Time{}); f.Value != "" {
		t.Fatalf("zero time should render empty, got %q", f.Value)
	}
	if f := Bin("Evidence", nil); f.Value != "" {
		t.Fatalf("nil bytes should render empty, got %q", f.Value)
	}
	loc := time.FixedZone("UTC+5", 5*3600)
	f := Time("At", time.Date(2025, 4, 1, 17, 0, 0, 0, loc))
	if f.Value != "2025-04-01T12:00:00Z" {
		t.Fatalf("expected UTC rendering, got %q", f.Value)
	}
	if f := Bin("Evidence", []byte("hello")); f.Value != "aGVsbG8=" {
		t.Fatalf("unexpected base64: %q", f.Value)
	}
	if f := Int("Version", 42); f.Value != "42" {
		t.Fatalf("unexpected int rendering: %q", f.Value)
	}
}

func TestVerify(t *testing.T) {
	rec := fakeRecord{fields: []Field{Str("ID", "rec-1")}}
	sig := Sign(rec, "s1", "dev")

	if !Verify(rec, "s1", "dev", sig) {
		t.Fatal("expected valid signature to verify")
	}
	if !Verify(rec, "s1", "dev", strings.ToLower(sig)) {
		t.Fatal("case difference should not fail verification")
	}
	if Verify(rec, "s1", "dev", strings.Repeat("0", 64)) {
		t.Fatal("tampered signature should not verify")
	}
	if Verify(rec, "other", "dev", sig) {
		t.Fatal("different session should not verify")
	}
}
