// Package signature computes deterministic record fingerprints for audit
// traceability. The canonical form and the hash are a stable contract: the
// same field values, session and device always produce the same hex string,
// on any platform, at any time.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Field is one signable field rendered to its canonical text form.
type Field struct {
	Name  string
	Value string
}

// Signable is implemented by records that declare an explicit, fixed-order
// signable field list. Reflection-derived field order is deliberately not
// supported; it silently reorders when unrelated fields are added.
type Signable interface {
	SignableFields() []Field
}

// Str renders a plain string value.
func Str(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Int renders an integer in base 10.
func Int(name string, value int64) Field {
	return Field{Name: name, Value: strconv.FormatInt(value, 10)}
}

// Time renders a timestamp as UTC RFC3339Nano. The zero time renders as the
// empty string, matching the nil rule.
func Time(name string, t time.Time) Field {
	if t.IsZero() {
		return Field{Name: name}
	}
	return Field{Name: name, Value: t.UTC().Format(time.RFC3339Nano)}
}

// Bin renders binary content as standard base64. Nil and empty both render as
// the empty string.
func Bin(name string, b []byte) Field {
	if len(b) == 0 {
		return Field{Name: name}
	}
	return Field{Name: name, Value: base64.StdEncoding.EncodeToString(b)}
}

// Canonical builds the exact byte sequence that gets hashed:
//
//	SID=<sessionID>|DEV=<deviceInfo>|Name=Value;Name=Value;...
//
// No normalization is applied beyond the per-kind rendering done by the Field
// constructors, so any change to a signed value changes the output.
func Canonical(rec Signable, sessionID, deviceInfo string) string {
	var sb strings.Builder
	sb.WriteString("SID=")
	sb.WriteString(sessionID)
	sb.WriteString("|DEV=")
	sb.WriteString(deviceInfo)
	sb.WriteString("|")
	for _, f := range rec.SignableFields() {
		sb.WriteString(f.Name)
		sb.WriteString("=")
		sb.WriteString(f.Value)
		sb.WriteString(";")
	}
	return sb.String()
}

// Sign hashes the canonical form with SHA-256 and returns uppercase hex.
// Sign is total: absent or zero fields render as empty strings and never fail.
func Sign(rec Signable, sessionID, deviceInfo string) string {
	sum := sha256.Sum256([]byte(Canonical(rec, sessionID, deviceInfo)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify recomputes the signature from the record's current state and
// compares it with the stored value in constant time. Case differences in
// the hex encoding do not count as a mismatch.
func Verify(rec Signable, sessionID, deviceInfo, signatureHex string) bool {
	want := Sign(rec, sessionID, deviceInfo)
	got := strings.ToUpper(strings.TrimSpace(signatureHex))
	if len(want) != len(got) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
