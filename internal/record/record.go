package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gxpcore.org/internal/signature"
)

// Type identifies a regulated record family. Each type carries its own
// lifecycle alphabet and its own signable field order.
type Type string

const (
	TypeCAPA      Type = "capa"
	TypeDocument  Type = "document"
	TypeIncident  Type = "incident_report"
	TypeTraining  Type = "training_record"
	TypeWorkOrder Type = "work_order"
)

// Types lists every supported record type.
var Types = []Type{TypeCAPA, TypeDocument, TypeIncident, TypeTraining, TypeWorkOrder}

var ErrUnknownType = errors.New("record: unknown record type")

// ParseType normalizes and validates a record type string.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Status is a member of a record type's declared state alphabet. It is never
// assigned directly by callers; only the lifecycle engine moves it.
type Status string

// Action is a requested lifecycle operation (APPROVE, CLOSE, ...).
type Action string

// Record is the shared shape of every regulated record. Domain-specific
// screens carry far more columns; only the compliance-bearing subset lives
// here. Version backs the optimistic-concurrency check on save.
type Record struct {
	ID          string
	Type        Type
	Status      Status
	Title       string
	Description string
	AssignedTo  string
	Reference   string // document code, machine id, course id, depending on type
	Evidence    []byte // raw evidence payload bound into the signature

	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt time.Time
	DueAt           time.Time

	Version          int64
	DigitalSignature string

	// Forensic context of the last mutation.
	SessionID  string
	DeviceInfo string
	IPAddress  string
}

// SignableFields returns the declared, fixed-order field list bound by the
// record's digital signature. The order is part of the signature contract:
// reordering or inserting a field invalidates previously computed signatures,
// so each type's list is spelled out explicitly rather than derived.
func (r Record) SignableFields() []signature.Field {
	switch r.Type {
	case TypeCAPA:
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
			signature.Str("Title", r.Title),
			signature.Str("Description", r.Description),
			signature.Str("AssignedTo", r.AssignedTo),
			signature.Bin("Evidence", r.Evidence),
			signature.Time("CreatedAt", r.CreatedAt),
			signature.Time("StatusChangedAt", r.StatusChangedAt),
			signature.Time("DueAt", r.DueAt),
		}
	case TypeDocument:
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
			signature.Str("Reference", r.Reference),
			signature.Str("Title", r.Title),
			signature.Str("Description", r.Description),
			signature.Bin("Evidence", r.Evidence),
			signature.Time("CreatedAt", r.CreatedAt),
			signature.Time("StatusChangedAt", r.StatusChangedAt),
		}
	case TypeIncident:
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
			signature.Str("Title", r.Title),
			signature.Str("Description", r.Description),
			signature.Str("AssignedTo", r.AssignedTo),
			signature.Time("CreatedAt", r.CreatedAt),
			signature.Time("StatusChangedAt", r.StatusChangedAt),
		}
	case TypeTraining:
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
			signature.Str("Reference", r.Reference),
			signature.Str("Title", r.Title),
			signature.Str("AssignedTo", r.AssignedTo),
			signature.Time("CreatedAt", r.CreatedAt),
			signature.Time("StatusChangedAt", r.StatusChangedAt),
			signature.Time("DueAt", r.DueAt),
		}
	case TypeWorkOrder:
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
			signature.Str("Reference", r.Reference),
			signature.Str("Title", r.Title),
			signature.Str("Description", r.Description),
			signature.Str("AssignedTo", r.AssignedTo),
			signature.Time("CreatedAt", r.CreatedAt),
			signature.Time("StatusChangedAt", r.StatusChangedAt),
			signature.Time("DueAt", r.DueAt),
		}
	default:
		// Unknown types still sign deterministically over the shared subset.
		return []signature.Field{
			signature.Str("ID", r.ID),
			signature.Str("Type", string(r.Type)),
			signature.Str("Status", string(r.Status)),
		}
	}
}
