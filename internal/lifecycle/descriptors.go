package lifecycle

import (
	"gxpcore.org/internal/rbac"
	"gxpcore.org/internal/record"
)

// Statuses used across the record-type alphabets.
const (
	StatusInitiated          record.Status = "initiated"
	StatusInProgress         record.Status = "in_progress"
	StatusPendingApproval    record.Status = "pending_approval"
	StatusApproved           record.Status = "approved"
	StatusEffectivenessCheck record.Status = "effectiveness_check"
	StatusClosed             record.Status = "closed"
	StatusRejected           record.Status = "rejected"
	StatusEscalated          record.Status = "escalated"

	StatusDraft     record.Status = "draft"
	StatusPublished record.Status = "published"
	StatusExpired   record.Status = "expired"
	StatusObsolete  record.Status = "obsolete"
	StatusArchived  record.Status = "archived"

	StatusReported     record.Status = "reported"
	StatusAssigned     record.Status = "assigned"
	StatusInvestigated record.Status = "investigated"

	StatusPlanned   record.Status = "planned"
	StatusCompleted record.Status = "completed"

	StatusOpen    record.Status = "open"
	StatusOverdue record.Status = "overdue"
)

// Action codes. The same codes appear in audit entries.
const (
	ActionAssign      record.Action = "ASSIGN"
	ActionStart       record.Action = "START"
	ActionSubmit      record.Action = "SUBMIT"
	ActionApprove     record.Action = "APPROVE"
	ActionReject      record.Action = "REJECT"
	ActionVerify      record.Action = "VERIFY"
	ActionClose       record.Action = "CLOSE"
	ActionEscalate    record.Action = "ESCALATE"
	ActionPublish     record.Action = "PUBLISH"
	ActionExpire      record.Action = "EXPIRE"
	ActionObsolete    record.Action = "OBSOLETE"
	ActionArchive     record.Action = "ARCHIVE"
	ActionInvestigate record.Action = "INVESTIGATE"
	ActionOverdue     record.Action = "OVERDUE"
)

// Descriptors builds the transition tables for all five regulated record
// types. Escalation is a side branch: it is reachable from every non-terminal
// working status and resumes via ASSIGN/START without erasing prior history;
// the audit trail shows the full path.
func Descriptors() ([]*Descriptor, error) {
	capa, err := NewDescriptor(record.TypeCAPA,
		[]record.Status{
			StatusInitiated, StatusInProgress, StatusPendingApproval, StatusApproved,
			StatusEffectivenessCheck, StatusEscalated, StatusClosed, StatusRejected,
		},
		[]record.Status{StatusClosed, StatusRejected},
		[]Rule{
			{From: StatusInitiated, Action: ActionAssign, To: StatusInProgress, Permission: rbac.PermCAPAAssign},
			{From: StatusInProgress, Action: ActionSubmit, To: StatusPendingApproval, Permission: rbac.PermCAPASubmit},
			{From: StatusPendingApproval, Action: ActionApprove, To: StatusApproved, Permission: rbac.PermCAPAApprove},
			{From: StatusPendingApproval, Action: ActionReject, To: StatusRejected, Permission: rbac.PermCAPAReject},
			{From: StatusApproved, Action: ActionVerify, To: StatusEffectivenessCheck, Permission: rbac.PermCAPAVerify},
			{From: StatusEffectivenessCheck, Action: ActionClose, To: StatusClosed, Permission: rbac.PermCAPAClose},
			{From: StatusInitiated, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermCAPAEscalate},
			{From: StatusInProgress, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermCAPAEscalate},
			{From: StatusPendingApproval, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermCAPAEscalate},
			{From: StatusApproved, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermCAPAEscalate},
			{From: StatusEffectivenessCheck, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermCAPAEscalate},
			{From: StatusEscalated, Action: ActionAssign, To: StatusInProgress, Permission: rbac.PermCAPAAssign},
		})
	if err != nil {
		return nil, err
	}

	document, err := NewDescriptor(record.TypeDocument,
		[]record.Status{
			StatusDraft, StatusPendingApproval, StatusApproved, StatusPublished,
			StatusExpired, StatusObsolete, StatusArchived,
		},
		[]record.Status{StatusObsolete, StatusArchived},
		[]Rule{
			{From: StatusDraft, Action: ActionSubmit, To: StatusPendingApproval, Permission: rbac.PermDocumentSubmit},
			{From: StatusPendingApproval, Action: ActionApprove, To: StatusApproved, Permission: rbac.PermDocumentApprove},
			// Rejection returns the document to draft for revision; there is
			// no dead "rejected" status in the document alphabet.
			{From: StatusPendingApproval, Action: ActionReject, To: StatusDraft, Permission: rbac.PermDocumentReject},
			{From: StatusApproved, Action: ActionPublish, To: StatusPublished, Permission: rbac.PermDocumentPublish},
			{From: StatusPublished, Action: ActionExpire, To: StatusExpired, Permission: rbac.PermDocumentExpire},
			{From: StatusPublished, Action: ActionObsolete, To: StatusObsolete, Permission: rbac.PermDocumentObsolete},
			{From: StatusExpired, Action: ActionObsolete, To: StatusObsolete, Permission: rbac.PermDocumentObsolete},
			{From: StatusPublished, Action: ActionArchive, To: StatusArchived, Permission: rbac.PermDocumentArchive},
			{From: StatusExpired, Action: ActionArchive, To: StatusArchived, Permission: rbac.PermDocumentArchive},
		})
	if err != nil {
		return nil, err
	}

	incident, err := NewDescriptor(record.TypeIncident,
		[]record.Status{
			StatusReported, StatusAssigned, StatusInvestigated, StatusApproved,
			StatusEscalated, StatusClosed,
		},
		[]record.Status{StatusClosed},
		[]Rule{
			{From: StatusReported, Action: ActionAssign, To: StatusAssigned, Permission: rbac.PermIncidentAssign},
			{From: StatusAssigned, Action: ActionInvestigate, To: StatusInvestigated, Permission: rbac.PermIncidentInvestigate},
			{From: StatusInvestigated, Action: ActionApprove, To: StatusApproved, Permission: rbac.PermIncidentApprove},
			{From: StatusApproved, Action: ActionClose, To: StatusClosed, Permission: rbac.PermIncidentClose},
			{From: StatusReported, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermIncidentEscalate},
			{From: StatusAssigned, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermIncidentEscalate},
			{From: StatusInvestigated, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermIncidentEscalate},
			{From: StatusApproved, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermIncidentEscalate},
			{From: StatusEscalated, Action: ActionAssign, To: StatusAssigned, Permission: rbac.PermIncidentAssign},
		})
	if err != nil {
		return nil, err
	}

	training, err := NewDescriptor(record.TypeTraining,
		[]record.Status{
			StatusPlanned, StatusAssigned, StatusPendingApproval, StatusCompleted,
			StatusClosed, StatusExpired, StatusRejected,
		},
		[]record.Status{StatusClosed, StatusExpired, StatusRejected},
		[]Rule{
			{From: StatusPlanned, Action: ActionAssign, To: StatusAssigned, Permission: rbac.PermTrainingAssign},
			{From: StatusAssigned, Action: ActionSubmit, To: StatusPendingApproval, Permission: rbac.PermTrainingSubmit},
			{From: StatusPendingApproval, Action: ActionApprove, To: StatusCompleted, Permission: rbac.PermTrainingApprove},
			{From: StatusPendingApproval, Action: ActionReject, To: StatusRejected, Permission: rbac.PermTrainingReject},
			{From: StatusCompleted, Action: ActionClose, To: StatusClosed, Permission: rbac.PermTrainingClose},
			{From: StatusPlanned, Action: ActionExpire, To: StatusExpired, Permission: rbac.PermTrainingExpire},
			{From: StatusAssigned, Action: ActionExpire, To: StatusExpired, Permission: rbac.PermTrainingExpire},
		})
	if err != nil {
		return nil, err
	}

	workOrder, err := NewDescriptor(record.TypeWorkOrder,
		[]record.Status{
			StatusOpen, StatusInProgress, StatusClosed, StatusEscalated, StatusOverdue,
		},
		[]record.Status{StatusClosed},
		[]Rule{
			{From: StatusOpen, Action: ActionStart, To: StatusInProgress, Permission: rbac.PermWorkOrderStart},
			{From: StatusInProgress, Action: ActionClose, To: StatusClosed, Permission: rbac.PermWorkOrderClose},
			{From: StatusOpen, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermWorkOrderEscalate},
			{From: StatusInProgress, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermWorkOrderEscalate},
			{From: StatusOpen, Action: ActionOverdue, To: StatusOverdue, Permission: rbac.PermWorkOrderOverdue},
			{From: StatusInProgress, Action: ActionOverdue, To: StatusOverdue, Permission: rbac.PermWorkOrderOverdue},
			{From: StatusEscalated, Action: ActionStart, To: StatusInProgress, Permission: rbac.PermWorkOrderStart},
			{From: StatusOverdue, Action: ActionClose, To: StatusClosed, Permission: rbac.PermWorkOrderClose},
			{From: StatusOverdue, Action: ActionEscalate, To: StatusEscalated, Permission: rbac.PermWorkOrderEscalate},
		})
	if err != nil {
		return nil, err
	}

	return []*Descriptor{capa, document, incident, training, workOrder}, nil
}
