package rbac

// Permission codes gating lifecycle transitions and administrative surfaces.
// Guards always check these codes through IsAuthorized, never role names.
const (
	PermCAPAAssign   = "capa.assign"
	PermCAPASubmit   = "capa.submit"
	PermCAPAApprove  = "capa.approve"
	PermCAPAReject   = "capa.reject"
	PermCAPAVerify   = "capa.verify"
	PermCAPAClose    = "capa.close"
	PermCAPAEscalate = "capa.escalate"

	PermDocumentSubmit   = "document.submit"
	PermDocumentApprove  = "document.approve"
	PermDocumentReject   = "document.reject"
	PermDocumentPublish  = "document.publish"
	PermDocumentExpire   = "document.expire"
	PermDocumentObsolete = "document.obsolete"
	PermDocumentArchive  = "document.archive"

	PermIncidentAssign      = "incident.assign"
	PermIncidentInvestigate = "incident.investigate"
	PermIncidentApprove     = "incident.approve"
	PermIncidentClose       = "incident.close"
	PermIncidentEscalate    = "incident.escalate"

	PermTrainingAssign  = "training.assign"
	PermTrainingSubmit  = "training.submit"
	PermTrainingApprove = "training.approve"
	PermTrainingReject  = "training.reject"
	PermTrainingClose   = "training.close"
	PermTrainingExpire  = "training.expire"

	PermWorkOrderStart    = "workorder.start"
	PermWorkOrderClose    = "workorder.close"
	PermWorkOrderEscalate = "workorder.escalate"
	PermWorkOrderOverdue  = "workorder.overdue"

	PermRBACManage   = "rbac.manage"
	PermAuditRead    = "audit.read"
	PermRecordRead   = "record.read"
	PermRecordExport = "record.export"
)

// BuiltinPermissions is the catalog ensured at startup and seeded by
// migrations. GetPermissionsForRole/GetPermissionsNotInRole partition it.
var BuiltinPermissions = []Permission{
	{Code: PermCAPAAssign, Name: "Assign a CAPA"},
	{Code: PermCAPASubmit, Name: "Submit a CAPA for approval"},
	{Code: PermCAPAApprove, Name: "Approve a CAPA"},
	{Code: PermCAPAReject, Name: "Reject a CAPA"},
	{Code: PermCAPAVerify, Name: "Start CAPA effectiveness check"},
	{Code: PermCAPAClose, Name: "Close a CAPA"},
	{Code: PermCAPAEscalate, Name: "Escalate a CAPA"},

	{Code: PermDocumentSubmit, Name: "Submit a document for approval"},
	{Code: PermDocumentApprove, Name: "Approve a document"},
	{Code: PermDocumentReject, Name: "Reject a document back to draft"},
	{Code: PermDocumentPublish, Name: "Publish a document"},
	{Code: PermDocumentExpire, Name: "Expire a document"},
	{Code: PermDocumentObsolete, Name: "Mark a document obsolete"},
	{Code: PermDocumentArchive, Name: "Archive a document"},

	{Code: PermIncidentAssign, Name: "Assign an incident report"},
	{Code: PermIncidentInvestigate, Name: "Record incident investigation"},
	{Code: PermIncidentApprove, Name: "Approve an incident report"},
	{Code: PermIncidentClose, Name: "Close an incident report"},
	{Code: PermIncidentEscalate, Name: "Escalate an incident report"},

	{Code: PermTrainingAssign, Name: "Assign a training record"},
	{Code: PermTrainingSubmit, Name: "Submit training for approval"},
	{Code: PermTrainingApprove, Name: "Approve a training record"},
	{Code: PermTrainingReject, Name: "Reject a training record"},
	{Code: PermTrainingClose, Name: "Close a training record"},
	{Code: PermTrainingExpire, Name: "Expire a training record"},

	{Code: PermWorkOrderStart, Name: "Start a work order"},
	{Code: PermWorkOrderClose, Name: "Close a work order"},
	{Code: PermWorkOrderEscalate, Name: "Escalate a work order"},
	{Code: PermWorkOrderOverdue, Name: "Flag a work order overdue"},

	{Code: PermRBACManage, Name: "Manage users, roles and grants"},
	{Code: PermAuditRead, Name: "Read the audit trail"},
	{Code: PermRecordRead, Name: "Read regulated records"},
	{Code: PermRecordExport, Name: "Export regulated records"},
}
