package agents

// Event types published on the shared bus. Payload keys are documented on
// the publishing site.
const (
	EventEmployeeOnboarded    = "employee_onboarded"
	EventLeaveProcessed       = "leave_processed"
	EventTicketCreated        = "ticket_created"
	EventTicketResolved       = "ticket_resolved"
	EventAccessProvisioned    = "access_provisioned"
	EventAccessRevoked        = "access_revoked"
	EventExpenseSubmitted     = "expense_submitted"
	EventExpenseApproved      = "expense_approved"
	EventPayrollSetupComplete = "payroll_setup_complete"
	EventViolationDetected    = "violation_detected"
	EventComplianceVerified   = "compliance_verified"
	EventSecurityIncident     = "security_incident"
)
