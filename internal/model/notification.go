package model

// AssignmentNotification is the e-mail sent to a newly assigned principal.
type AssignmentNotification struct {
	CaseID       int64
	HospitalName string
	Priority     string
	Notes        string
	AssigneeName string
	Recipient    string
	AssignedBy   string
	CaseURL      string
}
