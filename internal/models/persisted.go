package models

import "time"

// Employee is a persisted employee row as read back for exports.
type Employee struct {
	ID                    string
	EmpName               string
	EmpCode               string
	EmpCountryCode        string
	EmpNumber             string
	EmpTags               string
	AppVersion            string
	LastCallAt            string
	IsLeadActive          bool
	IsCallRecordingActive bool
	CreatedAt             time.Time
}

// CallLog is a persisted call log row as read back for exports.
type CallLog struct {
	ID                string
	CallLogID         string
	EmployeeID        string
	EmpNumber         string
	ClientName        string
	ClientCountryCode string
	ClientNumber      string
	Duration          int64
	CallType          string
	CallDate          string
	CallTime          string
	CreatedAt         time.Time
}
