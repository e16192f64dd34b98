// package services defines interface Service for interacting with the Callyzer API
package services

import (
	"context"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

// Service defines the operations callsync performs against one company's Callyzer account.
type Service interface {
	// Employees retrieves the employee list.
	Employees(ctx context.Context) ([]models.ExternalRecord, error)

	// Report POSTs a report request for window to one of the call-log endpoints.
	Report(ctx context.Context, endpoint Endpoint, window shared.Window, filter ReportFilter) ([]models.ExternalRecord, error)

	// Summary requests the summary report and returns the response body unchanged.
	Summary(ctx context.Context, startDate, endDate string) ([]byte, error)

	// Company returns the company the service was configured for.
	Company() string
}

// ReportFilter narrows a report request. Empty lists mean no filter.
type ReportFilter struct {
	CallTypes      []string
	EmpTags        []string
	EmpNumbers     []string
	ExcludeNumbers bool
	PageNo         int
	PageSize       int
}

// ReportRequest is the JSON body of the call-log report endpoints.
type ReportRequest struct {
	CallFrom         int64    `json:"call_from"`
	CallTo           int64    `json:"call_to"`
	CallTypes        []string `json:"call_types"`
	EmpNumbers       []string `json:"emp_numbers"`
	EmpTags          []string `json:"emp_tags"`
	IsExcludeNumbers bool     `json:"is_exclude_numbers"`
	PageNo           int      `json:"page_no"`
	PageSize         int      `json:"page_size"`
}

// SummaryRequest is the JSON body of the summary report endpoint.
type SummaryRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Company   string `json:"company"`
}

// NewReportRequest builds the request body for window and filter, defaulting to the first page of 100.
func NewReportRequest(window shared.Window, filter ReportFilter) ReportRequest {
	req := ReportRequest{
		CallFrom:         window.Start,
		CallTo:           window.End,
		CallTypes:        nonNil(filter.CallTypes),
		EmpNumbers:       nonNil(filter.EmpNumbers),
		EmpTags:          nonNil(filter.EmpTags),
		IsExcludeNumbers: filter.ExcludeNumbers,
		PageNo:           filter.PageNo,
		PageSize:         filter.PageSize,
	}
	if req.PageNo <= 0 {
		req.PageNo = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 100
	}
	return req
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
