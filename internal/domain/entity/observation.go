package entity

import (
	"strings"
	"time"
)

// Observation is a finding handed over to an EICR record.
type Observation struct {
	ID          uint      `json:"id"`
	ReportID    string    `json:"report_id"`
	EICRCode    EICRCode  `json:"eicr_code"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Regulation  string    `json:"regulation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObservationFromFinding copies the certificate fields of a finding.
func ObservationFromFinding(reportID string, f Finding) Observation {
	return Observation{
		ReportID:    reportID,
		EICRCode:    f.EICRCode,
		Description: f.Description,
		Location:    f.Location,
		Regulation:  strings.Join(f.BS7671Clauses, "; "),
	}
}
