package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EICRCode is the observation code of a finding.
type EICRCode string

const (
	CodeC1 EICRCode = "C1" // danger present
	CodeC2 EICRCode = "C2" // potentially dangerous
	CodeC3 EICRCode = "C3" // improvement recommended
	CodeFI EICRCode = "FI" // further investigation
)

// AllCodes lists the codes in display order.
var AllCodes = []EICRCode{CodeC1, CodeC2, CodeC3, CodeFI}

// IsValid returns true if the code is one of C1, C2, C3, FI.
func (c EICRCode) IsValid() bool {
	switch c {
	case CodeC1, CodeC2, CodeC3, CodeFI:
		return true
	}
	return false
}

// Label returns the wording used on certificates.
func (c EICRCode) Label() string {
	switch c {
	case CodeC1:
		return "Danger present"
	case CodeC2:
		return "Potentially dangerous"
	case CodeC3:
		return "Improvement recommended"
	case CodeFI:
		return "Further investigation"
	}
	return "Unknown"
}

// ParseEICRCode accepts any casing and surrounding space.
func ParseEICRCode(s string) (EICRCode, error) {
	c := EICRCode(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown EICR code %q", s)
	}
	return c, nil
}

// UnmarshalJSON normalizes casing. Values outside the four codes are kept
// as sent; AnalysisResult.Sanitize resolves them.
func (c *EICRCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("eicr code: %w", err)
	}
	*c = EICRCode(strings.ToUpper(strings.TrimSpace(s)))
	return nil
}

// Priority is the action priority of a recommendation and the urgency of a fix pack.
type Priority string

const (
	PriorityImmediate   Priority = "immediate"
	PriorityUrgent      Priority = "urgent"
	PriorityRecommended Priority = "recommended"
)

// IsValid returns true if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityImmediate, PriorityUrgent, PriorityRecommended:
		return true
	}
	return false
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	*p = Priority(strings.ToLower(strings.TrimSpace(s)))
	return nil
}
