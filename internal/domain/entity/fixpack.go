package entity

import (
	"fmt"
	"strings"
)

// FixStep is one step of a remediation plan.
type FixStep struct {
	Title         string `json:"title"`
	Instruction   string `json:"instruction"`
	Regulation    string `json:"regulation"`
	SafetyWarning string `json:"safety_warning,omitempty"`
}

// FixPack is a pre-filled remediation plan derived from a single finding.
type FixPack struct {
	EICRCode          EICRCode  `json:"eicr_code"`
	Finding           string    `json:"finding"`
	Urgency           Priority  `json:"urgency"`
	EstimatedTime     string    `json:"estimated_time"`
	EstimatedCost     string    `json:"estimated_cost"`
	Difficulty        string    `json:"difficulty"`
	SafetyPriority    string    `json:"safety_priority"`
	Steps             []FixStep `json:"steps"`
	Materials         []string  `json:"materials"`
	VerificationSteps []string  `json:"verification_steps"`
	ComplianceNotes   string    `json:"compliance_notes"`
}

const (
	DifficultyElectrician = "electrician"

	SafetyPriorityCritical = "critical"
	SafetyPriorityHigh     = "high"
)

var safeIsolationStep = FixStep{
	Title:         "Safe Isolation",
	Instruction:   "Isolate the supply, secure the isolation with a lock and warning notice, then prove dead with an approved voltage indicator proved on a known source before and after the test.",
	Regulation:    "BS 7671 Regulation 537.2 / HSE GS38",
	SafetyWarning: "Never work on or near live conductors.",
}

var verificationSteps = []string{
	"Continuity of protective conductors",
	"Insulation resistance",
	"Polarity",
	"Earth fault loop impedance",
	"RCD operation where applicable",
}

// UrgencyFor maps an EICR code to the fix pack urgency.
func UrgencyFor(code EICRCode) Priority {
	switch code {
	case CodeC1:
		return PriorityImmediate
	case CodeC2:
		return PriorityUrgent
	}
	return PriorityRecommended
}

// DeriveFixPack builds the remediation plan for one finding.
func DeriveFixPack(f Finding) FixPack {
	pack := FixPack{
		EICRCode:          f.EICRCode,
		Finding:           f.Description,
		Urgency:           UrgencyFor(f.EICRCode),
		EstimatedTime:     "1-2 hours",
		EstimatedCost:     "£100-500",
		Difficulty:        DifficultyElectrician,
		SafetyPriority:    SafetyPriorityHigh,
		Steps:             []FixStep{safeIsolationStep},
		Materials:         []string{},
		VerificationSteps: append([]string(nil), verificationSteps...),
		ComplianceNotes:   complianceNote(f.BS7671Clauses),
	}
	if f.EICRCode == CodeC1 {
		pack.EstimatedTime = "30-60 mins"
		pack.EstimatedCost = "£50-200"
		pack.SafetyPriority = SafetyPriorityCritical
	}
	return pack
}

// DeriveFixPacks returns one fix pack per finding, in the same order.
func DeriveFixPacks(findings []Finding) []FixPack {
	packs := make([]FixPack, 0, len(findings))
	for _, f := range findings {
		packs = append(packs, DeriveFixPack(f))
	}
	return packs
}

func complianceNote(clauses []string) string {
	if len(clauses) == 0 {
		return "Remedial work must comply with BS 7671. No specific regulation was cited for this finding."
	}
	return fmt.Sprintf("Remedial work must comply with BS 7671 regulation(s): %s.", strings.Join(clauses, ", "))
}
