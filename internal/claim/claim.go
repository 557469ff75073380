// Package claim holds the claim vocabulary shared by the conversation engine,
// the durable stores and the reviewer tooling: claim types, the status
// lifecycle, document categories and the required-slot table.
package claim

import (
	"fmt"
	"regexp"
	"time"
)

// Type is the kind of claim being filed.
type Type string

const (
	TypeCD Type = "CD" // vehicle damage
	TypeH  Type = "H"  // health
)

// Valid reports whether t is one of the known claim types.
func (t Type) Valid() bool {
	return t == TypeCD || t == TypeH
}

// ParseType converts a raw string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown claim type: %q", s)
	}
	return t, nil
}

// IDPattern matches every identifier the sequence generator produces.
var IDPattern = regexp.MustCompile(`^(CD|H)-\d{8}-\d{6}$`)

// Counterpart records whether a vehicle-damage claim involves another party.
// The zero value means the question has not been answered yet.
type Counterpart string

const (
	CounterpartUnknown Counterpart = ""
	CounterpartYes     Counterpart = "yes"
	CounterpartNo      Counterpart = "no"
)

// Label returns the chat label the customer picks for this answer.
func (c Counterpart) Label() string {
	switch c {
	case CounterpartYes:
		return LabelHasCounterpart
	case CounterpartNo:
		return LabelNoCounterpart
	}
	return "N/A"
}

// Chat labels for the counterpart question.
const (
	LabelHasCounterpart = "มีคู่กรณี"
	LabelNoCounterpart  = "ไม่มีคู่กรณี"
)

// Document is one stored upload inside a claim folder.
type Document struct {
	Category string `yaml:"category" json:"category"`
	Filename string `yaml:"filename" json:"filename"`
	Useful   *bool  `yaml:"useful" json:"useful"`
}

// Metrics are operational counters kept alongside the claim.
type Metrics struct {
	ResponseTimesMS []int64  `yaml:"response_times_ms" json:"response_times_ms"`
	TotalPaidAmount *float64 `yaml:"total_paid_amount" json:"total_paid_amount"`
}

// Record is the durable claim record persisted as status.yaml.
type Record struct {
	ClaimID        string     `yaml:"claim_id" json:"claim_id"`
	ClaimType      Type       `yaml:"claim_type" json:"claim_type"`
	UserID         string     `yaml:"line_user_id" json:"line_user_id"`
	HasCounterpart *bool      `yaml:"has_counterpart" json:"has_counterpart"`
	Status         Status     `yaml:"status" json:"status"`
	Memo           string     `yaml:"memo" json:"memo"`
	CreatedAt      time.Time  `yaml:"created_at" json:"created_at"`
	SubmittedAt    *time.Time `yaml:"submitted_at" json:"submitted_at"`
	PaidAmount     *float64   `yaml:"paid_amount,omitempty" json:"paid_amount,omitempty"`
	Documents      []Document `yaml:"documents" json:"documents"`
	Metrics        Metrics    `yaml:"metrics" json:"metrics"`
}

// Validate checks the fields every stored record must carry.
func (r *Record) Validate() error {
	if !IDPattern.MatchString(r.ClaimID) {
		return fmt.Errorf("invalid claim id: %q", r.ClaimID)
	}
	if !r.ClaimType.Valid() {
		return fmt.Errorf("invalid claim type: %q", r.ClaimType)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status: %q", r.Status)
	}
	if r.UserID == "" {
		return fmt.Errorf("claim %s has no owner", r.ClaimID)
	}
	return nil
}
