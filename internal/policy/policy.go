// Package policy looks up insurance policies for the identity step of a
// claim. Policies live in an external directory: a YAML file for small
// deployments or a Postgres table.
package policy

import (
	"context"
	"strings"

	"github.com/user/claimline/internal/claim"
)

// Status values with dedicated customer messaging.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Policy is a snapshot of one insurance policy.
type Policy struct {
	PolicyNumber     string     `yaml:"policy_number" json:"policy_number"`
	Kind             claim.Type `yaml:"kind" json:"kind"`
	CitizenID        string     `yaml:"citizen_id" json:"citizen_id"`
	Title            string     `yaml:"title,omitempty" json:"title,omitempty"`
	FirstName        string     `yaml:"first_name" json:"first_name"`
	LastName         string     `yaml:"last_name" json:"last_name"`
	Phone            string     `yaml:"phone,omitempty" json:"phone,omitempty"`
	Plate            string     `yaml:"plate,omitempty" json:"plate,omitempty"`
	VehicleBrand     string     `yaml:"vehicle_brand,omitempty" json:"vehicle_brand,omitempty"`
	VehicleModel     string     `yaml:"vehicle_model,omitempty" json:"vehicle_model,omitempty"`
	VehicleYear      string     `yaml:"vehicle_year,omitempty" json:"vehicle_year,omitempty"`
	CoverageType     string     `yaml:"coverage_type,omitempty" json:"coverage_type,omitempty"`
	InsuranceCompany string     `yaml:"insurance_company" json:"insurance_company"`
	StartDate        string     `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate          string     `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Status           string     `yaml:"status" json:"status"`
}

// Active reports whether claims may be filed against the policy.
func (p *Policy) Active() bool {
	return strings.EqualFold(p.Status, StatusActive)
}

// FullName joins the first and last name.
func (p *Policy) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Label is the identifier customers pick between when several policies match:
// the plate for vehicle policies, the policy number otherwise.
func (p *Policy) Label() string {
	if p.Plate != "" {
		return p.Plate
	}
	return p.PolicyNumber
}

// Directory finds policies. Every lookup returns all matching candidates;
// an empty slice with a nil error means nothing matched.
type Directory interface {
	FindByCitizenID(ctx context.Context, kind claim.Type, citizenID string) ([]Policy, error)
	FindByPlate(ctx context.Context, plate string) ([]Policy, error)
	FindByName(ctx context.Context, kind claim.Type, query string) ([]Policy, error)
}

// NormalizePlate removes whitespace and dashes so "1กข 1234" matches "1กข1234".
func NormalizePlate(plate string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(plate)))
}

// matchesName reports whether every whitespace-separated token of query
// occurs in the policy holder's full name.
func matchesName(p *Policy, query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return false
	}
	name := strings.ToLower(p.FullName())
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}
