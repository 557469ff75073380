package policy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/user/claimline/internal/claim"
)

// SQLDirectory reads policies from a Postgres "policies" table whose
// columns mirror the Policy fields.
type SQLDirectory struct {
	db *sql.DB
}

// OpenSQLDirectory connects to Postgres using dsn and verifies the connection.
func OpenSQLDirectory(ctx context.Context, dsn string) (*SQLDirectory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open policy db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping policy db: %w", err)
	}
	return NewSQLDirectory(db), nil
}

// NewSQLDirectory wraps an existing database handle.
func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// Close releases the database handle.
func (d *SQLDirectory) Close() error {
	return d.db.Close()
}

const selectPolicies = `
	SELECT policy_number, kind, citizen_id, title, first_name, last_name, phone,
	       plate, vehicle_brand, vehicle_model, vehicle_year, coverage_type,
	       insurance_company, start_date, end_date, status
	FROM policies
`

func (d *SQLDirectory) query(ctx context.Context, where string, args ...any) ([]Policy, error) {
	rows, err := d.db.QueryContext(ctx, selectPolicies+where+" ORDER BY policy_number", args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		var p Policy
		var kind string
		var title, phone, plate, brand, model, year, coverage, start, end sql.NullString
		if err := rows.Scan(
			&p.PolicyNumber,
			&kind,
			&p.CitizenID,
			&title,
			&p.FirstName,
			&p.LastName,
			&phone,
			&plate,
			&brand,
			&model,
			&year,
			&coverage,
			&p.InsuranceCompany,
			&start,
			&end,
			&p.Status,
		); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		p.Kind = claim.Type(kind)
		p.Title = title.String
		p.Phone = phone.String
		p.Plate = plate.String
		p.VehicleBrand = brand.String
		p.VehicleModel = model.String
		p.VehicleYear = year.String
		p.CoverageType = coverage.String
		p.StartDate = start.String
		p.EndDate = end.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *SQLDirectory) FindByCitizenID(ctx context.Context, kind claim.Type, citizenID string) ([]Policy, error) {
	return d.query(ctx, "WHERE kind = $1 AND citizen_id = $2", string(kind), citizenID)
}

func (d *SQLDirectory) FindByPlate(ctx context.Context, plate string) ([]Policy, error) {
	want := NormalizePlate(plate)
	if want == "" {
		return nil, nil
	}
	return d.query(ctx,
		"WHERE kind = $1 AND lower(replace(replace(plate, ' ', ''), '-', '')) = $2",
		string(claim.TypeCD), want)
}

func (d *SQLDirectory) FindByName(ctx context.Context, kind claim.Type, query string) ([]Policy, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}
	where := "WHERE kind = $1"
	args := []any{string(kind)}
	for _, tok := range tokens {
		args = append(args, "%"+tok+"%")
		where += fmt.Sprintf(" AND lower(first_name || ' ' || last_name) LIKE $%d", len(args))
	}
	return d.query(ctx, where, args...)
}
