package repository

import (
	"context"
	"errors"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"github.com/jackc/pgx/v5"
)

type IncidentRepository struct {
	DB *db.Postgres
}

const incidentColumns = `id, company_id, reported_by, title, description, location, severity, status,
	occurred_at, witnesses, media_urls, resolution, created_at, updated_at`

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var (
		in               domain.Incident
		severity, status string
	)
	if err := row.Scan(&in.ID, &in.CompanyID, &in.ReportedBy, &in.Title, &in.Description, &in.Location,
		&severity, &status, &in.OccurredAt, &in.Witnesses, &in.MediaURLs, &in.Resolution, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.Severity = domain.IncidentSeverity(severity)
	in.Status = domain.IncidentStatus(status)
	return &in, nil
}

func (r IncidentRepository) Create(ctx context.Context, in domain.Incident) (*domain.Incident, error) {
	witnesses := in.Witnesses
	if witnesses == nil {
		witnesses = []domain.Witness{}
	}
	media := in.MediaURLs
	if media == nil {
		media = []string{}
	}
	return scanIncident(r.DB.Pool.QueryRow(ctx, `
		INSERT INTO incidents (company_id, reported_by, title, description, location, severity, status, occurred_at, witnesses, media_urls, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,'open',$7,$8,$9, now(), now())
		RETURNING `+incidentColumns,
		in.CompanyID, in.ReportedBy, in.Title, in.Description, in.Location, string(in.Severity), in.OccurredAt, witnesses, media))
}

func (r IncidentRepository) Get(ctx context.Context, companyID, id int64) (*domain.Incident, error) {
	in, err := scanIncident(r.DB.Pool.QueryRow(ctx, `
		SELECT `+incidentColumns+` FROM incidents WHERE id=$1 AND company_id=$2
	`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return in, err
}

func (r IncidentRepository) List(ctx context.Context, f ports.IncidentFilter) ([]domain.Incident, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE company_id=$1
		  AND ($2::bigint = 0 OR reported_by = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC, id DESC
		LIMIT $6
	`, f.CompanyID, f.ReportedBy, string(f.Status), f.From, f.To, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (r IncidentRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.IncidentStatus, resolution string) (*domain.Incident, error) {
	in, err := scanIncident(r.DB.Pool.QueryRow(ctx, `
		UPDATE incidents SET
			status=$3,
			resolution=CASE WHEN $4 <> '' THEN $4 ELSE resolution END,
			updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+incidentColumns,
		id, string(from), string(to), resolution))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrStale
	}
	return in, err
}
