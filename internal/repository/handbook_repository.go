package repository

import (
	"context"
	"errors"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

type HandbookRepository struct {
	DB *db.Postgres
}

// handbookCompleteSQL derives handbook completion for the user aliased u from
// completion and signature rows. A section is incomplete when it has no
// required policy, an unchecked required policy, or a missing signature it
// asks for. A company without sections is never complete.
const handbookCompleteSQL = `(
	EXISTS (SELECT 1 FROM handbook_sections hc WHERE hc.company_id = u.company_id)
	AND NOT EXISTS (
		SELECT 1 FROM handbook_sections hc
		WHERE hc.company_id = u.company_id AND (
			NOT EXISTS (SELECT 1 FROM policies pc WHERE pc.section_id = hc.id AND pc.required)
			OR EXISTS (
				SELECT 1 FROM policies pc
				WHERE pc.section_id = hc.id AND pc.required AND NOT EXISTS (
					SELECT 1 FROM policy_completions cc
					WHERE cc.policy_id = pc.id AND cc.user_id = u.id AND cc.completed
				)
			)
			OR (hc.requires_signature AND NOT EXISTS (
				SELECT 1 FROM section_signatures sc WHERE sc.section_id = hc.id AND sc.user_id = u.id
			))
		)
	)
)`

// CreateSection stores a section with its policies. A zero section number
// appends after the company's last section.
func (r HandbookRepository) CreateSection(ctx context.Context, s domain.HandbookSection) (*domain.HandbookSection, error) {
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO handbook_sections (company_id, section_number, title, description, requires_signature, created_at)
			VALUES ($1,
				CASE WHEN $2::int > 0 THEN $2::int
				     ELSE (SELECT COALESCE(MAX(section_number),0)+1 FROM handbook_sections WHERE company_id=$1) END,
				$3,$4,$5, now())
			RETURNING id, section_number, created_at
		`, s.CompanyID, s.SectionNumber, s.Title, s.Description, s.RequiresSignature).Scan(&s.ID, &s.SectionNumber, &s.CreatedAt); err != nil {
			return err
		}
		for i := range s.Policies {
			p := &s.Policies[i]
			p.SectionID = s.ID
			if p.SortOrder == 0 {
				p.SortOrder = i + 1
			}
			if err := tx.QueryRow(ctx, `
				INSERT INTO policies (section_id, title, content, required, sort_order, created_at)
				VALUES ($1,$2,$3,$4,$5, now())
				RETURNING id
			`, s.ID, p.Title, p.Content, p.Required, p.SortOrder).Scan(&p.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrSectionNumberTaken
		}
		return nil, err
	}
	return &s, nil
}

// ListSections returns the company's sections in order with their policies.
func (r HandbookRepository) ListSections(ctx context.Context, companyID int64) ([]domain.HandbookSection, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, company_id, section_number, title, description, requires_signature, created_at
		FROM handbook_sections
		WHERE company_id=$1
		ORDER BY section_number ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []domain.HandbookSection
	index := map[int64]int{}
	for rows.Next() {
		var s domain.HandbookSection
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.SectionNumber, &s.Title, &s.Description, &s.RequiresSignature, &s.CreatedAt); err != nil {
			return nil, err
		}
		index[s.ID] = len(sections)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	policies, err := r.policies(ctx, `
		SELECT p.id, p.section_id, p.title, p.content, p.required, p.sort_order
		FROM policies p
		JOIN handbook_sections s ON s.id = p.section_id
		WHERE s.company_id=$1
		ORDER BY p.sort_order ASC, p.id ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if i, ok := index[p.SectionID]; ok {
			sections[i].Policies = append(sections[i].Policies, p)
		}
	}
	return sections, nil
}

func (r HandbookRepository) GetSection(ctx context.Context, companyID, sectionID int64) (*domain.HandbookSection, error) {
	var s domain.HandbookSection
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, company_id, section_number, title, description, requires_signature, created_at
		FROM handbook_sections
		WHERE id=$1 AND company_id=$2
	`, sectionID, companyID).Scan(&s.ID, &s.CompanyID, &s.SectionNumber, &s.Title, &s.Description, &s.RequiresSignature, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Policies, err = r.policies(ctx, `
		SELECT id, section_id, title, content, required, sort_order
		FROM policies
		WHERE section_id=$1
		ORDER BY sort_order ASC, id ASC
	`, sectionID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r HandbookRepository) policies(ctx context.Context, query string, arg int64) ([]domain.Policy, error) {
	rows, err := r.DB.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.SectionID, &p.Title, &p.Content, &p.Required, &p.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPolicyCompletion keeps one row per user and policy.
func (r HandbookRepository) UpsertPolicyCompletion(ctx context.Context, c domain.PolicyCompletion) (*domain.PolicyCompletion, error) {
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO policy_completions (user_id, section_id, policy_id, completed, completed_at, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT ON CONSTRAINT policy_completions_user_policy_key DO UPDATE SET
			completed=EXCLUDED.completed,
			completed_at=EXCLUDED.completed_at,
			updated_at=now()
		RETURNING id, updated_at
	`, c.UserID, c.SectionID, c.PolicyID, c.Completed, c.CompletedAt).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r HandbookRepository) ListPolicyCompletions(ctx context.Context, userID int64) ([]domain.PolicyCompletion, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, user_id, section_id, policy_id, completed, completed_at, updated_at
		FROM policy_completions
		WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PolicyCompletion
	for rows.Next() {
		var c domain.PolicyCompletion
		if err := rows.Scan(&c.ID, &c.UserID, &c.SectionID, &c.PolicyID, &c.Completed, &c.CompletedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const signatureColumns = `id, user_id, section_id, signature_data, ip_address, user_agent, signed_at`

func scanSignature(row rowScanner) (*domain.Signature, error) {
	var s domain.Signature
	if err := row.Scan(&s.ID, &s.UserID, &s.SectionID, &s.SignatureData, &s.IPAddress, &s.UserAgent, &s.SignedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r HandbookRepository) ListSignatures(ctx context.Context, userID int64) ([]domain.Signature, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+signatureColumns+` FROM section_signatures WHERE user_id=$1 ORDER BY signed_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Signature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CreateSignature relies on the unique constraint to reject a second
// signature for the same section.
func (r HandbookRepository) CreateSignature(ctx context.Context, sig domain.Signature) (*domain.Signature, error) {
	s, err := scanSignature(r.DB.Pool.QueryRow(ctx, `
		INSERT INTO section_signatures (user_id, section_id, signature_data, ip_address, user_agent, signed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+signatureColumns,
		sig.UserID, sig.SectionID, sig.SignatureData, sig.IPAddress, sig.UserAgent, sig.SignedAt))
	if err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == "section_signatures_user_section_key" {
			return nil, apperr.ErrAlreadySigned
		}
		return nil, err
	}
	return s, nil
}

// ComplianceReport lists approved employees and managers with their
// signature counts against the company's signature-required sections.
// Completion is derived from the current sections, not the cached flag.
func (r HandbookRepository) ComplianceReport(ctx context.Context, companyID int64) ([]domain.ComplianceRow, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.role, `+handbookCompleteSQL+`,
			COUNT(ss.id) FILTER (WHERE hs.requires_signature) AS signed,
			(SELECT COUNT(*) FROM handbook_sections WHERE company_id=$1 AND requires_signature) AS required,
			MAX(ss.signed_at)
		FROM users u
		LEFT JOIN section_signatures ss ON ss.user_id = u.id
		LEFT JOIN handbook_sections hs ON hs.id = ss.section_id
		WHERE u.company_id=$1 AND u.deleted_at IS NULL
		  AND u.role IN ('employee','manager')
		  AND u.status IN ('approved','active')
		GROUP BY u.id
		ORDER BY u.name ASC, u.id ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ComplianceRow
	for rows.Next() {
		var (
			c    domain.ComplianceRow
			role string
		)
		if err := rows.Scan(&c.UserID, &c.Name, &c.Email, &role, &c.HandbookCompleted, &c.SectionsSigned, &c.SectionsRequired, &c.LastSignedAt); err != nil {
			return nil, err
		}
		c.Role = domain.UserRole(role)
		out = append(out, c)
	}
	return out, rows.Err()
}
