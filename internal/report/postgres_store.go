package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/idgen"
)

// PostgresStore implements Store with PostgreSQL. Schema lives in
// migrations/ and is wire-compatible with the columns described there;
// run cmd/migrate before first use.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed report store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (p *PostgresStore) UpsertRaider(ctx context.Context, tag identity.Tag, displayTag string) (*Raider, error) {
	r := &Raider{}
	// DO UPDATE on conflict so RETURNING always yields the row; the
	// display tag keeps its first-submitted casing.
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO raiders (tag, display_tag)
		VALUES ($1, $2)
		ON CONFLICT (tag) DO UPDATE SET tag = EXCLUDED.tag
		RETURNING id, tag, display_tag, created_at
	`, string(tag), displayTag).Scan(&r.ID, &r.Tag, &r.DisplayTag, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *PostgresStore) GetRaiderByTag(ctx context.Context, tag identity.Tag) (*Raider, error) {
	r := &Raider{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, tag, display_tag, created_at FROM raiders WHERE tag = $1
	`, string(tag)).Scan(&r.ID, &r.Tag, &r.DisplayTag, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRaiderNotFound
	}
	return r, err
}

func (p *PostgresStore) CreateReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = idgen.WithPrefix("rpt_")
	}

	var evidenceJSON interface{}
	if len(r.EvidenceURLs) > 0 {
		b, err := json.Marshal(r.EvidenceURLs)
		if err != nil {
			return err
		}
		evidenceJSON = b
	}

	// created_at is assigned by the database and read back so the
	// in-memory struct matches the stored row.
	return p.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, raider_id, reason, comments, evidence_urls, upvotes, downvotes, reporter_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, r.ID, r.RaiderID, string(r.Reason), nullString(r.Comments), evidenceJSON,
		r.Upvotes, r.Downvotes, nullString(r.ReporterLabel)).Scan(&r.CreatedAt)
}

func (p *PostgresStore) ListReports(ctx context.Context, q Query) ([]*Report, error) {
	query := `
		SELECT id, raider_id, reason, comments, evidence_urls, upvotes, downvotes, reporter_label, created_at
		FROM reports
		WHERE raider_id = $1
	`
	args := []interface{}{q.RaiderID}

	if q.OnlyComments {
		query += ` AND reason = '` + string(ReasonComment) + `'`
	} else {
		query += ` AND reason <> '` + string(ReasonComment) + `'`
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}

	switch q.Sort {
	case SortTop:
		query += ` ORDER BY upvotes DESC, created_at DESC`
	default:
		query += ` ORDER BY created_at DESC`
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

func (p *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*RecentReport, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ra.tag, ra.display_tag, re.reason, re.created_at
		FROM reports re
		JOIN raiders ra ON ra.id = re.raider_id
		WHERE re.reason <> $1
		ORDER BY re.created_at DESC
		LIMIT $2
	`, string(ReasonComment), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RecentReport
	for rows.Next() {
		rr := &RecentReport{}
		var reason string
		if err := rows.Scan(&rr.Tag, &rr.DisplayTag, &reason, &rr.CreatedAt); err != nil {
			return nil, err
		}
		rr.Reason = Reason(reason)
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetComment(ctx context.Context, id string) (*Report, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, raider_id, reason, comments, evidence_urls, upvotes, downvotes, reporter_label, created_at
		FROM reports
		WHERE id = $1 AND reason = $2
	`, id, string(ReasonComment))

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	return r, err
}

// ApplyVoteDelta is the atomic counter contract: the adjustment and
// the zero floor happen in one statement, so concurrent votes cannot
// lose increments.
func (p *PostgresStore) ApplyVoteDelta(ctx context.Context, id string, upDelta, downDelta int) (int, int, error) {
	var up, down int
	err := p.db.QueryRowContext(ctx, `
		UPDATE reports
		SET upvotes = GREATEST(0, upvotes + $2),
		    downvotes = GREATEST(0, downvotes + $3)
		WHERE id = $1 AND reason = $4
		RETURNING upvotes, downvotes
	`, id, upDelta, downDelta, string(ReasonComment)).Scan(&up, &down)
	if err == sql.ErrNoRows {
		return 0, 0, ErrReportNotFound
	}
	return up, down, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*Report, error) {
	r := &Report{}
	var reason string
	var comments, label sql.NullString
	var evidenceJSON []byte

	if err := row.Scan(
		&r.ID, &r.RaiderID, &reason, &comments, &evidenceJSON,
		&r.Upvotes, &r.Downvotes, &label, &r.CreatedAt,
	); err != nil {
		return nil, err
	}

	r.Reason = Reason(reason)
	r.Comments = comments.String
	r.ReporterLabel = label.String
	if len(evidenceJSON) > 0 {
		_ = json.Unmarshal(evidenceJSON, &r.EvidenceURLs)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func scanReports(rows *sql.Rows) ([]*Report, error) {
	var out []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
