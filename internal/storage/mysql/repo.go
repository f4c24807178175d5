package mysql

import (
	"context"
	"database/sql"
	"strings"

	"listing_price/internal/domain"
)

// rows per INSERT; keeps statements under max_allowed_packet
const batchSize = 500

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertCleanListings writes rows keyed by (source, row); reruns overwrite.
func (r *Repo) UpsertCleanListings(ctx context.Context, rows []domain.CleanListing) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]
		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*5)
		for _, cl := range chunk {
			values = append(values, "(?,?,?,?,?)")
			args = append(args, cl.Source, cl.Row, cl.Price, valInt(cl.Category), valJSON(cl.Columns))
		}
		q := insertCleanPrefix + strings.Join(values, ",") + insertCleanOnDup
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) CountCleanListings(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countCleanSQL).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountByCategory returns the number of stored rows per price category.
func (r *Repo) CountByCategory(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx, countByCategorySQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var cat, n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
