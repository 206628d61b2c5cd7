package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// observer times a logical DB op when metrics are wired.
type observer struct {
	prom *observability.Prom
}

func (o observer) observe(op string, fn func() error) error {
	if o.prom != nil {
		return o.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// where collects positional conditions for the dynamic list queries.
type where struct {
	conds []string
	args  []any
}

// add appends a condition; each "?" in cond is bound to the next arg.
func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// search matches term case-insensitively against any of cols.
func (w *where) search(term string, cols ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(cols) == 0 {
		return
	}

	w.args = append(w.args, "%"+escapeLike(term)+"%")
	pos := len(w.args)

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s ILIKE $%d", c, pos))
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (w *where) page(limit, offset int) string {
	w.args = append(w.args, limit, offset)
	n := len(w.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n-1, n)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// queryPage runs a filtered, ordered page query and returns the rows plus the
// total match count. from is everything after the column list, without WHERE.
func queryPage[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	obs observer,
	op string,
	cols, from string,
	w *where,
	order string,
	limit, offset int,
	scan func(row pgx.Row, total *int) (T, error),
) ([]T, int, error) {
	filter := w.sql()
	filterArgs := append([]any(nil), w.args...)

	q := "SELECT " + cols + ", COUNT(*) OVER() AS total " + from + filter + " ORDER BY " + order + w.page(limit, offset)

	var rows pgx.Rows
	err := obs.observe(op, func() error {
		var qerr error
		rows, qerr = pool.Query(ctx, q, w.args...)
		return qerr
	})
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]T, 0, limit)
	total := 0

	for rows.Next() {
		item, err := scan(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// past the last page there is no row to carry COUNT(*) OVER()
	if len(out) == 0 && offset > 0 {
		err := obs.observe(op+".count", func() error {
			return pool.QueryRow(ctx, "SELECT COUNT(*) "+from+filter, filterArgs...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return out, total, nil
}
