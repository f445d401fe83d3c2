package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethlas/builderhub/internal/domain/builder"
	"github.com/ethlas/builderhub/internal/observability"
)

// BuildersRepo stores builder records in a single postgres table.
type BuildersRepo struct {
	pool    *pgxpool.Pool
	metrics *observability.Prom
}

func NewBuildersRepo(pool *pgxpool.Pool, metrics *observability.Prom) *BuildersRepo {
	return &BuildersRepo{pool: pool, metrics: metrics}
}

func (r *BuildersRepo) Create(ctx context.Context, b builder.Builder) (string, error) {
	id := uuid.NewString()

	err := r.metrics.ObserveStore("builders.create", func() error {
		_, err := r.pool.Exec(
			ctx,
			`INSERT INTO builders (id, email, full_name, join_date, password)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, b.Email, b.FullName, b.JoinDate, b.PasswordHash,
		)

		return err
	})

	if err != nil {
		return "", err
	}

	return id, nil
}

func (r *BuildersRepo) GetByID(ctx context.Context, id string) (builder.Builder, error) {
	var b builder.Builder

	err := r.metrics.ObserveStore("builders.get_by_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, email, full_name, join_date, password
			 FROM builders
			 WHERE id = $1`,
			id,
		).Scan(&b.ID, &b.Email, &b.FullName, &b.JoinDate, &b.PasswordHash)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return builder.Builder{}, builder.ErrNotFound
		}

		return builder.Builder{}, err
	}

	return b, nil
}

func (r *BuildersRepo) GetByEmail(ctx context.Context, email string) (builder.Builder, error) {
	var b builder.Builder

	err := r.metrics.ObserveStore("builders.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, email, full_name, join_date, password
			 FROM builders
			 WHERE email = $1
			 ORDER BY join_date DESC
			 LIMIT 1`,
			email,
		).Scan(&b.ID, &b.Email, &b.FullName, &b.JoinDate, &b.PasswordHash)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return builder.Builder{}, builder.ErrNotFound
		}

		return builder.Builder{}, err
	}

	return b, nil
}

func (r *BuildersRepo) List(ctx context.Context, limit int) ([]builder.Builder, error) {
	out := make([]builder.Builder, 0, limit)

	err := r.metrics.ObserveStore("builders.list", func() error {
		rows, err := r.pool.Query(
			ctx,
			`SELECT id, email, full_name, join_date, password
			 FROM builders
			 ORDER BY join_date DESC
			 LIMIT $1`,
			limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var b builder.Builder

			err = rows.Scan(&b.ID, &b.Email, &b.FullName, &b.JoinDate, &b.PasswordHash)

			if err != nil {
				return err
			}

			out = append(out, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Update writes the full record; the handler has already merged fields.
// Last writer wins on concurrent updates to the same row.
func (r *BuildersRepo) Update(ctx context.Context, id string, b builder.Builder) error {
	return r.metrics.ObserveStore("builders.update", func() error {
		tag, err := r.pool.Exec(
			ctx,
			`UPDATE builders
			 SET email = $2, full_name = $3, join_date = $4, password = $5
			 WHERE id = $1`,
			id, b.Email, b.FullName, b.JoinDate, b.PasswordHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return builder.ErrNotFound
		}

		return nil
	})
}

func (r *BuildersRepo) Delete(ctx context.Context, id string) error {
	return r.metrics.ObserveStore("builders.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM builders WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return builder.ErrNotFound
		}

		return nil
	})
}
