package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klasika/klasika-backend/internal/model"
)

// ClassRepository handles class data access.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

// GetByNameAndStream retrieves a class by its natural key.
func (r *ClassRepository) GetByNameAndStream(ctx context.Context, name, stream string) (*model.Class, error) {
	c := &model.Class{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, stream FROM classes WHERE name = $1 AND stream = $2`,
		name, stream,
	).Scan(&c.ID, &c.Name, &c.Stream)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classes (name, stream) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Stream,
	).Scan(&c.ID)
}

// List retrieves all classes.
func (r *ClassRepository) List(ctx context.Context) ([]model.Class, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stream FROM classes ORDER BY name, stream`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Stream); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}
