package repository

import (
	"context"
	"errors"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// MovieRepository is the catalog lookup used when scheduling a showtime.
type MovieRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Movie, error)
}

type movieRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewMovieRepository(db database.PgxIface, log *zap.Logger) MovieRepository {
	return &movieRepository{
		db:  db,
		log: log.With(zap.String("repository", "movie")),
	}
}

func (r *movieRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Movie, error) {
	query := `
		SELECT id, title, poster_url, duration_in_minutes, created_at, updated_at, deleted_at
		FROM movies
		WHERE id = $1 AND deleted_at IS NULL
	`

	var movie entity.Movie
	err := r.db.QueryRow(ctx, query, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.PosterURL,
		&movie.DurationInMinutes,
		&movie.CreatedAt,
		&movie.UpdatedAt,
		&movie.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("movie", id.String())
	}
	if err != nil {
		r.log.Error("Failed to find movie by ID",
			zap.Error(err),
			zap.String("movie_id", id.String()),
		)
		return nil, persistenceError(fmt.Sprintf("find movie by ID %s", id), err)
	}

	return &movie, nil
}
