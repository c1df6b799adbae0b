package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"oliv/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ErrTurnNotFound is returned when feedback references an unknown turn
var ErrTurnNotFound = errors.New("turn not found")

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetPriceStat performs an exact (area, property type, bedroom label) lookup against price_stats
func (r *PostgresRepository) GetPriceStat(ctx context.Context, area, propertyType, bedroomLabel string) (*model.PriceStat, error) {
	query := `
		SELECT area, property_type, bedroom_label, min_price, max_price, median_price, median_area
		FROM price_stats
		WHERE area = $1 AND property_type = $2 AND bedroom_label = $3
		LIMIT 1
	`
	var stat model.PriceStat
	err := r.db.GetContext(ctx, &stat, query, area, propertyType, bedroomLabel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price stat: %w", err)
	}
	return &stat, nil
}

// UpsertPriceStats loads aggregated rows into price_stats in one transaction
func (r *PostgresRepository) UpsertPriceStats(ctx context.Context, stats []model.PriceStat) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO price_stats (area, property_type, bedroom_label, min_price, max_price, median_price, median_area)
		VALUES (:area, :property_type, :bedroom_label, :min_price, :max_price, :median_price, :median_area)
		ON CONFLICT (area, property_type, bedroom_label) DO UPDATE SET
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			median_price = EXCLUDED.median_price,
			median_area = EXCLUDED.median_area
	`
	count := 0
	for _, stat := range stats {
		if _, err := tx.NamedExecContext(ctx, query, stat); err != nil {
			return count, fmt.Errorf("failed to upsert price stat %s/%s/%s: %w", stat.Area, stat.PropertyType, stat.BedroomLabel, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit price stats: %w", err)
	}
	return count, nil
}

// LogTurn records one conversation turn
func (r *PostgresRepository) LogTurn(ctx context.Context, turn *model.Turn) error {
	var embedding interface{}
	if len(turn.Embedding) > 0 {
		embedding = pgvector.NewVector(turn.Embedding)
	}

	query := `
		INSERT INTO conversation_turns (turn_id, session_id, message, intent, reply, context, embedding, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.TurnID, turn.SessionID, turn.Message, turn.Intent, turn.Reply,
		turn.Context, embedding, turn.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log turn: %w", err)
	}
	return nil
}

// LogFeedback attaches user feedback to a logged turn
func (r *PostgresRepository) LogFeedback(ctx context.Context, turnID, action string) error {
	// turn_id is a UUID column; anything else cannot match a row
	if _, err := uuid.Parse(turnID); err != nil {
		return ErrTurnNotFound
	}
	query := `
		UPDATE conversation_turns
		SET feedback = $2, feedback_at = NOW()
		WHERE turn_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, turnID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if affected == 0 {
		return ErrTurnNotFound
	}
	return nil
}
