package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"yobot/internal/catalog"
	"yobot/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

//go:embed schema.sql
var schemaSQL string

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

// NewPostgresRepositoryFromDB wraps an existing connection
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the tables if they do not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type listingRow struct {
	model.Listing
	Rendering sql.NullString   `db:"property_string"`
	Embedding *pgvector.Vector `db:"embedding"`
}

const listingColumns = `
	id, location, neighborhood, area, price, fee, bedrooms, bathrooms,
	parking_spots, description, url, property_string, embedding`

// CatalogSource exposes the listings table as a catalog source
func (r *PostgresRepository) CatalogSource() catalog.Source {
	return catalog.SourceFunc{Label: "postgres:listings", Fn: r.LoadCatalogEntries}
}

// LoadCatalogEntries reads every embedded listing in id order
func (r *PostgresRepository) LoadCatalogEntries(ctx context.Context) ([]catalog.Entry, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE embedding IS NOT NULL ORDER BY id`

	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	entries := make([]catalog.Entry, 0, len(rows))
	for _, row := range rows {
		if row.Embedding == nil {
			continue
		}
		entries = append(entries, catalog.Entry{
			Listing:   row.Listing,
			Rendering: row.Rendering.String,
			Embedding: row.Embedding.Slice(),
		})
	}
	return entries, nil
}

// GetListingByID retrieves a single listing by its ID
func (r *PostgresRepository) GetListingByID(ctx context.Context, listingID int64) (*model.Listing, error) {
	var row listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &row.Listing, nil
}

// UpsertListings writes catalog entries, replacing rows with the same id
func (r *PostgresRepository) UpsertListings(ctx context.Context, entries []catalog.Entry) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			location = EXCLUDED.location,
			neighborhood = EXCLUDED.neighborhood,
			area = EXCLUDED.area,
			price = EXCLUDED.price,
			fee = EXCLUDED.fee,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			parking_spots = EXCLUDED.parking_spots,
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			property_string = EXCLUDED.property_string,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		l := e.Listing
		_, err := stmt.ExecContext(ctx,
			l.ID, l.Location, l.Neighborhood, l.Area, l.Price, l.Fee,
			l.Bedrooms, l.Bathrooms, l.ParkingSpots, l.Description, l.URL,
			e.Rendering, pgvector.NewVector(e.Embedding),
		)
		if err != nil {
			return 0, fmt.Errorf("listing %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(entries), nil
}

// BatchUpsertEmbeddings replaces the embeddings of existing listings.
// Each item runs under its own savepoint, so a failed item is reported
// without aborting the others.
func (r *PostgresRepository) BatchUpsertEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errs
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE listings SET embedding = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errs
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT embedding_item`); err != nil {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, err))
			return 0, errs
		}

		res, err := stmt.ExecContext(ctx, pgvector.NewVector(item.Embedding), item.ListingID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, err))
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT embedding_item`); rbErr != nil {
				errs = append(errs, fmt.Sprintf("failed to roll back listing_id %d: %v", item.ListingID, rbErr))
				return 0, errs
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT embedding_item`); err != nil {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, err))
			return 0, errs
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			errs = append(errs, fmt.Sprintf("listing_id %d: not found", item.ListingID))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errs = append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errs
	}

	return success, errs
}

// LogConversationTurn records one handled message
func (r *PostgresRepository) LogConversationTurn(ctx context.Context, turn model.TurnRecord) error {
	query := `
		INSERT INTO conversation_turns (turn_id, sender, route, intent, listing_ids, reply_length, latency_ms)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.TurnID, turn.Sender, string(turn.Route), string(turn.Intent),
		pq.Array(turn.ListingIDs), turn.ReplyLength, turn.Latency.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to log conversation turn: %w", err)
	}
	return nil
}

// LogHandoff records a handoff attempt that reached an agent lookup
func (r *PostgresRepository) LogHandoff(ctx context.Context, event model.HandoffEvent) error {
	query := `
		INSERT INTO handoffs (event_id, sender, property_id, agent_phone, location, neighborhood, notified, occurred_at)
		VALUES (:event_id, :sender, :property_id, :agent_phone, :location, :neighborhood, :notified, :occurred_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to log handoff: %w", err)
	}
	return nil
}
