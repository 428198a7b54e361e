package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresCartStore stores carts as JSONB rows in PostgreSQL
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) Load(ctx context.Context, key string) (*cart.State, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM carts WHERE session_key = $1",
		key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &state, nil
}

// Save upserts the cart. The row is only replaced when the stored version is
// not newer than state.Version.
func (s *PostgresCartStore) Save(ctx context.Context, key string, state cart.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO carts (session_key, state, version, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_key) DO UPDATE
		 SET state = EXCLUDED.state, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
		 WHERE carts.version <= EXCLUDED.version`,
		key,
		data,
		state.Version,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresCartStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM carts WHERE session_key = $1", key); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
