package infra

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus is a flattened view of one migration for CLI output.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded schema migrations. It talks to the database
// through database/sql and lib/pq because goose works on *sql.DB; the
// application itself stays on pgxpool.
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
	logger   Logger
}

// NewMigrator opens a dedicated connection for migrations.
func NewMigrator(databaseURL string, logger Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration db: %w", err)
	}
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{db: db, provider: provider, logger: logger}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		m.logger.Info().
			Int64("version", res.Source.Version).
			Str("file", res.Source.Path).
			Dur("took", res.Duration).
			Msg("migration applied")
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if len(results) == 0 {
		m.logger.Info().Msg("schema up to date")
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if res != nil && res.Source != nil {
		m.logger.Info().Int64("version", res.Source.Version).Str("file", res.Source.Path).Msg("migration rolled back")
	}
	return nil
}

// Status lists every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, st := range statuses {
		if st == nil || st.Source == nil {
			continue
		}
		out = append(out, MigrationStatus{
			Version:   st.Source.Version,
			Name:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

// Close releases the migration connection.
func (m *Migrator) Close() error {
	if err := m.provider.Close(); err != nil {
		return err
	}
	return nil
}
