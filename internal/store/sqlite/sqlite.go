package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"macroscope/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertResults(ctx context.Context, results []model.TriangulatedResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triangulations (
			metric, country_code, country, period, confidence,
			consensus_value, fred_value, worldbank_value, oecd_value,
			explanation, sources_used, retrieved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(metric, country_code, period)
		DO UPDATE SET
			confidence = excluded.confidence,
			consensus_value = excluded.consensus_value,
			fred_value = excluded.fred_value,
			worldbank_value = excluded.worldbank_value,
			oecd_value = excluded.oecd_value,
			explanation = excluded.explanation,
			sources_used = excluded.sources_used,
			retrieved_at = excluded.retrieved_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range results {
		result := results[i]
		if result.RetrievedAt.IsZero() {
			result.RetrievedAt = now
		}
		_, err = stmt.ExecContext(
			ctx,
			string(result.Metric),
			result.CountryCode,
			result.Country,
			result.Period,
			string(result.Confidence),
			nullableFloat(result.ConsensusValue),
			nullableFloat(result.FREDValue),
			nullableFloat(result.WorldBankValue),
			nullableFloat(result.OECDValue),
			result.Explanation,
			strings.Join(result.SourcesUsed, ","),
			result.RetrievedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context, metric model.Metric, countryCode string) ([]model.TriangulatedResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric, country_code, country, period, confidence,
			consensus_value, fred_value, worldbank_value, oecd_value,
			explanation, sources_used, retrieved_at
		FROM triangulations
		WHERE metric = ? AND country_code = ?
		ORDER BY period DESC
	`, string(metric), countryCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TriangulatedResult
	for rows.Next() {
		var (
			result                           model.TriangulatedResult
			consensus, fred, worldbank, oecd sql.NullFloat64
			sources, retrievedAt             string
		)
		err := rows.Scan(
			&result.Metric,
			&result.CountryCode,
			&result.Country,
			&result.Period,
			&result.Confidence,
			&consensus,
			&fred,
			&worldbank,
			&oecd,
			&result.Explanation,
			&sources,
			&retrievedAt,
		)
		if err != nil {
			return nil, err
		}
		result.ConsensusValue = floatPtr(consensus)
		result.FREDValue = floatPtr(fred)
		result.WorldBankValue = floatPtr(worldbank)
		result.OECDValue = floatPtr(oecd)
		if sources != "" {
			result.SourcesUsed = strings.Split(sources, ",")
		} else {
			result.SourcesUsed = []string{}
		}
		if parsed, err := time.Parse(time.RFC3339, retrievedAt); err == nil {
			result.RetrievedAt = parsed
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS triangulations (
			metric TEXT NOT NULL,
			country_code TEXT NOT NULL,
			country TEXT NOT NULL,
			period TEXT NOT NULL,
			confidence TEXT NOT NULL,
			consensus_value REAL,
			fred_value REAL,
			worldbank_value REAL,
			oecd_value REAL,
			explanation TEXT NOT NULL,
			sources_used TEXT NOT NULL,
			retrieved_at TEXT NOT NULL,
			PRIMARY KEY (metric, country_code, period)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}
