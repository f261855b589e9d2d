package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-feed/internal/weather"
)

// sqliteTimeLayout is fixed-width so that text comparison orders like time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS weather_readings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    city_name   TEXT    NOT NULL,
    latitude    REAL    NOT NULL,
    longitude   REAL    NOT NULL,
    temperature REAL    NOT NULL,
    feels_like  REAL    NOT NULL,
    humidity    INTEGER NOT NULL,
    pressure    INTEGER NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    timestamp   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS weather_readings_city_ts_idx ON weather_readings (city_name, timestamp);
CREATE INDEX IF NOT EXISTS weather_readings_ts_idx ON weather_readings (timestamp);
`

const sqliteColumns = `id, city_name, latitude, longitude, temperature, feels_like, humidity, pressure, description, timestamp`

const (
	sqliteInsertSQL = `
    INSERT INTO weather_readings (city_name, latitude, longitude, temperature, feels_like, humidity, pressure, description, timestamp)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    RETURNING ` + sqliteColumns

	sqliteGetSQL  = `SELECT ` + sqliteColumns + ` FROM weather_readings WHERE id = ?`
	sqliteListSQL = `SELECT ` + sqliteColumns + ` FROM weather_readings ORDER BY id`

	sqliteListByCitySQL = `
    SELECT ` + sqliteColumns + `
    FROM weather_readings
    WHERE city_name = ?
      AND (? IS NULL OR timestamp >= ?)
      AND (? IS NULL OR timestamp <= ?)
    ORDER BY id`

	sqliteListBetweenSQL = `
    SELECT ` + sqliteColumns + `
    FROM weather_readings
    WHERE timestamp >= ? AND timestamp <= ?
    ORDER BY id`

	sqliteUpdateSQL = `
    UPDATE weather_readings
    SET city_name = ?, latitude = ?, longitude = ?, temperature = ?,
        feels_like = ?, humidity = ?, pressure = ?, description = ?
    WHERE id = ?
    RETURNING ` + sqliteColumns

	sqliteDeleteSQL = `DELETE FROM weather_readings WHERE id = ? RETURNING ` + sqliteColumns
)

// SQLiteStore is a weather.Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// path may be ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn, err := buildSQLiteDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s := &SQLiteStore{db: db}
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildSQLiteDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_busy_timeout=5000", nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := "_busy_timeout=5000&_journal_mode=WAL"
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}
	return fmt.Sprintf("file:%s?%s", path, params), nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func optionalSQLiteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatSQLiteTime(*t)
}

func (s *SQLiteStore) Insert(ctx context.Context, r weather.Reading) (weather.Reading, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, sqliteInsertSQL,
		r.CityName, r.Latitude, r.Longitude, r.Temperature, r.FeelsLike,
		r.Humidity, r.Pressure, r.Description, formatSQLiteTime(r.Timestamp),
	)
	out, err := scanSQLiteReading(row)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (weather.Reading, error) {
	out, err := scanSQLiteReading(s.db.QueryRowContext(ctx, sqliteGetSQL, id))
	if err != nil {
		return weather.Reading{}, mapSQLError("get reading", id, err)
	}
	return out, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]weather.Reading, error) {
	return s.query(ctx, "list readings", sqliteListSQL)
}

func (s *SQLiteStore) ListByCity(ctx context.Context, city string, rng weather.TimeRange) ([]weather.Reading, error) {
	from := optionalSQLiteTime(rng.From)
	to := optionalSQLiteTime(rng.To)
	return s.query(ctx, "list readings by city", sqliteListByCitySQL, city, from, from, to, to)
}

func (s *SQLiteStore) ListBetween(ctx context.Context, from, to time.Time) ([]weather.Reading, error) {
	return s.query(ctx, "list recent readings", sqliteListBetweenSQL, formatSQLiteTime(from), formatSQLiteTime(to))
}

func (s *SQLiteStore) Update(ctx context.Context, r weather.Reading) (weather.Reading, error) {
	row := s.db.QueryRowContext(ctx, sqliteUpdateSQL,
		r.CityName, r.Latitude, r.Longitude, r.Temperature, r.FeelsLike,
		r.Humidity, r.Pressure, r.Description, r.ID,
	)
	out, err := scanSQLiteReading(row)
	if err != nil {
		return weather.Reading{}, mapSQLError("update reading", r.ID, err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (weather.Reading, error) {
	out, err := scanSQLiteReading(s.db.QueryRowContext(ctx, sqliteDeleteSQL, id))
	if err != nil {
		return weather.Reading{}, mapSQLError("delete reading", id, err)
	}
	return out, nil
}

func (s *SQLiteStore) query(ctx context.Context, op string, query string, args ...any) ([]weather.Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	readings := make([]weather.Reading, 0)
	for rows.Next() {
		r, err := scanSQLiteReading(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return readings, nil
}

func scanSQLiteReading(row rowScanner) (weather.Reading, error) {
	var (
		r  weather.Reading
		ts string
	)
	if err := row.Scan(
		&r.ID,
		&r.CityName,
		&r.Latitude,
		&r.Longitude,
		&r.Temperature,
		&r.FeelsLike,
		&r.Humidity,
		&r.Pressure,
		&r.Description,
		&ts,
	); err != nil {
		return weather.Reading{}, err
	}

	t, err := time.Parse(sqliteTimeLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return weather.Reading{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
	}
	r.Timestamp = t.UTC()
	return r, nil
}

func mapSQLError(op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}
