package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-feed/internal/weather"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS weather_readings (
    id          BIGSERIAL PRIMARY KEY,
    city_name   TEXT             NOT NULL,
    latitude    DOUBLE PRECISION NOT NULL,
    longitude   DOUBLE PRECISION NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    feels_like  DOUBLE PRECISION NOT NULL,
    humidity    INTEGER          NOT NULL,
    pressure    INTEGER          NOT NULL,
    description TEXT             NOT NULL DEFAULT '',
    "timestamp" TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS weather_readings_city_ts_idx ON weather_readings (city_name, "timestamp");
CREATE INDEX IF NOT EXISTS weather_readings_ts_idx ON weather_readings ("timestamp");
`

const readingColumns = `id, city_name, latitude, longitude, temperature, feels_like, humidity, pressure, description, "timestamp"`

const (
	pgInsertSQL = `
    INSERT INTO weather_readings (city_name, latitude, longitude, temperature, feels_like, humidity, pressure, description, "timestamp")
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING ` + readingColumns

	pgGetSQL = `SELECT ` + readingColumns + ` FROM weather_readings WHERE id = $1`

	pgListSQL = `SELECT ` + readingColumns + ` FROM weather_readings ORDER BY id`

	pgListByCitySQL = `
    SELECT ` + readingColumns + `
    FROM weather_readings
    WHERE city_name = $1
      AND ($2::timestamptz IS NULL OR "timestamp" >= $2)
      AND ($3::timestamptz IS NULL OR "timestamp" <= $3)
    ORDER BY id`

	pgListBetweenSQL = `
    SELECT ` + readingColumns + `
    FROM weather_readings
    WHERE "timestamp" >= $1 AND "timestamp" <= $2
    ORDER BY id`

	pgUpdateSQL = `
    UPDATE weather_readings
    SET city_name = $2, latitude = $3, longitude = $4, temperature = $5,
        feels_like = $6, humidity = $7, pressure = $8, description = $9
    WHERE id = $1
    RETURNING ` + readingColumns

	pgDeleteSQL = `DELETE FROM weather_readings WHERE id = $1 RETURNING ` + readingColumns
)

// PostgresStore is a weather.Store backed by PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore wraps a pool or transaction.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres creates a pgx pool and checks connectivity.
func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the readings table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, r weather.Reading) (weather.Reading, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	row := s.db.QueryRow(ctx, pgInsertSQL,
		r.CityName, r.Latitude, r.Longitude, r.Temperature, r.FeelsLike,
		r.Humidity, r.Pressure, r.Description, r.Timestamp,
	)
	out, err := scanReading(row)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (weather.Reading, error) {
	out, err := scanReading(s.db.QueryRow(ctx, pgGetSQL, id))
	if err != nil {
		return weather.Reading{}, mapPgError("get reading", id, err)
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]weather.Reading, error) {
	return s.query(ctx, "list readings", pgListSQL)
}

func (s *PostgresStore) ListByCity(ctx context.Context, city string, rng weather.TimeRange) ([]weather.Reading, error) {
	return s.query(ctx, "list readings by city", pgListByCitySQL, city, rng.From, rng.To)
}

func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]weather.Reading, error) {
	return s.query(ctx, "list recent readings", pgListBetweenSQL, from, to)
}

func (s *PostgresStore) Update(ctx context.Context, r weather.Reading) (weather.Reading, error) {
	row := s.db.QueryRow(ctx, pgUpdateSQL,
		r.ID, r.CityName, r.Latitude, r.Longitude, r.Temperature, r.FeelsLike,
		r.Humidity, r.Pressure, r.Description,
	)
	out, err := scanReading(row)
	if err != nil {
		return weather.Reading{}, mapPgError("update reading", r.ID, err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) (weather.Reading, error) {
	out, err := scanReading(s.db.QueryRow(ctx, pgDeleteSQL, id))
	if err != nil {
		return weather.Reading{}, mapPgError("delete reading", id, err)
	}
	return out, nil
}

func (s *PostgresStore) query(ctx context.Context, op string, sql string, args ...any) ([]weather.Reading, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	readings := make([]weather.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
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

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row / *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (weather.Reading, error) {
	var r weather.Reading
	err := row.Scan(
		&r.ID,
		&r.CityName,
		&r.Latitude,
		&r.Longitude,
		&r.Temperature,
		&r.FeelsLike,
		&r.Humidity,
		&r.Pressure,
		&r.Description,
		&r.Timestamp,
	)
	r.Timestamp = r.Timestamp.UTC()
	return r, err
}

func mapPgError(op string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}
