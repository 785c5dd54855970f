package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/UmarSaeed090/sensors-backend/internal/config"
	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// Postgres is the pgx-backed reading store
type Postgres struct {
	pool  *pgxpool.Pool
	table string
	log   zerolog.Logger
}

// NewPostgres connects to Postgres and ensures the readings table exists
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{
		pool:  pool,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
		log:   logger.WithComponent("storage"),
	}

	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	p.log.Info().Str("table", cfg.Table).Msg("reading store initialized")
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			tag_number TEXT NOT NULL,
			ambient_temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			heart_rate DOUBLE PRECISION,
			spo2 DOUBLE PRECISION,
			body_temperature DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		)
	`, p.table))
	if err != nil {
		return fmt.Errorf("failed to create readings table: %w", err)
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_readings_tag_time ON %s (tag_number, time DESC)`,
		p.table))
	if err != nil {
		return fmt.Errorf("failed to create readings index: %w", err)
	}

	return nil
}

// Insert appends one reading
func (p *Postgres) Insert(ctx context.Context, r *models.Reading) error {
	var (
		ambient, humidity   *float64
		latitude, longitude *float64
	)
	if r.DHT22 != nil {
		ambient = r.DHT22.Temperature
		humidity = r.DHT22.Humidity
	}
	if r.GPS != nil {
		latitude = r.GPS.Latitude
		longitude = r.GPS.Longitude
	}

	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (time, tag_number, ambient_temperature, humidity,
			heart_rate, spo2, body_temperature, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.table),
		r.Timestamp, r.TagNumber, ambient, humidity,
		r.HeartRate(), r.SpO2(), r.BodyTemperature(), latitude, longitude)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// List returns stored readings newest first, optionally filtered by tag
func (p *Postgres) List(ctx context.Context, tagNumber string, limit int) ([]*models.Reading, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT time, tag_number, ambient_temperature, humidity,
			heart_rate, spo2, body_temperature, latitude, longitude
		FROM %s
		WHERE ($1 = '' OR tag_number = $1)
		ORDER BY time DESC
		LIMIT $2
	`, p.table), tagNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var ts time.Time
		var tag string
		var ambient, humidity *float64
		var heartRate, spo2, bodyTemp *float64
		var latitude, longitude *float64
		if err := rows.Scan(&ts, &tag, &ambient, &humidity,
			&heartRate, &spo2, &bodyTemp, &latitude, &longitude); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		r := &models.Reading{TagNumber: tag, Timestamp: ts}
		if ambient != nil || humidity != nil {
			r.DHT22 = &models.DHT22{Temperature: ambient, Humidity: humidity}
		}
		if heartRate != nil || spo2 != nil {
			r.MAX30100 = &models.MAX30100{HeartRate: heartRate, SpO2: spo2}
		}
		if bodyTemp != nil {
			r.DS18B20 = &models.DS18B20{Temperature: bodyTemp}
		}
		if latitude != nil || longitude != nil {
			r.GPS = &models.GPS{Latitude: latitude, Longitude: longitude}
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return readings, nil
}

// Ping verifies database connectivity
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool
func (p *Postgres) Close() {
	p.pool.Close()
}
