package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"greenhouse/internal/metrics"
	"greenhouse/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
// example: "user:pass@tcp(localhost:3306)/greenhouse?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec
	statements := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			location VARCHAR(255) NOT NULL DEFAULT '',
			date DATE NOT NULL,
			temperature DOUBLE NOT NULL,
			soil_moisture DOUBLE NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_observations_location_date (location, date),
			INDEX idx_observations_date (date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS locations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			UNIQUE KEY uq_locations_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS recommendation_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			location VARCHAR(255) NOT NULL DEFAULT '',
			date DATE NOT NULL,
			crop VARCHAR(255) NOT NULL,
			fan VARCHAR(8) NOT NULL,
			heater VARCHAR(8) NOT NULL,
			water_pump VARCHAR(8) NOT NULL,
			predicted_temperature DOUBLE NULL,
			recommendation TEXT NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_recommendation_events (location, crop, recorded_at),
			INDEX idx_recommendation_events_date (date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS ledger_documents (
			name VARCHAR(255) PRIMARY KEY,
			document LONGTEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (db *DB) recordPoolStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// StoreObservations upserts daily observations for a location; a date seen
// again replaces the earlier values
func (db *DB) StoreObservations(location string, observations []models.Observation) error {
	if len(observations) == 0 {
		log.Printf("No observations for %s", location)
		return nil
	}
	defer db.recordPoolStats()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // ignored once committed

	stmt, err := tx.Prepare(`INSERT INTO observations (location, date, temperature, soil_moisture, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE temperature = VALUES(temperature), soil_moisture = VALUES(soil_moisture), updated_at = VALUES(updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	queryStart := time.Now()
	for _, obs := range observations {
		var moisture sql.NullFloat64
		if obs.SoilMoisture != nil {
			moisture = sql.NullFloat64{Float64: *obs.SoilMoisture, Valid: true}
		}
		if _, err = stmt.Exec(location, obs.Date.Format(models.DateLayout), obs.Temperature, moisture, now); err != nil {
			metrics.RecordDBQuery("UPSERT", "observations", time.Since(queryStart), err)
			return fmt.Errorf("failed to store observation for %s at %s: %w",
				location, obs.Date.Format(models.DateLayout), err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("UPSERT", "observations", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("✓ Stored %d observations for %s", len(observations), location)
	return nil
}

// StoreRecommendation archives one logged recommendation. A redelivered
// event (same location, crop and recorded_at) is ignored.
func (db *DB) StoreRecommendation(location string, record models.RecommendationRecord, predicted *float64) error {
	defer db.recordPoolStats()

	body, err := json.Marshal(record.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to serialize recommendation: %w", err)
	}

	var predictedTemp sql.NullFloat64
	if predicted != nil {
		predictedTemp = sql.NullFloat64{Float64: *predicted, Valid: true}
	}

	rec := record.Recommendations
	queryStart := time.Now()
	_, err = db.conn.Exec(`INSERT IGNORE INTO recommendation_events
		(location, date, crop, fan, heater, water_pump, predicted_temperature, recommendation, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		location, record.Date, record.Crop, string(rec.Fan), string(rec.Heater), string(rec.WaterPump),
		predictedTemp, string(body), record.RecordedAt)
	metrics.RecordDBQuery("INSERT", "recommendation_events", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store recommendation for %s on %s: %w", record.Crop, record.Date, err)
	}
	return nil
}

// GetObservations retrieves a location's observations since a date, oldest first
func (db *DB) GetObservations(location string, since time.Time) ([]models.Observation, error) {
	defer db.recordPoolStats()

	query := `SELECT date, temperature, soil_moisture FROM observations WHERE location = ? AND date >= ? ORDER BY date ASC`
	queryStart := time.Now()
	rows, err := db.conn.Query(query, location, since.Format(models.DateLayout))
	metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		var moisture sql.NullFloat64
		if err := rows.Scan(&obs.Date, &obs.Temperature, &moisture); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if moisture.Valid {
			v := moisture.Float64
			obs.SoilMoisture = &v
		}
		obs.Date = obs.Date.UTC()
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// GetLocationsWithData returns a set of all locations that have observations
func (db *DB) GetLocationsWithData() (map[string]bool, error) {
	query := `SELECT DISTINCT location FROM observations`
	queryStart := time.Now()
	rows, err := db.conn.Query(query)
	metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get locations with data: %w", err)
	}
	defer rows.Close()

	locations := make(map[string]bool)
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations[location] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

// InsertLocation inserts a new location into the database
func (db *DB) InsertLocation(loc models.Location) error {
	query := `INSERT INTO locations (name, latitude, longitude) VALUES (?, ?, ?)`
	queryStart := time.Now()
	_, err := db.conn.Exec(query, loc.Name, loc.Latitude, loc.Longitude)
	metrics.RecordDBQuery("INSERT", "locations", time.Since(queryStart), err)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return ErrDuplicateLocation
		}
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

// GetAllLocations retrieves all locations from the database
func (db *DB) GetAllLocations() ([]models.Location, error) {
	query := `SELECT name, latitude, longitude FROM locations ORDER BY name`
	queryStart := time.Now()
	rows, err := db.conn.Query(query)
	metrics.RecordDBQuery("SELECT", "locations", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.Name, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
