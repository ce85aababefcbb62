package main

import (
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"strconv"

	"greenhouse/internal/config"
	"greenhouse/internal/database"
	"greenhouse/internal/models"
)

const csvPath = "locations_seed.csv"

// seed registers the configured locations, plus any listed in locations_seed.csv
// (header row, then name,latitude,longitude), in the locations table
func main() {
	cfg, err := config.Load(config.ResolvePath(getConfigPath()))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	locations := append([]models.Location(nil), cfg.Locations...)

	file, err := os.Open(csvPath)
	switch {
	case err == nil:
		fromCSV, skipped, err := readLocations(file)
		file.Close()
		if err != nil {
			log.Fatalf("Failed to read %s: %v", csvPath, err)
		}
		log.Printf("Read %d locations from %s (%d invalid rows skipped)", len(fromCSV), csvPath, skipped)
		locations = append(locations, fromCSV...)
	case errors.Is(err, os.ErrNotExist):
		log.Printf("No %s found, seeding configured locations only", csvPath)
	default:
		log.Fatalf("Failed to open CSV file: %v", err)
	}

	count := 0
	skipped := 0
	for _, loc := range locations {
		if err := db.InsertLocation(loc); err != nil {
			if errors.Is(err, database.ErrDuplicateLocation) {
				log.Printf("Location already exists: %s", loc.Name)
			} else {
				log.Printf("Failed to insert location %s: %v", loc.Name, err)
			}
			skipped++
			continue
		}

		count++
		if count%100 == 0 {
			log.Printf("Inserted %d locations...", count)
		}
	}

	log.Printf("Import complete! Successfully inserted %d locations, skipped %d", count, skipped)
}

func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// readLocations parses name,latitude,longitude rows after a header row.
// Rows that do not parse are skipped and counted.
func readLocations(r io.Reader) ([]models.Location, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var locations []models.Location
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}

		if len(record) < 3 || record[0] == "" {
			log.Printf("Skipping invalid record: %v", record)
			skipped++
			continue
		}

		latitude, err := strconv.ParseFloat(record[1], 64)
		if err != nil || latitude < -90 || latitude > 90 {
			log.Printf("Skipping record with invalid latitude: %v", record)
			skipped++
			continue
		}

		longitude, err := strconv.ParseFloat(record[2], 64)
		if err != nil || longitude < -180 || longitude > 180 {
			log.Printf("Skipping record with invalid longitude: %v", record)
			skipped++
			continue
		}

		locations = append(locations, models.Location{Name: record[0], Latitude: latitude, Longitude: longitude})
	}

	return locations, skipped, nil
}
