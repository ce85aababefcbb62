package config

import (
	"fmt"
	"os"
)

const defaultDSN = "greenhouse:greenhouse@tcp(localhost:3306)/greenhouse?parseTime=true"

// GetDatabaseDSN returns the MySQL connection string used for the observation
// archive and the mysql history backend. DB_* variables win over DATABASE_DSN.
func GetDatabaseDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}

	return getEnv("DATABASE_DSN", defaultDSN)
}
