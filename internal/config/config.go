package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time expresses the hold window as a duration
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  HoldTTL governs how long a
// seat hold stays active before expiring lazily; it must be identical
// across all instances sharing a ledger.
type Config struct {
	Env          string        // application environment (e.g. "dev", "prod")
	Port         string        // HTTP port to listen on
	DBUser       string        // database username
	DBPass       string        // database password (optional)
	DBHost       string        // database host address
	DBPort       string        // database port number
	DBName       string        // database name
	JWTSecret    string        // secret used to sign JWTs
	AccessTTLMin int           // access token time-to-live in minutes
	BcryptCost   int           // bcrypt cost for password hashing
	HoldTTL      time.Duration // seat hold window (default 5 minutes)
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),
		HoldTTL:      time.Duration(envInt("HOLD_TTL_MIN", 5)) * time.Minute,
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer.  If conversion fails, the application logs a fatal error
// and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envInt reads an optional integer variable, falling back to def.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
