package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Scrape filters
	ScrapeMode     string // Rent | Buy
	UnitTypeCode   int    // -1 Room, 0 Studio, 1..4 bedrooms, 5 five-plus
	LastPostedDays int    // 0 disables the lastPosted filter
	PagesToScrape  int    // 0 scrapes until the portal runs out of pages

	// Phase 2
	DetailBatchLimit int // 0 means unbounded
	MaxConcurrency   int

	RateLimitMs int
	MaxRetries  int

	CSVOutputPath string
	MonitorAddr   string // empty disables the monitor endpoint
	ChromeBin     string
	DryRun        bool // in-memory store, no database needed
	Verbose       bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ScrapeMode:     getEnv("SCRAPE_MODE", "Rent"),
		UnitTypeCode:   getEnvInt("UNIT_TYPE", 0),
		LastPostedDays: getEnvInt("LAST_POSTED_DAYS", 2),
		PagesToScrape:  getEnvInt("PAGES_TO_SCRAPE", 2),

		DetailBatchLimit: getEnvInt("DETAIL_BATCH_LIMIT", 5),
		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 1),

		RateLimitMs: getEnvInt("RATE_LIMIT_MS", 3000),
		MaxRetries:  getEnvInt("MAX_RETRIES", 3),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),
		MonitorAddr:   getEnv("MONITOR_ADDR", ""),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		DryRun:        getEnvBool("DRY_RUN", false),
		Verbose:       getEnvBool("VERBOSE", false),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
