/*
Package config loads ingestion-pipeline configuration from the environment.
*/
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values shared by the log parser, the
// journey tracker, and the cache builder.
type Config struct {
	// Env is the deployment tag (dev, staging, production).
	Env      string
	LogLevel string

	// TableName is the Event Store table holding per-request events and rollups.
	TableName string
	// SessionsTable is the Event Store table holding session events.
	SessionsTable string

	// AllowedDomains is the journey-tracker and query-API allow-list.
	AllowedDomains []string

	// ExcludedExtensions is the path-filter suffix exclusion list.
	ExcludedExtensions []string
	// ExcludedPaths is the path-filter prefix exclusion list.
	ExcludedPaths []string

	// DomainList is the set of domains the cache builder processes.
	DomainList []string

	// Addr is the journey tracker's listen address when run as a standalone server.
	Addr string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                getEnv("ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		TableName:          getEnv("TABLE_NAME", ""),
		SessionsTable:      getEnv("SESSIONS_TABLE", ""),
		AllowedDomains:     splitCSV(getEnv("ALLOWED_DOMAINS", "")),
		ExcludedExtensions: lowerAll(splitCSV(getEnv("EXCLUDED_EXTENSIONS", ""))),
		ExcludedPaths:      splitCSV(getEnv("EXCLUDED_PATHS", "")),
		DomainList:         splitCSV(getEnv("DOMAIN_LIST", "")),
		Addr:               getEnv("TRACKER_ADDR", ":8080"),
	}
}

// IsAllowedDomain reports whether domain is in the configured allow-list.
func (c *Config) IsAllowedDomain(domain string) bool {
	for _, d := range c.AllowedDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
