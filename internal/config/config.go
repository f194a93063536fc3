// Package config loads application configuration from environment
// variables.  Required variables abort startup when missing; optional
// subsystem settings (Redis, cache, rate limiting) fall back to
// defaults so the service runs with nothing but a database configured.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds the core runtime configuration.
//
// Fields:
//
//	Env          – application environment ("dev", "test", "prod").
//	Port         – HTTP port to listen on.
//	DBUser       – database username.
//	DBPass       – database password (may be empty).
//	DBHost       – database host address.
//	DBPort       – database port number.
//	DBName       – database name.
//	JWTSecret    – secret used to verify and mint access tokens.
//	AccessTTLMin – access token lifetime in minutes.
//	BcryptCost   – bcrypt cost used when seeding demo accounts.
type Config struct {
	Env          string
	Port         string
	DBUser       string
	DBPass       string
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string
	AccessTTLMin int
	BcryptCost   int
}

// Load reads the core configuration.  Missing required variables are
// fatal: a canteen service with no database or signing secret cannot
// do anything useful.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:   envInt("BCRYPT_COST", 10),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "":
		return d
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return d
}
