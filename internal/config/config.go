package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	SourceDSN              string
	TargetDSN              string
	Driver                 string
	ObjectTypes            string
	OutputPath             string
	ScriptPath             string
	QueriesDir             string
	DropsDir               string
	ConnectionsDir         string
	RunsDB                 string
	LogLevel               string
	Progress               string
	Encrypt                string
	TrustServerCertificate bool
}

// Load reads SQRIBE_* settings from the environment. A .env file in the
// working directory fills in variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		SourceDSN:              getEnv("SQRIBE_SOURCE", ""),
		TargetDSN:              getEnv("SQRIBE_TARGET", ""),
		Driver:                 getEnv("SQRIBE_DRIVER", "sqlserver"),
		ObjectTypes:            getEnv("SQRIBE_OBJECTS", ""),
		OutputPath:             getEnv("SQRIBE_OUTPUT_PATH", "./output"),
		ScriptPath:             getEnv("SQRIBE_SCRIPT_PATH", "./output"),
		QueriesDir:             getEnv("SQRIBE_QUERIES_DIR", ""),
		DropsDir:               getEnv("SQRIBE_DROPS_DIR", ""),
		ConnectionsDir:         getEnv("SQRIBE_CONNECTIONS_DIR", "./connections"),
		RunsDB:                 getEnv("SQRIBE_RUNS_DB", "./sqribe-runs.sqlite"),
		LogLevel:               getEnv("SQRIBE_LOG_LEVEL", "info"),
		Progress:               getEnv("SQRIBE_PROGRESS", "bar"),
		Encrypt:                getEnv("SQRIBE_ENCRYPT", "true"),
		TrustServerCertificate: getEnvBool("SQRIBE_TRUST_SERVER_CERT", false),
	}
}

// ObjectTags splits a comma separated filter such as "fkc,dt" into tags.
func ObjectTags(filter string) []string {
	var tags []string
	for _, part := range strings.Split(filter, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || part == "all" {
			continue
		}
		tags = append(tags, part)
	}
	return tags
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
