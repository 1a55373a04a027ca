package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Pipeline PipelineConfig
	Learn    LearnConfig
	Store    StoreConfig
}

// PipelineConfig holds extraction and validation tunables. The defaults
// reproduce the observed behaviour of the processing pipeline and are the
// values the tests pin.
type PipelineConfig struct {
	DefaultVATRate     float64 // applied when deriving missing totals
	DefaultLineTaxRate float64 // percent, applied to line items without one
	MinConfidence      float64 // below this a document needs review
	HighAmountFlag     float64 // totals above this get an info diagnostic
}

// LearnConfig holds adaptive-engine tunables.
type LearnConfig struct {
	MinObservations  int     // predictions below this return zero confidence
	RetrainEvery     int     // automatic retrain cadence
	FrequencyWeight  float64 // ensemble weights
	ClassifierWeight float64
	NeighborWeight   float64
}

// StoreConfig holds observation-store connection settings.
type StoreConfig struct {
	SQLitePath  string
	PostgresDSN string
	MaxConns    int32
	MinConns    int32
	DialTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			DefaultVATRate:     getEnvAsFloat("DOCPIPE_DEFAULT_VAT_RATE", 0.19),
			DefaultLineTaxRate: getEnvAsFloat("DOCPIPE_DEFAULT_LINE_TAX_RATE", 19.0),
			MinConfidence:      getEnvAsFloat("DOCPIPE_MIN_CONFIDENCE", 0.60),
			HighAmountFlag:     getEnvAsFloat("DOCPIPE_HIGH_AMOUNT_FLAG", 10000.0),
		},
		Learn: LearnConfig{
			MinObservations:  getEnvAsInt("DOCPIPE_LEARN_MIN_OBSERVATIONS", 3),
			RetrainEvery:     getEnvAsInt("DOCPIPE_LEARN_RETRAIN_EVERY", 5),
			FrequencyWeight:  getEnvAsFloat("DOCPIPE_LEARN_FREQUENCY_WEIGHT", 0.4),
			ClassifierWeight: getEnvAsFloat("DOCPIPE_LEARN_CLASSIFIER_WEIGHT", 0.3),
			NeighborWeight:   getEnvAsFloat("DOCPIPE_LEARN_NEIGHBOR_WEIGHT", 0.3),
		},
		Store: StoreConfig{
			SQLitePath:  getEnv("DOCPIPE_SQLITE_PATH", ""),
			PostgresDSN: getEnv("DOCPIPE_DB_URL", ""),
			MaxConns:    getEnvAsInt32("DOCPIPE_DB_MAX_CONNS", 10),
			MinConns:    getEnvAsInt32("DOCPIPE_DB_MIN_CONNS", 2),
			DialTimeout: getEnvAsDuration("DOCPIPE_DB_DIAL_TIMEOUT", 3*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
