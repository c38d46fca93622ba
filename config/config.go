package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	BASE_URL     string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Stripe Configuration
	STRIPE_API_KEY  string
	STRIPE_CURRENCY string
	GATEWAY_TIMEOUT time.Duration
	// Kafka Configuration
	KAFKA_BROKERS       []string
	KAFKA_PAYMENT_TOPIC string
	// DigitalOcean Configuration
	DO_SPACES_KEY      string
	DO_SPACES_SECRET   string
	DO_SPACES_BUCKET   string
	DO_SPACES_REGION   string
	DO_SPACES_ENDPOINT string
	DO_SPACES_CDN_URL  string
	// Cron Configuration
	CRON_ENABLED       bool
	INACTIVE_USER_DAYS int
	// CORS
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	timeout, err := time.ParseDuration(os.Getenv("GATEWAY_TIMEOUT"))
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}

	inactiveDays, err := strconv.Atoi(os.Getenv("INACTIVE_USER_DAYS"))
	if err != nil || inactiveDays <= 0 {
		inactiveDays = 31
	}

	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		BASE_URL:     getEnvOrDefault("BASE_URL", "http://localhost:8080/"),
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvOrDefault("JWT_ISSUER", "course-platform-api"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Stripe
		STRIPE_API_KEY:  os.Getenv("STRIPE_API_KEY"),
		STRIPE_CURRENCY: getEnvOrDefault("STRIPE_CURRENCY", "rub"),
		GATEWAY_TIMEOUT: timeout,
		// Kafka
		KAFKA_BROKERS:       brokers,
		KAFKA_PAYMENT_TOPIC: getEnvOrDefault("KAFKA_PAYMENT_TOPIC", "payments"),
		// DigitalOcean
		DO_SPACES_KEY:      os.Getenv("DO_SPACES_KEY"),
		DO_SPACES_SECRET:   os.Getenv("DO_SPACES_SECRET"),
		DO_SPACES_BUCKET:   os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:   os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT: os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_CDN_URL:  os.Getenv("DO_SPACES_CDN_URL"),
		// Cron
		CRON_ENABLED:       os.Getenv("CRON_ENABLED") != "false",
		INACTIVE_USER_DAYS: inactiveDays,
		// CORS
		ALLOWED_ORIGINS: getEnvOrDefault("ALLOWED_ORIGINS", "*"),
	}

	return envVariables, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
