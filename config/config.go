package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                   string
	Port                  string
	APIBaseURL            string        // bakehouse backend base URL
	RequestTimeout        time.Duration // bound on every backend call
	TokenRefreshInterval  time.Duration // scheduled credential refresh
	GatewayKeyID          string        // publishable key for the embedded checkout UI
	Currency              string
	DeliveryCharge        float64 // flat charge below the free-delivery threshold
	FreeDeliveryThreshold float64 // subtotal at which delivery becomes free
	ServiceablePincodes   []string
	RedisAddr             string // optional; empty selects the in-memory token store
	RedisPassword         string

	// Stand-in identity wiring for deployments where the identity
	// provider hands the process a service principal up front.
	PrincipalID    string
	PrincipalName  string
	PrincipalEmail string
	PrincipalPhone string
	IdentityToken  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8090"),
		APIBaseURL:            os.Getenv("API_BASE_URL"),
		RequestTimeout:        getDuration("REQUEST_TIMEOUT", 15*time.Second),
		TokenRefreshInterval:  getDuration("TOKEN_REFRESH_INTERVAL", 45*time.Minute),
		GatewayKeyID:          os.Getenv("GATEWAY_KEY_ID"),
		Currency:              getEnv("CURRENCY", "INR"),
		DeliveryCharge:        getFloat("DELIVERY_CHARGE", 40),
		FreeDeliveryThreshold: getFloat("FREE_DELIVERY_THRESHOLD", 499),
		ServiceablePincodes:   getList("SERVICEABLE_PINCODES"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		PrincipalID:           os.Getenv("PRINCIPAL_ID"),
		PrincipalName:         os.Getenv("PRINCIPAL_NAME"),
		PrincipalEmail:        os.Getenv("PRINCIPAL_EMAIL"),
		PrincipalPhone:        os.Getenv("PRINCIPAL_PHONE"),
		IdentityToken:         os.Getenv("IDENTITY_TOKEN"),
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("missing required environment variable API_BASE_URL")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
