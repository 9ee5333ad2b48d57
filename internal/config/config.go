package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI          string
	DBName            string
	RedisAddr         string
	JWTSecret         string
	GatewayBaseURL    string
	GatewayMerchantID string
	GatewayName       string
	GatewayTimeout    time.Duration
	CallbackURL       string
	MinCheckoutAmount int64
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:          getEnvOrDefault("MONGO_URI", ""),
		DBName:            getEnvOrDefault("DB_NAME", "storefront"),
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", ""),
		JWTSecret:         getEnvOrDefault("JWT_SECRET", ""),
		GatewayBaseURL:    getEnvOrDefault("GATEWAY_BASE_URL", ""),
		GatewayMerchantID: getEnvOrDefault("GATEWAY_MERCHANT_ID", ""),
		GatewayName:       getEnvOrDefault("GATEWAY_NAME", "zarinpal"),
		GatewayTimeout:    getDurationEnv("GATEWAY_TIMEOUT", 10, time.Second),
		CallbackURL:       getEnvOrDefault("PAYMENT_CALLBACK_URL", ""),
		MinCheckoutAmount: getInt64Env("MIN_CHECKOUT_AMOUNT", 10000),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}
