package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort       string
	DBDSN         string
	JWTSecret     string
	JWTExpiresMin int
	CORSOrigins   string
	SecureCookie  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadDir   string
	BlobBackend string
	MongoURI    string
	MongoDB     string

	PaygateBaseURL      string
	PaygateAPIKey       string
	PaygatePrivateKey   string
	PaygateMerchantCode string
	PaygateCallbackURL  string
	PlatformFeePercent  decimal.Decimal

	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	LogLevel  string
	LogFormat string
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variables")
)

// Load reads the process environment. Every missing or malformed key is
// reported in a single error.
func Load() (Config, error) {
	var missing, invalid []string

	must := func(k string) string {
		v := get(k, "")
		if v == "" {
			missing = append(missing, k)
		}
		return v
	}
	atoi := func(k, def string) int {
		n, err := strconv.Atoi(get(k, def))
		if err != nil {
			invalid = append(invalid, k)
		}
		return n
	}

	cfg := Config{
		AppPort:       get("APP_PORT", "8080"),
		DBDSN:         must("DB_DSN"),
		JWTSecret:     must("JWT_SECRET"),
		JWTExpiresMin: atoi("JWT_EXPIRES_MIN", "10080"),
		CORSOrigins:   get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),

		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", "0"),

		UploadDir:   get("UPLOAD_DIR", "./uploads"),
		BlobBackend: strings.ToLower(get("BLOB_BACKEND", "local")),
		MongoURI:    get("MONGO_URI", ""),
		MongoDB:     get("MONGO_DB", "marketplace"),

		PaygateBaseURL:      get("PAYGATE_BASE_URL", ""),
		PaygateAPIKey:       get("PAYGATE_API_KEY", ""),
		PaygatePrivateKey:   get("PAYGATE_PRIVATE_KEY", ""),
		PaygateMerchantCode: get("PAYGATE_MERCHANT_CODE", ""),
		PaygateCallbackURL:  get("PAYGATE_CALLBACK_URL", ""),

		AuthRateLimitBurst: atoi("AUTH_RATE_LIMIT_BURST", "5"),

		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "text"),
	}

	fee, err := decimal.NewFromString(get("PLATFORM_FEE_PERCENT", "10"))
	if err != nil || fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		invalid = append(invalid, "PLATFORM_FEE_PERCENT")
	}
	cfg.PlatformFeePercent = fee

	secure, err := strconv.ParseBool(get("COOKIE_SECURE", "false"))
	if err != nil {
		invalid = append(invalid, "COOKIE_SECURE")
	}
	cfg.SecureCookie = secure

	rps, err := strconv.ParseFloat(get("AUTH_RATE_LIMIT_RPS", "1"), 64)
	if err != nil || rps <= 0 {
		invalid = append(invalid, "AUTH_RATE_LIMIT_RPS")
	}
	cfg.AuthRateLimitRPS = rps

	switch cfg.BlobBackend {
	case "local":
	case "gridfs":
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		invalid = append(invalid, "BLOB_BACKEND")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// PaygateEnabled reports whether enough gateway credentials are present to
// create payment intents.
func (c Config) PaygateEnabled() bool {
	return c.PaygateBaseURL != "" && c.PaygateAPIKey != "" && c.PaygatePrivateKey != ""
}

func get(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
