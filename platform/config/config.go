// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// GSTConfig provides tax settings for cost derivation.
type GSTConfig interface {
	GetGSTRate() decimal.Decimal
	GetGSTNumber() string
}

// CompanyConfig provides company details printed on invoices.
type CompanyConfig interface {
	GetCompanyName() string
	GetCompanyAddress() string
	GetCompanyPhone() string
	GetCompanyEmail() string
}

// UploadConfig provides settings for file intake.
type UploadConfig interface {
	GetAllowedFileExtensions() []string
	GetMaxFileSize() int64
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketProgressMedia() string
	IsMinIOEnabled() bool
}

// SMTPConfig provides settings for email sending.
type SMTPConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAdminEmail() string
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GatewayConfig provides payment gateway settings.
type GatewayConfig interface {
	GetRazorpayKeyID() string
	GetRazorpayKeySecret() string
	GetGatewaySkipSignatureCheck() bool
}

// WorkflowConfig provides operator-controlled workflow policy switches.
type WorkflowConfig interface {
	// GetProgressRequireCapturedPayment reports whether progress uploads on a
	// PAYMENT-status request require a captured payment. Disabling it is an
	// operator override used while the payment gateway is not live.
	GetProgressRequireCapturedPayment() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                            string
	HTTPAddr                       string
	DatabaseURL                    string
	JWTSecret                      string
	AccessTokenTTL                 time.Duration
	CORSAllowAll                   bool
	CORSOrigins                    []string
	CORSAllowCreds                 bool
	AppBaseURL                     string
	GSTRate                        decimal.Decimal
	GSTNumber                      string
	CompanyName                    string
	CompanyAddress                 string
	CompanyPhone                   string
	CompanyEmail                   string
	AdminEmail                     string
	AllowedFileExtensions          []string
	MaxFileSize                    int64
	MinIOEndpoint                  string
	MinIOAccessKey                 string
	MinIOSecretKey                 string
	MinIOUseSSL                    bool
	MinioBucketProgressMedia       string
	EmailEnabled                   bool
	SMTPHost                       string
	SMTPPort                       int
	SMTPUsername                   string
	SMTPPassword                   string
	EmailFromName                  string
	EmailFromAddress               string
	RedisURL                       string
	RedisTLSInsecure               bool
	AsynqQueueName                 string
	AsynqConcurrency               int
	RazorpayKeyID                  string
	RazorpayKeySecret              string
	GatewaySkipSignatureCheck      bool
	ProgressRequireCapturedPayment bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTSecret() string              { return c.JWTSecret }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// GSTConfig implementation
func (c *Config) GetGSTRate() decimal.Decimal { return c.GSTRate }
func (c *Config) GetGSTNumber() string        { return c.GSTNumber }

// CompanyConfig implementation
func (c *Config) GetCompanyName() string    { return c.CompanyName }
func (c *Config) GetCompanyAddress() string { return c.CompanyAddress }
func (c *Config) GetCompanyPhone() string   { return c.CompanyPhone }
func (c *Config) GetCompanyEmail() string   { return c.CompanyEmail }

// UploadConfig implementation
func (c *Config) GetAllowedFileExtensions() []string { return c.AllowedFileExtensions }
func (c *Config) GetMaxFileSize() int64              { return c.MaxFileSize }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string            { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string           { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string           { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketProgressMedia() string { return c.MinioBucketProgressMedia }
func (c *Config) IsMinIOEnabled() bool                { return c.MinIOEndpoint != "" }

// SMTPConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAdminEmail() string       { return c.AdminEmail }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// GatewayConfig implementation
func (c *Config) GetRazorpayKeyID() string           { return c.RazorpayKeyID }
func (c *Config) GetRazorpayKeySecret() string       { return c.RazorpayKeySecret }
func (c *Config) GetGatewaySkipSignatureCheck() bool { return c.GatewaySkipSignatureCheck }

// WorkflowConfig implementation
func (c *Config) GetProgressRequireCapturedPayment() bool {
	return c.ProgressRequireCapturedPayment
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	gstRate, err := decimal.NewFromString(getEnv("GST_RATE", "18"))
	if err != nil {
		return nil, fmt.Errorf("invalid GST_RATE: %w", err)
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:                            getEnv("APP_ENV", "development"),
		HTTPAddr:                       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                    getEnv("DATABASE_URL", ""),
		JWTSecret:                      getEnv("JWT_SECRET", ""),
		AccessTokenTTL:                 mustDuration(getEnv("JWT_ACCESS_TTL", "168h")),
		CORSAllowAll:                   corsAllowAll,
		CORSOrigins:                    corsOrigins,
		CORSAllowCreds:                 strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                     getEnv("APP_BASE_URL", "http://localhost:3000"),
		GSTRate:                        gstRate,
		GSTNumber:                      getEnv("GST_NUMBER", "To be provided"),
		CompanyName:                    getEnv("COMPANY_NAME", "5R Associates Communications"),
		CompanyAddress:                 getEnv("COMPANY_ADDRESS", ""),
		CompanyPhone:                   getEnv("COMPANY_PHONE", ""),
		CompanyEmail:                   getEnv("COMPANY_EMAIL", ""),
		AdminEmail:                     getEnv("ADMIN_EMAIL", ""),
		AllowedFileExtensions:          splitCSV(getEnv("ALLOWED_FILE_TYPES", "jpg,jpeg,png,pdf,mp4")),
		MaxFileSize:                    mustInt64(getEnv("MAX_FILE_SIZE", "10485760")),
		MinIOEndpoint:                  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:                 getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:                 getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketProgressMedia:       getEnv("MINIO_BUCKET_PROGRESS_MEDIA", "progress-media"),
		EmailEnabled:                   emailEnabled,
		SMTPHost:                       getEnv("SMTP_HOST", ""),
		SMTPPort:                       int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:                   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                   getEnv("SMTP_PASSWORD", ""),
		EmailFromName:                  getEnv("EMAIL_FROM_NAME", "Service Portal"),
		EmailFromAddress:               getEnv("EMAIL_FROM_ADDRESS", ""),
		RedisURL:                       getEnv("REDIS_URL", ""),
		RedisTLSInsecure:               strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:                 getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:               int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		RazorpayKeyID:                  getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:              getEnv("RAZORPAY_KEY_SECRET", ""),
		GatewaySkipSignatureCheck:      strings.EqualFold(getEnv("GATEWAY_SKIP_SIGNATURE_CHECK", "false"), "true"),
		ProgressRequireCapturedPayment: strings.EqualFold(getEnv("PROGRESS_REQUIRE_CAPTURED_PAYMENT", "true"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is true")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
