package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"devlend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards the gRPC availability API with static keys.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// AuthConfig configures verification of identity-provider tokens.
type AuthConfig struct {
	JWTSecret           string   `yaml:"jwt_secret"`
	Issuer              string   `yaml:"issuer"`
	AllowedEmailDomains []string `yaml:"allowed_email_domains"`
}

type BookingConfig struct {
	MaxDays            int           `yaml:"max_days"`
	SlotMinutes        int           `yaml:"slot_minutes"`
	PickupInstructions string        `yaml:"pickup_instructions"`
	CurrencySymbol     string        `yaml:"currency_symbol"`
	SubmitRateLimit    int           `yaml:"submit_rate_limit"`
	SubmitRateWindow   time.Duration `yaml:"submit_rate_window"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type TelegramConfig struct {
	Enabled  bool            `yaml:"enabled"`
	BotToken string          `yaml:"bot_token"`
	Debug    bool            `yaml:"debug"`
	Admins   []TelegramAdmin `yaml:"admins"`
	// Ограничение для чатов, не входящих в список админов
	RateLimitMessages int           `yaml:"rate_limit_messages"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
	ExportDays        int           `yaml:"export_days"`
}

// TelegramAdmin maps a chat to the admin account it acts as.
type TelegramAdmin struct {
	ChatID int64  `yaml:"chat_id"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	SeedFile string `yaml:"seed_file"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
	SheetName            string `yaml:"sheet_name"`
}

// Enabled reports whether spreadsheet mirroring is configured.
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.BookingSpreadSheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Booking.MaxDays <= 0 {
		return errors.New("booking.max_days must be positive")
	}
	if c.Booking.SlotMinutes <= 0 || 60*24%c.Booking.SlotMinutes != 0 {
		return fmt.Errorf("booking.slot_minutes must divide a day, got %d", c.Booking.SlotMinutes)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required")
		}
		return ValidateTelegramAdmins(c.Telegram.Admins)
	}
	return nil
}

func ValidateTelegramAdmins(admins []TelegramAdmin) error {
	seen := make(map[int64]bool)
	for _, a := range admins {
		if a.ChatID == 0 {
			return fmt.Errorf("telegram admin %q has invalid chat_id 0", a.UserID)
		}
		if a.UserID == "" {
			return fmt.Errorf("telegram admin chat %d has no user_id", a.ChatID)
		}
		if seen[a.ChatID] {
			return fmt.Errorf("duplicate telegram admin chat_id: %d", a.ChatID)
		}
		seen[a.ChatID] = true
	}
	return nil
}

// EmailAllowed reports whether email belongs to one of the allowed domains.
// An empty list allows everyone.
func (a AuthConfig) EmailAllowed(email string) bool {
	if len(a.AllowedEmailDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range a.AllowedEmailDomains {
		if strings.EqualFold(domain, strings.TrimPrefix(d, "@")) {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "devlend"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Asia/Seoul"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Auth.AllowedEmailDomains == nil {
		c.Auth.AllowedEmailDomains = []string{"kaist.ac.kr", "kaist.edu"}
	}

	// Booking defaults
	if c.Booking.MaxDays == 0 {
		c.Booking.MaxDays = models.DefaultMaxBookingDays
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = models.DefaultSlotMinutes
	}
	if c.Booking.CurrencySymbol == "" {
		c.Booking.CurrencySymbol = models.DefaultCurrencySymbol
	}
	if c.Booking.SubmitRateLimit == 0 {
		c.Booking.SubmitRateLimit = models.DefaultSubmitRateLimit
	}
	if c.Booking.SubmitRateWindow == 0 {
		c.Booking.SubmitRateWindow = time.Duration(models.DefaultSubmitRateWindow) * time.Second
	}

	if c.Telegram.RateLimitMessages == 0 {
		c.Telegram.RateLimitMessages = 20
	}
	if c.Telegram.RateLimitWindow == 0 {
		c.Telegram.RateLimitWindow = time.Minute
	}
	if c.Telegram.ExportDays == 0 {
		c.Telegram.ExportDays = 14
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "data/exports"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
}
