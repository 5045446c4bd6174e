// Package config provides application configuration loaded from an optional
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	ERP    ERPConfig    `yaml:"erp"`
	Store  StoreConfig  `yaml:"store"`
	POS    POSConfig    `yaml:"pos"`
	App    AppConfig    `yaml:"app"`
}

// ServerConfig holds HTTP gateway settings.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
}

// ERPConfig points at the Frappe/ERPNext backend.
type ERPConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds, 0 keeps the http.Client default (none)
	Company string `yaml:"company"`
}

// StoreConfig selects the device-local store.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // sqlite or postgres
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	DSN      string `yaml:"dsn"` // overrides the discrete postgres fields when set
}

// POSConfig holds point-of-sale document defaults.
type POSConfig struct {
	TaxTemplate         string `yaml:"tax_template"`
	PrintFormat         string `yaml:"print_format"`
	CustomerPhotoFolder string `yaml:"customer_photo_folder"`
	ItemPageLength      int    `yaml:"item_page_length"`
	CustomerPageLength  int    `yaml:"customer_page_length"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool   `yaml:"dev"`
	Lang          string `yaml:"lang"`
	ReceiptDir    string `yaml:"receipt_dir"`
	SessionSecret string `yaml:"session_secret"`
}

// PostgresDSN returns the PostgreSQL connection string in key=value format.
// An explicit DSN wins over the discrete fields.
func (s StoreConfig) PostgresDSN() string {
	if s.DSN != "" {
		return NormalizeDSN(s.DSN)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.DBName, s.SSLMode,
	)
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15,
			WriteTimeout: 60,
			IdleTimeout:  60,
		},
		ERP: ERPConfig{
			Timeout: 30,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			Path:    "pos.db",
			Host:    "localhost",
			Port:    5432,
			User:    "pos",
			DBName:  "pos",
			SSLMode: "disable",
		},
		POS: POSConfig{
			PrintFormat:         "POS Invoice",
			CustomerPhotoFolder: "Home/Foto KTP Customer",
			ItemPageLength:      40,
			CustomerPageLength:  10,
		},
		App: AppConfig{
			Lang:          "id",
			ReceiptDir:    "receipts",
			SessionSecret: "devsessionsecret",
		},
	}
}

// Load reads configuration: defaults, then the YAML file named by POS_CONFIG
// (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("POS_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// mergeFile overlays the YAML file at path on top of cfg.
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.ERP.BaseURL = strings.TrimRight(getEnv("ERP_URL", c.ERP.BaseURL), "/")
	c.ERP.Timeout = getEnvInt("ERP_TIMEOUT", c.ERP.Timeout)
	c.ERP.Company = getEnv("ERP_COMPANY", c.ERP.Company)

	c.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", c.Store.Driver))
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.Host = getEnv("DB_HOST", c.Store.Host)
	c.Store.Port = getEnvInt("DB_PORT", c.Store.Port)
	c.Store.User = getEnv("DB_USER", c.Store.User)
	c.Store.Password = getEnv("DB_PASSWORD", c.Store.Password)
	c.Store.DBName = getEnv("DB_NAME", c.Store.DBName)
	c.Store.SSLMode = getEnv("DB_SSLMODE", c.Store.SSLMode)
	c.Store.DSN = getEnv("DATABASE_DSN", c.Store.DSN)

	c.POS.TaxTemplate = getEnv("POS_TAX_TEMPLATE", c.POS.TaxTemplate)
	c.POS.PrintFormat = getEnv("POS_PRINT_FORMAT", c.POS.PrintFormat)
	c.POS.CustomerPhotoFolder = getEnv("POS_CUSTOMER_PHOTO_FOLDER", c.POS.CustomerPhotoFolder)
	c.POS.ItemPageLength = getEnvInt("POS_ITEM_PAGE_LENGTH", c.POS.ItemPageLength)
	c.POS.CustomerPageLength = getEnvInt("POS_CUSTOMER_PAGE_LENGTH", c.POS.CustomerPageLength)

	c.App.Dev = getEnvBool("DEV", c.App.Dev)
	c.App.Lang = getEnv("POS_LANG", c.App.Lang)
	c.App.ReceiptDir = getEnv("RECEIPT_DIR", c.App.ReceiptDir)
	c.App.SessionSecret = getEnv("SESSION_SECRET", c.App.SessionSecret)
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.ERP.BaseURL == "" {
		errs = append(errs, errors.New("ERP_URL is required"))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.POS.ItemPageLength <= 0 {
		errs = append(errs, errors.New("item page length must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
