package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
		// AnalyzeRate limits submissions per user, ulule format ("10-M").
		AnalyzeRate string `yaml:"analyzeRate"`
		Development bool   `yaml:"development"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | memory
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret  string        `yaml:"jwtSecret"`
		TokenTTL   time.Duration `yaml:"tokenTTL"`
		BcryptCost int           `yaml:"bcryptCost"`
	} `yaml:"auth"`

	SonarQube struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		// PublicURL is used for dashboard links; defaults to URL.
		PublicURL    string        `yaml:"publicURL"`
		PollTimeout  time.Duration `yaml:"pollTimeout"`
		PollInterval time.Duration `yaml:"pollInterval"`
		PageSize     int           `yaml:"pageSize"`
	} `yaml:"sonarqube"`

	Scanner struct {
		Mode    string `yaml:"mode"` // binary | docker
		Binary  string `yaml:"binary"`
		Image   string `yaml:"image"`
		Network string `yaml:"network"`
		// DockerHostURL is the engine URL as seen from inside the container.
		DockerHostURL string `yaml:"dockerHostURL"`
		WorkDir       string `yaml:"workDir"`
	} `yaml:"scanner"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
}

// Load baca file config.yaml. A missing file is fine: defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.SonarQube.URL, "SONARQUBE_URL")
	setString(&c.SonarQube.Token, "SONARQUBE_TOKEN")
	setString(&c.SonarQube.User, "SONARQUBE_USER")
	setString(&c.SonarQube.Password, "SONARQUBE_PASS")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.AnalyzeRate == "" {
		c.Server.AnalyzeRate = "10-M"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	c.SonarQube.URL = strings.TrimRight(c.SonarQube.URL, "/")
	if c.SonarQube.PublicURL == "" {
		c.SonarQube.PublicURL = c.SonarQube.URL
	}
	if c.SonarQube.PollTimeout == 0 {
		c.SonarQube.PollTimeout = 10 * time.Second
	}
	if c.SonarQube.PollInterval == 0 {
		c.SonarQube.PollInterval = time.Second
	}
	if c.SonarQube.PageSize == 0 {
		c.SonarQube.PageSize = 500
	}
	if c.Scanner.Mode == "" {
		c.Scanner.Mode = "binary"
	}
	if c.Scanner.Binary == "" {
		c.Scanner.Binary = "sonar-scanner"
	}
	if c.Scanner.Image == "" {
		c.Scanner.Image = "sonarsource/sonar-scanner-cli"
	}
	if c.Scanner.WorkDir == "" {
		c.Scanner.WorkDir = filepath.Join(os.TempDir(), "codescan-tasks")
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "scanner-logs"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
}

// Validate checks values the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret (JWT_SECRET) is required"))
	}
	if c.SonarQube.URL == "" {
		errs = append(errs, errors.New("sonarqube.url (SONARQUBE_URL) is required"))
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want mysql, postgres or memory", c.Database.Driver))
	}
	if c.Scanner.Mode != "binary" && c.Scanner.Mode != "docker" {
		errs = append(errs, fmt.Errorf("scanner.mode %q: want binary or docker", c.Scanner.Mode))
	}
	if c.SonarQube.PollTimeout <= 0 || c.SonarQube.PollInterval <= 0 {
		errs = append(errs, errors.New("sonarqube.pollTimeout and pollInterval must be positive"))
	}
	return errors.Join(errs...)
}

// DSN returns the explicit DSN or builds one for the configured driver.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// MinioEnabled reports whether scanner logs should be archived.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != "" && c.Minio.AccessKey != ""
}
