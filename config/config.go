package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to reach the monitored server and to
// schedule collection passes.
type Config struct {
	MySQL   MySQL   `yaml:"mysql"`
	Collect Collect `yaml:"collect"`
}

// MySQL describes the connection to the group member being monitored.
type MySQL struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Collect configures the poll loop.
type Collect struct {
	Interval time.Duration `yaml:"interval"`
	// QueryTimeout bounds a whole collection pass. Zero means no bound.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MySQL: MySQL{
			Host:           "localhost",
			Port:           3306,
			User:           "monitor",
			Password:       "password",
			Database:       "performance_schema",
			ConnectTimeout: 5 * time.Second,
		},
		Collect: Collect{
			Interval: 10 * time.Second,
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the
// file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Overrides carries settings given explicitly on the command line or in the
// environment. A nil field leaves the setting alone; a non-nil field wins
// even when it points at an empty value, so MYSQL_PASSWORD="" means an
// empty password.
type Overrides struct {
	Host           *string
	Port           *int
	User           *string
	Password       *string
	Database       *string
	ConnectTimeout *time.Duration
	Interval       *time.Duration
	QueryTimeout   *time.Duration
}

// Apply returns c with every non-nil field of o applied.
func (c Config) Apply(o Overrides) Config {
	if o.Host != nil {
		c.MySQL.Host = *o.Host
	}
	if o.Port != nil {
		c.MySQL.Port = *o.Port
	}
	if o.User != nil {
		c.MySQL.User = *o.User
	}
	if o.Password != nil {
		c.MySQL.Password = *o.Password
	}
	if o.Database != nil {
		c.MySQL.Database = *o.Database
	}
	if o.ConnectTimeout != nil {
		c.MySQL.ConnectTimeout = *o.ConnectTimeout
	}
	if o.Interval != nil {
		c.Collect.Interval = *o.Interval
	}
	if o.QueryTimeout != nil {
		c.Collect.QueryTimeout = *o.QueryTimeout
	}
	return c
}

// Validate reports settings the exporter cannot run with.
func (c Config) Validate() error {
	if c.MySQL.Host == "" {
		return fmt.Errorf("mysql host must not be empty")
	}
	if c.MySQL.Port <= 0 || c.MySQL.Port > 65535 {
		return fmt.Errorf("invalid mysql port %d", c.MySQL.Port)
	}
	if c.Collect.Interval <= 0 {
		return fmt.Errorf("collect interval must be positive, got %s", c.Collect.Interval)
	}
	if c.Collect.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative, got %s", c.Collect.QueryTimeout)
	}
	return nil
}

// DSN returns the go-sql-driver/mysql data source name.
func (m MySQL) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	cfg.DBName = m.Database
	cfg.Timeout = m.ConnectTimeout
	return cfg.FormatDSN()
}
