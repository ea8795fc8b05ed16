package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string
	DBUrl           string
	TokenSecret     string
	Debug           bool
	LogFormat       string
	StoreTimeout    time.Duration
	BusyTimeout     time.Duration
	ConflictRetries int
	RedisAddr       string
	RedisChannel    string
}

// fileConfig mirrors the flags that may be set from a YAML file.
type fileConfig struct {
	Host            string        `yaml:"host"`
	Port            uint          `yaml:"port"`
	DBUrl           string        `yaml:"dbUrl"`
	TokenSecret     string        `yaml:"tokenSecret"`
	Debug           bool          `yaml:"debug"`
	LogFormat       string        `yaml:"logFormat"`
	StoreTimeout    time.Duration `yaml:"storeTimeout"`
	BusyTimeout     time.Duration `yaml:"busyTimeout"`
	ConflictRetries int           `yaml:"conflictRetries"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisChannel    string        `yaml:"redisChannel"`
}

func ParseFlags() (Config, error) {
	return Parse(os.Args[1:])
}

// Parse reads the command line. Values from -config are applied first and
// any flag given explicitly on the command line overrides them.
func Parse(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("quick-apply", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "path to a YAML config file")
	var host string
	fs.StringVar(&host, "host", "0.0.0.0", "listen host name")
	var port uint
	fs.UintVar(&port, "port", 80, "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", "qapply.sqlite", "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "secret key shared with the identity service for bearer tokens")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", 10*time.Second, "deadline applied to each request's storage work")
	fs.DurationVar(&cfg.BusyTimeout, "busy-timeout", 5*time.Second, "how long a connection waits for the SQLite write lock")
	fs.IntVar(&cfg.ConflictRetries, "conflict-retries", 3, "attempts for operations that hit a write conflict")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for verdict notifications (empty logs them instead)")
	fs.StringVar(&cfg.RedisChannel, "redis-channel", "applications.verdicts", "redis channel for verdict notifications")

	if err = fs.Parse(args); err != nil {
		return
	}

	if configPath != "" {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		var fc fileConfig
		fc, err = loadFile(configPath)
		if err != nil {
			return
		}
		merge(&cfg, &host, &port, fc, set)
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case cfg.ConflictRetries < 1:
		err = errors.New("-conflict-retries must be at least 1")
	case cfg.LogFormat != "text" && cfg.LogFormat != "json":
		err = fmt.Errorf("unknown -log-format %q", cfg.LogFormat)
	}

	return
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func merge(cfg *Config, host *string, port *uint, fc fileConfig, set map[string]bool) {
	if fc.Host != "" && !set["host"] {
		*host = fc.Host
	}
	if fc.Port != 0 && !set["port"] {
		*port = fc.Port
	}
	if fc.DBUrl != "" && !set["db-url"] {
		cfg.DBUrl = fc.DBUrl
	}
	if fc.TokenSecret != "" && !set["token-secret"] {
		cfg.TokenSecret = fc.TokenSecret
	}
	if fc.Debug && !set["debug"] {
		cfg.Debug = true
	}
	if fc.LogFormat != "" && !set["log-format"] {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.StoreTimeout > 0 && !set["store-timeout"] {
		cfg.StoreTimeout = fc.StoreTimeout
	}
	if fc.BusyTimeout > 0 && !set["busy-timeout"] {
		cfg.BusyTimeout = fc.BusyTimeout
	}
	if fc.ConflictRetries > 0 && !set["conflict-retries"] {
		cfg.ConflictRetries = fc.ConflictRetries
	}
	if fc.RedisAddr != "" && !set["redis-addr"] {
		cfg.RedisAddr = fc.RedisAddr
	}
	if fc.RedisChannel != "" && !set["redis-channel"] {
		cfg.RedisChannel = fc.RedisChannel
	}
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
