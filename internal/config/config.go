package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string `yaml:"env"`
	HttpConfig    `yaml:"http"`
	SessionConfig `yaml:"session"`
	StorageConfig `yaml:"storage"`
	KafkaConfig   `yaml:"kafka"`
}

type HttpConfig struct {
	Addr           string        `yaml:"addr" env-default:":8080"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"5s"`
}

type SessionConfig struct {
	// TTL defaults to one year, matching the site's long-lived login.
	TTL          time.Duration `yaml:"ttl" env-default:"8760h"`
	CookieName   string        `yaml:"cookie_name" env-default:"seq"`
	SecureCookie bool          `yaml:"secure_cookie"`
	JwtSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type StorageConfig struct {
	// Backend selects where session records live: postgres, redis or
	// inmemory. Users and the audit outbox always live in postgres unless
	// the backend is inmemory.
	Backend  string         `yaml:"backend" env-default:"postgres"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBname   string `yaml:"dbname"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic" env-default:"session-events"`
	PublishInterval time.Duration `yaml:"publish_interval" env-default:"1s"`
}

func MustLoad() *Config {
	path, addr := fetchFlags()

	if path == "" {
		path = "configs/local.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	if addr != "" {
		cfg.Addr = addr
	}

	return &cfg
}

func MustLoadByPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

func fetchFlags() (string, string) {
	var path string
	var addr string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "http listen address")
	flag.Parse()

	return path, addr
}
