package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	// Database is store A.
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	// StoreB is the bucket-backed document store that only the proxy talks to.
	StoreB struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		Prefix    string `mapstructure:"prefix"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"store_b"`

	Proxy struct {
		Port          int           `mapstructure:"port"`
		URL           string        `mapstructure:"url"`
		Resource      string        `mapstructure:"resource"`
		MaxConcurrent int           `mapstructure:"max_concurrent"`
		Timeout       time.Duration `mapstructure:"timeout"`
		ClientTimeout time.Duration `mapstructure:"client_timeout"`
	} `mapstructure:"proxy"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`

	Dedup struct {
		Enabled bool          `mapstructure:"enabled"`
		Window  time.Duration `mapstructure:"window"`
	} `mapstructure:"dedup"`

	Outbox struct {
		Enabled     bool          `mapstructure:"enabled"`
		Interval    time.Duration `mapstructure:"interval"`
		BatchSize   int           `mapstructure:"batch_size"`
		MaxAttempts int           `mapstructure:"max_attempts"`
	} `mapstructure:"outbox"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Admin struct {
		DefaultPassword string `mapstructure:"default_password"`
	} `mapstructure:"admin"`

	Sheets struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"sheets"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`
}

// Load reads configs/config.yaml when present, then applies environment overrides.
func Load() *Config {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	return load(viper.New())
}

func load(v *viper.Viper) *Config {
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("component", "config").Msg("no config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatal().Err(err).Msg("config unmarshal error")
	}

	applyEnvOverrides(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "mandoub_db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("store_b.region", "auto")
	v.SetDefault("store_b.prefix", "mandoub-db")

	v.SetDefault("proxy.port", 3001)
	v.SetDefault("proxy.url", "http://localhost:3001")
	v.SetDefault("proxy.resource", "storeb")
	v.SetDefault("proxy.max_concurrent", 10)
	v.SetDefault("proxy.timeout", 15*time.Second)
	v.SetDefault("proxy.client_timeout", 20*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")

	v.SetDefault("dedup.enabled", false)
	v.SetDefault("dedup.window", time.Minute)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.interval", 30*time.Second)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_attempts", 20)

	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "mandoub-backend")

	v.SetDefault("sheets.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func applyEnvOverrides(cfg *Config) {
	// Override database settings from DB_* environment variables
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	// Store B credentials never live in the config file
	if endpoint := os.Getenv("STOREB_ENDPOINT"); endpoint != "" {
		cfg.StoreB.Endpoint = endpoint
	}
	if bucket := os.Getenv("STOREB_BUCKET"); bucket != "" {
		cfg.StoreB.Bucket = bucket
	}
	if key := os.Getenv("STOREB_ACCESS_KEY"); key != "" {
		cfg.StoreB.AccessKey = key
	}
	if secret := os.Getenv("STOREB_SECRET_KEY"); secret != "" {
		cfg.StoreB.SecretKey = secret
	}

	// K8s sets REDIS_SERVICE_HOST and REDIS_SERVICE_PORT for services
	if host := os.Getenv("REDIS_SERVICE_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := os.Getenv("REDIS_SERVICE_PORT"); port != "" {
		cfg.Redis.Port = port
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	if cfg.JWT.Secret == "" || cfg.JWT.Secret == "${JWT_SECRET}" {
		cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	}
	if pass := os.Getenv("ADMIN_PASSWORD"); pass != "" {
		cfg.Admin.DefaultPassword = pass
	}
}

// DatabaseURL builds the pgx connection string for store A.
func (c *Config) DatabaseURL() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password + "@" +
		c.Database.Host + ":" + strconv.Itoa(c.Database.Port) + "/" + c.Database.Name
}

// StoreBConfigured reports whether a bucket is configured for store B.
func (c *Config) StoreBConfigured() bool {
	return c.StoreB.Bucket != "" && c.StoreB.AccessKey != "" && c.StoreB.SecretKey != ""
}
