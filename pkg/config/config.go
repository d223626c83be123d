package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr           string
		RedirectURL    string        `mapstructure:"redirect_url"`
		TrustedProxies []string      `mapstructure:"trusted_proxies"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout"`
		Timezone       string
	}
	Models struct {
		Dir       string
		ModelFile string `mapstructure:"model_file"`
	}
	GeoIP struct {
		Provider string
		CityPath string `mapstructure:"city_path"`
		ASNPath  string `mapstructure:"asn_path"`
		APIURL   string `mapstructure:"api_url"`
		Timeout  time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}
	Audit struct {
		Path      string
		QueueSize int `mapstructure:"queue_size"`
	}
	InfluxDB struct {
		URL    string
		Token  string
		Org    string
		Bucket string
	}
	MySQL struct {
		DSN     string
		MaxIdle int `mapstructure:"max_idle"`
		MaxOpen int `mapstructure:"max_open"`
	}
	Kafka struct {
		Brokers     []string
		Topic       string
		GroupID     string `mapstructure:"group_id"`
		AuditTopic  string `mapstructure:"audit_topic"`
		Version     string
		ConsumeFrom string `mapstructure:"consume_from"`
	}
	Alert struct {
		Cooldown time.Duration
	}
	Log struct {
		Level   string
		Path    string
		Console bool
	}
}

var GlobalConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.redirect_url", "https://google.com")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.timezone", "Local")
	v.SetDefault("models.dir", "models")
	v.SetDefault("models.model_file", "isolation_forest.json")
	v.SetDefault("geoip.provider", "ipapi")
	v.SetDefault("geoip.api_url", "http://ip-api.com")
	v.SetDefault("geoip.timeout", 3*time.Second)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("audit.path", "outputs/logs.txt")
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("mysql.max_idle", 2)
	v.SetDefault("mysql.max_open", 10)
	v.SetDefault("kafka.group_id", "login-guard")
	v.SetDefault("kafka.version", "2.1.0")
	v.SetDefault("kafka.consume_from", "newest")
	v.SetDefault("alert.cooldown", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "outputs/loginguard.log")
	v.SetDefault("log.console", true)
}

// Load reads config.yaml from the given directories. A missing file is not an
// error: defaults and LOGINGUARD_* environment variables still apply.
func Load(paths ...string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("LOGINGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Init() error {
	cfg, err := Load("config", ".")
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Location resolves Server.Timezone; an unknown zone falls back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Server.Timezone == "" || c.Server.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
