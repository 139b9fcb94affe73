package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/benz9527/bidtree/lib/infra"
)

const (
	DefaultBackendKind     = "tree"
	DefaultTreeKind        = "rbtree"
	DefaultSQLiteDSN       = "bids.db"
	DefaultSQLiteTable     = "bids"
	DefaultSlowThresholdMs = 200
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultRedisPrefix     = "bidtree:"
	DefaultDataDir         = "."
	DefaultDataWorkers     = 4
	DefaultLogLevel        = "INFO"
	DefaultLogEncoder      = "plaintext"
	DefaultMetricsExporter = "none"
	DefaultMetricsInterval = 10000
	DefaultMetricsAddr     = "127.0.0.1:9464"
)

const (
	EnvBackend         = "BIDTREE_BACKEND"
	EnvTree            = "BIDTREE_TREE"
	EnvDataDir         = "BIDTREE_DATA_DIR"
	EnvDataWorkers     = "BIDTREE_DATA_WORKERS"
	EnvSQLiteDSN       = "BIDTREE_SQLITE_DSN"
	EnvRedisAddr       = "BIDTREE_REDIS_ADDR"
	EnvRedisPassword   = "BIDTREE_REDIS_PASSWORD"
	EnvMetricsExporter = "BIDTREE_METRICS_EXPORTER"
	EnvLogLevel        = "XLOG_LVL"
)

type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Encoder string `yaml:"encoder" validate:"oneof=json plaintext text"`
	// Empty file path logs to the stdout only.
	File            string `yaml:"file"`
	FileBufferSize  int    `yaml:"fileBufferSize" validate:"gte=0,lte=10485760"`
	FileFlushMillis int64  `yaml:"fileFlushMs" validate:"gte=0"`
}

type SQLiteConfig struct {
	DSN             string `yaml:"dsn" validate:"required"`
	Table           string `yaml:"table" validate:"required,max=64"`
	SlowThresholdMs int64  `yaml:"slowThresholdMs" validate:"gte=0"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" validate:"required,hostname_port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0,lte=15"`
	Prefix    string `yaml:"prefix"`
	LockTTLMs int64  `yaml:"lockTtlMs" validate:"gte=0"` // Zero for 30s.
}

type BackendConfig struct {
	Kind      string       `yaml:"kind" validate:"oneof=tree sql redis"`
	Tree      string       `yaml:"tree" validate:"oneof=rbtree bstree"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
	Redis     RedisConfig  `yaml:"redis"`
	CacheSize int          `yaml:"cacheSize" validate:"gte=0"`
}

type DataConfig struct {
	Dir     string `yaml:"dir" validate:"required"`
	Workers int    `yaml:"workers" validate:"gte=1,lte=256"`
}

type MetricsConfig struct {
	Exporter   string `yaml:"exporter" validate:"oneof=none stdout prometheus"`
	IntervalMs int64  `yaml:"intervalMs" validate:"gte=0"`
	Addr       string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Config is the configuration of the bidtree application.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Backend BackendConfig `yaml:"backend"`
	Data    DataConfig    `yaml:"data"`
	Metrics MetricsConfig `yaml:"metrics"`
}

var defaultValidator = validator.New()

// NewConfig returns the defaults with the environment overrides.
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromFile parses the yaml file. The absent options fall back to
// the defaults and the environment always wins over the file.
func NewConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "read config file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "unmarshal config file")
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.ensureDefaultValue()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return err
	}
	c.normalize()
	return c.Validate()
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Encoder == "" {
		c.Log.Encoder = DefaultLogEncoder
	}

	if c.Backend.Kind == "" {
		c.Backend.Kind = DefaultBackendKind
	}
	if c.Backend.Tree == "" {
		c.Backend.Tree = DefaultTreeKind
	}
	if c.Backend.SQLite.DSN == "" {
		c.Backend.SQLite.DSN = DefaultSQLiteDSN
	}
	if c.Backend.SQLite.Table == "" {
		c.Backend.SQLite.Table = DefaultSQLiteTable
	}
	if c.Backend.SQLite.SlowThresholdMs == 0 {
		c.Backend.SQLite.SlowThresholdMs = DefaultSlowThresholdMs
	}
	if c.Backend.Redis.Addr == "" {
		c.Backend.Redis.Addr = DefaultRedisAddr
	}
	if c.Backend.Redis.Prefix == "" {
		c.Backend.Redis.Prefix = DefaultRedisPrefix
	}

	if c.Data.Dir == "" {
		c.Data.Dir = DefaultDataDir
	}
	if c.Data.Workers == 0 {
		c.Data.Workers = DefaultDataWorkers
	}

	if c.Metrics.Exporter == "" {
		c.Metrics.Exporter = DefaultMetricsExporter
	}
	if c.Metrics.IntervalMs == 0 {
		c.Metrics.IntervalMs = DefaultMetricsInterval
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}

type lookupEnv func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupEnv) error {
	strs := map[string]*string{
		EnvBackend:         &c.Backend.Kind,
		EnvTree:            &c.Backend.Tree,
		EnvDataDir:         &c.Data.Dir,
		EnvSQLiteDSN:       &c.Backend.SQLite.DSN,
		EnvRedisAddr:       &c.Backend.Redis.Addr,
		EnvRedisPassword:   &c.Backend.Redis.Password,
		EnvMetricsExporter: &c.Metrics.Exporter,
		EnvLogLevel:        &c.Log.Level,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*field = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvDataWorkers); ok && strings.TrimSpace(v) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return infra.WrapErrorStackWithMessage(err, "parse "+EnvDataWorkers)
		}
		c.Data.Workers = workers
	}
	return nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToUpper(c.Log.Level)
	c.Log.Encoder = strings.ToLower(c.Log.Encoder)
	c.Backend.Kind = strings.ToLower(c.Backend.Kind)
	c.Backend.Tree = strings.ToLower(c.Backend.Tree)
	c.Metrics.Exporter = strings.ToLower(c.Metrics.Exporter)
}

// Validate returns all the violations at once.
func (c *Config) Validate() error {
	err := defaultValidator.Struct(c)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}
	var merr error
	for _, v := range violations {
		merr = multierr.Append(merr, fmt.Errorf("config %s: %q failed on the %q rule",
			v.Namespace(), fmt.Sprint(v.Value()), ruleOf(v)))
	}
	return merr
}

func ruleOf(v validator.FieldError) string {
	if v.Param() == "" {
		return v.Tag()
	}
	return v.Tag() + "=" + v.Param()
}
