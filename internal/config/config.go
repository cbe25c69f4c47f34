// Package config loads runtime settings from an optional agroqc.yaml file and
// AGROQC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"agroqc/internal/blob"
	"agroqc/internal/codegen"
	"agroqc/internal/core"
	"agroqc/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. AGROQC_SERVER_ADDR.
const EnvPrefix = "AGROQC"

type Config struct {
	// Name labels this deployment (site or product-line variant) in logs.
	Name    string             `mapstructure:"name" validate:"required"`
	Server  ServerConfig       `mapstructure:"server"`
	Log     LogConfig          `mapstructure:"log"`
	Storage core.StorageConfig `mapstructure:"storage"`
	Blob    blob.Config        `mapstructure:"blob"`
	Export  ExportConfig       `mapstructure:"export"`
	Sensors SensorConfig       `mapstructure:"sensors"`

	// Codes maps an entity type to its code date layout (date or timestamp).
	Codes map[string]string `mapstructure:"codes"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Compress        bool          `mapstructure:"compress"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type ExportConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
}

// RangeConfig is an inclusive band. Zero on both ends disables the check.
type RangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max" validate:"gtefield=Min"`
}

type SensorConfig struct {
	TemperatureC RangeConfig `mapstructure:"temperature_c"`
	HumidityPct  RangeConfig `mapstructure:"humidity_pct"`
	PH           RangeConfig `mapstructure:"ph"`
	Brix         RangeConfig `mapstructure:"brix"`
}

// Limits converts the configured bands into domain limits.
func (s SensorConfig) Limits() domain.SensorLimits {
	return domain.SensorLimits{
		TemperatureC: domain.Range(s.TemperatureC),
		HumidityPct:  domain.Range(s.HumidityPct),
		PH:           domain.Range(s.PH),
		Brix:         domain.Range(s.Brix),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "agroqc")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.compress", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "agroqc.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "artifacts")
	for _, key := range []string{"region", "bucket", "prefix", "endpoint", "access_key_id", "secret_access_key", "session_token"} {
		v.SetDefault("blob.s3."+key, "")
	}
	v.SetDefault("blob.s3.path_style", false)

	v.SetDefault("export.queue_size", 32)

	limits := domain.DefaultSensorLimits()
	v.SetDefault("sensors.temperature_c.min", limits.TemperatureC.Min)
	v.SetDefault("sensors.temperature_c.max", limits.TemperatureC.Max)
	v.SetDefault("sensors.humidity_pct.min", limits.HumidityPct.Min)
	v.SetDefault("sensors.humidity_pct.max", limits.HumidityPct.Max)
	for _, key := range []string{"ph", "brix"} {
		v.SetDefault("sensors."+key+".min", 0.0)
		v.SetDefault("sensors."+key+".max", 0.0)
	}

	for entity, layout := range codegen.DefaultLayouts() {
		v.SetDefault("codes."+string(entity), string(layout))
	}
}

// Load reads configuration. path names an explicit config file; when empty,
// agroqc.yaml is looked up in ./configs and the working directory and is
// optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("agroqc")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the driver and layout names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("invalid config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == core.StoragePostgres && c.Storage.PostgresDSN == "" {
		return errors.New("invalid config: storage.postgres_dsn is required for the postgres driver")
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory, blob.DriverS3:
	default:
		return fmt.Errorf("invalid config: unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == blob.DriverS3 && c.Blob.S3.Bucket == "" {
		return errors.New("invalid config: blob.s3.bucket is required for the s3 driver")
	}
	_, err := c.CodeOptions()
	return err
}

// CodeOptions turns the codes section into generator options, in entity
// order.
func (c *Config) CodeOptions() ([]codegen.Option, error) {
	entities := make([]string, 0, len(c.Codes))
	for entity := range c.Codes {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	opts := make([]codegen.Option, 0, len(entities))
	for _, name := range entities {
		entity := domain.EntityType(name)
		if _, ok := codegen.Prefix(entity); !ok {
			return nil, fmt.Errorf("invalid config: codes.%s: unknown entity type", name)
		}
		layout, err := codegen.ParseLayout(c.Codes[name])
		if err != nil {
			return nil, fmt.Errorf("invalid config: codes.%s: %w", name, err)
		}
		opts = append(opts, codegen.WithLayout(entity, layout))
	}
	return opts, nil
}
