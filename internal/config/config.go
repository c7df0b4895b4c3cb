package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/forecast"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/Veraticus/demandflow/internal/sheets"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "DEMANDFLOW"

// Config is the full configuration of a pipeline run.
type Config struct {
	Input    InputConfig     `mapstructure:"input"`
	Output   blob.Config     `mapstructure:"output"`
	Export   ExportConfig    `mapstructure:"export"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Sheets   sheets.Config   `mapstructure:"sheets" validate:"-"`
	Forecast forecast.Config `mapstructure:"forecast"`
	Plots    bool            `mapstructure:"plots"`
	Report   bool            `mapstructure:"report"`
}

// InputConfig locates the six source files.
type InputConfig struct {
	Files map[string]string `mapstructure:"files"`
	Dir   string            `mapstructure:"dir" validate:"required"`
	Sheet string            `mapstructure:"sheet"`
}

// ExportConfig enables the table sinks. CSV is on by default; the others turn on when configured.
type ExportConfig struct {
	SQLite   PathConfig `mapstructure:"sqlite"`
	XLSX     PathConfig `mapstructure:"xlsx"`
	Postgres DSNConfig  `mapstructure:"postgres"`
	CSV      bool       `mapstructure:"csv"`
	Sheets   bool       `mapstructure:"sheets"`
}

// PathConfig is a file-backed sink.
type PathConfig struct {
	Path string `mapstructure:"path"`
}

// DSNConfig is a database sink reached by connection string.
type DSNConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MetricsConfig controls the Prometheus textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// SetDefaults registers every key with its default so env overrides resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	fc := forecast.DefaultConfig()
	sc := sheets.DefaultConfig()

	v.SetDefault("input.dir", ".")
	v.SetDefault("input.sheet", "")
	for _, name := range model.AllDatasets {
		v.SetDefault("input.files."+string(name), "")
	}

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.prefix", "")
	v.SetDefault("output.s3.region", "")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("output.s3.path_style", false)

	v.SetDefault("forecast.workers", fc.Workers)
	v.SetDefault("forecast.min_history", fc.MinHistory)
	v.SetDefault("forecast.horizon", fc.Horizon)
	v.SetDefault("forecast.yearly_order", fc.Model.YearlyOrder)
	v.SetDefault("forecast.seasonality_prior_scale", fc.Model.SeasonalityPriorScale)
	v.SetDefault("forecast.interval_width", fc.Model.IntervalWidth)

	v.SetDefault("export.csv", true)
	v.SetDefault("export.sqlite.path", "")
	v.SetDefault("export.xlsx.path", "")
	v.SetDefault("export.postgres.dsn", "")
	v.SetDefault("export.sheets", false)

	v.SetDefault("sheets.client_id", "")
	v.SetDefault("sheets.client_secret", "")
	v.SetDefault("sheets.refresh_token", "")
	v.SetDefault("sheets.service_account_path", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.spreadsheet_name", sc.SpreadsheetName)
	v.SetDefault("sheets.time_zone", sc.TimeZone)
	v.SetDefault("sheets.tables", sc.Tables)
	v.SetDefault("sheets.batch_size", sc.BatchSize)
	v.SetDefault("sheets.retry_attempts", sc.RetryAttempts)
	v.SetDefault("sheets.retry_delay", sc.RetryDelay)
	v.SetDefault("sheets.enable_formatting", sc.EnableFormatting)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("plots", true)
	v.SetDefault("report", false)
}

// ConfigureEnv makes DEMANDFLOW_SECTION_KEY override section.key.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes, expands and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Input.Dir = ExpandPath(cfg.Input.Dir)
	cfg.Output.Dir = ExpandPath(cfg.Output.Dir)
	cfg.Export.SQLite.Path = ExpandPath(cfg.Export.SQLite.Path)
	cfg.Export.XLSX.Path = ExpandPath(cfg.Export.XLSX.Path)
	cfg.Metrics.Textfile = ExpandPath(cfg.Metrics.Textfile)
	cfg.Sheets = LoadSheetsConfig(cfg.Sheets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and the cross-field rules.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	if c.Output.Dir == "" && c.Output.S3.Bucket == "" {
		return fmt.Errorf("%w: output.dir or output.s3.bucket is required", common.ErrInvalidConfig)
	}

	for name := range c.Input.Files {
		if !knownDataset(name) {
			return fmt.Errorf("%w: input.files.%s is not a known dataset", common.ErrInvalidConfig, name)
		}
	}

	if c.Export.Sheets {
		if err := c.Sheets.Validate(); err != nil {
			return fmt.Errorf("%w: sheets: %w", common.ErrInvalidConfig, err)
		}
	}
	return nil
}

// Sources resolves the input files against the input directory.
func (c *Config) Sources() dataset.Sources {
	overrides := make(map[model.DatasetName]string, len(c.Input.Files))
	for name, path := range c.Input.Files {
		if path != "" {
			overrides[model.DatasetName(name)] = ExpandPath(path)
		}
	}
	return dataset.SourcesFromDir(c.Input.Dir, overrides)
}

func knownDataset(name string) bool {
	for _, d := range model.AllDatasets {
		if string(d) == name {
			return true
		}
	}
	return false
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their config key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	field = strings.Replace(field, ".Model.", ".", 1)

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
