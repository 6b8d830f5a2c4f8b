// Package config loads service settings from defaults, an optional YAML
// file, a .env file and INVOICEGEN_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/lvillar/invoicegen/payment"
)

// EnvPrefix prefixes environment overrides, e.g. INVOICEGEN_SERVER_ADDR.
const EnvPrefix = "INVOICEGEN"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Template TemplateConfig `mapstructure:"template"`
	QR       QRConfig       `mapstructure:"qr"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Payee    payment.Payee  `mapstructure:"payee"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       string        `mapstructure:"rate_limit"` // ulule/limiter format, e.g. "1000-S"
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// TemplateConfig locates the template and the scratch area.
type TemplateConfig struct {
	Path          string  `mapstructure:"path"`
	OutputDir     string  `mapstructure:"output_dir"`
	Marker        string  `mapstructure:"marker"`
	WidthMM       float64 `mapstructure:"width_mm"`
	KeepArtifacts bool    `mapstructure:"keep_artifacts"`
	KeepText      bool    `mapstructure:"keep_text"`
}

// QRConfig configures rendering.
type QRConfig struct {
	ModuleSize      int     `mapstructure:"module_size"`
	QuietZone       int     `mapstructure:"quiet_zone"`
	ErrorCorrection string  `mapstructure:"error_correction"`
	PaddingMinPx    int     `mapstructure:"padding_min_px"`
	PaddingRatio    float64 `mapstructure:"padding_ratio"`
}

// ConvertConfig configures the PDF converter.
type ConvertConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PaymentConfig controls payment detail resolution.
type PaymentConfig struct {
	Strict bool `mapstructure:"strict"`
}

// ArchiveConfig enables copying generated files to S3.
type ArchiveConfig struct {
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":12345",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 5 * time.Second,
			RateLimit:       "1000-S",
			CORSOrigins:     []string{"*"},
		},
		Template: TemplateConfig{
			Path:      "./Templates/LeadsForce_v0.docx",
			OutputDir: "./output",
			Marker:    "{{QR_CODE}}",
			WidthMM:   40,
		},
		QR: QRConfig{
			ModuleSize:      10,
			QuietZone:       4,
			ErrorCorrection: "M",
			PaddingMinPx:    32,
			PaddingRatio:    0.1,
		},
		Convert: ConvertConfig{
			Binary:  "soffice",
			Timeout: 2 * time.Minute,
		},
		Payee: payment.Payee{
			Name:        "ИП Абакумова Наталья Александровна",
			PersonalAcc: "40802810200006322048",
			BankName:    "АО «Тинькофф Банк»",
			BIC:         "044525974",
			CorrespAcc:  "30101810145250000974",
			PayeeINN:    "720206359451",
			Purpose:     "Оплата по счету №" + payment.InvoiceIDToken,
		},
		Archive: ArchiveConfig{
			S3Region: "eu-central-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (when present), then path (when non-empty), then the
// environment, over Default.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	for key, value := range map[string]any{
		"server.addr":             d.Server.Addr,
		"server.read_timeout":     d.Server.ReadTimeout,
		"server.write_timeout":    d.Server.WriteTimeout,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,
		"server.rate_limit":       d.Server.RateLimit,
		"server.cors_origins":     d.Server.CORSOrigins,

		"template.path":           d.Template.Path,
		"template.output_dir":     d.Template.OutputDir,
		"template.marker":         d.Template.Marker,
		"template.width_mm":       d.Template.WidthMM,
		"template.keep_artifacts": d.Template.KeepArtifacts,
		"template.keep_text":      d.Template.KeepText,

		"qr.module_size":      d.QR.ModuleSize,
		"qr.quiet_zone":       d.QR.QuietZone,
		"qr.error_correction": d.QR.ErrorCorrection,
		"qr.padding_min_px":   d.QR.PaddingMinPx,
		"qr.padding_ratio":    d.QR.PaddingRatio,

		"convert.binary":  d.Convert.Binary,
		"convert.timeout": d.Convert.Timeout,

		"payee.name":          d.Payee.Name,
		"payee.personal_acc":  d.Payee.PersonalAcc,
		"payee.bank_name":     d.Payee.BankName,
		"payee.bic":           d.Payee.BIC,
		"payee.corresp_acc":   d.Payee.CorrespAcc,
		"payee.inn":           d.Payee.PayeeINN,
		"payee.kpp":           d.Payee.PayeeKPP,
		"payee.payer_address": d.Payee.PayerAddress,
		"payee.purpose":       d.Payee.Purpose,

		"payment.strict": d.Payment.Strict,

		"archive.s3_bucket": d.Archive.S3Bucket,
		"archive.s3_region": d.Archive.S3Region,
		"archive.s3_prefix": d.Archive.S3Prefix,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,
	} {
		v.SetDefault(key, value)
	}
}

// Logger builds the root logger writing to w.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
