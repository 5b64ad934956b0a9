package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/logging"
	"github.com/angas/gasquota/quota"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
	// If not assigned, the server will serve embedded files.
	// If assigned, the server will serve files from the directory,
	// that must contain a "static" and "templates" directory.
	// This is useful for development.
	WwwDir *string `mapstructure:"www_dir"`
	// Secret used to sign the flash message cookie, a random one is generated if empty
	SessionSecret string `mapstructure:"session_secret"`
	// Allowed origins for the JSON API, default: none (same origin only)
	CorsOrigins []string `mapstructure:"cors_origins"`
}

type AppConfigDatabase struct {
	Path string
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigTariff struct {
	MJPerM3       *float64 `mapstructure:"mj_per_m3"`       // Energy content in MJ/m³, default: 33.91
	PriceDiscount *float64 `mapstructure:"price_discount"`  // Price per MJ within the quota, default: 2.256
	PriceMarket   *float64 `mapstructure:"price_market"`    // Price per MJ above the quota, default: 17.324
	AnnualQuotaMJ *float64 `mapstructure:"annual_quota_mj"` // Discounted MJ per quota year, default: 63645
	// First month (1-12) of the quota year, default: 1. Use 10 for a gas year.
	QuotaYearStartMonth *int `mapstructure:"quota_year_start_month"`
	// First day of month of the quota year, default: 1
	QuotaYearStartDay *int `mapstructure:"quota_year_start_day"`
}

func (t AppConfigTariff) GetMJPerM3() float64 {
	return floatOrDefault(t.MJPerM3, calc.DefaultMJPerM3)
}

func (t AppConfigTariff) GetPriceDiscount() float64 {
	return floatOrDefault(t.PriceDiscount, calc.DefaultPriceDiscount)
}

func (t AppConfigTariff) GetPriceMarket() float64 {
	return floatOrDefault(t.PriceMarket, calc.DefaultPriceMarket)
}

func (t AppConfigTariff) GetAnnualQuotaMJ() float64 {
	return floatOrDefault(t.AnnualQuotaMJ, calc.DefaultAnnualQuotaMJ)
}

func (t AppConfigTariff) Tariff() calc.Tariff {
	return calc.Tariff{
		MJPerM3:       t.GetMJPerM3(),
		PriceDiscount: t.GetPriceDiscount(),
		PriceMarket:   t.GetPriceMarket(),
		AnnualQuotaMJ: t.GetAnnualQuotaMJ(),
	}
}

func (t AppConfigTariff) Anchor() quota.Anchor {
	a := quota.CalendarYear()
	if t.QuotaYearStartMonth != nil {
		a.Month = time.Month(*t.QuotaYearStartMonth)
	}
	if t.QuotaYearStartDay != nil {
		a.Day = *t.QuotaYearStartDay
	}
	return a
}

type AppConfigMqtt struct {
	Enabled  bool
	Host     string
	Port     int16
	Username string
	Password string
	// Topic where the meter publishes {"date":"2024-01-31","m3":1234.5}, default: "gasmeter/reading"
	Topic *string
	// Client id towards the broker, default: "gasquota"
	ClientId *string `mapstructure:"client_id"`
}

func (m AppConfigMqtt) GetTopic() string {
	if m.Topic == nil {
		return "gasmeter/reading"
	}
	return *m.Topic
}

func (m AppConfigMqtt) GetClientId() string {
	if m.ClientId == nil {
		return "gasquota"
	}
	return *m.ClientId
}

type AppConfigMaintenance struct {
	// Cron spec for backup and purge, default: "30 2 * * *"
	RunAt *string `mapstructure:"run_at"`
}

func (m AppConfigMaintenance) GetRunAt() string {
	if m.RunAt == nil {
		return "30 2 * * *"
	}
	return *m.RunAt
}

type AppConfigGui struct {
	// Timezone for displaying times in the GUI, default: UTC
	Timezone *string `mapstructure:"timezone"`
}

func (g AppConfigGui) GetTimezone() string {
	if g.Timezone == nil {
		return "UTC"
	}
	return *g.Timezone
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api         AppConfigApi
	Database    AppConfigDatabase
	Tariff      AppConfigTariff      `mapstructure:"tariff"`
	Mqtt        AppConfigMqtt        `mapstructure:"mqtt"`
	Maintenance AppConfigMaintenance `mapstructure:"maintenance"`
	Gui         AppConfigGui         `mapstructure:"gui"`
	Logging     AppConfigLogging     `mapstructure:"logging"`
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if err := c.Tariff.Anchor().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tariff.Tariff().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Mqtt.Enabled && c.Mqtt.Host == "" {
		errs = append(errs, errors.New("mqtt.host is required when mqtt is enabled"))
	}
	return errors.Join(errs...)
}

func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Lets AutomaticEnv see keys that are missing in the file
	v.SetDefault("database.path", "gasquota.db")
	v.SetDefault("api.port", 8080)

	var c AppConfig

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &c, nil
}

func floatOrDefault(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}
