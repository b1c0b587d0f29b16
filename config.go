package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mssbctl/internal/mssb"
	"mssbctl/internal/serialport"
)

//go:embed config_schema.json
var configSchemaJSON string

// Config 全域配置
type Config struct {
	Serial  SerialConfig  `json:"serial" mapstructure:"serial"`
	Module  ModuleConfig  `json:"module" mapstructure:"module"`
	Probe   ProbeConfig   `json:"probe" mapstructure:"probe"`
	Test    TestConfig    `json:"test" mapstructure:"test"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Report  ReportConfig  `json:"report" mapstructure:"report"`
}

// SerialConfig 序列埠配置
type SerialConfig struct {
	Port           string        `json:"port" mapstructure:"port"`
	Driver         string        `json:"driver" mapstructure:"driver"`
	ReadTimeout    time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	SettleDelay    time.Duration `json:"settle_delay" mapstructure:"settle_delay"`
	LineTerminator string        `json:"line_terminator" mapstructure:"line_terminator"`
}

// ModuleConfig 模組配置
type ModuleConfig struct {
	Type string `json:"type" mapstructure:"type"`
	Mode string `json:"mode" mapstructure:"mode"`
}

// ProbeConfig 自動偵測配置
type ProbeConfig struct {
	Patterns []string `json:"patterns" mapstructure:"patterns"`
}

// TestConfig 測試配置
type TestConfig struct {
	SelftestWait time.Duration `json:"selftest_wait" mapstructure:"selftest_wait"`
	ModeSwitch   bool          `json:"mode_switch" mapstructure:"mode_switch"`
}

// LoggingConfig 日誌配置
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	OutputPath string `json:"output_path" mapstructure:"output_path"`
}

// ReportConfig 報告配置
type ReportConfig struct {
	Path   string `json:"path" mapstructure:"path"`
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:           defaultPort(),
			Driver:         serialport.DriverGoburrow,
			ReadTimeout:    mssb.DefaultReadTimeout,
			SettleDelay:    mssb.DefaultSettleDelay,
			LineTerminator: mssb.DefaultLineTerminator,
		},
		Module: ModuleConfig{
			Type: "MSSB 32x1",
			Mode: mssb.ModeLegacy.String(),
		},
		Probe: ProbeConfig{
			Patterns: defaultProbePatterns(),
		},
		Test: TestConfig{
			SelftestWait: mssb.DefaultSelftestWait,
			ModeSwitch:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
		Report: ReportConfig{
			Format: "yaml",
		},
	}
}

// LoadConfig 載入配置檔
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mssb")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mssbctl/")
		v.AddConfigPath("$HOME/.mssbctl/")
	}

	// 環境變數覆蓋，例如 MSSB_SERIAL_PORT
	v.SetEnvPrefix("MSSB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		// 配置檔不存在，使用預設值
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}

// setDefaults 讓環境變數可以覆蓋未出現在配置檔中的鍵
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("serial.port", cfg.Serial.Port)
	v.SetDefault("serial.driver", cfg.Serial.Driver)
	v.SetDefault("serial.read_timeout", cfg.Serial.ReadTimeout)
	v.SetDefault("serial.settle_delay", cfg.Serial.SettleDelay)
	v.SetDefault("serial.line_terminator", cfg.Serial.LineTerminator)
	v.SetDefault("module.type", cfg.Module.Type)
	v.SetDefault("module.mode", cfg.Module.Mode)
	v.SetDefault("probe.patterns", cfg.Probe.Patterns)
	v.SetDefault("test.selftest_wait", cfg.Test.SelftestWait)
	v.SetDefault("test.mode_switch", cfg.Test.ModeSwitch)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output_path", cfg.Logging.OutputPath)
	v.SetDefault("report.path", cfg.Report.Path)
	v.SetDefault("report.format", cfg.Report.Format)
}

var loadConfigSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config-schema.json", strings.NewReader(configSchemaJSON)); err != nil {
		return nil, fmt.Errorf("載入配置 schema 失敗: %w", err)
	}
	return compiler.Compile("config-schema.json")
})

// Validate 驗證配置
func (c *Config) Validate() error {
	schema, err := loadConfigSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("解析配置失敗: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema 驗證失敗: %w", err)
	}

	if _, err := mssb.ParseVariant(c.Module.Type); err != nil {
		return err
	}
	if _, err := mssb.ParseMode(c.Module.Mode); err != nil {
		return err
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("無效的日誌等級: %s", c.Logging.Level)
	}

	return nil
}

// Variant 配置中的模組型號
func (c *Config) Variant() mssb.Variant {
	v, _ := mssb.ParseVariant(c.Module.Type)
	return v
}

// Mode 配置中的線路模式
func (c *Config) Mode() mssb.Mode {
	m, _ := mssb.ParseMode(c.Module.Mode)
	return m
}

// PortConfig 以型號的 parity 產生序列埠參數
func (c *Config) PortConfig(device string, v mssb.Variant) serialport.Config {
	return serialport.Config{
		Device:      device,
		Driver:      c.Serial.Driver,
		BaudRate:    mssb.BaudRate,
		DataBits:    mssb.DataBits,
		StopBits:    mssb.StopBits,
		Parity:      string(v.Profile().Parity),
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// ControllerOptions 由配置產生控制器選項
func (c *Config) ControllerOptions(logger *zap.Logger) []mssb.Option {
	return []mssb.Option{
		mssb.WithLogger(logger),
		mssb.WithMode(c.Mode()),
		mssb.WithReadTimeout(c.Serial.ReadTimeout),
		mssb.WithSettleDelay(c.Serial.SettleDelay),
		mssb.WithSelftestWait(c.Test.SelftestWait),
		mssb.WithLineTerminator(c.Serial.LineTerminator),
	}
}

// SaveConfig 儲存配置到檔案
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("寫入配置檔失敗: %w", err)
	}

	return nil
}
