package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"mssbctl/internal/mssb"
)

// writeTestConfig 產生不等待的配置，日誌寫到暫存檔
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Serial.ReadTimeout = 50 * time.Millisecond
	cfg.Serial.SettleDelay = 0
	cfg.Test.SelftestWait = 0
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.OutputPath = filepath.Join(dir, "mssbctl.log")

	path := filepath.Join(dir, "mssb.json")
	require.NoError(t, cfg.SaveConfig(path))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// cobra 的 flag 值在多次執行間保留，每次重設
	cfgFile, verbose, portFlag, typeFlag, modeFlag = "", false, "", "", ""
	autoDetect, simulate = false, false
	require.NoError(t, testCmd.Flags().Set("report", ""))
	require.NoError(t, testCmd.Flags().Set("format", ""))
	require.NoError(t, connectCmd.Flags().Set("terminal", "0"))
	require.NoError(t, disconnectCmd.Flags().Set("terminal", "0"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_TestCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	out, err := runCLI(t, "test", "-c", cfg, "--simulate", "-t", "MSSB 8x4", "-r", reportPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Module: MSSB 8x4")
	assert.Contains(t, out, "Failed: 0")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, true, doc["pass"])
	assert.NotEmpty(t, doc["run_id"])
	assert.Equal(t, float64(3+64+1+2), doc["passed"])
}

func TestCLI_Connect(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "connect", "-c", cfg, "--simulate", "-t", "8x4", "--sim", "3", "--terminal", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "connect OK (0xa9)")

	out, err = runCLI(t, "disconnect", "-c", cfg, "--simulate", "-t", "4x1", "--sim", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "disconnect OK (0x80)")

	_, err = runCLI(t, "connect", "-c", cfg, "--simulate", "-t", "8x4", "--sim", "9", "--terminal", "1")
	assert.True(t, errors.Is(err, mssb.ErrInvalidAddress))
}

func TestCLI_Info(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "info", "-c", cfg, "--simulate", "-t", "MSSB 16x2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Hardware: MSSB 16x2")
	assert.Contains(t, out, "Software: 1.0")
	assert.Contains(t, out, "Terminal 2: -")
}

func TestCLI_ProbeSimulated(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "probe", "-c", cfg, "--simulate", "-t", "MSSB 4x1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "simulator: MSSB 4x1")

	// default 型號不會被識別
	_, err = runCLI(t, "probe", "-c", cfg, "--simulate", "-t", "default")
	assert.Error(t, err)
}

func TestCLI_ModeAndSelftest(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "mode", "text", "-c", cfg, "--simulate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "已切換到 text 模式")

	_, err = runCLI(t, "mode", "legacy", "-c", cfg, "--simulate")
	assert.ErrorIs(t, err, mssb.ErrWrongMode)

	out, err = runCLI(t, "selftest", "-c", cfg, "--simulate", "-t", "8x4")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Software: 1.0")
	assert.Contains(t, out, "Selftest (legacy):")
	assert.Contains(t, out, "Selftest (text):")
}

func TestCLI_InvalidFlags(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, "info", "-c", cfg, "--simulate", "-t", "MSSB 9x9")
	assert.Error(t, err)

	_, err = runCLI(t, "info", "-c", cfg, "--simulate", "--mode", "binary")
	assert.Error(t, err)
}

func TestCLI_ConfigGenerateAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.json")

	out, err := runCLI(t, "config", "generate", "-o", path)
	require.NoError(t, err, out)
	assert.FileExists(t, path)

	out, err = runCLI(t, "config", "validate", "-c", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "配置驗證通過")
	assert.Contains(t, out, "Module: MSSB 32x1")
}

func TestInitLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")

	l, err := initLogger(LoggingConfig{Level: "warn", Format: "json", OutputPath: logPath}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = initLogger(LoggingConfig{Level: "warn", Format: "console", OutputPath: logPath}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = initLogger(LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
