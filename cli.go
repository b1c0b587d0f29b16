package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mssbctl/internal/mssb"
	"mssbctl/internal/mssbsim"
	"mssbctl/internal/report"
	"mssbctl/internal/serialport"
)

var (
	cfgFile   string
	verbose   bool
	logger    *zap.Logger
	appConfig *Config

	portFlag   string
	typeFlag   string
	modeFlag   string
	autoDetect bool
	simulate   bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "mssbctl",
	Short: "MSSB 序列切換矩陣控制工具",
	Long: `透過序列埠控制 MSSB SIM 切換矩陣。
支援 legacy 單位元組與 text 行模式、完整位址測試與自動偵測模組型號。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 載入配置 (除了 version 和 help 命令)，失敗時使用預設值
		appConfig = DefaultConfig()
		var cfgErr error
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "generate" {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				cfgErr = err
			} else {
				appConfig = cfg
			}
		}

		var err error
		logger, err = initLogger(appConfig.Logging, verbose)
		if err != nil {
			return fmt.Errorf("初始化日誌失敗: %w", err)
		}
		if cfgErr != nil && cfgFile != "" {
			logger.Warn("載入配置檔失敗，使用預設配置", zap.Error(cfgErr))
		}

		return applyFlags()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyFlags CLI 參數覆蓋配置
func applyFlags() error {
	if portFlag != "" {
		appConfig.Serial.Port = portFlag
	}
	if typeFlag != "" {
		if _, err := mssb.ParseVariant(typeFlag); err != nil {
			return err
		}
		appConfig.Module.Type = typeFlag
	}
	if modeFlag != "" {
		if _, err := mssb.ParseMode(modeFlag); err != nil {
			return err
		}
		appConfig.Module.Mode = modeFlag
	}
	return nil
}

// testCmd 完整測試
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "執行完整位址測試",
	Long:  "查詢版本資訊、走訪所有 SIM/終端位址、執行自我測試並驗證模式切換。",
	RunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("report"); path != "" {
			appConfig.Report.Path = path
		}
		if format, _ := cmd.Flags().GetString("format"); format != "" {
			appConfig.Report.Format = format
		}

		ctx, stop := signalContext()
		defer stop()

		ctrl, err := openController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		seq := mssb.NewSequencer(ctrl,
			mssb.WithModeSwitch(appConfig.Test.ModeSwitch),
			mssb.WithSequencerLogger(logger),
		)
		result, runErr := seq.Run(ctx)

		doc := report.FromTestReport(result, Version, runErr)
		if err := writeReport(doc); err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), result)
		if runErr != nil {
			return fmt.Errorf("測試中止: %w", runErr)
		}
		if result.Failed > 0 {
			return fmt.Errorf("測試失敗: %d 個步驟未通過", result.Failed)
		}
		return nil
	},
}

// selftestCmd 自我測試
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "執行模組自我測試",
	Long:  "讀取軟體版本，依序在 legacy 與 text 模式執行自我測試，最後切回 legacy 模式。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ctrl, err := openController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		out := cmd.OutOrStdout()
		sw, err := ctrl.SoftwareVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Software: %s\n", sw)

		if err := printSelftest(out, ctrl); err != nil {
			return err
		}

		entered, err := ctrl.SwitchMode(mssb.ModeText)
		if err != nil {
			return err
		}
		if !entered {
			return errors.New("模組未確認進入 text 模式")
		}
		if err := printSelftest(out, ctrl); err != nil {
			return err
		}

		left, err := ctrl.SwitchMode(mssb.ModeLegacy)
		if err != nil {
			return err
		}
		if !left {
			return errors.New("模組未確認離開 text 模式")
		}
		return nil
	},
}

func printSelftest(w io.Writer, ctrl *mssb.Controller) error {
	lines, err := ctrl.Selftest()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Selftest (%s):\n", ctrl.Mode())
	for _, line := range lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}

// probeCmd 自動偵測
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "偵測連接的 MSSB 模組",
	Long:  "依序開啟列舉到的序列埠並查詢硬體型號，回報第一個符合的模組。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ctrl, err := detectController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ctrl.Name(), ctrl.Variant())
		return nil
	},
}

// connectCmd 連接 SIM
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "將 SIM 連接到終端",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoute(cmd, mssb.Connect)
	},
}

// disconnectCmd 斷開 SIM
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "斷開 SIM 與終端",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoute(cmd, mssb.Disconnect)
	},
}

func runRoute(cmd *cobra.Command, build func(mssb.Address) mssb.Command) error {
	sim, _ := cmd.Flags().GetInt("sim")
	terminal, _ := cmd.Flags().GetInt("terminal")

	ctx, stop := signalContext()
	defer stop()

	ctrl, err := openController(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	res, err := ctrl.Execute(build(mssb.Address{Sim: sim, Terminal: terminal}))
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("%s 失敗 (送出 %s, 回應 %q): %w", res.Op, res.Wire, res.Response, res.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s OK (%s)\n", res.Op, res.Wire)
	return nil
}

// infoCmd 模組資訊
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "顯示模組資訊",
	Long:  "查詢硬體型號、軟體版本與目前的連接狀態。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ctrl, err := openController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		hw, err := ctrl.HardwareVersion()
		if err != nil {
			return err
		}
		sw, err := ctrl.SoftwareVersion()
		if err != nil {
			return err
		}
		conns, err := ctrl.Connections()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Port: %s\n", ctrl.Name())
		fmt.Fprintf(out, "Hardware: %s\n", hw)
		fmt.Fprintf(out, "Software: %s\n", sw)
		for _, line := range conns {
			fmt.Fprintf(out, "  %s\n", line)
		}
		return nil
	},
}

// modeCmd 切換線路模式
var modeCmd = &cobra.Command{
	Use:       "mode [legacy|text]",
	Short:     "切換線路模式",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"legacy", "text"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := mssb.ParseMode(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		ctrl, err := openController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ok, err := ctrl.SwitchMode(target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("模組未確認切換到 %s 模式", target)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已切換到 %s 模式\n", target)
		return nil
	},
}

// portsCmd 列出序列埠
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "列出可用序列埠",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := ListPorts(appConfig.Probe.Patterns)
		if err != nil {
			return fmt.Errorf("列舉序列埠失敗: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "找不到序列埠")
			return nil
		}
		fmt.Fprintf(out, "可用序列埠 (%d 個):\n", len(ports))
		for _, p := range ports {
			fmt.Fprintf(out, "  - %s\n", portLabel(p))
		}
		return nil
	},
}

// configCmd 配置命令組
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置管理命令",
	Long:  "管理配置檔。",
}

// configValidateCmd 驗證配置
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證配置檔",
	Long:  "驗證指定的配置檔是否有效。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("配置驗證失敗: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "配置驗證通過")
		fmt.Fprintf(out, "  Port: %s (%s)\n", cfg.Serial.Port, cfg.Serial.Driver)
		fmt.Fprintf(out, "  Module: %s\n", cfg.Variant())
		fmt.Fprintf(out, "  Mode: %s\n", cfg.Mode())
		fmt.Fprintf(out, "  Probe patterns: %s\n", strings.Join(cfg.Probe.Patterns, ", "))
		return nil
	},
}

// configGenerateCmd 生成配置
var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成範例配置",
	Long:  "生成範例配置檔。",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "mssb.json"
		}

		if err := DefaultConfig().SaveConfig(output); err != nil {
			return fmt.Errorf("生成配置失敗: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "範例配置已生成: %s\n", output)
		return nil
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "顯示版本資訊",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mssbctl version %s\n", Version)
		fmt.Printf("  Build: %s\n", BuildTime)
		fmt.Printf("  Commit: %s\n", GitCommit)
	},
}

func init() {
	// 全域 flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "配置檔路徑")
	pf.BoolVarP(&verbose, "verbose", "v", false, "輸出除錯日誌")
	pf.StringVarP(&portFlag, "port", "p", "", "序列埠")
	pf.StringVarP(&typeFlag, "type", "t", "", "模組型號，例如 \"MSSB 8x4\"")
	pf.StringVar(&modeFlag, "mode", "", "目前的線路模式 (legacy|text)")
	pf.BoolVar(&autoDetect, "auto", false, "自動偵測模組所在的序列埠")
	pf.BoolVar(&simulate, "simulate", false, "使用內建模擬模組")

	// test 命令 flags
	testCmd.Flags().StringP("report", "r", "", "報告輸出路徑 (- 表示標準輸出)")
	testCmd.Flags().StringP("format", "f", "", "報告格式 (json|yaml)")

	// connect/disconnect 命令 flags
	for _, c := range []*cobra.Command{connectCmd, disconnectCmd} {
		c.Flags().IntP("sim", "s", 0, "SIM 編號 (從 1 開始)")
		c.Flags().Int("terminal", 0, "終端編號 (從 1 開始，單終端型號可省略)")
		_ = c.MarkFlagRequired("sim")
	}

	// config 命令 flags
	configGenerateCmd.Flags().StringP("output", "o", "mssb.json", "輸出檔案路徑")

	// 組裝命令樹
	configCmd.AddCommand(configValidateCmd, configGenerateCmd)

	rootCmd.AddCommand(
		testCmd,
		selftestCmd,
		probeCmd,
		connectCmd,
		disconnectCmd,
		infoCmd,
		modeCmd,
		portsCmd,
		configCmd,
		versionCmd,
	)
}

func initLogger(cfg LoggingConfig, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	zcfg.Level = level

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}
	zcfg.OutputPaths = []string{output}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openController 依 CLI 參數開啟模擬器、自動偵測或指定的序列埠
func openController(ctx context.Context) (*mssb.Controller, error) {
	if autoDetect {
		return detectController(ctx)
	}

	variant := appConfig.Variant()
	opts := appConfig.ControllerOptions(logger)

	if simulate {
		opts = append(opts, mssb.WithName("simulator"))
		return mssb.NewController(newSimDevice(variant), variant, opts...), nil
	}

	port, err := serialport.Open(appConfig.PortConfig(appConfig.Serial.Port, variant))
	if err != nil {
		return nil, err
	}
	opts = append(opts, mssb.WithName(appConfig.Serial.Port))
	return mssb.NewController(port, variant, opts...), nil
}

// detectController 偵測模組；型號的 parity 與偵測設定不同時以正確參數重新開啟
func detectController(ctx context.Context) (*mssb.Controller, error) {
	candidates, err := probeCandidates()
	if err != nil {
		return nil, err
	}

	opts := appConfig.ControllerOptions(logger)
	match, ok := mssb.Probe(ctx, candidates, logger, opts...)
	if !ok {
		return nil, fmt.Errorf("找不到 MSSB 模組 (已檢查 %d 個序列埠)", len(candidates))
	}

	if simulate || match.Variant.Profile().Parity == mssb.VariantDefault.Profile().Parity {
		return match.Controller, nil
	}

	if err := match.Controller.Close(); err != nil {
		logger.Warn("關閉偵測用序列埠失敗", zap.String("port", match.Name), zap.Error(err))
	}
	logger.Info("以模組參數重新開啟序列埠",
		zap.String("port", match.Name),
		zap.String("parity", string(match.Variant.Profile().Parity)),
	)
	port, err := serialport.Open(appConfig.PortConfig(match.Name, match.Variant))
	if err != nil {
		return nil, err
	}
	opts = append(opts, mssb.WithName(match.Name), mssb.WithMode(mssb.ModeLegacy))
	return mssb.NewController(port, match.Variant, opts...), nil
}

func probeCandidates() ([]mssb.Candidate, error) {
	if simulate {
		variant := appConfig.Variant()
		return []mssb.Candidate{{
			Name: "simulator",
			Open: func() (io.ReadWriteCloser, error) { return newSimDevice(variant), nil },
		}}, nil
	}

	ports, err := ListPorts(appConfig.Probe.Patterns)
	if err != nil {
		return nil, fmt.Errorf("列舉序列埠失敗: %w", err)
	}

	candidates := make([]mssb.Candidate, 0, len(ports))
	for _, p := range ports {
		name := p.Name
		candidates = append(candidates, mssb.Candidate{
			Name: name,
			Open: func() (io.ReadWriteCloser, error) {
				return serialport.Open(appConfig.PortConfig(name, mssb.VariantDefault))
			},
		})
	}
	return candidates, nil
}

func newSimDevice(v mssb.Variant) *mssbsim.Device {
	p := v.Profile()
	opts := []mssbsim.DeviceOption{mssbsim.WithLogger(logger.Named("simulator"))}
	if appConfig.Mode() == mssb.ModeText {
		opts = append(opts, mssbsim.WithTextMode())
	}
	return mssbsim.NewDevice(p.HardwareID, p.SimCount, p.TerminalsPerSim, opts...)
}

func writeReport(doc *report.Document) error {
	switch appConfig.Report.Path {
	case "":
		return nil
	case "-":
		return report.Write(os.Stdout, appConfig.Report.Format, doc)
	default:
		if err := report.WriteFile(appConfig.Report.Path, appConfig.Report.Format, doc); err != nil {
			return err
		}
		logger.Info("報告已寫入", zap.String("path", appConfig.Report.Path))
		return nil
	}
}

func printSummary(w io.Writer, r *mssb.TestReport) {
	fmt.Fprintf(w, "Module: %s (%s)\n", r.Variant, r.Port)
	fmt.Fprintf(w, "Hardware: %s\n", r.HardwareVersion)
	fmt.Fprintf(w, "Software: %s\n", r.SoftwareVersion)
	fmt.Fprintf(w, "Passed: %d  Failed: %d\n", r.Passed, r.Failed)
	for _, f := range r.Failures() {
		fmt.Fprintf(w, "  FAIL %s %s sim=%d terminal=%d sent=%s response=%q\n",
			f.Stage, f.Op, f.Addr.Sim, f.Addr.Terminal, f.Sent, f.Response)
	}
}

// Execute 執行 CLI
func Execute() error {
	return rootCmd.Execute()
}
