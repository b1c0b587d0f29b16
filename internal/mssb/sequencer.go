package mssb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AddressSpace 依序列出型號的所有有效位址，terminal 變化最快
func AddressSpace(v Variant) []Address {
	p := ProfileOf(v)
	addrs := make([]Address, 0, p.Pairs())
	for sim := 1; sim <= p.SimCount; sim++ {
		if !p.MultiTerminal() {
			addrs = append(addrs, Address{Sim: sim})
			continue
		}
		for terminal := 1; terminal <= p.TerminalsPerSim; terminal++ {
			addrs = append(addrs, Address{Sim: sim, Terminal: terminal})
		}
	}
	return addrs
}

// Plan 位址掃描的指令序列：單終端型號只連線，多終端型號每組先連線再斷線
func Plan(v Variant) []Command {
	p := ProfileOf(v)
	var cmds []Command
	for _, addr := range AddressSpace(v) {
		cmds = append(cmds, Connect(addr))
		if p.MultiTerminal() {
			cmds = append(cmds, Disconnect(addr))
		}
	}
	return cmds
}

// StepResult 單一步驟結果
type StepResult struct {
	Stage    string
	Op       Op
	Addr     Address
	Mode     Mode
	Sent     string
	Response string
	OK       bool
	Err      error
	Elapsed  time.Duration
}

// TestReport 完整測試的結果
type TestReport struct {
	Port            string
	Variant         Variant
	StartedAt       time.Time
	FinishedAt      time.Time
	Connections     []string
	SoftwareVersion string
	HardwareVersion string
	Steps           []StepResult
	Passed          int
	Failed          int
	TextModeEntered bool
	TextModeLeft    bool
	Stats           StatsSnapshot
}

// Failures 失敗的步驟
func (r *TestReport) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}

func (r *TestReport) add(stage string, mode Mode, res Result) {
	r.Steps = append(r.Steps, StepResult{
		Stage:    stage,
		Op:       res.Op,
		Addr:     res.Addr,
		Mode:     mode,
		Sent:     res.Wire.String(),
		Response: res.Response,
		OK:       res.OK,
		Err:      res.Err,
		Elapsed:  res.Elapsed,
	})
	if res.OK {
		r.Passed++
	} else {
		r.Failed++
	}
}

// 測試階段名稱
const (
	StageInfo     = "info"
	StageAddress  = "address"
	StageSelftest = "selftest"
	StageTextMode = "text_mode"
)

// Sequencer 對單一模組執行完整的位址空間測試
type Sequencer struct {
	ctrl       *Controller
	modeSwitch bool
	logger     *zap.Logger
}

// SequencerOption Sequencer 配置選項
type SequencerOption func(*Sequencer)

// WithModeSwitch 是否在位址掃描後測試 text 模式 (預設開啟)
func WithModeSwitch(enabled bool) SequencerOption {
	return func(s *Sequencer) {
		s.modeSwitch = enabled
	}
}

// WithSequencerLogger 設定日誌
func WithSequencerLogger(logger *zap.Logger) SequencerOption {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// NewSequencer 建立測試序列器，使用控制器目前的型號
func NewSequencer(ctrl *Controller, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		ctrl:       ctrl,
		modeSwitch: true,
		logger:     ctrl.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 執行完整測試
//
// 單一指令驗證失敗只記錄並繼續，不重試。傳輸錯誤會中止測試，
// 並回傳已完成部分的報告。ctx 只在指令之間檢查。
func (s *Sequencer) Run(ctx context.Context) (*TestReport, error) {
	c := s.ctrl
	report := &TestReport{
		Port:      c.Name(),
		Variant:   c.Variant(),
		StartedAt: time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
		report.Stats = c.stats.Snapshot()
	}()

	if c.Mode() != ModeLegacy {
		return report, fmt.Errorf("%w: 完整測試需從 legacy 模式開始 (目前: %s)", ErrWrongMode, c.Mode())
	}

	s.logger.Info("開始完整測試",
		zap.Stringer("variant", report.Variant),
		zap.Int("commands", len(Plan(report.Variant))),
	)

	if err := s.runInfo(ctx, report); err != nil {
		return report, err
	}
	if err := s.runAddressSpace(ctx, report); err != nil {
		return report, err
	}
	if err := s.runStep(ctx, report, StageSelftest, Selftest); err != nil {
		return report, err
	}
	if s.modeSwitch {
		if err := s.runTextMode(ctx, report); err != nil {
			return report, err
		}
	}

	s.logger.Info("完整測試結束",
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Sequencer) runInfo(ctx context.Context, report *TestReport) error {
	res, err := s.exec(ctx, report, StageInfo, QueryConnections)
	if err != nil {
		return err
	}
	report.Connections = splitLines(res.Response)

	res, err = s.exec(ctx, report, StageInfo, QuerySoftwareVersion)
	if err != nil {
		return err
	}
	report.SoftwareVersion = strings.TrimPrefix(res.Response, SoftwarePrefix)
	s.logger.Info("Software: " + report.SoftwareVersion)

	res, err = s.exec(ctx, report, StageInfo, QueryHardwareVersion)
	if err != nil {
		return err
	}
	report.HardwareVersion = strings.TrimPrefix(res.Response, HardwarePrefix)
	s.logger.Info("Hardware: " + report.HardwareVersion)
	return nil
}

func (s *Sequencer) runAddressSpace(ctx context.Context, report *TestReport) error {
	for _, cmd := range Plan(report.Variant) {
		if err := s.runStep(ctx, report, StageAddress, cmd); err != nil {
			return err
		}
	}
	return nil
}

// runTextMode 切換到 text 模式重跑自我測試，再切回 legacy
func (s *Sequencer) runTextMode(ctx context.Context, report *TestReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entered, err := s.ctrl.SwitchMode(ModeText)
	if err != nil {
		return err
	}
	report.TextModeEntered = entered
	if !entered {
		s.logger.Warn("無法進入 text 模式，略過 text 模式測試")
		report.Failed++
		return nil
	}

	if err := s.runStep(ctx, report, StageTextMode, Selftest); err != nil {
		return err
	}
	if err := s.runStep(ctx, report, StageTextMode, QuerySoftwareVersion); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	left, err := s.ctrl.SwitchMode(ModeLegacy)
	if err != nil {
		return err
	}
	report.TextModeLeft = left
	if !left {
		report.Failed++
	}
	return nil
}

func (s *Sequencer) runStep(ctx context.Context, report *TestReport, stage string, cmd Command) error {
	_, err := s.exec(ctx, report, stage, cmd)
	return err
}

func (s *Sequencer) exec(ctx context.Context, report *TestReport, stage string, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	mode := s.ctrl.Mode()
	res, err := s.ctrl.Execute(cmd)
	if err != nil {
		return res, err
	}
	report.add(stage, mode, res)
	return res, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
