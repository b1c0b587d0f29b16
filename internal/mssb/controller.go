package mssb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxDumpLines 多行回應的上限，避免裝置持續輸出時無法結束
const maxDumpLines = 256

// Controller 單一 MSSB 模組的控制器，獨佔一個序列通道
type Controller struct {
	mu sync.Mutex

	name    string
	port    io.ReadWriteCloser
	variant Variant
	mode    Mode
	closed  bool

	readTimeout    time.Duration
	settleDelay    time.Duration
	selftestWait   time.Duration
	lineTerminator string

	stats  *Stats
	logger *zap.Logger
}

// Option 控制器配置選項
type Option func(*Controller)

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithName 設定通道名稱 (用於日誌)
func WithName(name string) Option {
	return func(c *Controller) {
		c.name = name
	}
}

// WithMode 設定裝置目前的線路模式
func WithMode(mode Mode) Option {
	return func(c *Controller) {
		c.mode = mode
	}
}

// WithReadTimeout 設定單次讀取的期限
func WithReadTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.readTimeout = d
	}
}

// WithSettleDelay 設定寫入後開始讀取前的等待時間
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settleDelay = d
	}
}

// WithSelftestWait 設定自我測試後的等待時間
func WithSelftestWait(d time.Duration) Option {
	return func(c *Controller) {
		c.selftestWait = d
	}
}

// WithLineTerminator 設定 text 模式的行結尾
func WithLineTerminator(term string) Option {
	return func(c *Controller) {
		c.lineTerminator = term
	}
}

// NewController 以已開啟的通道建立控制器，Close 時釋放通道
func NewController(port io.ReadWriteCloser, variant Variant, opts ...Option) *Controller {
	c := &Controller{
		port:           port,
		variant:        variant,
		mode:           ModeLegacy,
		readTimeout:    DefaultReadTimeout,
		settleDelay:    DefaultSettleDelay,
		selftestWait:   DefaultSelftestWait,
		lineTerminator: DefaultLineTerminator,
		stats:          newStats(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.name != "" {
		c.logger = c.logger.With(zap.String("port", c.name))
	}

	return c
}

// Result 單一指令的結果。Err 只包含非致命錯誤 (解碼或回聲不符)
type Result struct {
	Op       Op
	Addr     Address
	Wire     Wire
	Response string
	OK       bool
	Err      error
	Elapsed  time.Duration
}

// Name 通道名稱
func (c *Controller) Name() string {
	return c.name
}

// Variant 目前型號
func (c *Controller) Variant() Variant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.variant
}

// Mode 目前線路模式
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Stats 取得統計
func (c *Controller) Stats() *Stats {
	return c.stats
}

// setVariant 偵測到型號後更新
func (c *Controller) setVariant(v Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variant = v
}

// Close 釋放序列通道
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	snap := c.stats.Snapshot()
	c.logger.Debug("控制器已關閉",
		zap.Uint64("commands", snap.Commands),
		zap.Uint64("failed", snap.Failed),
	)

	if err := c.port.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// Execute 送出一個指令並等待回應。模式切換請使用 SwitchMode
func (c *Controller) Execute(cmd Command) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execute(cmd)
}

func (c *Controller) execute(cmd Command) (Result, error) {
	res := Result{Op: cmd.Op, Addr: cmd.Addr}

	if c.closed {
		return res, ErrClosed
	}
	if cmd.Op == OpEnterTextMode || cmd.Op == OpEnterLegacyMode {
		return res, fmt.Errorf("%w: %s 需透過 SwitchMode", ErrWrongMode, cmd.Op)
	}

	w, err := Encode(c.variant, c.mode, cmd)
	if err != nil {
		return res, err
	}
	res.Wire = w

	start := time.Now()
	multiLine := cmd.Op == OpQueryConnections || cmd.Op == OpSelftest
	raw, err := c.exchange(w, multiLine)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	switch cmd.Op {
	case OpConnect, OpDisconnect:
		c.checkEcho(&res, raw)
	case OpQueryConnections, OpSelftest:
		c.readDump(&res, raw)
		if cmd.Op == OpSelftest && c.selftestWait > 0 {
			time.Sleep(c.selftestWait)
		}
	default:
		c.readInfo(&res, raw)
	}

	return res, nil
}

// checkEcho 比對連線/斷線回聲
func (c *Controller) checkEcho(res *Result, raw []byte) {
	decoded, err := Deserialize(res.Wire.Mode, raw)
	res.Response = decoded
	if err == nil && !Validate(res.Wire, decoded) {
		err = fmt.Errorf("%w: 送出 %s 預期 %q 收到 %q",
			ErrValidation, res.Wire, ExpectedEcho(res.Wire), decoded)
	}
	res.Err = err
	res.OK = err == nil
	c.stats.recordOutcome(res.OK)

	c.logger.Debug(res.Op.String(),
		zap.Stringer("sent", res.Wire),
		zap.String("received", decoded),
	)
	if !res.OK {
		c.logger.Warn("回聲驗證失敗",
			zap.Stringer("op", res.Op),
			zap.Int("sim", res.Addr.Sim),
			zap.Int("terminal", res.Addr.Terminal),
			zap.Error(err),
		)
	}
}

// readInfo 版本查詢的單行回應，兩種模式都以文字解碼
func (c *Controller) readInfo(res *Result, raw []byte) {
	decoded, err := Deserialize(ModeText, raw)
	res.Response = decoded
	res.Err = err
	if err == nil && decoded == "" {
		res.Err = fmt.Errorf("%w: %s 無回應", ErrValidation, res.Op)
	}
	res.OK = res.Err == nil
	c.stats.recordOutcome(res.OK)

	c.logger.Debug("讀取", zap.Stringer("op", res.Op), zap.String("line", decoded))
}

// readDump 多行回應，逐行記錄
func (c *Controller) readDump(res *Result, raw []byte) {
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		decoded, err := Deserialize(ModeText, []byte(line))
		if err != nil {
			res.Err = err
			continue
		}
		if decoded == "" {
			continue
		}
		lines = append(lines, decoded)
		c.logger.Info("讀取", zap.Stringer("op", res.Op), zap.String("line", decoded))
	}
	res.Response = strings.Join(lines, "\n")
	if res.Err == nil && len(lines) == 0 {
		res.Err = fmt.Errorf("%w: %s 無回應", ErrValidation, res.Op)
	}
	res.OK = res.Err == nil
	c.stats.recordOutcome(res.OK)
}

// exchange 寫入一個指令並讀取回應。寫入後一定會讀取，不可取消
func (c *Controller) exchange(w Wire, multiLine bool) ([]byte, error) {
	data := Serialize(w, c.lineTerminator)
	c.logger.Debug("寫入", zap.Stringer("wire", w), zap.Stringer("mode", w.Mode))

	n, err := c.port.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.stats.recordTransportError()
		return nil, &TransportError{Op: "write", Err: err}
	}

	if c.settleDelay > 0 {
		time.Sleep(c.settleDelay)
	}

	var raw []byte
	if multiLine {
		raw, err = c.readLines()
	} else {
		raw, err = c.readLine()
	}
	c.stats.recordTraffic(len(data), len(raw))
	if err != nil {
		c.stats.recordTransportError()
		return raw, err
	}
	return raw, nil
}

// readLine 讀到換行或逾時為止，逾時回傳目前已收到的位元組
func (c *Controller) readLine() ([]byte, error) {
	deadline := time.Now().Add(c.readTimeout)
	var line []byte
	buf := make([]byte, 1)

	for time.Now().Before(deadline) {
		n, err := c.port.Read(buf)
		if n > 0 {
			line = append(line, buf[0])
		}
		if err != nil && !isTimeout(err) {
			return line, &TransportError{Op: "read", Err: err}
		}
		if n > 0 {
			if buf[0] == '\n' {
				return line, nil
			}
			continue
		}
		return line, nil
	}
	return line, nil
}

// readLines 持續讀取直到逾時沒有新資料
func (c *Controller) readLines() ([]byte, error) {
	var out []byte
	for i := 0; i < maxDumpLines; i++ {
		line, err := c.readLine()
		out = append(out, line...)
		if err != nil {
			return out, err
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			break
		}
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Connect 連接 SIM 到終端
func (c *Controller) Connect(addr Address) (Result, error) {
	return c.Execute(Connect(addr))
}

// Disconnect 斷開 SIM 與終端
func (c *Controller) Disconnect(addr Address) (Result, error) {
	return c.Execute(Disconnect(addr))
}

// HardwareVersion 查詢硬體型號，移除 "Hardware: " 前綴
func (c *Controller) HardwareVersion() (string, error) {
	return c.version(QueryHardwareVersion, HardwarePrefix)
}

// SoftwareVersion 查詢韌體版本，移除 "Software-Version: " 前綴
func (c *Controller) SoftwareVersion() (string, error) {
	return c.version(QuerySoftwareVersion, SoftwarePrefix)
}

func (c *Controller) version(cmd Command, prefix string) (string, error) {
	res, err := c.Execute(cmd)
	if err != nil {
		return "", err
	}
	if errors.Is(res.Err, ErrDecode) {
		return "", res.Err
	}
	return strings.TrimPrefix(res.Response, prefix), nil
}

// Connections 查詢目前的連線表
func (c *Controller) Connections() ([]string, error) {
	return c.dump(QueryConnections)
}

// Selftest 執行自我測試並回傳輸出
func (c *Controller) Selftest() ([]string, error) {
	return c.dump(Selftest)
}

func (c *Controller) dump(cmd Command) ([]string, error) {
	res, err := c.Execute(cmd)
	if err != nil {
		return nil, err
	}
	if res.Response == "" {
		return nil, nil
	}
	return strings.Split(res.Response, "\n"), nil
}
