// Package mssbsim 模擬 MSSB 交換矩陣模組，實作 io.ReadWriteCloser，
// 可取代實體序列埠用於測試與 --simulate 模式。
package mssbsim

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// 裝置指令碼 (與模組韌體一致)
const (
	codeConnections    = 65
	codeHardware       = 66
	codeSoftware       = 67
	codeSelftest       = 69
	codeLeaveText      = 91
	codeEnterText      = 93
	codeDisconnectBase = 128
	codeConnectBase    = 160
)

const crlf = "\r\n"

// Device 模擬的 MSSB 模組
type Device struct {
	mu sync.Mutex

	hardwareID      string
	softwareVersion string
	textModeAllowed bool

	textMode bool
	closed   bool
	writeErr error

	matrix   *Matrix
	scenario Scenario
	rng      *rand.Rand

	rx []byte // text 模式的行緩衝
	tx []byte // 待讀取的回應

	stats  DeviceStats
	logger *zap.Logger
}

// DeviceStats 模擬裝置統計
type DeviceStats struct {
	Commands atomic.Uint64
	Echoes   atomic.Uint64
	Dropped  atomic.Uint64
	Rejected atomic.Uint64
}

// DeviceOption 模擬裝置配置選項
type DeviceOption func(*Device)

// WithSoftwareVersion 設定韌體版本
func WithSoftwareVersion(v string) DeviceOption {
	return func(d *Device) {
		d.softwareVersion = v
	}
}

// WithScenario 設定故障場景
func WithScenario(s Scenario) DeviceOption {
	return func(d *Device) {
		d.scenario = s
	}
}

// WithDropCommands 指定第幾個指令 (1-based) 不回應
func WithDropCommands(n ...int) DeviceOption {
	return func(d *Device) {
		if d.scenario.DropCommands == nil {
			d.scenario.DropCommands = make(map[int]bool)
		}
		for _, i := range n {
			d.scenario.DropCommands[i] = true
		}
	}
}

// WithWriteError 所有寫入都回傳此錯誤 (模擬序列埠被佔用)
func WithWriteError(err error) DeviceOption {
	return func(d *Device) {
		d.writeErr = err
	}
}

// WithTextModeDisabled 韌體不支援 text 模式，忽略切換指令
func WithTextModeDisabled() DeviceOption {
	return func(d *Device) {
		d.textModeAllowed = false
	}
}

// WithTextMode 以 text 模式啟動
func WithTextMode() DeviceOption {
	return func(d *Device) {
		d.textMode = true
	}
}

// WithSeed 設定亂數種子
func WithSeed(seed int64) DeviceOption {
	return func(d *Device) {
		d.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) DeviceOption {
	return func(d *Device) {
		d.logger = logger
	}
}

// NewDevice 建立模擬裝置
func NewDevice(hardwareID string, sims, terminals int, opts ...DeviceOption) *Device {
	d := &Device{
		hardwareID:      hardwareID,
		softwareVersion: "1.0",
		textModeAllowed: true,
		matrix:          NewMatrix(sims, terminals),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.writeErr == nil && d.scenario.Type == ScenarioBusy {
		d.writeErr = fmt.Errorf("device or resource busy")
	}

	return d
}

// Matrix 取得交叉點表
func (d *Device) Matrix() *Matrix {
	return d.matrix
}

// Stats 取得統計資訊
func (d *Device) Stats() *DeviceStats {
	return &d.stats
}

// TextMode 是否處於 text 模式
func (d *Device) TextMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.textMode
}

// Closed 是否已關閉
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Write 接收主機送出的位元組
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, io.ErrClosedPipe
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}

	for _, b := range p {
		if d.textMode {
			d.receiveText(b)
		} else {
			d.handleLegacy(b)
		}
	}
	return len(p), nil
}

// Read 讀取待送出的回應，沒有資料時回傳 io.EOF (等同讀取逾時)
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, io.ErrClosedPipe
	}
	if len(d.tx) == 0 {
		return 0, io.EOF
	}
	n := copy(p, d.tx)
	d.tx = d.tx[n:]
	return n, nil
}

// Close 關閉裝置
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.tx = nil
	return nil
}

func (d *Device) handleLegacy(b byte) {
	switch {
	case b == codeConnections:
		d.respondLines(d.matrix.Lines()...)
	case b == codeHardware:
		d.respondLines("Hardware: " + d.hardwareID)
	case b == codeSoftware:
		d.respondLines("Software-Version: " + d.softwareVersion)
	case b == codeSelftest:
		d.respondLines(d.selftestLines()...)
	case b == codeEnterText:
		if !d.textModeAllowed {
			d.reject(b)
			return
		}
		d.textMode = true
		d.respondLines("Entering Textmode")
	case b >= codeConnectBase:
		d.legacyRoute(b, codeConnectBase, d.matrix.Connect)
	case b >= codeDisconnectBase:
		d.legacyRoute(b, codeDisconnectBase, d.matrix.Disconnect)
	default:
		// 未知指令 (包含 legacy 模式下的 91) 不回應
		d.reject(b)
	}
}

func (d *Device) legacyRoute(b byte, base int, apply func(sim, terminal int) error) {
	sim, terminal, err := d.matrix.Locate(int(b) - base)
	if err == nil {
		err = apply(sim, terminal)
	}
	if err != nil {
		d.reject(b)
		return
	}
	d.respond(append([]byte{b}, crlf...))
	d.stats.Echoes.Add(1)
}

func (d *Device) receiveText(b byte) {
	// 離開 text 模式的指令是單一位元組，不需要行結尾
	if b == codeLeaveText && len(d.rx) == 0 {
		d.textMode = false
		d.respondLines("Leaving Textmode")
		return
	}
	if b == '\n' || b == '\r' {
		if len(d.rx) > 0 {
			line := string(d.rx)
			d.rx = d.rx[:0]
			d.handleText(line)
		}
		return
	}
	d.rx = append(d.rx, b)
}

func (d *Device) handleText(line string) {
	switch line {
	case "Connections?":
		d.respondLines(d.matrix.Lines()...)
		return
	case "Hardware?":
		d.respondLines("Hardware: " + d.hardwareID)
		return
	case "Software?":
		d.respondLines("Software-Version: " + d.softwareVersion)
		return
	case "Selftest?":
		d.respondLines(d.selftestLines()...)
		return
	}

	if err := d.textRoute(line); err != nil {
		d.logger.Debug("text 指令錯誤", zap.String("line", line), zap.Error(err))
		d.respondLines("ERROR")
		d.stats.Rejected.Add(1)
		return
	}
	d.respondLines(line + " OK")
	d.stats.Echoes.Add(1)
}

// textRoute 處理 "t:s" (連線) 與 "t:" (清除終端)，皆為 0-based
func (d *Device) textRoute(line string) error {
	t, s, ok := strings.Cut(line, ":")
	if !ok {
		return fmt.Errorf("未知的指令: %q", line)
	}
	terminal, err := strconv.Atoi(t)
	if err != nil {
		return fmt.Errorf("無效的終端: %q", t)
	}
	if s == "" {
		return d.matrix.ClearTerminal(terminal + 1)
	}
	sim, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("無效的 SIM: %q", s)
	}
	return d.matrix.Connect(sim+1, terminal+1)
}

func (d *Device) selftestLines() []string {
	return []string{
		"Selftest started",
		fmt.Sprintf("Relays: %d OK", d.matrix.Size()),
		"Selftest passed",
	}
}

func (d *Device) respondLines(lines ...string) {
	var buf []byte
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, crlf...)
	}
	d.respond(buf)
}

// respond 依場景決定是否送出回應
func (d *Device) respond(resp []byte) {
	n := int(d.stats.Commands.Add(1))
	if d.scenario.shouldDrop(n, d.rng) {
		d.stats.Dropped.Add(1)
		d.logger.Debug("丟棄回應", zap.Int("command", n))
		return
	}
	d.tx = append(d.tx, d.scenario.corrupt(resp)...)
}

func (d *Device) reject(b byte) {
	d.stats.Commands.Add(1)
	d.stats.Rejected.Add(1)
	d.logger.Debug("忽略指令", zap.Uint8("code", b))
}
