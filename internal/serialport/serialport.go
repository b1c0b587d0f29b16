// Package serialport 開啟實體序列埠，並將各驅動的讀取逾時統一為 io.EOF。
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	goserial "github.com/goburrow/serial"
	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// 支援的驅動
const (
	DriverGoburrow = "goburrow"
	DriverTarm     = "tarm"
	DriverBugst    = "bugst"
)

// Config 序列埠參數
type Config struct {
	Device      string
	Driver      string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string // "N" 或 "O"
	ReadTimeout time.Duration
}

// Drivers 支援的驅動名稱
func Drivers() []string {
	return []string{DriverGoburrow, DriverTarm, DriverBugst}
}

// Validate 驗證參數
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("未指定序列埠")
	}
	switch c.Driver {
	case "", DriverGoburrow, DriverTarm, DriverBugst:
	default:
		return fmt.Errorf("未知的序列埠驅動: %s", c.Driver)
	}
	switch c.Parity {
	case "N", "O":
	default:
		return fmt.Errorf("不支援的 parity: %q", c.Parity)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("無效的 baud rate: %d", c.BaudRate)
	}
	return nil
}

// Open 依設定的驅動開啟序列埠
func Open(cfg Config) (io.ReadWriteCloser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverTarm:
		return openTarm(cfg)
	case DriverBugst:
		return openBugst(cfg)
	default:
		return openGoburrow(cfg)
	}
}

func openGoburrow(cfg Config) (io.ReadWriteCloser, error) {
	port, err := goserial.Open(&goserial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("開啟 %s 失敗: %w", cfg.Device, err)
	}
	return &timeoutPort{ReadWriteCloser: port, isTimeout: func(err error) bool {
		return errors.Is(err, goserial.ErrTimeout)
	}}, nil
}

func openTarm(cfg Config) (io.ReadWriteCloser, error) {
	stop := tarm.Stop1
	if cfg.StopBits == 2 {
		stop = tarm.Stop2
	}
	parity := tarm.ParityNone
	if cfg.Parity == "O" {
		parity = tarm.ParityOdd
	}

	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.BaudRate,
		Size:        byte(cfg.DataBits),
		Parity:      parity,
		StopBits:    stop,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("開啟 %s 失敗: %w", cfg.Device, err)
	}
	// tarm 逾時時已回傳 io.EOF
	return &timeoutPort{ReadWriteCloser: port, isTimeout: func(error) bool { return false }}, nil
}

func openBugst(cfg Config) (io.ReadWriteCloser, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	if cfg.Parity == "O" {
		mode.Parity = bugst.OddParity
	}
	if cfg.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	}

	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("開啟 %s 失敗: %w", cfg.Device, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("設定 %s 讀取逾時失敗: %w", cfg.Device, err)
	}
	// 逾時回傳 (0, nil)，控制器視為讀取結束
	return port, nil
}

// timeoutPort 將驅動特定的逾時錯誤轉為 io.EOF
type timeoutPort struct {
	io.ReadWriteCloser
	isTimeout func(error) bool
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if err != nil && p.isTimeout(err) {
		return n, io.EOF
	}
	return n, err
}
