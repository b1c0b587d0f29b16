package mssb

import (
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"mssbctl/internal/mssbsim"
)

// stubPort 記錄寫入並依序回放預設回應
type stubPort struct {
	writes    [][]byte
	responses [][]byte
	rx        []byte

	writeErr error
	readErr  error
	closed   bool
}

func (p *stubPort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	if len(p.responses) > 0 {
		p.rx = append(p.rx, p.responses[0]...)
		p.responses = p.responses[1:]
	}
	return len(b), nil
}

func (p *stubPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *stubPort) Close() error {
	p.closed = true
	return nil
}

// failAfter 前 n 次寫入正常，之後回傳錯誤
type failAfter struct {
	io.ReadWriteCloser
	n int
}

func (f *failAfter) Write(b []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("input/output error")
	}
	f.n--
	return f.ReadWriteCloser.Write(b)
}

func testOptions(t *testing.T) []Option {
	return []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithSettleDelay(0),
		WithSelftestWait(0),
		WithReadTimeout(50 * time.Millisecond),
	}
}

func newStubController(t *testing.T, v Variant, port *stubPort, opts ...Option) *Controller {
	t.Helper()
	return NewController(port, v, append(testOptions(t), opts...)...)
}

func newSimDevice(v Variant, opts ...mssbsim.DeviceOption) *mssbsim.Device {
	p := v.Profile()
	return mssbsim.NewDevice(p.HardwareID, p.SimCount, p.TerminalsPerSim, opts...)
}

func newSimController(t *testing.T, v Variant, devOpts ...mssbsim.DeviceOption) (*Controller, *mssbsim.Device) {
	t.Helper()
	dev := newSimDevice(v, devOpts...)
	ctrl := NewController(dev, v, testOptions(t)...)
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl, dev
}
