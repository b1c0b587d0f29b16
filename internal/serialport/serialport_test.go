package serialport

import (
	"errors"
	"io"
	"testing"
	"time"

	goserial "github.com/goburrow/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Device:      "/dev/ttyUSB0",
		Driver:      DriverGoburrow,
		BaudRate:    2400,
		DataBits:    8,
		StopBits:    1,
		Parity:      "O",
		ReadTimeout: 800 * time.Millisecond,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid goburrow", func(c *Config) {}, false},
		{"valid tarm", func(c *Config) { c.Driver = DriverTarm }, false},
		{"valid bugst", func(c *Config) { c.Driver = DriverBugst }, false},
		{"empty driver uses default", func(c *Config) { c.Driver = "" }, false},
		{"no parity", func(c *Config) { c.Parity = "N" }, false},
		{"missing device", func(c *Config) { c.Device = "" }, true},
		{"unknown driver", func(c *Config) { c.Driver = "ftdi" }, true},
		{"even parity", func(c *Config) { c.Parity = "E" }, true},
		{"zero baud rate", func(c *Config) { c.BaudRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDrivers(t *testing.T) {
	assert.Equal(t, []string{DriverGoburrow, DriverTarm, DriverBugst}, Drivers())
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Device = ""
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestOpen_MissingDevice(t *testing.T) {
	for _, driver := range Drivers() {
		t.Run(driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Driver = driver
			cfg.Device = "/dev/mssbctl-does-not-exist"
			_, err := Open(cfg)
			assert.Error(t, err)
		})
	}
}

type scriptedPort struct {
	err error
}

func (p *scriptedPort) Read(b []byte) (int, error)  { return 0, p.err }
func (p *scriptedPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *scriptedPort) Close() error                { return nil }

func TestTimeoutPort(t *testing.T) {
	isTimeout := func(err error) bool { return errors.Is(err, goserial.ErrTimeout) }

	p := &timeoutPort{ReadWriteCloser: &scriptedPort{err: goserial.ErrTimeout}, isTimeout: isTimeout}
	_, err := p.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)

	other := errors.New("input/output error")
	p = &timeoutPort{ReadWriteCloser: &scriptedPort{err: other}, isTimeout: isTimeout}
	_, err = p.Read(make([]byte, 1))
	require.Error(t, err)
	assert.Equal(t, other, err)
}
