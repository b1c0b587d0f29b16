package mssb

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mssbctl/internal/mssbsim"
)

func TestProbe_FirstMatchWins(t *testing.T) {
	mute := newSimDevice(VariantThirtyTwoByOne, mssbsim.WithScenario(mssbsim.Scenario{Type: mssbsim.ScenarioMute}))
	busy := newSimDevice(VariantFourByOne, mssbsim.WithScenario(mssbsim.Scenario{Type: mssbsim.ScenarioBusy}))
	unknown := mssbsim.NewDevice("MSSB 64x1", 64, 1)
	target := newSimDevice(VariantEightByFour)
	var unusedOpened bool

	candidates := []Candidate{
		{Name: "/dev/ttyUSB0", Open: func() (io.ReadWriteCloser, error) {
			return nil, errors.New("device or resource busy")
		}},
		{Name: "/dev/ttyUSB1", Open: func() (io.ReadWriteCloser, error) { return mute, nil }},
		{Name: "/dev/ttyUSB2", Open: func() (io.ReadWriteCloser, error) { return busy, nil }},
		{Name: "/dev/ttyUSB3", Open: func() (io.ReadWriteCloser, error) { return unknown, nil }},
		{Name: "/dev/ttyUSB4", Open: func() (io.ReadWriteCloser, error) { return target, nil }},
		{Name: "/dev/ttyUSB5", Open: func() (io.ReadWriteCloser, error) {
			unusedOpened = true
			return newSimDevice(VariantFourByOne), nil
		}},
	}

	match, ok := Probe(context.Background(), candidates, zaptest.NewLogger(t), testOptions(t)...)
	require.True(t, ok)
	require.NotNil(t, match)
	defer match.Controller.Close()

	assert.Equal(t, "/dev/ttyUSB4", match.Name)
	assert.Equal(t, VariantEightByFour, match.Variant)
	assert.Equal(t, VariantEightByFour, match.Controller.Variant())
	assert.Equal(t, "/dev/ttyUSB4", match.Controller.Name())
	assert.False(t, unusedOpened)

	assert.True(t, mute.Closed())
	assert.True(t, busy.Closed())
	assert.True(t, unknown.Closed())
	assert.False(t, target.Closed())

	// 偵測後的控制器使用偵測到的型號編碼
	res, err := match.Controller.Connect(Address{Sim: 3, Terminal: 2})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, byte(169), res.Wire.Code)
}

func TestProbe_SkipsUnresponsiveFirst(t *testing.T) {
	mute := newSimDevice(VariantSixteenByTwo, mssbsim.WithScenario(mssbsim.Scenario{Type: mssbsim.ScenarioMute}))
	second := newSimDevice(VariantSixteenByTwo)
	third := newSimDevice(VariantFourByOne)

	candidates := []Candidate{
		{Name: "COM3", Open: func() (io.ReadWriteCloser, error) { return mute, nil }},
		{Name: "COM4", Open: func() (io.ReadWriteCloser, error) { return second, nil }},
		{Name: "COM5", Open: func() (io.ReadWriteCloser, error) { return third, nil }},
	}

	match, ok := Probe(context.Background(), candidates, nil, testOptions(t)...)
	require.True(t, ok)
	defer match.Controller.Close()

	assert.Equal(t, "COM4", match.Name)
	assert.Equal(t, VariantSixteenByTwo, match.Variant)
	assert.Equal(t, uint64(1), mute.Stats().Dropped.Load())
	assert.Zero(t, third.Stats().Commands.Load())
}

func TestProbe_SkipsNilPort(t *testing.T) {
	target := newSimDevice(VariantThirtyTwoByOne)

	candidates := []Candidate{
		{Name: "/dev/ttyACM0", Open: func() (io.ReadWriteCloser, error) { return nil, nil }},
		{Name: "/dev/ttyACM1", Open: func() (io.ReadWriteCloser, error) { return target, nil }},
	}

	match, ok := Probe(context.Background(), candidates, zaptest.NewLogger(t), testOptions(t)...)
	require.True(t, ok)
	defer match.Controller.Close()
	assert.Equal(t, "/dev/ttyACM1", match.Name)
	assert.Equal(t, VariantThirtyTwoByOne, match.Variant)
}

func TestProbe_NoneFound(t *testing.T) {
	candidates := []Candidate{
		{Name: "a", Open: func() (io.ReadWriteCloser, error) { return mssbsim.NewDevice("default", 32, 1), nil }},
		{Name: "b", Open: func() (io.ReadWriteCloser, error) { return nil, errors.New("no such file or directory") }},
	}

	match, ok := Probe(context.Background(), candidates, nil, testOptions(t)...)
	assert.False(t, ok)
	assert.Nil(t, match)

	match, ok = Probe(context.Background(), nil, nil)
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestProbe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opened := false
	candidates := []Candidate{{Name: "a", Open: func() (io.ReadWriteCloser, error) {
		opened = true
		return newSimDevice(VariantFourByOne), nil
	}}}

	_, ok := Probe(ctx, candidates, nil, testOptions(t)...)
	assert.False(t, ok)
	assert.False(t, opened)
}

func TestProbe_ForcesLegacyMode(t *testing.T) {
	dev := newSimDevice(VariantSixteenByTwo)
	candidates := []Candidate{{Name: "a", Open: func() (io.ReadWriteCloser, error) { return dev, nil }}}

	opts := append(testOptions(t), WithMode(ModeText))
	match, ok := Probe(context.Background(), candidates, nil, opts...)
	require.True(t, ok)
	defer match.Controller.Close()
	assert.Equal(t, ModeLegacy, match.Controller.Mode())
}
