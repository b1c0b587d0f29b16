package mssbsim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenarioType_String(t *testing.T) {
	tests := []struct {
		scenario ScenarioType
		expected string
	}{
		{ScenarioNormal, "normal"},
		{ScenarioPacketLoss, "packet_loss"},
		{ScenarioCorruptEcho, "corrupt_echo"},
		{ScenarioMute, "mute"},
		{ScenarioBusy, "busy"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.scenario.String())
			assert.Equal(t, tt.scenario, ParseScenarioType(tt.expected))
		})
	}

	assert.Equal(t, ScenarioNormal, ParseScenarioType("unknown")) // 預設為 normal
	assert.Len(t, ListScenarioTypes(), 5)
}

func TestScenario_ShouldDrop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	s := Scenario{Type: ScenarioNormal, DropCommands: map[int]bool{2: true}}
	assert.False(t, s.shouldDrop(1, rng))
	assert.True(t, s.shouldDrop(2, rng))

	s = Scenario{Type: ScenarioMute}
	assert.True(t, s.shouldDrop(1, rng))

	s = Scenario{Type: ScenarioPacketLoss, LossRate: 1}
	assert.True(t, s.shouldDrop(1, rng))

	s = Scenario{Type: ScenarioPacketLoss}
	assert.False(t, s.shouldDrop(1, rng))
}

func TestScenario_PacketLossRate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := Scenario{Type: ScenarioPacketLoss, LossRate: 0.25}

	dropped := 0
	for i := 1; i <= 10000; i++ {
		if s.shouldDrop(i, rng) {
			dropped++
		}
	}
	assert.InDelta(t, 2500, dropped, 300)
}

func TestScenario_Corrupt(t *testing.T) {
	resp := []byte{0xa9, '\r', '\n'}

	s := Scenario{Type: ScenarioCorruptEcho}
	assert.Equal(t, []byte{0xa8, '\r', '\n'}, s.corrupt(resp))
	assert.Equal(t, byte(0xa9), resp[0], "原始回應不可被修改")

	s = Scenario{Type: ScenarioNormal}
	assert.Equal(t, resp, s.corrupt(resp))
}
