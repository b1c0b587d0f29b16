package mssbsim

import "math/rand"

// ScenarioType 故障場景類型
type ScenarioType int

const (
	ScenarioNormal ScenarioType = iota
	ScenarioPacketLoss
	ScenarioCorruptEcho
	ScenarioMute
	ScenarioBusy
)

func (s ScenarioType) String() string {
	switch s {
	case ScenarioNormal:
		return "normal"
	case ScenarioPacketLoss:
		return "packet_loss"
	case ScenarioCorruptEcho:
		return "corrupt_echo"
	case ScenarioMute:
		return "mute"
	case ScenarioBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// ParseScenarioType 解析場景類型，未知值視為 normal
func ParseScenarioType(s string) ScenarioType {
	for _, t := range ListScenarioTypes() {
		if t.String() == s {
			return t
		}
	}
	return ScenarioNormal
}

// ListScenarioTypes 列出所有場景類型
func ListScenarioTypes() []ScenarioType {
	return []ScenarioType{
		ScenarioNormal,
		ScenarioPacketLoss,
		ScenarioCorruptEcho,
		ScenarioMute,
		ScenarioBusy,
	}
}

// Scenario 場景參數
type Scenario struct {
	Type ScenarioType

	// LossRate packet_loss 場景的丟棄機率
	LossRate float64

	// DropCommands 指定第幾個指令 (1-based) 不回應，與場景類型無關
	DropCommands map[int]bool
}

// shouldDrop 判斷第 n 個指令的回應是否丟棄
func (s *Scenario) shouldDrop(n int, rng *rand.Rand) bool {
	if s.DropCommands[n] {
		return true
	}
	switch s.Type {
	case ScenarioMute:
		return true
	case ScenarioPacketLoss:
		return s.LossRate > 0 && rng.Float64() < s.LossRate
	default:
		return false
	}
}

// corrupt 損壞回應：翻轉第一個位元組的最低位元
func (s *Scenario) corrupt(resp []byte) []byte {
	if s.Type != ScenarioCorruptEcho || len(resp) == 0 {
		return resp
	}
	out := append([]byte(nil), resp...)
	out[0] ^= 0x01
	return out
}
