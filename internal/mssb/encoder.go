package mssb

import (
	"fmt"
	"strconv"
)

// Wire 線路層指令值
type Wire struct {
	Mode Mode
	Code byte
	Text string
}

func (w Wire) String() string {
	if w.Mode == ModeLegacy {
		return "0x" + strconv.FormatUint(uint64(w.Code), 16)
	}
	return w.Text
}

// Encode 將邏輯指令轉為線路值。位址無效時回傳 ErrInvalidAddress
func Encode(v Variant, mode Mode, cmd Command) (Wire, error) {
	p := ProfileOf(v)

	addr := cmd.Addr
	if cmd.HasAddress() {
		var err error
		if addr, err = p.Validate(cmd.Addr); err != nil {
			return Wire{}, err
		}
	}

	// 模式切換指令只有 legacy 編碼
	switch cmd.Op {
	case OpEnterTextMode:
		return legacy(CodeEnterTextMode), nil
	case OpEnterLegacyMode:
		return legacy(CodeLeaveTextMode), nil
	}

	if mode == ModeText {
		return encodeText(p, cmd.Op, addr)
	}
	return encodeLegacy(p, cmd.Op, addr)
}

func legacy(code byte) Wire {
	return Wire{Mode: ModeLegacy, Code: code}
}

func text(s string) Wire {
	return Wire{Mode: ModeText, Text: s}
}

func encodeLegacy(p Profile, op Op, addr Address) (Wire, error) {
	switch op {
	case OpConnect:
		return legacy(legacyCode(CodeConnectBase, p, addr)), nil
	case OpDisconnect:
		return legacy(legacyCode(CodeDisconnectBase, p, addr)), nil
	case OpQueryConnections:
		return legacy(CodeQueryConnections), nil
	case OpQueryHardwareVersion:
		return legacy(CodeQueryHardware), nil
	case OpQuerySoftwareVersion:
		return legacy(CodeQuerySoftware), nil
	case OpSelftest:
		return legacy(CodeSelftest), nil
	default:
		return Wire{}, fmt.Errorf("mssb: 未知的操作 %d", op)
	}
}

// legacyCode 計算 base + 線性索引。超過一個位元組表示型號表有誤，直接 panic
func legacyCode(base int, p Profile, addr Address) byte {
	code := base + p.index(addr)
	if code < 0 || code > 0xff {
		panic(fmt.Sprintf("mssb: legacy code %d out of byte range for %s sim=%d terminal=%d",
			code, p.HardwareID, addr.Sim, addr.Terminal))
	}
	return byte(code)
}

func encodeText(p Profile, op Op, addr Address) (Wire, error) {
	switch op {
	case OpConnect:
		return text(fmt.Sprintf("%d:%d", textTerminal(p, addr), addr.Sim-1)), nil
	case OpDisconnect:
		// 只送終端前綴，清除該終端上的所有 SIM
		return text(fmt.Sprintf("%d:", textTerminal(p, addr))), nil
	case OpQueryConnections:
		return text(TextQueryConnections), nil
	case OpQueryHardwareVersion:
		return text(TextQueryHardware), nil
	case OpQuerySoftwareVersion:
		return text(TextQuerySoftware), nil
	case OpSelftest:
		return text(TextSelftest), nil
	default:
		return Wire{}, fmt.Errorf("mssb: 未知的操作 %d", op)
	}
}

// textTerminal 零基終端編號，單終端型號固定為 0
func textTerminal(p Profile, addr Address) int {
	if !p.MultiTerminal() {
		return 0
	}
	return addr.Terminal - 1
}
