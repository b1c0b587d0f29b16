package mssb

import (
	"fmt"
	"strings"
)

// Variant MSSB 模組型號
type Variant int

const (
	VariantDefault Variant = iota
	VariantFourByOne
	VariantEightByFour
	VariantSixteenByTwo
	VariantThirtyTwoByOne
)

// Parity 同位檢查設定 (與序列埠驅動的字元表示一致)
type Parity string

const (
	ParityNone Parity = "N"
	ParityOdd  Parity = "O"
)

// Profile 型號規格
type Profile struct {
	HardwareID      string
	SimCount        int
	TerminalsPerSim int
	Parity          Parity
}

// MultiTerminal 是否每個 SIM 有多個終端
func (p Profile) MultiTerminal() bool {
	return p.TerminalsPerSim > 1
}

// Pairs 位址空間大小
func (p Profile) Pairs() int {
	return p.SimCount * p.TerminalsPerSim
}

// 型號規格表，新增型號只需新增一列
var profiles = map[Variant]Profile{
	VariantFourByOne:      {HardwareID: "MSSB 4x1", SimCount: 4, TerminalsPerSim: 1, Parity: ParityNone},
	VariantEightByFour:    {HardwareID: "MSSB 8x4", SimCount: 8, TerminalsPerSim: 4, Parity: ParityOdd},
	VariantSixteenByTwo:   {HardwareID: "MSSB 16x2", SimCount: 16, TerminalsPerSim: 2, Parity: ParityOdd},
	VariantThirtyTwoByOne: {HardwareID: "MSSB 32x1", SimCount: 32, TerminalsPerSim: 1, Parity: ParityOdd},
	VariantDefault:        {HardwareID: "default", SimCount: 32, TerminalsPerSim: 1, Parity: ParityOdd},
}

// ProfileOf 取得型號規格
func ProfileOf(v Variant) Profile {
	p, ok := profiles[v]
	if !ok {
		return profiles[VariantDefault]
	}
	return p
}

// Profile 取得型號規格
func (v Variant) Profile() Profile {
	return ProfileOf(v)
}

func (v Variant) String() string {
	if _, ok := profiles[v]; !ok {
		return "unknown"
	}
	return profiles[v].HardwareID
}

// Variants 已知硬體型號 (不含 default)
func Variants() []Variant {
	return []Variant{
		VariantFourByOne,
		VariantEightByFour,
		VariantSixteenByTwo,
		VariantThirtyTwoByOne,
	}
}

// ParseVariant 解析型號字串，接受 "MSSB 8x4"、"8x4" 與 "default"
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "default" {
		return VariantDefault, nil
	}
	name = strings.TrimSpace(strings.TrimPrefix(name, "mssb"))
	for _, v := range Variants() {
		id := strings.TrimPrefix(strings.ToLower(profiles[v].HardwareID), "mssb ")
		if name == id {
			return v, nil
		}
	}
	return VariantDefault, &ParseError{Kind: "module type", Value: s}
}

// MatchHardwareID 比對硬體回報的型號字串 (需完全相符)
func MatchHardwareID(id string) (Variant, bool) {
	for _, v := range Variants() {
		if profiles[v].HardwareID == id {
			return v, true
		}
	}
	return VariantDefault, false
}

// Validate 檢查位址是否在型號範圍內，回傳正規化後的位址
func (p Profile) Validate(addr Address) (Address, error) {
	if addr.Sim < 1 || addr.Sim > p.SimCount {
		return addr, fmt.Errorf("%w: sim %d 超出範圍 1..%d (%s)",
			ErrInvalidAddress, addr.Sim, p.SimCount, p.HardwareID)
	}
	if !p.MultiTerminal() {
		// 單終端型號忽略 terminal
		return Address{Sim: addr.Sim}, nil
	}
	if addr.Terminal < 1 || addr.Terminal > p.TerminalsPerSim {
		return addr, fmt.Errorf("%w: terminal %d 超出範圍 1..%d (%s)",
			ErrInvalidAddress, addr.Terminal, p.TerminalsPerSim, p.HardwareID)
	}
	return addr, nil
}

// index 線性索引 (位址須已驗證)
func (p Profile) index(addr Address) int {
	terminal := addr.Terminal
	if !p.MultiTerminal() {
		terminal = 1
	}
	return (addr.Sim-1)*p.TerminalsPerSim + (terminal - 1)
}
