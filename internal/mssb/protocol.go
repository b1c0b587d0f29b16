package mssb

import "time"

// MSSB 協議常數
const (
	// Legacy 單位元組指令碼
	CodeQueryConnections = 65
	CodeQueryHardware    = 66
	CodeQuerySoftware    = 67
	CodeSelftest         = 69
	CodeLeaveTextMode    = 91
	CodeEnterTextMode    = 93

	// 連線/斷線基準位移 (加上線性索引)
	CodeConnectBase    = 160
	CodeDisconnectBase = 128

	// Text 模式指令
	TextQueryConnections = "Connections?"
	TextQueryHardware    = "Hardware?"
	TextQuerySoftware    = "Software?"
	TextSelftest         = "Selftest?"
	TextOKSuffix         = " OK"

	// 模式切換確認字串
	ConfirmEnterTextMode = "Entering Textmode"
	ConfirmLeaveTextMode = "Leaving Textmode"

	// 回應前綴
	HardwarePrefix = "Hardware: "
	SoftwarePrefix = "Software-Version: "

	// Legacy 回應結尾 (CR/LF 的十六進位表示)
	legacyLineEnding = "0d0a"
)

// 序列埠參數 (所有型號相同，僅 parity 不同)
const (
	BaudRate = 2400
	DataBits = 8
	StopBits = 1

	DefaultReadTimeout    = 800 * time.Millisecond
	DefaultSettleDelay    = 800 * time.Millisecond
	DefaultSelftestWait   = 3 * time.Second
	DefaultLineTerminator = "\n"
)

// Mode 線路模式
type Mode int

const (
	ModeLegacy Mode = iota
	ModeText
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	case ModeText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseMode 解析線路模式
func ParseMode(s string) (Mode, error) {
	switch s {
	case "legacy", "":
		return ModeLegacy, nil
	case "text":
		return ModeText, nil
	default:
		return ModeLegacy, &ParseError{Kind: "mode", Value: s}
	}
}

// Op 邏輯操作
type Op int

const (
	OpConnect Op = iota
	OpDisconnect
	OpQueryConnections
	OpQueryHardwareVersion
	OpQuerySoftwareVersion
	OpSelftest
	OpEnterTextMode
	OpEnterLegacyMode
)

func (o Op) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpQueryConnections:
		return "connections"
	case OpQueryHardwareVersion:
		return "hardware"
	case OpQuerySoftwareVersion:
		return "software"
	case OpSelftest:
		return "selftest"
	case OpEnterTextMode:
		return "enter_text_mode"
	case OpEnterLegacyMode:
		return "enter_legacy_mode"
	default:
		return "unknown"
	}
}

// Address SIM/終端位址 (1-based)，Terminal 為 0 表示未指定
type Address struct {
	Sim      int `json:"sim" yaml:"sim"`
	Terminal int `json:"terminal,omitempty" yaml:"terminal,omitempty"`
}

// Command 單次指令，使用後即丟棄
type Command struct {
	Op   Op
	Addr Address
}

// Connect 建立連線指令
func Connect(addr Address) Command {
	return Command{Op: OpConnect, Addr: addr}
}

// Disconnect 建立斷線指令
func Disconnect(addr Address) Command {
	return Command{Op: OpDisconnect, Addr: addr}
}

// 無位址指令
var (
	QueryConnections     = Command{Op: OpQueryConnections}
	QueryHardwareVersion = Command{Op: OpQueryHardwareVersion}
	QuerySoftwareVersion = Command{Op: OpQuerySoftwareVersion}
	Selftest             = Command{Op: OpSelftest}
	EnterTextMode        = Command{Op: OpEnterTextMode}
	EnterLegacyMode      = Command{Op: OpEnterLegacyMode}
)

// HasAddress 判斷指令是否帶位址
func (c Command) HasAddress() bool {
	return c.Op == OpConnect || c.Op == OpDisconnect
}
