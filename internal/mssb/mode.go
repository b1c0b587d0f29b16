package mssb

import (
	"fmt"

	"go.uber.org/zap"
)

// transition 模式切換定義
type transition struct {
	from    Mode
	cmd     Command
	confirm string
}

// 只有兩種切換：legacy -> text 與 text -> legacy
var transitions = map[Mode]transition{
	ModeText:   {from: ModeLegacy, cmd: EnterTextMode, confirm: ConfirmEnterTextMode},
	ModeLegacy: {from: ModeText, cmd: EnterLegacyMode, confirm: ConfirmLeaveTextMode},
}

// SwitchMode 切換線路模式並確認裝置回應
//
// 確認字串相符時才切換並回傳 true；不符時維持原模式並回傳 false。
// 目標模式與目前模式相同時回傳 ErrWrongMode，不會寫入任何資料。
func (c *Controller) SwitchMode(target Mode) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	t, ok := transitions[target]
	if !ok {
		return false, fmt.Errorf("%w: 未知的模式 %d", ErrWrongMode, target)
	}
	if c.mode != t.from {
		return false, fmt.Errorf("%w: 無法切換到 %s (目前: %s)", ErrWrongMode, target, c.mode)
	}

	w, err := Encode(c.variant, c.mode, t.cmd)
	if err != nil {
		return false, err
	}

	raw, err := c.exchange(w, false)
	if err != nil {
		return false, err
	}

	// 確認字串一律以文字解碼
	decoded, err := Deserialize(ModeText, raw)
	if err == nil && decoded == t.confirm {
		c.mode = target
		c.stats.recordOutcome(true)
		c.logger.Info("已切換模式", zap.Stringer("mode", target))
		return true, nil
	}

	c.stats.recordOutcome(false)
	c.logger.Warn("切換模式失敗",
		zap.Stringer("target", target),
		zap.Stringer("current", c.mode),
		zap.String("expected", t.confirm),
		zap.String("received", decoded),
	)
	return false, nil
}
