package mssb

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Candidate 偵測候選通道
type Candidate struct {
	Name string
	Open func() (io.ReadWriteCloser, error)
}

// Match 偵測結果，Controller 已改為偵測到的型號，呼叫端負責 Close
type Match struct {
	Name       string
	Variant    Variant
	Controller *Controller
}

// Probe 依序查詢候選通道的硬體型號，第一個符合的通道勝出
//
// 無法開啟或發生傳輸錯誤的通道只記錄警告並略過。全部不符時回傳 false。
// 每個候選通道都以 default 型號與 legacy 模式查詢。
func Probe(ctx context.Context, candidates []Candidate, logger *zap.Logger, opts ...Option) (*Match, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return nil, false
		}

		logger.Info("檢查序列埠", zap.String("port", cand.Name))
		port, err := cand.Open()
		if err == nil && port == nil {
			err = ErrNoPort
		}
		if err != nil {
			logger.Warn("無法開啟序列埠，可能已被佔用",
				zap.String("port", cand.Name),
				zap.Error(err),
			)
			continue
		}

		ctrlOpts := append([]Option{WithLogger(logger), WithName(cand.Name)}, opts...)
		ctrlOpts = append(ctrlOpts, WithMode(ModeLegacy))
		ctrl := NewController(port, VariantDefault, ctrlOpts...)

		id, err := ctrl.HardwareVersion()
		if err != nil {
			logger.Warn("查詢硬體型號失敗",
				zap.String("port", cand.Name),
				zap.Error(err),
			)
			_ = ctrl.Close()
			continue
		}
		logger.Debug("讀取硬體型號", zap.String("port", cand.Name), zap.String("hardware", id))

		variant, ok := MatchHardwareID(id)
		if !ok {
			_ = ctrl.Close()
			continue
		}

		ctrl.setVariant(variant)
		logger.Info("找到符合的模組",
			zap.String("port", cand.Name),
			zap.Stringer("variant", variant),
		)
		return &Match{Name: cand.Name, Variant: variant, Controller: ctrl}, true
	}

	return nil, false
}
