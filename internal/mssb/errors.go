package mssb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress 位址超出模組範圍，於寫入前回報
	ErrInvalidAddress = errors.New("mssb: invalid address")
	// ErrTransport 序列埠不可用、忙碌或已關閉
	ErrTransport = errors.New("mssb: transport error")
	// ErrDecode 回應無法解碼
	ErrDecode = errors.New("mssb: decode error")
	// ErrValidation 回應與預期回聲不符
	ErrValidation = errors.New("mssb: echo mismatch")
	// ErrWrongMode 目前模式不支援此操作
	ErrWrongMode = errors.New("mssb: wrong mode")
	// ErrNoPort 候選通道開啟後沒有回傳序列埠
	ErrNoPort = errors.New("mssb: candidate returned no port")
	// ErrClosed 控制器已關閉
	ErrClosed = errors.New("mssb: controller closed")
)

// TransportError 傳輸層錯誤
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mssb: %s 失敗: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is 讓 errors.Is(err, ErrTransport) 成立
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ParseError 設定字串解析錯誤
type ParseError struct {
	Kind  string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("無效的 %s: %q", e.Kind, e.Value)
}
