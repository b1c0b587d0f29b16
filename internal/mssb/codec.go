package mssb

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Serialize 將線路值轉為傳輸位元組。text 模式加上傳輸層的行結尾
func Serialize(w Wire, lineTerminator string) []byte {
	if w.Mode == ModeLegacy {
		return []byte{w.Code}
	}
	return []byte(w.Text + lineTerminator)
}

// Deserialize 將原始回應轉為可比較的字串
//
// legacy: 小寫十六進位，移除結尾的 "0d0a"
// text: UTF-8 解碼後去除前後空白
func Deserialize(mode Mode, raw []byte) (string, error) {
	if mode == ModeLegacy {
		return strings.TrimSuffix(hex.EncodeToString(raw), legacyLineEnding), nil
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: 非 UTF-8 回應 % x", ErrDecode, raw)
	}
	return strings.TrimSpace(string(raw)), nil
}

// ExpectedEcho 成功時裝置應回應的解碼值
func ExpectedEcho(w Wire) string {
	if w.Mode == ModeLegacy {
		// 送出端以 hex() 格式比對，沒有補零
		return strconv.FormatUint(uint64(w.Code), 16)
	}
	return w.Text + TextOKSuffix
}

// Validate 比對解碼後的回應與預期回聲
func Validate(w Wire, decoded string) bool {
	return decoded == ExpectedEcho(w)
}
