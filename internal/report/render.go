package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// 報告格式
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath 依副檔名推斷格式，無法判斷時使用 fallback
func FormatFromPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return fallback
	}
}

// Write 以指定格式輸出報告
func Write(w io.Writer, format string, doc *Document) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatYAML, "":
		return WriteYAML(w, doc)
	default:
		return fmt.Errorf("未知的報告格式: %s", format)
	}
}

// WriteJSON 以縮排 JSON 輸出
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("編碼報告失敗: %w", err)
	}
	return nil
}

// WriteYAML 以 YAML 輸出
func WriteYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("編碼報告失敗: %w", err)
	}
	return enc.Close()
}

// WriteFile 寫入報告檔，格式優先依副檔名判斷
func WriteFile(path, format string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("建立報告檔失敗: %w", err)
	}
	if err := Write(f, FormatFromPath(path, format), doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("寫入報告檔失敗: %w", err)
	}
	return nil
}
