package report

import (
	"time"

	"github.com/google/uuid"

	"mssbctl/internal/mssb"
)

// Document 測試報告
type Document struct {
	RunID           string             `json:"run_id" yaml:"run_id"`
	GeneratedAt     string             `json:"generated_at" yaml:"generated_at"`
	ToolVersion     string             `json:"tool_version,omitempty" yaml:"tool_version,omitempty"`
	Port            string             `json:"port" yaml:"port"`
	Module          string             `json:"module" yaml:"module"`
	HardwareVersion string             `json:"hardware_version" yaml:"hardware_version"`
	SoftwareVersion string             `json:"software_version" yaml:"software_version"`
	Duration        string             `json:"duration" yaml:"duration"`
	Pass            bool               `json:"pass" yaml:"pass"`
	Passed          int                `json:"passed" yaml:"passed"`
	Failed          int                `json:"failed" yaml:"failed"`
	TextMode        TextModeResult     `json:"text_mode" yaml:"text_mode"`
	Connections     []string           `json:"connections,omitempty" yaml:"connections,omitempty"`
	Stats           mssb.StatsSnapshot `json:"stats" yaml:"stats"`
	Steps           []Step             `json:"steps" yaml:"steps"`
	Error           string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// TextModeResult 模式切換結果
type TextModeResult struct {
	Entered bool `json:"entered" yaml:"entered"`
	Left    bool `json:"left" yaml:"left"`
}

// Step 單一步驟
type Step struct {
	Stage    string `json:"stage" yaml:"stage"`
	Op       string `json:"op" yaml:"op"`
	Mode     string `json:"mode" yaml:"mode"`
	Sim      int    `json:"sim,omitempty" yaml:"sim,omitempty"`
	Terminal int    `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Sent     string `json:"sent" yaml:"sent"`
	Response string `json:"response" yaml:"response"`
	OK       bool   `json:"ok" yaml:"ok"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed  string `json:"elapsed" yaml:"elapsed"`
}

// FromTestReport 由測試結果建立報告；runErr 為中止測試的錯誤 (可為 nil)
func FromTestReport(r *mssb.TestReport, toolVersion string, runErr error) *Document {
	doc := &Document{
		RunID:           uuid.NewString(),
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		ToolVersion:     toolVersion,
		Port:            r.Port,
		Module:          r.Variant.String(),
		HardwareVersion: r.HardwareVersion,
		SoftwareVersion: r.SoftwareVersion,
		Duration:        r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Passed:          r.Passed,
		Failed:          r.Failed,
		TextMode:        TextModeResult{Entered: r.TextModeEntered, Left: r.TextModeLeft},
		Connections:     r.Connections,
		Stats:           r.Stats,
		Steps:           make([]Step, 0, len(r.Steps)),
	}

	for _, s := range r.Steps {
		step := Step{
			Stage:    s.Stage,
			Op:       s.Op.String(),
			Mode:     s.Mode.String(),
			Sim:      s.Addr.Sim,
			Terminal: s.Addr.Terminal,
			Sent:     s.Sent,
			Response: s.Response,
			OK:       s.OK,
			Elapsed:  s.Elapsed.String(),
		}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		doc.Steps = append(doc.Steps, step)
	}

	if runErr != nil {
		doc.Error = runErr.Error()
	}
	doc.Pass = runErr == nil && doc.Failed == 0
	return doc
}
