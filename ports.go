package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.bug.st/serial/enumerator"
)

// listDetailedPorts 系統序列埠列舉，測試時替換
var listDetailedPorts = enumerator.GetDetailedPortsList

// ListPorts 列舉系統序列埠，只保留名稱符合任一樣式者
//
// USB 轉接器排在前面，其餘依名稱排序。樣式為空時回傳全部。
func ListPorts(patterns []string) ([]*enumerator.PortDetails, error) {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("無效的序列埠樣式 %q: %w", pattern, err)
		}
	}

	details, err := listDetailedPorts()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ports []*enumerator.PortDetails
	for _, d := range details {
		if d == nil || seen[d.Name] || !matchAny(patterns, d.Name) {
			continue
		}
		seen[d.Name] = true
		ports = append(ports, d)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].IsUSB != ports[j].IsUSB {
			return ports[i].IsUSB
		}
		return ports[i].Name < ports[j].Name
	})
	return ports, nil
}

func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// portLabel 序列埠顯示名稱，USB 轉接器附上 VID:PID
func portLabel(d *enumerator.PortDetails) string {
	if !d.IsUSB {
		return d.Name
	}
	label := fmt.Sprintf("%s (USB %s:%s", d.Name, d.VID, d.PID)
	if d.Product != "" {
		label += " " + d.Product
	}
	return label + ")"
}
