package mssbsim

import (
	"fmt"
	"sync"
)

// Matrix 線程安全的交叉點表：每個終端最多接一個 SIM
type Matrix struct {
	mu sync.RWMutex

	sims      int
	terminals int
	routes    []int // 索引為終端 (0-based)，值為 SIM (1-based)，0 表示未連線
}

// NewMatrix 建立交叉點表
func NewMatrix(sims, terminals int) *Matrix {
	return &Matrix{
		sims:      sims,
		terminals: terminals,
		routes:    make([]int, terminals),
	}
}

// Size 位址空間大小
func (m *Matrix) Size() int {
	return m.sims * m.terminals
}

// Locate 將線性索引轉為 (sim, terminal)，皆為 1-based
func (m *Matrix) Locate(index int) (sim, terminal int, err error) {
	if index < 0 || index >= m.Size() {
		return 0, 0, fmt.Errorf("索引超出範圍: %d", index)
	}
	return index/m.terminals + 1, index%m.terminals + 1, nil
}

// Connect 連接 SIM 到終端，取代原本的連線
func (m *Matrix) Connect(sim, terminal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(sim, terminal); err != nil {
		return err
	}
	m.routes[terminal-1] = sim
	return nil
}

// Disconnect 斷開指定的 SIM/終端組合
func (m *Matrix) Disconnect(sim, terminal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(sim, terminal); err != nil {
		return err
	}
	if m.routes[terminal-1] == sim {
		m.routes[terminal-1] = 0
	}
	return nil
}

// ClearTerminal 清除終端上的連線
func (m *Matrix) ClearTerminal(terminal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if terminal < 1 || terminal > m.terminals {
		return fmt.Errorf("終端超出範圍: %d", terminal)
	}
	m.routes[terminal-1] = 0
	return nil
}

// Route 取得終端目前連接的 SIM，0 表示未連線
func (m *Matrix) Route(terminal int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if terminal < 1 || terminal > m.terminals {
		return 0
	}
	return m.routes[terminal-1]
}

// Lines 連線表的文字輸出
func (m *Matrix) Lines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]string, 0, m.terminals+1)
	lines = append(lines, "Connections:")
	for t, sim := range m.routes {
		if sim == 0 {
			lines = append(lines, fmt.Sprintf("Terminal %d: -", t+1))
			continue
		}
		lines = append(lines, fmt.Sprintf("Terminal %d: SIM %d", t+1, sim))
	}
	return lines
}

func (m *Matrix) check(sim, terminal int) error {
	if sim < 1 || sim > m.sims {
		return fmt.Errorf("SIM 超出範圍: %d", sim)
	}
	if terminal < 1 || terminal > m.terminals {
		return fmt.Errorf("終端超出範圍: %d", terminal)
	}
	return nil
}
