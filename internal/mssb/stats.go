package mssb

import (
	"sync/atomic"
	"time"
)

// Stats 控制器指令統計
type Stats struct {
	startTime time.Time

	commands        atomic.Uint64
	passed          atomic.Uint64
	failed          atomic.Uint64
	transportErrors atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	lastCommand     atomic.Int64
}

// StatsSnapshot 統計快照
type StatsSnapshot struct {
	Uptime          string  `json:"uptime" yaml:"uptime"`
	Commands        uint64  `json:"commands" yaml:"commands"`
	Passed          uint64  `json:"passed" yaml:"passed"`
	Failed          uint64  `json:"failed" yaml:"failed"`
	TransportErrors uint64  `json:"transport_errors" yaml:"transport_errors"`
	FailureRate     float64 `json:"failure_rate" yaml:"failure_rate"`
	BytesSent       uint64  `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived   uint64  `json:"bytes_received" yaml:"bytes_received"`
}

func newStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) recordTraffic(sent, received int) {
	s.commands.Add(1)
	s.lastCommand.Store(time.Now().UnixNano())
	s.bytesSent.Add(uint64(sent))
	s.bytesReceived.Add(uint64(received))
}

func (s *Stats) recordOutcome(ok bool) {
	if ok {
		s.passed.Add(1)
	} else {
		s.failed.Add(1)
	}
}

func (s *Stats) recordTransportError() {
	s.transportErrors.Add(1)
}

// LastCommand 最後一次指令時間
func (s *Stats) LastCommand() time.Time {
	ns := s.lastCommand.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Snapshot 取得統計快照
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Uptime:          time.Since(s.startTime).Round(time.Millisecond).String(),
		Commands:        s.commands.Load(),
		Passed:          s.passed.Load(),
		Failed:          s.failed.Load(),
		TransportErrors: s.transportErrors.Load(),
		BytesSent:       s.bytesSent.Load(),
		BytesReceived:   s.bytesReceived.Load(),
	}

	// 僅計算有比對回聲的指令
	if checked := snap.Passed + snap.Failed; checked > 0 {
		snap.FailureRate = float64(snap.Failed) / float64(checked) * 100
	}
	return snap
}
