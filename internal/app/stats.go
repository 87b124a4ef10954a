package app

import (
	"sync/atomic"
	"time"
)

// Stats collects relay counters. All methods are safe for concurrent use.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64

	BytesReceived  atomic.Uint64
	FramesReceived atomic.Uint64
	FrameErrors    atomic.Uint64
	FatalErrors    atomic.Uint64

	Broadcasts atomic.Uint64
	Deliveries atomic.Uint64
	Dropped    atomic.Uint64
	Evictions  atomic.Uint64

	StartTime time.Time
}

func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

func (s *Stats) ConnectionOpened() {
	s.TotalConnections.Add(1)
	s.ActiveConnections.Add(1)
}

func (s *Stats) ConnectionClosed() {
	s.ActiveConnections.Add(-1)
}

// Snapshot is a point-in-time copy for the admin API.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	TotalConnections  uint64 `json:"total_connections"`
	ActiveConnections int64  `json:"active_connections"`
	BytesReceived     uint64 `json:"bytes_received"`
	FramesReceived    uint64 `json:"frames_received"`
	FrameErrors       uint64 `json:"frame_errors"`
	FatalErrors       uint64 `json:"fatal_errors"`
	Broadcasts        uint64 `json:"broadcasts"`
	Deliveries        uint64 `json:"deliveries"`
	Dropped           uint64 `json:"dropped"`
	Evictions         uint64 `json:"evictions"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Uptime:            time.Since(s.StartTime).Truncate(time.Second).String(),
		TotalConnections:  s.TotalConnections.Load(),
		ActiveConnections: s.ActiveConnections.Load(),
		BytesReceived:     s.BytesReceived.Load(),
		FramesReceived:    s.FramesReceived.Load(),
		FrameErrors:       s.FrameErrors.Load(),
		FatalErrors:       s.FatalErrors.Load(),
		Broadcasts:        s.Broadcasts.Load(),
		Deliveries:        s.Deliveries.Load(),
		Dropped:           s.Dropped.Load(),
		Evictions:         s.Evictions.Load(),
	}
}
