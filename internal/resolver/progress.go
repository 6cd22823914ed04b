package resolver

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Progress tracks a resolve pass and logs a summary line at a fixed record
// interval. Safe for concurrent use by all workers.
type Progress struct {
	mu        sync.Mutex
	every     int
	total     int
	processed int
	resolved  int
	absent    int
	failed    int
	started   time.Time
}

// Snapshot is a point-in-time copy of the counters, served by the status
// endpoint and printed at the end of a pass.
type Snapshot struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Resolved  int           `json:"resolved"`
	Absent    int           `json:"absent"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	PerMinute float64       `json:"per_minute"`
	ETA       time.Duration `json:"eta"`
}

// NewProgress creates a reporter for a pass over total identifiers,
// logging every `every` records.
func NewProgress(total, every int) *Progress {
	if every < 1 {
		every = 25
	}
	return &Progress{
		every:   every,
		total:   total,
		started: time.Now(),
	}
}

// Record counts one reconciled identifier and emits the periodic line.
func (p *Progress) Record(d Disposition) {
	p.mu.Lock()
	p.processed++
	switch d {
	case DispositionResolved:
		p.resolved++
	case DispositionAbsent:
		p.absent++
	default:
		p.failed++
	}
	emit := p.processed%p.every == 0 || p.processed == p.total
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if emit {
		zap.L().Info("progress",
			zap.Int("processed", snap.Processed),
			zap.Int("total", snap.Total),
			zap.Int("resolved", snap.Resolved),
			zap.Int("absent", snap.Absent),
			zap.Int("failed", snap.Failed),
			zap.Float64("per_minute", snap.PerMinute),
			zap.Duration("eta", snap.ETA),
		)
	}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	elapsed := time.Since(p.started)
	snap := Snapshot{
		Total:     p.total,
		Processed: p.processed,
		Resolved:  p.resolved,
		Absent:    p.absent,
		Failed:    p.failed,
		Elapsed:   elapsed,
	}
	if elapsed > 0 && p.processed > 0 {
		snap.PerMinute = float64(p.processed) / elapsed.Minutes()
		remaining := p.total - p.processed
		if remaining > 0 {
			perItem := elapsed / time.Duration(p.processed)
			snap.ETA = perItem * time.Duration(remaining)
		}
	}
	return snap
}
