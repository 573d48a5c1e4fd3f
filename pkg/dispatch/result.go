package dispatch

import (
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/orderflood/params"
)

// Result is what one send produced. Err is non-nil only for transport
// failures; the response itself is never inspected.
type Result struct {
	Index   int
	Err     error
	Latency time.Duration
}

// Report summarizes a finished (or aborted) run.
type Report struct {
	Total        int
	Initiated    int
	Succeeded    int
	Failed       int
	Ticks        int
	PeakInFlight int
	// Elapsed runs from the first tick to the last initiation.
	Elapsed time.Duration
	// Drained additionally covers waiting for outstanding sends.
	Drained time.Duration
	Mode    params.DispatchMode
}

func (r Report) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Initiated) / r.Elapsed.Seconds()
}

func (r Report) Log(l *zap.Logger) {
	l.Info("run_complete",
		zap.Int("requests_sent", r.Initiated),
		zap.Int("total", r.Total),
		zap.Int("succeeded", r.Succeeded),
		zap.Int("failed", r.Failed),
		zap.Int("ticks", r.Ticks),
		zap.Int("peak_in_flight", r.PeakInFlight),
		zap.Duration("elapsed", r.Elapsed),
		zap.Duration("drained", r.Drained),
		zap.Float64("rate_per_sec", r.Rate()),
		zap.String("mode", string(r.Mode)))
}

// Progress is a point-in-time view for status endpoints.
type Progress struct {
	Cursor    int
	Total     int
	Ticks     int
	InFlight  int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Done      bool
	Mode      params.DispatchMode
}

type tally struct {
	succeeded int
	failed    int
}

// collect drains the result channel until it is closed.
func (s *Scheduler) collect(results <-chan Result, out chan<- tally) {
	var t tally
	for r := range results {
		ok := r.Err == nil
		if ok {
			t.succeeded++
			s.succeeded.Add(1)
		} else {
			t.failed++
			s.failed.Add(1)
			s.logger.Warn("send_failed", zap.Int("index", r.Index), zap.Error(r.Err))
		}
		s.recorder.ObserveSettled(ok, r.Latency.Seconds())
	}
	out <- t
}
