package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/uhyunpark/orderflood/params"
	"github.com/uhyunpark/orderflood/pkg/metrics"
	"github.com/uhyunpark/orderflood/pkg/order"
	"github.com/uhyunpark/orderflood/pkg/sender"
	"github.com/uhyunpark/orderflood/pkg/util"
)

// minTickInterval stands in for "as fast as the runtime allows";
// time.NewTicker rejects non-positive durations.
const minTickInterval = time.Microsecond

var (
	ErrAlreadyRan = errors.New("dispatch: scheduler already ran")
	ErrBatchSize  = errors.New("dispatch: batch size must be positive")
)

type Config struct {
	BatchSize    int
	TickInterval time.Duration
	Mode         params.DispatchMode
	// MaxInFlight caps concurrent sends in fire-and-forget mode; 0 = no cap.
	MaxInFlight int
}

// ConfigFrom maps the loaded params onto scheduler settings.
func ConfigFrom(d params.Dispatch) Config {
	return Config{
		BatchSize:    d.BatchSize,
		TickInterval: d.TickInterval,
		Mode:         d.Mode,
		MaxInFlight:  d.MaxInFlight,
	}
}

// TickInfo describes one dispatching tick: orders[From:To] were claimed.
type TickInfo struct {
	Tick   int
	From   int
	To     int
	Cursor int
	Total  int
	At     time.Time
}

// Scheduler walks a materialized order sequence with a monotonic cursor and
// hands one batch per tick to the sender. The cursor is only touched by the
// goroutine running Run.
type Scheduler struct {
	orders   []order.Order
	sender   sender.Sender
	cfg      Config
	clock    util.Clock
	logger   *zap.Logger
	recorder *metrics.Recorder
	run      *metrics.RunMetrics

	observers []func(TickInfo)
	sem       *semaphore.Weighted

	cursor int

	// Published copies for Progress; written by Run and the send goroutines.
	pubCursor atomic.Int64
	ticks     atomic.Int64
	inFlight  atomic.Int64
	peak      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	ran       atomic.Bool
}

type Option func(*Scheduler)

func WithClock(c util.Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithRecorder(r *metrics.Recorder) Option { return func(s *Scheduler) { s.recorder = r } }

// WithTickObserver registers a callback run synchronously after every
// dispatching tick. Observers must not block.
func WithTickObserver(fn func(TickInfo)) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, fn) }
}

func New(orders []order.Order, snd sender.Sender, cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.BatchSize <= 0 {
		return nil, ErrBatchSize
	}
	if cfg.Mode == "" {
		cfg.Mode = params.ModeFireAndForget
	}
	if cfg.Mode != params.ModeFireAndForget && cfg.Mode != params.ModeAwait {
		return nil, params.ErrUnknownMode
	}
	s := &Scheduler{
		orders: orders,
		sender: snd,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = util.RealClock{}
	}
	s.logger = util.OrNop(s.logger)
	if s.recorder == nil {
		s.recorder = metrics.NewRecorder()
	}
	s.run = metrics.NewRunMetrics(s.clock)
	if cfg.Mode == params.ModeFireAndForget && cfg.MaxInFlight > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	return s, nil
}

func (s *Scheduler) Total() int                { return len(s.orders) }
func (s *Scheduler) Mode() params.DispatchMode { return s.cfg.Mode }

// Run drives the ticker until the cursor reaches the end of the sequence,
// then waits for outstanding sends and returns the aggregated report.
// Send failures never stop the run; only ctx cancellation does, in which
// case the partial report is returned together with ctx.Err().
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRan
	}

	total := len(s.orders)
	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = minTickInterval
	}

	results := make(chan Result, resultBuffer(total))
	tallied := make(chan tally, 1)
	go s.collect(results, tallied)

	var wg sync.WaitGroup

	s.logger.Info("dispatch_started",
		zap.Int("orders", total),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Duration("tick_interval", interval),
		zap.String("mode", string(s.cfg.Mode)),
		zap.Int("max_inflight", s.cfg.MaxInFlight))

	startedAt := s.clock.Now()
	ticker := s.clock.NewTicker(interval)
	s.run.Start()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case <-ticker.C():
			if s.cursor >= total {
				break loop
			}
			if err := s.tick(ctx, results, &wg); err != nil {
				runErr = err
				break loop
			}
			if s.cursor >= total {
				break loop
			}
		}
	}
	ticker.Stop()
	elapsed := s.run.Stop()

	s.logger.Info("dispatch_stopped",
		zap.Int("requests_sent", s.cursor),
		zap.Int64("ticks", s.ticks.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Int64("in_flight", s.inFlight.Load()))

	wg.Wait()
	close(results)
	t := <-tallied

	rep := Report{
		Total:        total,
		Initiated:    s.cursor,
		Succeeded:    t.succeeded,
		Failed:       t.failed,
		Ticks:        int(s.ticks.Load()),
		PeakInFlight: int(s.peak.Load()),
		Elapsed:      elapsed,
		Drained:      s.clock.Now().Sub(startedAt),
		Mode:         s.cfg.Mode,
	}
	if runErr != nil {
		s.logger.Warn("dispatch_aborted", zap.Error(runErr), zap.Int("requests_sent", s.cursor))
	}
	rep.Log(s.logger)
	return rep, runErr
}

// tick claims orders[cursor:end] and advances the cursor. On cancellation
// mid-batch the cursor stops at the first order not handed over.
func (s *Scheduler) tick(ctx context.Context, results chan<- Result, wg *sync.WaitGroup) error {
	total := len(s.orders)
	from := s.cursor
	end := min(from+s.cfg.BatchSize, total)

	for i := from; i < end; i++ {
		if err := ctx.Err(); err != nil {
			s.advance(i)
			return err
		}
		switch s.cfg.Mode {
		case params.ModeAwait:
			s.begin()
			results <- s.send(ctx, i)

		default:
			if s.sem != nil {
				if err := s.sem.Acquire(ctx, 1); err != nil {
					s.advance(i)
					return err
				}
			}
			s.begin()
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r := s.send(ctx, i)
				if s.sem != nil {
					s.sem.Release(1)
				}
				results <- r
			}(i)
		}
	}
	s.advance(end)

	n := int(s.ticks.Add(1))
	s.recorder.Ticks.Inc()
	info := TickInfo{Tick: n, From: from, To: end, Cursor: s.cursor, Total: total, At: s.clock.Now()}

	s.logger.Debug("batch_dispatched",
		zap.Int("tick", n),
		zap.Int("from", from),
		zap.Int("to", end),
		zap.Int("requests_sent", s.cursor))
	if total >= 10 && end*10/total != from*10/total {
		s.logger.Info("dispatch_progress",
			zap.Int("requests_sent", s.cursor),
			zap.Int("total", total),
			zap.Int64("succeeded", s.succeeded.Load()),
			zap.Int64("failed", s.failed.Load()))
	}
	for _, fn := range s.observers {
		fn(info)
	}
	return nil
}

func (s *Scheduler) advance(to int) {
	s.cursor = to
	s.pubCursor.Store(int64(to))
}

// begin accounts for a send the tick handler is about to start.
func (s *Scheduler) begin() {
	s.recorder.Initiated.Inc()
	s.recorder.InFlight.Inc()
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
}

func (s *Scheduler) send(ctx context.Context, i int) Result {
	began := s.clock.Now()
	err := s.sender.Send(ctx, s.orders[i])
	r := Result{Index: i, Err: err, Latency: s.clock.Now().Sub(began)}
	s.inFlight.Add(-1)
	s.recorder.InFlight.Dec()
	return r
}

// Progress is safe to call from any goroutine while Run is active.
func (s *Scheduler) Progress() Progress {
	return Progress{
		Cursor:    int(s.pubCursor.Load()),
		Total:     len(s.orders),
		Ticks:     int(s.ticks.Load()),
		InFlight:  int(s.inFlight.Load()),
		Succeeded: int(s.succeeded.Load()),
		Failed:    int(s.failed.Load()),
		Elapsed:   s.run.Elapsed(),
		Done:      s.run.Stopped(),
		Mode:      s.cfg.Mode,
	}
}

func resultBuffer(total int) int {
	const maxBuf = 4096
	return max(1, min(total, maxBuf))
}
