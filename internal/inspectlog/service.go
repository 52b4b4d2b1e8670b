package inspectlog

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/floatrig/floatrig/internal/inspect"
)

// Service provides an async inspect log writer. Emit performs a non-blocking
// channel send (drops on overflow, counted). A background goroutine flushes
// batches to the Repo.
type Service struct {
	repo      *Repo
	queue     chan LogRow
	batchSize int
	interval  time.Duration
	dropped   *xsync.Counter

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ServiceConfig configures the inspect log service.
type ServiceConfig struct {
	Repo          *Repo
	QueueSize     int
	FlushBatch    int
	FlushInterval time.Duration
}

// NewService creates a new inspect log service.
func NewService(cfg ServiceConfig) *Service {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	batchSize := cfg.FlushBatch
	if batchSize <= 0 {
		batchSize = 512
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Service{
		repo:      cfg.Repo,
		queue:     make(chan LogRow, queueSize),
		batchSize: batchSize,
		interval:  interval,
		dropped:   xsync.NewCounter(),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background flush goroutine.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop signals the flush loop to stop, drains remaining entries, and returns.
func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// NewRow builds a LogRow for one inspect outcome. info is nil on failure.
func NewRow(username string, botIndex int, link inspect.Link, info *inspect.ItemInfo, duration time.Duration, failure error) LogRow {
	row := LogRow{
		ID:         uuid.NewString(),
		TsNs:       time.Now().UnixNano(),
		Username:   username,
		BotIndex:   botIndex,
		LinkHash:   link.Hash().Hex(),
		AssetID:    link.A,
		DurationNs: duration.Nanoseconds(),
	}
	if link.IsMarket() {
		row.MarketID = link.M
	} else {
		row.OwnerID = link.S
	}
	if failure != nil {
		row.ErrorText = failure.Error()
		return row
	}
	row.OK = true
	if info != nil {
		row.ItemID = info.ItemID
		row.FloatValue = info.FloatValue
		row.PaintSeed = info.Paintseed
		row.DefIndex = info.DefIndex
		row.PaintIndex = info.PaintIndex
	}
	return row
}

// Emit enqueues a log row. Non-blocking; drops on overflow.
func (s *Service) Emit(row LogRow) {
	select {
	case s.queue <- row:
	default:
		// Queue full, drop the row to keep the answer path non-blocking.
		s.dropped.Inc()
	}
}

// Dropped returns the number of rows dropped on queue overflow.
func (s *Service) Dropped() int64 {
	return s.dropped.Value()
}

// Repo returns the underlying repository for query access.
func (s *Service) Repo() *Repo {
	return s.repo
}

// flushLoop runs until stopCh is closed, flushing on batch-size or timer.
func (s *Service) flushLoop() {
	defer s.wg.Done()

	batch := make([]LogRow, 0, s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case row := <-s.queue:
			batch = append(batch, row)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-s.stopCh:
			// Drain remaining.
			s.drainAndFlush(batch)
			return
		}
	}
}

func (s *Service) drainAndFlush(batch []LogRow) {
	for {
		select {
		case row := <-s.queue:
			batch = append(batch, row)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *Service) flush(rows []LogRow) {
	if n, err := s.repo.InsertBatch(rows); err != nil {
		log.Printf("[inspectlog] flush %d rows failed: %v", len(rows), err)
	} else if n > 0 {
		log.Printf("[inspectlog] flushed %d rows", n)
	}
}
