// internal/historian/historian.go is the asynchronous historian: it pops action records
// from the Redis queue, persists them to Postgres in batches, and marks games abandoned
// once they stop producing actions.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/cache"
	"github.com/jason-s-yu/kaboom/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Source yields raw queued records. ok is false when nothing arrived before the
// source's own poll timeout.
type Source interface {
	Pop(ctx context.Context) (data []byte, ok bool, err error)
}

// Sink is where records end up.
type Sink interface {
	InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// RedisSource pops from a Redis list with BLPOP.
type RedisSource struct {
	Client  *redis.Client
	Queue   string
	Timeout time.Duration
}

func (r RedisSource) Pop(ctx context.Context) ([]byte, bool, error) {
	res, err := r.Client.BLPop(ctx, r.Timeout, r.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}

// PostgresSink writes through the database package's pool.
type PostgresSink struct{}

func (PostgresSink) InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	return database.InsertGameActions(ctx, records)
}

func (PostgresSink) MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return database.MarkGameAbandoned(ctx, gameID)
}

// Options tune batching and abandonment.
type Options struct {
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration // a game idle this long is marked abandoned
	SweepInterval time.Duration
}

// Service wires a Source to a Sink.
type Service struct {
	src  Source
	sink Sink
	opts Options
	log  *logrus.Logger

	batchMu sync.Mutex
	batch   []cache.GameActionRecord

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time
}

func NewService(src Source, sink Sink, opts Options, logger *logrus.Logger) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &Service{
		src:          src,
		sink:         sink,
		opts:         opts,
		log:          logger,
		batch:        make([]cache.GameActionRecord, 0, opts.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.tickLoop(ctx)
	}()

	s.log.Info("historian started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		data, ok, err := s.src.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Errorf("queue pop failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}

		rec, err := cache.DecodeGameAction(data)
		if err != nil {
			s.log.Warnf("dropping record: %v", err)
			continue
		}
		s.touch(rec.GameID, time.Now())
		if s.append(rec) {
			s.Flush(ctx)
		}
	}
}

func (s *Service) tickLoop(ctx context.Context) {
	flush := time.NewTicker(s.opts.FlushDelay)
	defer flush.Stop()
	sweep := time.NewTicker(s.opts.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			s.Flush(ctx)
		case now := <-sweep.C:
			s.sweep(ctx, now)
		}
	}
}

// append adds rec to the batch and reports whether the batch is full.
func (s *Service) append(rec cache.GameActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

// Flush writes the current batch in one transaction. The batch lock is released
// before the write so producers are never blocked on the database. A failed batch
// is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]cache.GameActionRecord, 0, s.opts.BatchSize)
	s.batchMu.Unlock()

	if err := s.sink.InsertGameActions(ctx, pending); err != nil {
		s.log.Errorf("failed to flush %d actions: %v", len(pending), err)
		return
	}
	s.log.Debugf("flushed %d actions", len(pending))
}

func (s *Service) touch(gameID uuid.UUID, at time.Time) {
	s.activityMu.Lock()
	s.lastActivity[gameID] = at
	s.activityMu.Unlock()
}

// sweep marks every game idle past the inactivity threshold as abandoned and stops
// tracking it.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	var idle []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			idle = append(idle, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	for _, id := range idle {
		if err := s.sink.MarkGameAbandoned(ctx, id); err != nil {
			s.log.Errorf("failed to mark game %s abandoned: %v", id, err)
			continue
		}
		s.log.Infof("marked game %s abandoned after inactivity", id)
	}
}
