package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityDesk/internal/model"
)

const (
	// DefaultInterval is the poll period.
	DefaultInterval = 30 * time.Second
	// DefaultMaxConcurrent bounds balance reads in flight per batch.
	DefaultMaxConcurrent = 4
)

// ErrNotRunning is returned by Refresh before Start or after Stop.
var ErrNotRunning = errors.New("balance cache is not running")

// Snapshot maps token symbols to human balances.
type Snapshot map[string]decimal.Decimal

// Config configures a Cache.
type Config struct {
	// Tokens to track. A token with the zero address is the native asset.
	Tokens        []model.Token
	Interval      time.Duration
	MaxConcurrent int
	Logger        *zap.Logger
}

// Cache polls balances of one account in the background.
type Cache struct {
	reader   model.BalanceReader
	tokens   []model.Token
	interval time.Duration
	limit    int
	logger   *zap.Logger

	lifecycle sync.Mutex

	mu       sync.RWMutex
	running  bool
	gen      uint64
	account  common.Address
	runCtx   context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
	values   Snapshot
	subs     map[uint64]func(Snapshot)
	nextSub  uint64

	// pending snapshots wait for the delivery goroutine, which runs only
	// while delivering is set.
	pending    []delivery
	delivering bool
}

// delivery is one snapshot bound for the subscribers registered when it was applied.
type delivery struct {
	subs []func(Snapshot)
	snap Snapshot
}

func NewCache(reader model.BalanceReader, cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	tokens := make([]model.Token, len(cfg.Tokens))
	copy(tokens, cfg.Tokens)
	return &Cache{
		reader:   reader,
		tokens:   tokens,
		interval: interval,
		limit:    limit,
		logger:   logger,
		values:   make(Snapshot),
		subs:     make(map[uint64]func(Snapshot)),
	}
}

// Start begins polling account: once immediately, then every interval.
// Starting again replaces the previous account.
func (c *Cache) Start(ctx context.Context, account common.Address) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	if c.account != account {
		c.values = make(Snapshot)
	}
	c.gen++
	gen := c.gen
	c.running = true
	c.account = account
	c.runCtx = runCtx
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.loop(runCtx, gen, account, done)
}

// Stop cancels polling and waits until no read is in flight. Values read
// before Stop remain available through Current.
func (c *Cache) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLocked()
}

func (c *Cache) stopLocked() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.gen++
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.runCtx = nil, nil, nil
	c.mu.Unlock()

	cancel()
	<-done
	c.inflight.Wait()
}

// Current returns a copy of the latest balances.
func (c *Cache) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values.clone()
}

// Subscribe registers fn to receive every applied snapshot. Snapshots are
// delivered in order on a separate goroutine, never on the poll goroutine,
// so fn may call Stop. The returned function removes the subscription.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Refresh reads all balances now. It is bounded by the running poll, so a
// Stop cancels it.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.inflight.Add(1)
	runCtx, gen, account := c.runCtx, c.gen, c.account
	c.mu.Unlock()
	defer c.inflight.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	return c.refresh(ctx, gen, account)
}

func (c *Cache) loop(ctx context.Context, gen uint64, account common.Address, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.refresh(ctx, gen, account); err != nil && ctx.Err() == nil {
			c.logger.Warn("balance refresh incomplete", zap.String("account", account.Hex()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type readResult struct {
	value decimal.Decimal
	err   error
}

func (c *Cache) refresh(ctx context.Context, gen uint64, account common.Address) error {
	results := make([]readResult, len(c.tokens))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, token := range c.tokens {
		i, token := i, token
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].err = ctx.Err()
				return nil
			}
			raw, err := c.reader.GetTokenBalance(ctx, token.Address, account)
			if err != nil {
				results[i].err = fmt.Errorf("%s: %w", token.Symbol, err)
				return nil
			}
			results[i].value = model.FromBaseUnits(raw, token.Decimals)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	fresh := make(Snapshot, len(c.tokens))
	for i, token := range c.tokens {
		if results[i].err != nil {
			c.logger.Debug("balance read failed", zap.String("token", token.Symbol), zap.Error(results[i].err))
			errs = append(errs, results[i].err)
			continue
		}
		fresh[token.Symbol] = results[i].value
	}

	c.apply(gen, fresh)
	return errors.Join(errs...)
}

// apply merges fresh values unless the cache moved on since the batch began.
func (c *Cache) apply(gen uint64, fresh Snapshot) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	for symbol, value := range fresh {
		c.values[symbol] = value
	}
	if len(c.subs) > 0 {
		subs := make([]func(Snapshot), 0, len(c.subs))
		for _, fn := range c.subs {
			subs = append(subs, fn)
		}
		c.pending = append(c.pending, delivery{subs: subs, snap: c.values.clone()})
		if !c.delivering {
			c.delivering = true
			go c.deliver()
		}
	}
	c.mu.Unlock()
}

// deliver hands pending snapshots to subscribers until the queue is empty.
func (c *Cache) deliver() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		d := c.pending[0]
		c.pending[0] = delivery{}
		c.pending = c.pending[1:]
		c.mu.Unlock()

		for _, fn := range d.subs {
			fn(d.snap.clone())
		}
	}
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
