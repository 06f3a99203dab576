package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/ledgerstore"
)

const defaultCacheSize = 1024

// errStopScan ends a store iteration early without reporting a failure.
var errStopScan = errors.New("stop scan")

// Chain owns the ledger and is its only writer.
type Chain struct {
	store  ledgerstore.Store
	logger *zap.Logger
	now    func() time.Time
	cache  *lru.Cache[uint64, *Block]

	mu  sync.RWMutex
	tip *Block // nil until genesis is persisted
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock overrides the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithCacheSize sets how many decoded blocks are kept in memory.
func WithCacheSize(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.cache, _ = lru.New[uint64, *Block](n)
		}
	}
}

// New loads the tip of the ledger held by store. Heights in the store must be
// contiguous from 0; anything else is reported as a storage error.
func New(ctx context.Context, store ledgerstore.Store, logger *zap.Logger, opts ...Option) (*Chain, error) {
	c := &Chain{store: store, logger: logger, now: time.Now}
	c.cache, _ = lru.New[uint64, *Block](defaultCacheSize)
	for _, o := range opts {
		o(c)
	}

	var (
		next uint64
		last []byte
	)
	err := store.Iterate(ctx, func(height uint64, data []byte) error {
		if height != next {
			return fmt.Errorf("expected height %d, found %d", next, height)
		}
		next++
		last = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load ledger: %w", ErrStorage, err)
	}

	if last != nil {
		tip, err := decodeBlock(last)
		if err != nil {
			return nil, fmt.Errorf("%w: decode tip: %w", ErrStorage, err)
		}
		c.tip = tip
		logger.Info("ledger loaded",
			zap.Uint64("height", tip.Height),
			zap.String("tip", tip.Hash),
		)
	}
	return c, nil
}

// Height returns the height of the newest block. ok is false while the ledger
// is empty.
func (c *Chain) Height() (height uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tip == nil {
		return 0, false
	}
	return c.tip.Height, true
}

// Tip returns a copy of the newest block, or nil while the ledger is empty.
func (c *Chain) Tip() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tip == nil {
		return nil
	}
	return c.tip.Clone()
}

// EnsureGenesis persists the genesis block if the ledger is empty.
func (c *Chain) EnsureGenesis(ctx context.Context) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureGenesisLocked(ctx); err != nil {
		return nil, err
	}
	genesis, err := c.load(ctx, 0)
	if err != nil {
		return nil, err
	}
	return genesis.Clone(), nil
}

func (c *Chain) ensureGenesisLocked(ctx context.Context) error {
	if c.tip != nil {
		return nil
	}
	genesis := &Block{
		Height:    0,
		Timestamp: c.now().Unix(),
	}
	if err := c.appendLocked(ctx, genesis); err != nil {
		return err
	}
	c.logger.Info("genesis block created", zap.String("hash", genesis.Hash))
	return nil
}

// AddBlock appends a block for address carrying star, whose Story must
// already be encoded. The genesis block is created first if needed.
func (c *Chain) AddBlock(ctx context.Context, address string, star Star) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureGenesisLocked(ctx); err != nil {
		return nil, err
	}

	b := &Block{
		Height:    c.tip.Height + 1,
		Timestamp: c.now().Unix(),
		Body: Body{
			Address: address,
			Star:    &Star{RA: star.RA, Dec: star.Dec, Story: star.Story},
		},
		PreviousHash: c.tip.Hash,
	}
	if err := c.appendLocked(ctx, b); err != nil {
		return nil, err
	}

	c.logger.Debug("block appended",
		zap.Uint64("height", b.Height),
		zap.String("hash", b.Hash),
		zap.String("address", address),
	)
	return b.Clone(), nil
}

// appendLocked hashes and persists b, then advances the tip. The tip is left
// untouched when persistence fails. Callers hold c.mu for writing.
func (c *Chain) appendLocked(ctx context.Context, b *Block) error {
	hash, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = hash

	data, err := encodeBlock(b)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, b.Height, data); err != nil {
		c.logger.Error("persist block", zap.Uint64("height", b.Height), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	c.tip = b
	c.cache.Add(b.Height, b)
	return nil
}

// ParseHeight converts a textual height. Anything that is not a non-negative
// integer cannot name a block and yields ErrNotFound.
func ParseHeight(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid height %q", ErrNotFound, s)
	}
	return h, nil
}

// GetBlock returns the block at height.
func (c *Chain) GetBlock(ctx context.Context, height uint64) (*Block, error) {
	top, ok := c.Height()
	if !ok || height > top {
		return nil, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}
	b, err := c.load(ctx, height)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

func (c *Chain) load(ctx context.Context, height uint64) (*Block, error) {
	if b, ok := c.cache.Get(height); ok {
		return b, nil
	}
	data, err := c.store.Get(ctx, height)
	if err != nil {
		if errors.Is(err, ledgerstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: height %d", ErrNotFound, height)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	b, err := decodeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("%w: height %d: %w", ErrStorage, height, err)
	}
	c.cache.Add(height, b)
	return b, nil
}

// scan walks blocks in ascending height up to the tip captured at the start
// of the call. fn returns false to stop early.
func (c *Chain) scan(ctx context.Context, fn func(*Block) bool) error {
	top, ok := c.Height()
	if !ok {
		return nil
	}
	err := c.store.Iterate(ctx, func(height uint64, data []byte) error {
		if height > top {
			return errStopScan
		}
		b, cached := c.cache.Get(height)
		if !cached {
			var err error
			if b, err = decodeBlock(data); err != nil {
				return fmt.Errorf("height %d: %w", height, err)
			}
		}
		if !fn(b) {
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// SearchByHash returns the block whose hash equals hash exactly.
func (c *Chain) SearchByHash(ctx context.Context, hash string) (*Block, error) {
	var found *Block
	if err := c.scan(ctx, func(b *Block) bool {
		if b.Hash == hash {
			found = b
			return false
		}
		return true
	}); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	return found.Clone(), nil
}

// SearchByAddress returns every block registered by address in ascending
// height order. No match is an empty slice, not an error.
func (c *Chain) SearchByAddress(ctx context.Context, address string) ([]*Block, error) {
	blocks := []*Block{}
	if err := c.scan(ctx, func(b *Block) bool {
		if b.Body.Address == address {
			blocks = append(blocks, b.Clone())
		}
		return true
	}); err != nil {
		return nil, err
	}
	return blocks, nil
}

// GetChain returns every block, genesis first.
func (c *Chain) GetChain(ctx context.Context) ([]*Block, error) {
	blocks := []*Block{}
	if err := c.scan(ctx, func(b *Block) bool {
		blocks = append(blocks, b.Clone())
		return true
	}); err != nil {
		return nil, err
	}
	return blocks, nil
}
