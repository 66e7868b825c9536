package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cerbtk/registry/logging"
)

var (
	// ErrBlockRejected is returned by MineBlock when the freshly built block does not validate
	// against the current tail. The chain is left untouched.
	ErrBlockRejected = errors.New("mined block rejected")

	ErrInvalidDifficulty = errors.New("difficulty must be positive")
)

// Head summarizes the latest block.
type Head struct {
	Index int64  `json:"index"`
	Hash  string `json:"hash"`
}

// Anchor is a compact reference to the chain head suitable for publishing elsewhere.
type Anchor struct {
	Index  int64  `json:"index"`
	Hash   string `json:"hash"`
	Anchor string `json:"anchor"`
}

// Ledger owns the chain and the device index.
// Reads may run concurrently; appends, index updates and resets are exclusive.
type Ledger struct {
	cfg Config
	now func() time.Time

	mu     sync.RWMutex
	chain  []Block
	byHash map[string]int
	index  DeviceIndex
	file   *chainFile
}

type newLedgerOptions struct {
	index DeviceIndex
	now   func() time.Time
}

type OptionFunc func(*newLedgerOptions)

// WithDeviceIndex overrides the device index chosen from the configuration.
func WithDeviceIndex(index DeviceIndex) OptionFunc {
	return func(opts *newLedgerOptions) {
		opts.index = index
	}
}

func WithClock(now func() time.Time) OptionFunc {
	return func(opts *newLedgerOptions) {
		opts.now = now
	}
}

func New(ctx context.Context, cfg Config, opts ...OptionFunc) (*Ledger, error) {
	options := newLedgerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if cfg.Difficulty < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDifficulty, cfg.Difficulty)
	}
	logger := logging.FromContext(ctx).Named("ledger")
	ctx = logging.NewContext(ctx, logger)

	l := &Ledger{
		cfg:   cfg,
		now:   options.now,
		index: options.index,
	}

	if l.index == nil {
		if cfg.StorageEnabled() && cfg.IndexPath != "" {
			index, err := NewLevelDBIndex(cfg.IndexPath)
			if err != nil {
				return nil, err
			}
			l.index = index
		} else {
			l.index = NewMemoryIndex()
		}
	}

	reset := true
	if cfg.StorageEnabled() {
		if cfg.StoragePath == "" {
			l.index.Close()
			return nil, errors.New("storage path is required when storage is enabled")
		}
		l.file = &chainFile{path: cfg.StoragePath}
		chain, wasReset, err := l.file.load(ctx, l.now(), cfg.Difficulty)
		if err != nil {
			l.index.Close()
			return nil, fmt.Errorf("loading chain: %w", err)
		}
		l.chain, reset = chain, wasReset
	} else {
		logger.Info("storage disabled, keeping chain in memory")
		l.chain = []Block{genesisBlock(l.now())}
	}
	l.rebuildHashIndex()

	if reset {
		if err := l.index.Reset(); err != nil {
			l.index.Close()
			return nil, fmt.Errorf("resetting device index: %w", err)
		}
	} else if err := l.pruneDeviceIndex(ctx); err != nil {
		l.index.Close()
		return nil, fmt.Errorf("pruning device index: %w", err)
	}

	heightMetric.Set(float64(len(l.chain)))
	return l, nil
}

func (l *Ledger) Close() error {
	return l.index.Close()
}

// MineBlock appends a new block carrying data and returns it.
// The chain is persisted before the block becomes visible in memory, so a storage
// failure leaves both the file and the in-memory chain at the previous tail.
func (l *Ledger) MineBlock(ctx context.Context, data string) (Block, error) {
	logger := logging.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.chain[len(l.chain)-1]
	proof := ProofOfWork(prev.ProofOfWork, l.cfg.Difficulty)
	candidate := newBlock(int64(len(l.chain)), prev.Hash, data, proof, l.now())

	if err := validateSuccessor(prev, candidate, l.cfg.Difficulty); err != nil {
		appendMetric.WithLabelValues("rejected").Inc()
		logger.Error("mined block failed validation", zap.Int64("index", candidate.Index), zap.Error(err))
		return Block{}, fmt.Errorf("%w: %w", ErrBlockRejected, err)
	}

	// Full slice expression forces a copy so l.chain is untouched until the write succeeds.
	next := append(l.chain[:len(l.chain):len(l.chain)], candidate)
	if l.file != nil {
		if err := l.file.save(next); err != nil {
			appendMetric.WithLabelValues("storage_error").Inc()
			return Block{}, fmt.Errorf("persisting chain: %w", err)
		}
	}
	l.chain = next
	if _, ok := l.byHash[candidate.Hash]; !ok {
		l.byHash[candidate.Hash] = len(next) - 1
	}

	appendMetric.WithLabelValues("ok").Inc()
	heightMetric.Set(float64(len(next)))
	logger.Debug("mined block",
		zap.Int64("index", candidate.Index),
		zap.String("hash", candidate.Hash),
		zap.Int64("proof", candidate.ProofOfWork),
	)
	return candidate, nil
}

// FindBlockByHash returns the first block with the given hash.
func (l *Ledger) FindBlockByHash(hash string) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.findBlockByHash(hash)
}

func (l *Ledger) findBlockByHash(hash string) (Block, bool) {
	pos, ok := l.byHash[hash]
	if !ok {
		return Block{}, false
	}
	return l.chain[pos], true
}

// FindBlockByDeviceID returns the block that most recently registered the device.
func (l *Ledger) FindBlockByDeviceID(deviceID string) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hash, ok, err := l.index.Get(deviceID)
	if err != nil || !ok {
		return Block{}, false
	}
	return l.findBlockByHash(hash)
}

// IndexDevice points the device at blockHash, replacing any previous entry.
// An entry already pointing at a later block is left alone.
func (l *Ledger) IndexDevice(deviceID, blockHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok, err := l.index.Get(deviceID)
	if err != nil {
		return err
	}
	if ok {
		curPos, curKnown := l.byHash[current]
		newPos, newKnown := l.byHash[blockHash]
		if curKnown && newKnown && curPos > newPos {
			return nil
		}
	}
	return l.index.Put(deviceID, blockHash)
}

func (l *Ledger) IsChainValid() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return validateChain(l.chain, l.cfg.Difficulty) == nil
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Block(nil), l.chain...)
}

func (l *Ledger) Latest() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

func (l *Ledger) Head() Head {
	latest := l.Latest()
	return Head{Index: latest.Index, Hash: latest.Hash}
}

func (l *Ledger) Anchor(scheme string) Anchor {
	latest := l.Latest()
	return Anchor{
		Index:  latest.Index,
		Hash:   latest.Hash,
		Anchor: scheme + ":" + strconv.FormatInt(latest.Index, 10) + ":" + latest.Hash,
	}
}

// Reset discards all history and starts over from a new genesis block.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	chain := []Block{genesisBlock(l.now())}
	if l.file != nil {
		if err := l.file.save(chain); err != nil {
			return fmt.Errorf("persisting genesis chain: %w", err)
		}
	}
	if err := l.index.Reset(); err != nil {
		return fmt.Errorf("resetting device index: %w", err)
	}
	l.chain = chain
	l.rebuildHashIndex()
	heightMetric.Set(1)
	logging.FromContext(ctx).Info("ledger reset to genesis")
	return nil
}

func (l *Ledger) rebuildHashIndex() {
	l.byHash = make(map[string]int, len(l.chain))
	for i, b := range l.chain {
		if _, ok := l.byHash[b.Hash]; !ok {
			l.byHash[b.Hash] = i
		}
	}
}

// pruneDeviceIndex drops entries pointing at blocks the loaded chain does not contain.
func (l *Ledger) pruneDeviceIndex(ctx context.Context) error {
	var dangling []string
	err := l.index.Each(func(deviceID, blockHash string) error {
		if _, ok := l.byHash[blockHash]; !ok {
			dangling = append(dangling, deviceID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, deviceID := range dangling {
		if err := l.index.Delete(deviceID); err != nil {
			return err
		}
	}
	if len(dangling) > 0 {
		logging.FromContext(ctx).Warn("pruned dangling device index entries", zap.Int("count", len(dangling)))
	}
	return nil
}
