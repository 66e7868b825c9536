package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/util"
)

type chainFile struct {
	path string
}

// storedBlock mirrors Block with every field required, so a record missing any of them
// is rejected instead of decoding to zero values.
type storedBlock struct {
	Index        *int64  `json:"index"`
	PreviousHash *string `json:"previousHash"`
	Data         *string `json:"data"`
	ProofOfWork  *int64  `json:"proofOfWork"`
	Timestamp    *int64  `json:"timestamp"`
	Hash         *string `json:"hash"`
}

func (s storedBlock) block() (Block, error) {
	if s.Index == nil || s.PreviousHash == nil || s.Data == nil ||
		s.ProofOfWork == nil || s.Timestamp == nil || s.Hash == nil {
		return Block{}, errors.New("missing block field")
	}
	if *s.Hash == "" || *s.PreviousHash == "" {
		return Block{}, errors.New("blank hash")
	}
	return Block{
		Index:        *s.Index,
		PreviousHash: *s.PreviousHash,
		Data:         *s.Data,
		ProofOfWork:  *s.ProofOfWork,
		Timestamp:    *s.Timestamp,
		Hash:         *s.Hash,
	}, nil
}

func decodeChain(stored []storedBlock) ([]Block, error) {
	chain := make([]Block, 0, len(stored))
	for i, s := range stored {
		b, err := s.block()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		chain = append(chain, b)
	}
	return chain, nil
}

func (f *chainFile) save(chain []Block) error {
	start := time.Now()
	defer func() { persistLatencyMetric.Observe(time.Since(start).Seconds()) }()
	return util.PersistJSON(f.path, chain)
}

// load reads the persisted chain. A missing, unreadable, empty or structurally incomplete file
// is replaced by a fresh genesis-only chain, in which case reset is true.
func (f *chainFile) load(ctx context.Context, now time.Time, difficulty int) (chain []Block, reset bool, err error) {
	logger := logging.FromContext(ctx).With(zap.String("path", f.path))

	_, err = os.Stat(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no persisted chain, creating genesis")
		return f.initGenesis(now)
	case err != nil:
		return nil, false, fmt.Errorf("checking chain file: %w", err)
	}

	var stored []storedBlock
	if err := util.LoadJSON(f.path, &stored); err != nil {
		logger.Warn("persisted chain is unreadable, reinitializing to genesis", zap.Error(err))
		return f.initGenesis(now)
	}
	if len(stored) == 0 {
		logger.Warn("persisted chain is empty, reinitializing to genesis")
		return f.initGenesis(now)
	}
	chain, err = decodeChain(stored)
	if err != nil {
		logger.Warn("persisted chain is incomplete, reinitializing to genesis", zap.Error(err))
		return f.initGenesis(now)
	}
	if err := validateChain(chain, difficulty); err != nil {
		logger.Warn("persisted chain failed validation", zap.Error(err))
	}
	logger.Info("loaded chain", zap.Int("blocks", len(chain)))
	return chain, false, nil
}

func (f *chainFile) initGenesis(now time.Time) ([]Block, bool, error) {
	chain := []Block{genesisBlock(now)}
	if err := f.save(chain); err != nil {
		return nil, false, fmt.Errorf("persisting genesis chain: %w", err)
	}
	return chain, true, nil
}
