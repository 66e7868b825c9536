package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/cerbtk/registry/logging"
)

func memoryConfig() Config {
	cfg := DefaultConfig()
	cfg.DisableStorage = true
	return cfg
}

func storageConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.StoragePath = filepath.Join(dir, "chain.json")
	cfg.IndexPath = filepath.Join(dir, "devices")
	return cfg
}

func newTestLedger(t *testing.T, cfg Config, opts ...OptionFunc) *Ledger {
	t.Helper()
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	l, err := New(ctx, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })
	return l
}

func TestNewLedgerStartsWithGenesis(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())

	blocks := l.Blocks()
	require.Len(t, blocks, 1)
	latest := l.Latest()
	require.Equal(t, int64(0), latest.Index)
	require.Equal(t, "Genesis block", latest.Data)
	require.Equal(t, int64(0), latest.ProofOfWork)
	require.Equal(t, "0", latest.PreviousHash)
	require.True(t, l.IsChainValid())
}

func TestNewLedgerRejectsDifficulty(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	cfg.Difficulty = 0
	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidDifficulty)
}

func TestNewLedgerRequiresStoragePath(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), DefaultConfig())
	require.Error(t, err)
}

func TestMineBlock(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	genesis := l.Latest()

	block, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)
	require.Equal(t, block, l.Latest())
	require.Equal(t, genesis.Hash, block.PreviousHash)
	require.Equal(t, genesis.Index+1, block.Index)
	require.Equal(t, "data", block.Data)
	require.Equal(t, int64(8), block.ProofOfWork)
	require.NotEmpty(t, block.Hash)
	require.NotZero(t, block.Timestamp)

	second, err := l.MineBlock(context.Background(), "more data")
	require.NoError(t, err)
	require.Equal(t, block.Hash, second.PreviousHash)
	require.Equal(t, int64(2), second.Index)
	require.Equal(t, int64(16), second.ProofOfWork)
}

func TestMineBlockWithHigherDifficulty(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	cfg.Difficulty = 3
	l := newTestLedger(t, cfg)

	block, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)
	require.Equal(t, int64(24), block.ProofOfWork)
	require.True(t, l.IsChainValid())
}

func TestFindBlockByHash(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	mined, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)
	_, err = l.MineBlock(context.Background(), "later")
	require.NoError(t, err)

	found, ok := l.FindBlockByHash(mined.Hash)
	require.True(t, ok)
	require.Equal(t, mined, found)

	_, ok = l.FindBlockByHash("unknown")
	require.False(t, ok)
}

func TestFindBlockByDeviceID(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())

	_, ok := l.FindBlockByDeviceID("d1")
	require.False(t, ok)

	first, err := l.MineBlock(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, l.IndexDevice("d1", first.Hash))

	found, ok := l.FindBlockByDeviceID("d1")
	require.True(t, ok)
	require.Equal(t, first, found)

	// re-registration moves the index, the old block stays in the chain
	second, err := l.MineBlock(context.Background(), "second")
	require.NoError(t, err)
	require.NoError(t, l.IndexDevice("d1", second.Hash))

	found, ok = l.FindBlockByDeviceID("d1")
	require.True(t, ok)
	require.Equal(t, second, found)
	_, ok = l.FindBlockByHash(first.Hash)
	require.True(t, ok)
}

func TestIndexDeviceKeepsLaterBlock(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	first, err := l.MineBlock(context.Background(), "first")
	require.NoError(t, err)
	second, err := l.MineBlock(context.Background(), "second")
	require.NoError(t, err)

	// indexing calls arrive in the opposite order to mining
	require.NoError(t, l.IndexDevice("d1", second.Hash))
	require.NoError(t, l.IndexDevice("d1", first.Hash))

	found, ok := l.FindBlockByDeviceID("d1")
	require.True(t, ok)
	require.Equal(t, second, found)
}

func TestIsChainValidDetectsTampering(t *testing.T) {
	t.Parallel()
	tamper := map[string]func(b *Block){
		"data":          func(b *Block) { b.Data = "forged" },
		"previous hash": func(b *Block) { b.PreviousHash = "0000" },
		"timestamp":     func(b *Block) { b.Timestamp++ },
		"index":         func(b *Block) { b.Index = 7 },
		"proof of work": func(b *Block) { b.ProofOfWork = 9 },
	}
	for name, fn := range tamper {
		fn := fn
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			l := newTestLedger(t, memoryConfig())
			for i := 0; i < 3; i++ {
				_, err := l.MineBlock(context.Background(), fmt.Sprintf("block %d", i))
				require.NoError(t, err)
			}
			require.True(t, l.IsChainValid())

			fn(&l.chain[2])
			require.False(t, l.IsChainValid())
		})
	}
}

func TestIsChainValidTamperedGenesis(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	l.chain[0].Data = "not genesis"
	require.False(t, l.IsChainValid())
}

func TestIsChainValidEmptyChain(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	l.chain = nil
	require.False(t, l.IsChainValid())
}

func TestMineBlockRejectedCandidate(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	_, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)

	// The candidate index comes from the chain length and no longer follows the corrupted tail.
	l.chain[1].Index = 5
	_, err = l.MineBlock(context.Background(), "next")
	require.ErrorIs(t, err, ErrBlockRejected)
	require.Len(t, l.Blocks(), 2)
}

func TestAnchorAndHead(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	block, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)

	require.Equal(t, Head{Index: 1, Hash: block.Hash}, l.Head())
	anchor := l.Anchor("cerbtk")
	require.Equal(t, int64(1), anchor.Index)
	require.Equal(t, block.Hash, anchor.Hash)
	require.Equal(t, "cerbtk:1:"+block.Hash, anchor.Anchor)
}

func TestBlocksReturnsCopy(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, memoryConfig())
	blocks := l.Blocks()
	blocks[0].Data = "changed"
	require.Equal(t, GenesisData, l.Latest().Data)
	require.True(t, l.IsChainValid())
}

func TestReset(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, storageConfig(t.TempDir()))
	block, err := l.MineBlock(context.Background(), "data")
	require.NoError(t, err)
	require.NoError(t, l.IndexDevice("d1", block.Hash))

	require.NoError(t, l.Reset(context.Background()))
	require.Len(t, l.Blocks(), 1)
	_, ok := l.FindBlockByDeviceID("d1")
	require.False(t, ok)
	_, ok = l.FindBlockByHash(block.Hash)
	require.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := storageConfig(dir)
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))

	l, err := New(ctx, cfg)
	require.NoError(t, err)
	block, err := l.MineBlock(ctx, "data")
	require.NoError(t, err)
	require.NoError(t, l.IndexDevice("d1", block.Hash))
	blocks := l.Blocks()
	require.NoError(t, l.Close())

	reopened, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, reopened.Close()) })

	require.Equal(t, blocks, reopened.Blocks())
	require.True(t, reopened.IsChainValid())
	found, ok := reopened.FindBlockByDeviceID("d1")
	require.True(t, ok)
	require.Equal(t, block, found)
}

func TestMissingChainFileCreatesGenesis(t *testing.T) {
	t.Parallel()
	cfg := storageConfig(t.TempDir())
	l := newTestLedger(t, cfg)
	require.Len(t, l.Blocks(), 1)

	_, err := os.Stat(cfg.StoragePath)
	require.NoError(t, err)
}

func TestCorruptChainFileResetsToGenesis(t *testing.T) {
	t.Parallel()
	for name, content := range map[string]string{
		"garbage":      "{not json",
		"empty array":  "[]",
		"wrong shape":  `{"index": 1}`,
		"empty block":  `[{}]`,
		"index only":   `[{"index":0}]`,
		"missing hash": `[{"index":0,"previousHash":"0","data":"Genesis block","proofOfWork":0,"timestamp":1}]`,
		"null data":    `[{"index":0,"previousHash":"0","data":null,"proofOfWork":0,"timestamp":1,"hash":"h"}]`,
	} {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			cfg := storageConfig(dir)
			ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))

			// Seed the device index so the reset can be observed.
			l, err := New(ctx, cfg)
			require.NoError(t, err)
			block, err := l.MineBlock(ctx, "data")
			require.NoError(t, err)
			require.NoError(t, l.IndexDevice("d1", block.Hash))
			require.NoError(t, l.Close())

			require.NoError(t, os.WriteFile(cfg.StoragePath, []byte(content), 0o600))

			l = newTestLedger(t, cfg)
			require.Len(t, l.Blocks(), 1)
			require.Equal(t, GenesisData, l.Latest().Data)
			require.True(t, l.IsChainValid())
			_, ok := l.FindBlockByDeviceID("d1")
			require.False(t, ok)

			data, err := os.ReadFile(cfg.StoragePath)
			require.NoError(t, err)
			require.Contains(t, string(data), GenesisData)
			require.NotContains(t, string(data), `"data": "data"`)
		})
	}
}

func TestTamperedChainFileIsKeptButInvalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := storageConfig(dir)
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))

	l, err := New(ctx, cfg)
	require.NoError(t, err)
	_, err = l.MineBlock(ctx, "original")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.StoragePath)
	require.NoError(t, err)
	forged := []byte(strings.Replace(string(data), `"original"`, `"forged"`, 1))
	require.NoError(t, os.WriteFile(cfg.StoragePath, forged, 0o600))

	l = newTestLedger(t, cfg)
	require.Len(t, l.Blocks(), 2)
	require.False(t, l.IsChainValid())
}

func TestDanglingDeviceEntriesArePruned(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := storageConfig(dir)

	index, err := NewLevelDBIndex(cfg.IndexPath)
	require.NoError(t, err)
	require.NoError(t, index.Put("ghost", "no-such-block"))
	require.NoError(t, index.Close())

	// Create a chain file first so startup does not count as a reset.
	require.NoError(t, (&chainFile{path: cfg.StoragePath}).save([]Block{genesisBlock(time.Now())}))

	l := newTestLedger(t, cfg)
	_, ok, err := l.index.Get("ghost")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStorageFailureLeavesChainUntouched(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StoragePath = filepath.Join(dir, "chain", "chain.json")
	l := newTestLedger(t, cfg, WithDeviceIndex(NewMemoryIndex()))

	// Replace the chain directory with a regular file so the next write cannot succeed.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "chain")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chain"), nil, 0o600))

	_, err := l.MineBlock(context.Background(), "data")
	require.Error(t, err)
	require.Len(t, l.Blocks(), 1)
	require.True(t, l.IsChainValid())
}

func TestConcurrentMining(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, storageConfig(t.TempDir()))

	var eg errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		eg.Go(func() error {
			block, err := l.MineBlock(context.Background(), fmt.Sprintf("device-%d", i))
			if err != nil {
				return err
			}
			if !l.IsChainValid() {
				return fmt.Errorf("chain invalid after block %d", block.Index)
			}
			return l.IndexDevice(fmt.Sprintf("device-%d", i), block.Hash)
		})
	}
	require.NoError(t, eg.Wait())
	require.Len(t, l.Blocks(), 17)
	require.True(t, l.IsChainValid())

	for i := 0; i < 16; i++ {
		block, ok := l.FindBlockByDeviceID(fmt.Sprintf("device-%d", i))
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("device-%d", i), block.Data)
	}
}
