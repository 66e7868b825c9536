package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/minio/sha256-simd"
)

const (
	GenesisPreviousHash = "0"
	GenesisData         = "Genesis block"
)

// Block is a single ledger entry. Blocks are handed out by value and never modified after construction.
type Block struct {
	Index        int64  `json:"index"`
	PreviousHash string `json:"previousHash"`
	Data         string `json:"data"`
	ProofOfWork  int64  `json:"proofOfWork"`
	Timestamp    int64  `json:"timestamp"` // Unix milliseconds
	Hash         string `json:"hash"`
}

func newBlock(index int64, previousHash, data string, proofOfWork int64, created time.Time) Block {
	timestamp := created.UnixMilli()
	return Block{
		Index:        index,
		PreviousHash: previousHash,
		Data:         data,
		ProofOfWork:  proofOfWork,
		Timestamp:    timestamp,
		Hash:         CalculateHash(index, previousHash, timestamp, data),
	}
}

func genesisBlock(created time.Time) Block {
	return newBlock(0, GenesisPreviousHash, GenesisData, 0, created)
}

// CalculateHash is hex(sha256(index || previousHash || timestamp || data)) with the integers
// rendered in decimal and no separators.
func CalculateHash(index int64, previousHash string, timestamp int64, data string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, strconv.FormatInt(index, 10))
	_, _ = io.WriteString(h, previousHash)
	_, _ = io.WriteString(h, strconv.FormatInt(timestamp, 10))
	_, _ = io.WriteString(h, data)
	return hex.EncodeToString(h.Sum(nil))
}

func (b Block) hashValid() bool {
	return b.Hash == CalculateHash(b.Index, b.PreviousHash, b.Timestamp, b.Data)
}

var (
	errIndexSuccession = errors.New("index does not follow predecessor")
	errPreviousHash    = errors.New("previous hash does not match predecessor")
	errHashMismatch    = errors.New("hash does not match block contents")
	errProofOfWork     = errors.New("proof of work does not satisfy relation")
	errGenesis         = errors.New("malformed genesis block")
	errEmptyChain      = errors.New("chain is empty")
)

func validateGenesis(genesis Block) error {
	if genesis.Index != 0 || genesis.PreviousHash != GenesisPreviousHash {
		return errGenesis
	}
	if !genesis.hashValid() {
		return fmt.Errorf("%w: %w", errGenesis, errHashMismatch)
	}
	return nil
}

func validateSuccessor(prev, cur Block, difficulty int) error {
	switch {
	case cur.Index != prev.Index+1:
		return errIndexSuccession
	case cur.PreviousHash != prev.Hash:
		return errPreviousHash
	case !cur.hashValid():
		return errHashMismatch
	case !ValidProofOfWork(cur.ProofOfWork, prev.ProofOfWork, difficulty):
		return errProofOfWork
	}
	return nil
}

// validateChain checks every chain invariant, stopping at the first violation.
func validateChain(chain []Block, difficulty int) error {
	if len(chain) == 0 {
		return errEmptyChain
	}
	if err := validateGenesis(chain[0]); err != nil {
		return err
	}
	for i := 1; i < len(chain); i++ {
		if err := validateSuccessor(chain[i-1], chain[i], difficulty); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}
