package ledger

import (
	"go.uber.org/zap/zapcore"
)

const DefaultDifficulty = 1

func DefaultConfig() Config {
	return Config{
		Difficulty: DefaultDifficulty,
	}
}

//nolint:lll
type Config struct {
	DisableStorage bool   `long:"disable-storage" description:"Keep the chain in memory only"`
	StoragePath    string `long:"storage-path"    description:"Path of the persisted chain file (defaults to <datadir>/chain.json)"`
	IndexPath      string `long:"index-path"      description:"Path of the device index database (defaults to <dbdir>/devices)"`
	Difficulty     int    `long:"difficulty"      description:"Proof-of-work difficulty; proofs are checked modulo 8*difficulty"`
}

func (c Config) StorageEnabled() bool {
	return !c.DisableStorage
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("storage-enabled", c.StorageEnabled())
	enc.AddString("storage-path", c.StoragePath)
	enc.AddString("index-path", c.IndexPath)
	enc.AddInt("difficulty", c.Difficulty)
	return nil
}
