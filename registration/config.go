package registration

import (
	"go.uber.org/zap/zapcore"
)

const DefaultAnchorScheme = "cerbtk"

func DefaultConfig() Config {
	return Config{
		AnchorScheme: DefaultAnchorScheme,
	}
}

//nolint:lll
type Config struct {
	NonceRequired bool   `long:"nonce-required" description:"Reject registrations that do not carry a freshly issued nonce"`
	RequireSigned bool   `long:"require-signed" description:"Reject bodies that are not signed JSON registrations instead of mining them verbatim"`
	AnchorScheme  string `long:"anchor-scheme"  description:"Prefix of the published chain anchor"`
	RebuildIndex  bool   `long:"rebuild-index"  description:"Re-derive the device index from the chain on startup"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("nonce-required", c.NonceRequired)
	enc.AddBool("require-signed", c.RequireSigned)
	enc.AddString("anchor-scheme", c.AnchorScheme)
	enc.AddBool("rebuild-index", c.RebuildIndex)
	return nil
}
