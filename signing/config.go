package signing

import (
	"go.uber.org/zap/zapcore"
)

const (
	DefaultAlgorithm       = "SHA256withRSA"
	DefaultTrustedKeysPath = "config/trusted_keys.txt"
)

func DefaultConfig() Config {
	return Config{
		TrustedKeysPath: DefaultTrustedKeysPath,
		Algorithm:       DefaultAlgorithm,
	}
}

//nolint:lll
type Config struct {
	TrustedKeysPath string `long:"trusted-keys-path" description:"File with one base64 encoded X.509 public key per line"`
	Algorithm       string `long:"algorithm"         description:"Signature algorithm used when a payload does not name one"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("trusted-keys-path", c.TrustedKeysPath)
	enc.AddString("algorithm", c.Algorithm)
	return nil
}
