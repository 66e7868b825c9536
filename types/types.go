package types

import (
	"go.uber.org/zap/zapcore"
)

// RegistrationPayload is a signed device registration as submitted by a device or its operator.
// Optional fields are pointers so that an absent field can be told apart from an empty one.
type RegistrationPayload struct {
	DeviceID  string `json:"deviceId"`
	Owner     string `json:"owner"`
	Timestamp string `json:"timestamp"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`

	FirmwareHash *string `json:"firmwareHash,omitempty"`
	BuildID      *string `json:"buildId,omitempty"`
	Recipe       *string `json:"recipe,omitempty"`
	BoardRev     *string `json:"boardRev,omitempty"`
	Nonce        *string `json:"nonce,omitempty"`
	Algorithm    *string `json:"algorithm,omitempty"`
}

// Value dereferences an optional field, yielding "" when it is absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to s, handy for filling optional payload fields.
func Ptr(s string) *string {
	return &s
}

// implement zap.ObjectMarshaler interface.
func (p *RegistrationPayload) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("device_id", p.DeviceID)
	enc.AddString("owner", p.Owner)
	enc.AddString("timestamp", p.Timestamp)
	enc.AddString("firmware_hash", Value(p.FirmwareHash))
	enc.AddString("board_rev", Value(p.BoardRev))
	enc.AddString("algorithm", Value(p.Algorithm))
	return nil
}
