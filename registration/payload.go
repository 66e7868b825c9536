package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cerbtk/registry/types"
)

var errNotAnObject = errors.New("payload is not a JSON object")

// ValidationError reports a malformed registration payload.
// Fields names every offending field using its JSON name; it is empty when the body could not be decoded at all.
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

type fieldError struct {
	field   string
	problem string
}

func (e *fieldError) Error() string {
	return e.field + " " + e.problem
}

func listFormat(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// isObject reports whether the trimmed body looks like a JSON object.
func isObject(body []byte) bool {
	return len(body) > 0 && body[0] == '{'
}

// DecodePayload parses body into a payload and validates its shape.
func DecodePayload(body []byte, nonceRequired bool) (*types.RegistrationPayload, error) {
	body = bytes.TrimSpace(body)
	if !isObject(body) {
		return nil, &ValidationError{err: errNotAnObject}
	}
	var p types.RegistrationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ValidationError{err: fmt.Errorf("decoding payload: %w", err)}
	}
	if err := Validate(&p, nonceRequired); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every required field and returns a *ValidationError listing all that are missing or invalid.
func Validate(p *types.RegistrationPayload, nonceRequired bool) error {
	var result *multierror.Error
	require := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			result = multierror.Append(result, &fieldError{field: field, problem: "must not be blank"})
			return false
		}
		return true
	}
	requireOptional := func(field string, value *string) {
		if value == nil {
			result = multierror.Append(result, &fieldError{field: field, problem: "is required"})
			return
		}
		require(field, *value)
	}

	require("deviceId", p.DeviceID)
	require("owner", p.Owner)
	if require("timestamp", p.Timestamp) {
		if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
			result = multierror.Append(result, &fieldError{field: "timestamp", problem: "must be an RFC 3339 date-time"})
		}
	}
	require("publicKey", p.PublicKey)
	require("signature", p.Signature)
	requireOptional("firmwareHash", p.FirmwareHash)
	requireOptional("buildId", p.BuildID)
	requireOptional("recipe", p.Recipe)
	requireOptional("boardRev", p.BoardRev)
	if nonceRequired {
		requireOptional("nonce", p.Nonce)
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = listFormat
	fields := make([]string, 0, len(result.Errors))
	for _, err := range result.Errors {
		var fe *fieldError
		if errors.As(err, &fe) {
			fields = append(fields, fe.field)
		}
	}
	return &ValidationError{Fields: fields, err: result}
}
