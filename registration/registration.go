package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cerbtk/registry/ledger"
	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/nonce"
	"github.com/cerbtk/registry/types"
)

//go:generate mockgen -package mocks -destination mocks/registration.go . Ledger,NonceStore,SignatureVerifier

type Ledger interface {
	MineBlock(ctx context.Context, data string) (ledger.Block, error)
	IndexDevice(deviceID, blockHash string) error
	FindBlockByHash(hash string) (ledger.Block, bool)
	FindBlockByDeviceID(deviceID string) (ledger.Block, bool)
	IsChainValid() bool
	Blocks() []ledger.Block
	Head() ledger.Head
	Anchor(scheme string) ledger.Anchor
	Reset(ctx context.Context) error
}

type NonceStore interface {
	Issue(ctx context.Context, deviceID string) (nonce.Entry, error)
	Verify(ctx context.Context, deviceID, nonce string) bool
	Reset(ctx context.Context) error
}

type SignatureVerifier interface {
	Verify(ctx context.Context, p *types.RegistrationPayload) bool
}

// Registration coordinates nonce consumption, signature verification and the ledger append.
// It holds no state of its own; the ledger and the nonce store do their own locking.
type Registration struct {
	cfg      Config
	ledger   Ledger
	nonces   NonceStore
	verifier SignatureVerifier
}

type newRegistrationOptionFunc func(*newRegistrationOptions)

type newRegistrationOptions struct {
	cfg Config
}

func WithConfig(cfg Config) newRegistrationOptionFunc {
	return func(opts *newRegistrationOptions) {
		opts.cfg = cfg
	}
}

func New(chain Ledger, nonces NonceStore, verifier SignatureVerifier, opts ...newRegistrationOptionFunc) *Registration {
	options := newRegistrationOptions{
		cfg: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.cfg.AnchorScheme == "" {
		options.cfg.AnchorScheme = DefaultAnchorScheme
	}
	return &Registration{
		cfg:      options.cfg,
		ledger:   chain,
		nonces:   nonces,
		verifier: verifier,
	}
}

// Register admits body into the ledger and returns the mined block.
//
// Errors:
//   - types.ErrEmptyPayload for a blank body,
//   - *ValidationError for a malformed payload,
//   - types.ErrInvalidNonce and types.ErrInvalidSignature for rejected payloads,
//   - types.ErrLedgerAppend wrapping the ledger's error when the block could not be appended or indexed.
func (r *Registration) Register(ctx context.Context, body []byte) (ledger.Block, error) {
	logger := logging.FromContext(ctx).Named("registration")
	ctx = logging.NewContext(ctx, logger)

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		registrationsMetric.WithLabelValues("schema").Inc()
		return ledger.Block{}, types.ErrEmptyPayload
	}
	if !isObject(trimmed) && !r.cfg.RequireSigned {
		logger.Debug("mining unsigned payload", zap.Int("size", len(body)))
		block, err := r.mine(ctx, string(body))
		if err != nil {
			return ledger.Block{}, err
		}
		registrationsMetric.WithLabelValues("accepted").Inc()
		return block, nil
	}

	p, err := DecodePayload(trimmed, r.cfg.NonceRequired)
	if err != nil {
		registrationsMetric.WithLabelValues("schema").Inc()
		logger.Debug("rejecting malformed payload", zap.Error(err))
		return ledger.Block{}, err
	}
	logger = logger.With(zap.String("device_id", p.DeviceID))
	ctx = logging.NewContext(ctx, logger)

	if r.cfg.NonceRequired || strings.TrimSpace(types.Value(p.Nonce)) != "" {
		if !r.nonces.Verify(ctx, p.DeviceID, types.Value(p.Nonce)) {
			registrationsMetric.WithLabelValues("nonce").Inc()
			logger.Info("rejecting registration with invalid nonce")
			return ledger.Block{}, types.ErrInvalidNonce
		}
	}

	if !r.verifier.Verify(ctx, p) {
		registrationsMetric.WithLabelValues("signature").Inc()
		logger.Info("rejecting registration with invalid signature", zap.Object("payload", p))
		return ledger.Block{}, types.ErrInvalidSignature
	}

	data, err := json.Marshal(p)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("encoding payload: %w", err)
	}
	block, err := r.mine(ctx, string(data))
	if err != nil {
		return ledger.Block{}, err
	}
	if err := r.ledger.IndexDevice(p.DeviceID, block.Hash); err != nil {
		registrationsMetric.WithLabelValues("ledger").Inc()
		logger.Error("failed to index device", zap.String("hash", block.Hash), zap.Error(err))
		return ledger.Block{}, fmt.Errorf("%w: indexing device: %w", types.ErrLedgerAppend, err)
	}
	registrationsMetric.WithLabelValues("accepted").Inc()
	logger.Info("registered device", zap.Int64("index", block.Index), zap.String("hash", block.Hash))
	return block, nil
}

func (r *Registration) mine(ctx context.Context, data string) (ledger.Block, error) {
	block, err := r.ledger.MineBlock(ctx, data)
	if err != nil {
		registrationsMetric.WithLabelValues("ledger").Inc()
		logging.FromContext(ctx).Error("failed to append block", zap.Error(err))
		return ledger.Block{}, fmt.Errorf("%w: %w", types.ErrLedgerAppend, err)
	}
	return block, nil
}

// IssueNonce hands out a fresh challenge for the device, replacing any earlier one.
func (r *Registration) IssueNonce(ctx context.Context, deviceID string) (nonce.Entry, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nonce.Entry{}, &ValidationError{
			Fields: []string{"deviceId"},
			err:    &fieldError{field: "deviceId", problem: "must not be blank"},
		}
	}
	entry, err := r.nonces.Issue(ctx, deviceID)
	if err != nil {
		return nonce.Entry{}, fmt.Errorf("issuing nonce: %w", err)
	}
	return entry, nil
}

func (r *Registration) Blocks() []ledger.Block {
	return r.ledger.Blocks()
}

func (r *Registration) BlockByHash(hash string) (ledger.Block, bool) {
	return r.ledger.FindBlockByHash(hash)
}

func (r *Registration) BlockByDeviceID(deviceID string) (ledger.Block, bool) {
	return r.ledger.FindBlockByDeviceID(deviceID)
}

func (r *Registration) ChainValid() bool {
	return r.ledger.IsChainValid()
}

func (r *Registration) Head() ledger.Head {
	return r.ledger.Head()
}

func (r *Registration) Anchor() ledger.Anchor {
	return r.ledger.Anchor(r.cfg.AnchorScheme)
}

// RebuildIndex points every device at the latest block that registered it.
// Only blocks holding a JSON registration are considered; raw blocks carry no device id.
func (r *Registration) RebuildIndex(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx).Named("rebuild-index")
	latest := make(map[string]string)
	for _, block := range r.ledger.Blocks() {
		if block.Index == 0 || !isObject([]byte(block.Data)) {
			continue
		}
		var p types.RegistrationPayload
		if err := json.Unmarshal([]byte(block.Data), &p); err != nil || strings.TrimSpace(p.DeviceID) == "" {
			continue
		}
		latest[p.DeviceID] = block.Hash
	}
	for deviceID, hash := range latest {
		if err := r.ledger.IndexDevice(deviceID, hash); err != nil {
			return 0, fmt.Errorf("indexing device %s: %w", deviceID, err)
		}
	}
	logger.Info("rebuilt device index", zap.Int("devices", len(latest)))
	return len(latest), nil
}

// Reset returns the ledger to genesis and forgets every issued nonce.
func (r *Registration) Reset(ctx context.Context) error {
	return errors.Join(r.ledger.Reset(ctx), r.nonces.Reset(ctx))
}
