package registration_test

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/cerbtk/registry/ledger"
	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/nonce"
	"github.com/cerbtk/registry/registration"
	"github.com/cerbtk/registry/registration/mocks"
	"github.com/cerbtk/registry/signing"
	"github.com/cerbtk/registry/types"
)

type testRegistration struct {
	*registration.Registration
	ledger   *mocks.MockLedger
	nonces   *mocks.MockNonceStore
	verifier *mocks.MockSignatureVerifier
}

func newTestRegistration(t *testing.T, cfg registration.Config) *testRegistration {
	ctrl := gomock.NewController(t)
	tr := &testRegistration{
		ledger:   mocks.NewMockLedger(ctrl),
		nonces:   mocks.NewMockNonceStore(ctrl),
		verifier: mocks.NewMockSignatureVerifier(ctrl),
	}
	tr.Registration = registration.New(tr.ledger, tr.nonces, tr.verifier, registration.WithConfig(cfg))
	return tr
}

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), zaptest.NewLogger(t))
}

func TestRegisterSignedPayload(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	p := validPayload()
	body := encode(t, p)
	mined := ledger.Block{Index: 1, Hash: "h1", Data: string(body)}

	gomock.InOrder(
		r.verifier.EXPECT().Verify(gomock.Any(), p).Return(true),
		r.ledger.EXPECT().MineBlock(gomock.Any(), string(body)).Return(mined, nil),
		r.ledger.EXPECT().IndexDevice("device-123", "h1").Return(nil),
	)

	block, err := r.Register(testContext(t), body)
	require.NoError(t, err)
	require.Equal(t, mined, block)
}

func TestRegisterStoresCanonicalJSON(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	p := validPayload()
	body := []byte("\n  " + `{"unknown": 1, ` + string(encode(t, p))[1:] + "\n")

	r.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(true)
	r.ledger.EXPECT().MineBlock(gomock.Any(), string(encode(t, p))).Return(ledger.Block{Hash: "h"}, nil)
	r.ledger.EXPECT().IndexDevice(p.DeviceID, "h").Return(nil)

	_, err := r.Register(testContext(t), body)
	require.NoError(t, err)
}

func TestRegisterEmptyPayload(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := r.Register(testContext(t), []byte(body))
		require.ErrorIs(t, err, types.ErrEmptyPayload)
	}
}

func TestRegisterRawPayload(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	r.ledger.EXPECT().MineBlock(gomock.Any(), "firmware blob v1").Return(ledger.Block{Index: 1}, nil)

	block, err := r.Register(testContext(t), []byte("firmware blob v1"))
	require.NoError(t, err)
	require.EqualValues(t, 1, block.Index)
}

func TestRegisterRawPayloadWhenSignedRequired(t *testing.T) {
	t.Parallel()
	cfg := registration.DefaultConfig()
	cfg.RequireSigned = true
	r := newTestRegistration(t, cfg)

	_, err := r.Register(testContext(t), []byte("firmware blob v1"))
	var verr *registration.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRegisterSchemaErrorSkipsChecks(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	p := validPayload()
	p.Recipe = nil

	_, err := r.Register(testContext(t), encode(t, p))
	var verr *registration.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"recipe"}, verr.Fields)
}

func TestRegisterNonce(t *testing.T) {
	t.Parallel()
	cfg := registration.DefaultConfig()
	cfg.NonceRequired = true

	t.Run("missing", func(t *testing.T) {
		r := newTestRegistration(t, cfg)
		_, err := r.Register(testContext(t), encode(t, validPayload()))
		var verr *registration.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, []string{"nonce"}, verr.Fields)
	})
	t.Run("rejected", func(t *testing.T) {
		r := newTestRegistration(t, cfg)
		p := validPayload()
		p.Nonce = types.Ptr("stale")
		r.nonces.EXPECT().Verify(gomock.Any(), "device-123", "stale").Return(false)

		_, err := r.Register(testContext(t), encode(t, p))
		require.ErrorIs(t, err, types.ErrInvalidNonce)
	})
	t.Run("consumed before signature check", func(t *testing.T) {
		r := newTestRegistration(t, cfg)
		p := validPayload()
		p.Nonce = types.Ptr("fresh")
		gomock.InOrder(
			r.nonces.EXPECT().Verify(gomock.Any(), "device-123", "fresh").Return(true),
			r.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(false),
		)

		_, err := r.Register(testContext(t), encode(t, p))
		require.ErrorIs(t, err, types.ErrInvalidSignature)
	})
}

func TestRegisterSuppliedNonceIsCheckedWhenOptional(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	p := validPayload()
	p.Nonce = types.Ptr("replayed")
	r.nonces.EXPECT().Verify(gomock.Any(), "device-123", "replayed").Return(false)

	_, err := r.Register(testContext(t), encode(t, p))
	require.ErrorIs(t, err, types.ErrInvalidNonce)
}

func TestRegisterInvalidSignature(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	r.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(false)

	_, err := r.Register(testContext(t), encode(t, validPayload()))
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestRegisterLedgerFailure(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	r.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(true)
	r.ledger.EXPECT().MineBlock(gomock.Any(), gomock.Any()).Return(ledger.Block{}, ledger.ErrBlockRejected)

	_, err := r.Register(testContext(t), encode(t, validPayload()))
	require.ErrorIs(t, err, types.ErrLedgerAppend)
	require.ErrorIs(t, err, ledger.ErrBlockRejected)
}

func TestRegisterIndexFailure(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	dbErr := errors.New("disk full")
	r.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(true)
	r.ledger.EXPECT().MineBlock(gomock.Any(), gomock.Any()).Return(ledger.Block{Hash: "h"}, nil)
	r.ledger.EXPECT().IndexDevice("device-123", "h").Return(dbErr)

	_, err := r.Register(testContext(t), encode(t, validPayload()))
	require.ErrorIs(t, err, types.ErrLedgerAppend)
	require.ErrorIs(t, err, dbErr)
}

func TestIssueNonce(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	entry := nonce.Entry{Nonce: "n", ExpiresAt: time.Now().Add(time.Minute)}
	r.nonces.EXPECT().Issue(gomock.Any(), "d1").Return(entry, nil)

	got, err := r.IssueNonce(testContext(t), "d1")
	require.NoError(t, err)
	require.Equal(t, entry, got)

	_, err = r.IssueNonce(testContext(t), " ")
	var verr *registration.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"deviceId"}, verr.Fields)
}

func TestAnchorUsesConfiguredScheme(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.Config{AnchorScheme: "acme"})
	r.ledger.EXPECT().Anchor("acme").Return(ledger.Anchor{Anchor: "acme:0:h"})
	require.Equal(t, "acme:0:h", r.Anchor().Anchor)

	r = newTestRegistration(t, registration.Config{})
	r.ledger.EXPECT().Anchor("cerbtk").Return(ledger.Anchor{})
	r.Anchor()
}

func TestReset(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	nonceErr := errors.New("redis down")
	r.ledger.EXPECT().Reset(gomock.Any()).Return(nil)
	r.nonces.EXPECT().Reset(gomock.Any()).Return(nonceErr)

	require.ErrorIs(t, r.Reset(testContext(t)), nonceErr)
}

// Wires the real ledger, nonce store and verifier together.
func TestRegistrationPipeline(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	verifier := signing.NewVerifierWithKeys([]crypto.PublicKey{key.Public()}, "SHA256withECDSA")

	cfg := ledger.DefaultConfig()
	cfg.StoragePath = filepath.Join(t.TempDir(), "chain.json")
	l, err := ledger.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })

	nonces := nonce.NewMemoryStore(nonce.DefaultTTL)
	r := registration.New(l, nonces, verifier, registration.WithConfig(registration.Config{NonceRequired: true}))

	entry, err := r.IssueNonce(ctx, "device-123")
	require.NoError(t, err)

	p := validPayload()
	p.Nonce = types.Ptr(entry.Nonce)
	p.Algorithm = types.Ptr("SHA256withECDSA")
	p.Signature, err = signing.Sign(p, key, "SHA256withECDSA")
	require.NoError(t, err)
	body := encode(t, p)

	block, err := r.Register(ctx, body)
	require.NoError(t, err)
	require.EqualValues(t, 1, block.Index)

	var stored types.RegistrationPayload
	require.NoError(t, json.Unmarshal([]byte(block.Data), &stored))
	require.Equal(t, *p, stored)

	found, ok := r.BlockByDeviceID("device-123")
	require.True(t, ok)
	require.Equal(t, block, found)
	found, ok = r.BlockByHash(block.Hash)
	require.True(t, ok)
	require.Equal(t, block, found)
	require.True(t, r.ChainValid())
	require.Equal(t, ledger.Head{Index: 1, Hash: block.Hash}, r.Head())
	require.Len(t, r.Blocks(), 2)

	// replaying the same signed body fails because the nonce was consumed
	_, err = r.Register(ctx, body)
	require.ErrorIs(t, err, types.ErrInvalidNonce)
	require.Len(t, r.Blocks(), 2)
}

// heldLedger parks the first IndexDevice call until released.
type heldLedger struct {
	*ledger.Ledger
	arrived chan struct{}
	release chan struct{}
	held    bool
}

func (h *heldLedger) IndexDevice(deviceID, blockHash string) error {
	if !h.held {
		h.held = true
		close(h.arrived)
		<-h.release
	}
	return h.Ledger.IndexDevice(deviceID, blockHash)
}

func TestConcurrentReregistrationIndexesLatestBlock(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	cfg := ledger.DefaultConfig()
	cfg.DisableStorage = true
	l, err := ledger.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })

	chain := &heldLedger{Ledger: l, arrived: make(chan struct{}), release: make(chan struct{})}
	verifier := mocks.NewMockSignatureVerifier(gomock.NewController(t))
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(true).Times(2)
	r := registration.New(chain, nonce.NewMemoryStore(nonce.DefaultTTL), verifier)

	var first ledger.Block
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		first, err = r.Register(ctx, encode(t, validPayload()))
		return err
	})
	<-chain.arrived

	again := validPayload()
	again.Owner = "new-owner"
	second, err := r.Register(ctx, encode(t, again))
	require.NoError(t, err)

	close(chain.release)
	require.NoError(t, eg.Wait())
	require.Less(t, first.Index, second.Index)

	found, ok := r.BlockByDeviceID("device-123")
	require.True(t, ok)
	require.Equal(t, second, found)
}

func TestRebuildIndex(t *testing.T) {
	t.Parallel()
	r := newTestRegistration(t, registration.DefaultConfig())
	first := validPayload()
	second := validPayload()
	second.Owner = "new-owner"
	other := validPayload()
	other.DeviceID = "device-456"

	r.ledger.EXPECT().Blocks().Return([]ledger.Block{
		{Index: 0, Data: "Genesis block", Hash: "g"},
		{Index: 1, Data: string(encode(t, first)), Hash: "h1"},
		{Index: 2, Data: "raw firmware note", Hash: "h2"},
		{Index: 3, Data: string(encode(t, other)), Hash: "h3"},
		{Index: 4, Data: `{"owner":"no device"}`, Hash: "h4"},
		{Index: 5, Data: string(encode(t, second)), Hash: "h5"},
	})
	r.ledger.EXPECT().IndexDevice("device-123", "h5").Return(nil)
	r.ledger.EXPECT().IndexDevice("device-456", "h3").Return(nil)

	n, err := r.RebuildIndex(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
