package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"riftvault/native/oraclefeed"
	"riftvault/native/vault"
	"riftvault/services/vaultd/storage"
)

var (
	identity  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	now       = time.Unix(1_700_000_000, 0)
)

type stubSource struct {
	name    string
	vendor  string
	payload []byte
	err     error
}

func (s *stubSource) Name() string          { return s.name }
func (s *stubSource) Vendor() string        { return s.vendor }
func (s *stubSource) Vault() common.Address { return vaultAddr }
func (s *stubSource) Fetch(context.Context) ([]byte, error) {
	return s.payload, s.err
}

type stubSubmitter struct {
	mu      sync.Mutex
	samples []vault.OracleSample
	err     error
}

func (s *stubSubmitter) RecordOraclePrice(_ context.Context, oracle, addr common.Address, sample vault.OracleSample) (*vault.OracleUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if oracle != identity || addr != vaultAddr {
		return nil, errors.New("unexpected identity")
	}
	s.samples = append(s.samples, sample)
	return &vault.OracleUpdate{
		Average:    sample.Price,
		Rebalanced: true,
		Rebalance:  &vault.RebalanceResult{PreviousRatio: 10_000, NewRatio: sample.Price},
	}, nil
}

type memJournal struct {
	rows []storage.OracleSample
}

func (j *memJournal) RecordSample(_ context.Context, s *storage.OracleSample) error {
	j.rows = append(j.rows, *s)
	return nil
}

func TestTickSubmitsParsedSamples(t *testing.T) {
	sub := &stubSubmitter{}
	journal := &memJournal{}
	sources := []Source{
		&stubSource{name: "pyth-a", vendor: "pyth", payload: oraclefeed.EncodePyth(10_350, 10, -4, now.Unix()-5)},
		&stubSource{name: "link-a", vendor: "chainlink", payload: oraclefeed.EncodeChainlink(3, 101_000_000, 8, now.Unix()-5, 0)},
	}
	mgr, err := New(sub, identity, sources, time.Second, WithJournal(journal), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, mgr.Tick(context.Background()))
	require.Len(t, sub.samples, 2)
	require.Equal(t, uint64(10_350), sub.samples[0].Price)
	require.Equal(t, uint64(10_100), sub.samples[1].Price)
	require.Len(t, journal.rows, 2)
	require.True(t, journal.rows[0].Accepted)
	require.True(t, journal.rows[0].Rebalanced)
}

func TestTickContinuesPastFailingSource(t *testing.T) {
	sub := &stubSubmitter{}
	journal := &memJournal{}
	sources := []Source{
		&stubSource{name: "down", vendor: "pyth", err: errors.New("timeout")},
		&stubSource{name: "stale", vendor: "pyth", payload: oraclefeed.EncodePyth(10_000, 0, -4, now.Unix()-1_000)},
		&stubSource{name: "ok", vendor: "pyth", payload: oraclefeed.EncodePyth(10_000, 0, -4, now.Unix())},
	}
	mgr, err := New(sub, identity, sources, time.Second, WithJournal(journal), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	err = mgr.Tick(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, oraclefeed.ErrStalePrice)
	require.Len(t, sub.samples, 1)
	require.Len(t, journal.rows, 1)
}

func TestTickJournalsEngineRejection(t *testing.T) {
	sub := &stubSubmitter{err: vault.ErrUnauthorizedOracle}
	journal := &memJournal{}
	src := &stubSource{name: "pyth-a", vendor: "pyth", payload: oraclefeed.EncodePyth(10_000, 0, -4, now.Unix())}
	mgr, err := New(sub, identity, []Source{src}, time.Second, WithJournal(journal), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	err = mgr.Tick(context.Background())
	require.ErrorIs(t, err, vault.ErrUnauthorizedOracle)
	require.Len(t, journal.rows, 1)
	require.False(t, journal.rows[0].Accepted)
	require.NotEmpty(t, journal.rows[0].Error)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, identity, nil, time.Second)
	require.Error(t, err)
	_, err = New(&stubSubmitter{}, common.Address{}, nil, time.Second)
	require.Error(t, err)
	_, err = New(&stubSubmitter{}, identity, nil, 0)
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	mgr, err := New(&stubSubmitter{}, identity, nil, 10*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatalf("manager did not stop")
	}
}
