package buyback

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"riftvault/core/state"
	"riftvault/native/bank"
	nativecommon "riftvault/native/common"
	"riftvault/native/vault"
	"riftvault/storage"
)

var (
	feeAsset    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	rewardAsset = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	sink        = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	reserve     = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	vaultAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func newExecutor(t *testing.T, quota nativecommon.Quota) (*Executor, *bank.Ledger) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := bank.NewLedger(mgr)
	require.NoError(t, ledger.Mint(feeAsset, vaultAddr, 10_000))
	exec := NewExecutor(ledger, mgr, Config{
		RewardAsset: rewardAsset,
		RewardSink:  sink,
		Reserve:     reserve,
		RateBps:     25_000,
		Quota:       quota,
	})
	exec.SetNowFunc(func() time.Time { return time.Unix(7_200, 0) })
	return exec, ledger
}

func TestExecuteBuybackSettlesBothLegs(t *testing.T) {
	exec, ledger := newExecutor(t, nativecommon.Quota{})

	bought, err := exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset, Amount: 599})
	require.NoError(t, err)
	require.Equal(t, uint64(1_497), bought)

	reserveBal, err := ledger.Balance(feeAsset, reserve)
	require.NoError(t, err)
	require.Equal(t, uint64(599), reserveBal)
	sinkBal, err := ledger.Balance(rewardAsset, sink)
	require.NoError(t, err)
	require.Equal(t, uint64(1_497), sinkBal)

	totals, err := exec.Totals(vaultAddr)
	require.NoError(t, err)
	require.Equal(t, Totals{Sold: 599, Bought: 1_497, Orders: 1}, totals)
}

func TestExecuteBuybackEnforcesQuota(t *testing.T) {
	exec, _ := newExecutor(t, nativecommon.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3_600})

	_, err := exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset, Amount: 100})
	require.NoError(t, err)
	_, err = exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset, Amount: 100})
	require.ErrorIs(t, err, nativecommon.ErrQuotaRequestsExceeded)

	exec.SetNowFunc(func() time.Time { return time.Unix(10_800, 0) })
	_, err = exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset, Amount: 100})
	require.NoError(t, err)
}

func TestExecuteBuybackRejectsBadOrders(t *testing.T) {
	exec, _ := newExecutor(t, nativecommon.Quota{})
	_, err := exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = exec.ExecuteBuyback(vault.BuybackOrder{Vault: vaultAddr, Asset: feeAsset, Amount: 20_000})
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)

	var empty *Executor
	_, err = empty.ExecuteBuyback(vault.BuybackOrder{Amount: 1})
	require.ErrorIs(t, err, ErrNotConfigured)
}
