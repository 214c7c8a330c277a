package vault

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type mockStorage struct {
	kv    map[string][]byte
	lists map[string][][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{kv: make(map[string][]byte), lists: make(map[string][][]byte)}
}

func (m *mockStorage) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockStorage) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockStorage) KVDelete(key []byte) error {
	delete(m.kv, string(key))
	return nil
}

func (m *mockStorage) KVAppend(key []byte, value []byte) error {
	k := string(key)
	for _, existing := range m.lists[k] {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	m.lists[k] = append(m.lists[k], append([]byte(nil), value...))
	return nil
}

func (m *mockStorage) KVRemove(key []byte, value []byte) error {
	k := string(key)
	filtered := m.lists[k][:0]
	for _, existing := range m.lists[k] {
		if !bytes.Equal(existing, value) {
			filtered = append(filtered, existing)
		}
	}
	m.lists[k] = filtered
	return nil
}

func (m *mockStorage) KVGetList(key []byte, out interface{}) error {
	list := m.lists[string(key)]
	if list == nil {
		list = [][]byte{}
	}
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}

var errInsufficientFunds = errors.New("mock bank: insufficient funds")

type mockBank struct {
	balances map[common.Address]map[common.Address]uint64
	supply   map[common.Address]uint64
	failOn   string
}

func newMockBank() *mockBank {
	return &mockBank{
		balances: make(map[common.Address]map[common.Address]uint64),
		supply:   make(map[common.Address]uint64),
	}
}

func (b *mockBank) Balance(asset, owner common.Address) (uint64, error) {
	return b.balances[asset][owner], nil
}

func (b *mockBank) credit(asset, owner common.Address, amount uint64) {
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[common.Address]uint64)
	}
	b.balances[asset][owner] += amount
}

func (b *mockBank) Transfer(asset, from, to common.Address, amount uint64) error {
	if b.failOn == "transfer" {
		return fmt.Errorf("mock bank: transfer disabled")
	}
	if b.balances[asset][from] < amount {
		return errInsufficientFunds
	}
	b.balances[asset][from] -= amount
	b.credit(asset, to, amount)
	return nil
}

func (b *mockBank) Mint(asset, to common.Address, amount uint64) error {
	b.credit(asset, to, amount)
	b.supply[asset] += amount
	return nil
}

func (b *mockBank) Burn(asset, from common.Address, amount uint64) error {
	if b.balances[asset][from] < amount {
		return errInsufficientFunds
	}
	b.balances[asset][from] -= amount
	if b.supply[asset] >= amount {
		b.supply[asset] -= amount
	}
	return nil
}

type mockGovernance struct {
	policy      Policy
	oracles     map[common.Address]bool
	authorities map[common.Address]bool
}

func (g *mockGovernance) VaultPolicy(common.Address) (Policy, error) { return g.policy, nil }

func (g *mockGovernance) IsOracleAuthorized(id common.Address) (bool, error) {
	return g.oracles[id], nil
}

func (g *mockGovernance) IsAuthority(id common.Address) (bool, error) {
	return g.authorities[id], nil
}

type stubSwap struct {
	bank    *mockBank
	reserve common.Address
	rateBps uint64
	orders  []BuybackOrder
	hook    func(order BuybackOrder)
	err     error
}

func (s *stubSwap) ExecuteBuyback(order BuybackOrder) (uint64, error) {
	s.orders = append(s.orders, order)
	if s.hook != nil {
		s.hook(order)
	}
	if s.err != nil {
		return 0, s.err
	}
	if err := s.bank.Transfer(order.Asset, order.Vault, s.reserve, order.Amount); err != nil {
		return 0, err
	}
	return order.Amount * s.rateBps / BasisPoints, nil
}

type stubRewards struct {
	addr     common.Address
	deposits map[common.Address]uint64
}

func (r *stubRewards) Address() common.Address { return r.addr }

func (r *stubRewards) DepositRewards(vault common.Address, amount uint64) error {
	if r.deposits == nil {
		r.deposits = make(map[common.Address]uint64)
	}
	r.deposits[vault] += amount
	return nil
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

var (
	testCreator    = addr(0x01)
	testUser       = addr(0x02)
	testOracle     = addr(0x03)
	testAuthority  = addr(0x04)
	testTreasury   = addr(0x05)
	testPartner    = addr(0x06)
	testReserve    = addr(0x07)
	testRewardPool = addr(0x08)
	testUnderlying = addr(0xA1)
	testWrapped    = addr(0xA2)
)

type harness struct {
	engine  *Engine
	state   *mockStorage
	bank    *mockBank
	gov     *mockGovernance
	swap    *stubSwap
	rewards *stubRewards
	clock   time.Time
	vault   common.Address
}

func newHarness(policy Policy) *harness {
	h := &harness{
		state: newMockStorage(),
		bank:  newMockBank(),
		gov: &mockGovernance{
			policy:      policy,
			oracles:     map[common.Address]bool{testOracle: true},
			authorities: map[common.Address]bool{testAuthority: true},
		},
		rewards: &stubRewards{addr: testRewardPool},
		clock:   time.Unix(1_700_000_000, 0),
	}
	h.swap = &stubSwap{bank: h.bank, reserve: testReserve, rateBps: BasisPoints}
	h.engine = NewEngine()
	h.engine.SetState(h.state)
	h.engine.SetBank(h.bank)
	h.engine.SetGovernance(h.gov)
	h.engine.SetSwapExecutor(h.swap)
	h.engine.SetRewardPool(h.rewards)
	h.engine.SetNowFunc(func() time.Time { return h.clock })
	h.bank.credit(testUnderlying, testUser, 10_000_000)
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) create() *Vault {
	v, err := h.engine.CreateVault(testCreator, testUnderlying, testWrapped, "rUSD vault")
	if err != nil {
		panic(err)
	}
	h.vault = v.Address
	return v
}

func (h *harness) load() *Vault {
	v, err := h.engine.Vault(h.vault)
	if err != nil {
		panic(err)
	}
	return v
}

func testPolicy(burnBps uint64) Policy {
	p := DefaultPolicy(testTreasury)
	p.BurnFeeBps = burnBps
	return p
}
