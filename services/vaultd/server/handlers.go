package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"riftvault/native/vault"
)

const maxBodyBytes = 64 << 10

var errMissingCaller = errors.New("caller identity required")

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// caller resolves the acting identity: the token subject when auth is on,
// otherwise the address supplied in the body.
func caller(r *http.Request, fallback string) (common.Address, error) {
	if subject, ok := subjectFrom(r.Context()); ok {
		return subject, nil
	}
	if strings.TrimSpace(fallback) == "" {
		return common.Address{}, errMissingCaller
	}
	return parseAddress(fallback)
}

func vaultParam(r *http.Request) (common.Address, error) {
	return parseAddress(chi.URLParam(r, "vault"))
}

func amountQuery(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	if raw == "" {
		return 0, errors.New("amount required")
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	return amount, nil
}

type vaultView struct {
	Address          string `json:"address"`
	Name             string `json:"name"`
	Creator          string `json:"creator"`
	Underlying       string `json:"underlyingAsset"`
	Wrapped          string `json:"wrappedAsset"`
	TotalWrapped     uint64 `json:"totalWrapped"`
	TotalBurned      uint64 `json:"totalBurned"`
	Volume24h        uint64 `json:"volume24h"`
	FeesCollected    uint64 `json:"feesCollected"`
	BackingRatioBps  uint64 `json:"backingRatioBps"`
	LastOracleUpdate int64  `json:"lastOracleUpdate"`
	LastRebalance    int64  `json:"lastRebalance"`
	RebalanceCount   uint64 `json:"rebalanceCount"`
	ArbitrageBps     uint64 `json:"arbitrageOpportunityBps"`
	DeviationBps     uint64 `json:"priceDeviationBps"`
	Paused           bool   `json:"paused"`
	PendingRewards   uint64 `json:"pendingRewards"`
	DeferredBuyback  uint64 `json:"deferredBuyback"`
	RewardsBought    uint64 `json:"rewardsDistributed"`
	FeesBurned       uint64 `json:"feesBurned"`
	FeesToPartner    uint64 `json:"feesToPartner"`
	FeesToTreasury   uint64 `json:"feesToTreasury"`
	CreatedAt        int64  `json:"createdAt"`
	LastActivity     int64  `json:"lastActivity"`
}

func newVaultView(v *vault.Vault) vaultView {
	return vaultView{
		Address:          v.Address.Hex(),
		Name:             v.Name,
		Creator:          v.Creator.Hex(),
		Underlying:       v.UnderlyingAsset.Hex(),
		Wrapped:          v.WrappedAsset.Hex(),
		TotalWrapped:     v.TotalWrapped,
		TotalBurned:      v.TotalBurned,
		Volume24h:        v.TotalVolume24h,
		FeesCollected:    v.TotalFeesCollected,
		BackingRatioBps:  v.BackingRatio,
		LastOracleUpdate: v.LastOracleUpdate,
		LastRebalance:    v.LastRebalance,
		RebalanceCount:   v.RebalanceCount,
		ArbitrageBps:     v.ArbitrageOpportunityBps,
		DeviationBps:     v.PriceDeviation,
		Paused:           v.Paused,
		PendingRewards:   v.PendingRewards,
		DeferredBuyback:  v.DeferredBuyback,
		RewardsBought:    v.RiftsTokensDistributed,
		FeesBurned:       v.FeesBurned,
		FeesToPartner:    v.FeesToPartner,
		FeesToTreasury:   v.FeesToTreasury,
		CreatedAt:        v.CreatedAt,
		LastActivity:     v.LastActivity,
	}
}

func (s *Server) handleListVaults(w http.ResponseWriter, _ *http.Request) {
	vaults, err := s.backend.Vaults()
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]vaultView, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, newVaultView(v))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vaults": out})
}

type statusView struct {
	Vault              vaultView `json:"vault"`
	PendingFees        uint64    `json:"pendingFees"`
	OracleCountdown    int64     `json:"oracleCountdown"`
	RebalanceCountdown int64     `json:"rebalanceCountdown"`
	RewardsDeposited   uint64    `json:"rewardsDeposited"`
	RewardsDistributed uint64    `json:"rewardsDistributed"`
	BuybackSold        uint64    `json:"buybackSold"`
	BuybackBought      uint64    `json:"buybackBought"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := s.backend.Status(addr)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView{
		Vault:              newVaultView(status.Vault),
		PendingFees:        status.PendingFees,
		OracleCountdown:    status.OracleCountdown,
		RebalanceCountdown: status.RebalanceCountdown,
		RewardsDeposited:   status.Rewards.Deposited,
		RewardsDistributed: status.Rewards.Distributed,
		BuybackSold:        status.Buyback.Sold,
		BuybackBought:      status.Buyback.Bought,
	})
}

func (s *Server) handlePreviewWrap(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := amountQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.backend.PreviewWrap(addr, amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"amount": quote.Amount, "fee": quote.Fee, "net": quote.Net, "minted": quote.Minted,
	})
}

func (s *Server) handlePreviewUnwrap(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := amountQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.backend.PreviewUnwrap(addr, amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"wrapped": quote.Wrapped, "underlying": quote.Underlying, "fee": quote.Fee, "returned": quote.Returned,
	})
}

type policyBody struct {
	Caller                string `json:"caller,omitempty"`
	BurnFeeBps            uint64 `json:"burnFeeBps"`
	PartnerFeeBps         uint64 `json:"partnerFeeBps"`
	PartnerWallet         string `json:"partnerWallet,omitempty"`
	TreasuryWallet        string `json:"treasuryWallet"`
	OracleUpdateInterval  int64  `json:"oracleUpdateInterval"`
	MaxRebalanceInterval  int64  `json:"maxRebalanceInterval"`
	ArbitrageThresholdBps uint64 `json:"arbitrageThresholdBps"`
}

func (p policyBody) toPolicy() (vault.Policy, error) {
	treasury, err := parseAddress(p.TreasuryWallet)
	if err != nil {
		return vault.Policy{}, fmt.Errorf("treasuryWallet: %w", err)
	}
	policy := vault.Policy{
		BurnFeeBps:            p.BurnFeeBps,
		PartnerFeeBps:         p.PartnerFeeBps,
		TreasuryWallet:        treasury,
		OracleUpdateInterval:  p.OracleUpdateInterval,
		MaxRebalanceInterval:  p.MaxRebalanceInterval,
		ArbitrageThresholdBps: p.ArbitrageThresholdBps,
	}
	if strings.TrimSpace(p.PartnerWallet) != "" {
		partner, err := parseAddress(p.PartnerWallet)
		if err != nil {
			return vault.Policy{}, fmt.Errorf("partnerWallet: %w", err)
		}
		policy.PartnerWallet = &partner
	}
	return policy, nil
}

func newPolicyBody(p vault.Policy) policyBody {
	body := policyBody{
		BurnFeeBps:            p.BurnFeeBps,
		PartnerFeeBps:         p.PartnerFeeBps,
		TreasuryWallet:        p.TreasuryWallet.Hex(),
		OracleUpdateInterval:  p.OracleUpdateInterval,
		MaxRebalanceInterval:  p.MaxRebalanceInterval,
		ArbitrageThresholdBps: p.ArbitrageThresholdBps,
	}
	if p.HasPartner() {
		body.PartnerWallet = p.PartnerWallet.Hex()
	}
	return body
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := s.backend.Policy(addr)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPolicyBody(policy))
}

func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body policyBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := body.toPolicy()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.backend.SetVaultPolicy(r.Context(), who, addr, policy)
	s.record(r.Context(), "set_policy", addr, who, 0, "", err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPolicyBody(policy))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.backend.Balance(asset, owner)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset": asset.Hex(), "owner": owner.Hex(), "balance": balance,
	})
}

type createVaultBody struct {
	Creator    string `json:"creator,omitempty"`
	Underlying string `json:"underlying"`
	Wrapped    string `json:"wrapped"`
	Name       string `json:"name"`
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var body createVaultBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creator, err := caller(r, body.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	underlying, err := parseAddress(body.Underlying)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wrapped, err := parseAddress(body.Wrapped)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.backend.CreateVault(r.Context(), creator, underlying, wrapped, body.Name)
	addr := vault.DeriveAddress(underlying, wrapped)
	s.record(r.Context(), "create", addr, creator, 0, "", err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVaultView(created))
}

type transferBody struct {
	User          string `json:"user,omitempty"`
	Amount        uint64 `json:"amount"`
	MinBuybackOut uint64 `json:"minBuybackOut,omitempty"`
}

func (s *Server) handleWrap(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body transferBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := caller(r, body.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.backend.Wrap(r.Context(), vault.WrapRequest{
		User: user, Vault: addr, Amount: body.Amount, MinBuybackOut: body.MinBuybackOut,
	})
	var result string
	if res != nil {
		result = fmt.Sprintf("minted=%d fee=%d", res.Minted, res.Fee)
	}
	s.record(r.Context(), "wrap", addr, user, body.Amount, result, err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"minted": res.Minted,
		"fee":    res.Fee,
		"split":  newSplitView(res.Split),
	})
}

func (s *Server) handleUnwrap(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body transferBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := caller(r, body.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.backend.Unwrap(r.Context(), vault.UnwrapRequest{
		User: user, Vault: addr, Amount: body.Amount, MinBuybackOut: body.MinBuybackOut,
	})
	var result string
	if res != nil {
		result = fmt.Sprintf("returned=%d fee=%d", res.Returned, res.Fee)
	}
	s.record(r.Context(), "unwrap", addr, user, body.Amount, result, err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"underlying": res.Underlying,
		"returned":   res.Returned,
		"fee":        res.Fee,
		"split":      newSplitView(res.Split),
	})
}

type oracleBody struct {
	Oracle     string `json:"oracle,omitempty"`
	Price      uint64 `json:"price,omitempty"`
	Confidence uint64 `json:"confidence,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

func (s *Server) sampleFrom(body oracleBody) (vault.OracleSample, error) {
	if strings.TrimSpace(body.Vendor) == "" {
		return vault.OracleSample{Price: body.Price, Confidence: body.Confidence, Timestamp: body.Timestamp}, nil
	}
	payload, err := hexutil.Decode(strings.TrimSpace(body.Payload))
	if err != nil {
		return vault.OracleSample{}, fmt.Errorf("payload: %w", err)
	}
	return s.parsers.Parse(body.Vendor, payload, s.nowFn().UTC().Unix())
}

func (s *Server) handleOraclePrice(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body oracleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	oracle, err := caller(r, body.Oracle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := s.sampleFrom(body)
	if err != nil {
		writeFailure(w, err)
		return
	}
	update, err := s.backend.RecordOraclePrice(r.Context(), oracle, addr, sample)
	var result string
	if update != nil {
		result = fmt.Sprintf("average=%d rebalanced=%t", update.Average, update.Rebalanced)
	}
	s.record(r.Context(), "oracle", addr, oracle, sample.Price, result, err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := map[string]interface{}{
		"average":    update.Average,
		"deviation":  update.Deviation,
		"rebalanced": update.Rebalanced,
	}
	if update.Rebalance != nil {
		resp["rebalance"] = newRebalanceView(update.Rebalance)
	}
	writeJSON(w, http.StatusOK, resp)
}

type arbitrageBody struct {
	Oracle string `json:"oracle,omitempty"`
	Bps    uint64 `json:"bps"`
}

func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body arbitrageBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	oracle, err := caller(r, body.Oracle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.backend.ReportArbitrage(r.Context(), oracle, addr, body.Bps)
	s.record(r.Context(), "arbitrage", addr, oracle, body.Bps, "", err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"arbitrageBps": body.Bps})
}

type callerBody struct {
	Caller string `json:"caller,omitempty"`
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeBody(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body callerBody
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.backend.TriggerRebalance(r.Context(), who, addr)
	var result string
	if res != nil {
		result = fmt.Sprintf("ratio=%d->%d", res.PreviousRatio, res.NewRatio)
	}
	s.record(r.Context(), "rebalance", addr, who, 0, result, err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRebalanceView(res))
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	kind := "unpause"
	if paused {
		kind = "pause"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := vaultParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var body callerBody
		if err := decodeOptional(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		who, err := caller(r, body.Caller)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if paused {
			err = s.backend.Pause(r.Context(), who, addr)
		} else {
			err = s.backend.Unpause(r.Context(), who, addr)
		}
		s.record(r.Context(), kind, addr, who, 0, "", err)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body callerBody
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.backend.CloseVault(r.Context(), who, addr)
	s.record(r.Context(), "close", addr, who, 0, "", err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

type distributeBody struct {
	Caller string `json:"caller,omitempty"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	addr, err := vaultParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body distributeBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.backend.DistributeRewards(r.Context(), who, addr, body.Amount)
	s.record(r.Context(), "distribute", addr, who, body.Amount, "", err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"distributed": body.Amount})
}

type oracleAuthBody struct {
	Caller     string `json:"caller,omitempty"`
	Oracle     string `json:"oracle"`
	Authorized bool   `json:"authorized"`
}

func (s *Server) handleOracleAuthorization(w http.ResponseWriter, r *http.Request) {
	var body oracleAuthBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	oracle, err := parseAddress(body.Oracle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := "revoke_oracle"
	if body.Authorized {
		kind = "authorize_oracle"
		err = s.backend.AuthorizeOracle(r.Context(), who, oracle)
	} else {
		err = s.backend.RevokeOracle(r.Context(), who, oracle)
	}
	s.record(r.Context(), kind, common.Address{}, who, 0, oracle.Hex(), err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"oracle": oracle.Hex(), "authorized": body.Authorized})
}

type modulePauseBody struct {
	Caller string `json:"caller,omitempty"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleModulePause(w http.ResponseWriter, r *http.Request) {
	module := strings.TrimSpace(chi.URLParam(r, "module"))
	var body modulePauseBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	who, err := caller(r, body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.backend.SetModulePaused(r.Context(), who, module, body.Paused)
	s.record(r.Context(), "module_pause", common.Address{}, who, 0, fmt.Sprintf("%s=%t", module, body.Paused), err)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"module": module, "paused": body.Paused})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	var vaultFilter string
	if raw := r.URL.Query().Get("vault"); raw != "" {
		addr, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		vaultFilter = addr.Hex()
	}
	ops, err := s.journal.Operations(r.Context(), vaultFilter, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": ops})
}

type splitView struct {
	Fee       uint64 `json:"fee"`
	Burn      uint64 `json:"burn"`
	Partner   uint64 `json:"partner"`
	Treasury  uint64 `json:"treasury"`
	Buyback   uint64 `json:"buyback"`
	LPShare   uint64 `json:"lpShare"`
	BurnShare uint64 `json:"burnShare"`
}

func newSplitView(split vault.FeeSplit) splitView {
	return splitView{
		Fee:       split.Fee,
		Burn:      split.Burn,
		Partner:   split.Partner,
		Treasury:  split.Treasury,
		Buyback:   split.Buyback,
		LPShare:   split.LPShare,
		BurnShare: split.BurnShare,
	}
}

type rebalanceView struct {
	PreviousRatio uint64 `json:"previousRatioBps"`
	NewRatio      uint64 `json:"newRatioBps"`
	Count         uint64 `json:"count"`
	Timestamp     int64  `json:"timestamp"`
}

func newRebalanceView(res *vault.RebalanceResult) rebalanceView {
	return rebalanceView{
		PreviousRatio: res.PreviousRatio,
		NewRatio:      res.NewRatio,
		Count:         res.Count,
		Timestamp:     res.Timestamp,
	}
}
