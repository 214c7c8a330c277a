package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"riftvault/config"
	"riftvault/core"
	"riftvault/native/vault"
	"riftvault/storage"
)

type vaultReport struct {
	Address            string `json:"address"`
	Name               string `json:"name"`
	Paused             bool   `json:"paused"`
	BackingRatioBps    uint64 `json:"backingRatioBps"`
	TotalWrapped       uint64 `json:"totalWrapped"`
	Reserves           uint64 `json:"reserves"`
	FeesCollected      uint64 `json:"feesCollected"`
	PendingRewards     uint64 `json:"pendingRewards"`
	DeferredBuyback    uint64 `json:"deferredBuyback"`
	RebalanceCount     uint64 `json:"rebalanceCount"`
	OracleCountdown    int64  `json:"oracleCountdownSeconds"`
	RebalanceCountdown int64  `json:"rebalanceCountdownSeconds"`
	GuardIdle          bool   `json:"guardIdle"`
	Policy             struct {
		BurnFeeBps    uint64 `json:"burnFeeBps"`
		PartnerFeeBps uint64 `json:"partnerFeeBps"`
		Treasury      string `json:"treasury"`
	} `json:"policy"`
}

type auditReport struct {
	Network string        `json:"network"`
	Vaults  []vaultReport `json:"vaults"`
}

func main() {
	configPath := flag.String("config", "./rift.toml", "Path to node configuration file")
	stateDir := flag.String("state", "", "State directory (defaults to DataDir from the node config)")
	only := flag.String("vault", "", "Restrict the report to one vault address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	buybackCfg, err := cfg.BuybackConfig()
	if err != nil {
		fail("failed to build buyback config: %v", err)
	}
	dir := strings.TrimSpace(*stateDir)
	if dir == "" {
		dir = cfg.DataDir
	}
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		fail("failed to open state: %v", err)
	}
	defer db.Close()

	exec := core.NewExecutor(db, buybackCfg)
	var vaults []*vault.Vault
	if strings.TrimSpace(*only) != "" {
		addr, err := config.ParseAddress(*only)
		if err != nil {
			fail("invalid vault address: %v", err)
		}
		v, err := exec.Vault(addr)
		if err != nil {
			fail("failed to load vault: %v", err)
		}
		vaults = []*vault.Vault{v}
	} else if vaults, err = exec.Vaults(); err != nil {
		fail("failed to list vaults: %v", err)
	}

	report := auditReport{Network: cfg.NetworkName, Vaults: make([]vaultReport, 0, len(vaults))}
	for _, v := range vaults {
		entry, err := describe(exec, v)
		if err != nil {
			fail("failed to audit %s: %v", v.Address.Hex(), err)
		}
		report.Vaults = append(report.Vaults, entry)
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fail("failed to encode report: %v", err)
	}
	fmt.Println(string(output))
}

func describe(exec *core.Executor, v *vault.Vault) (vaultReport, error) {
	status, err := exec.Status(v.Address)
	if err != nil {
		return vaultReport{}, err
	}
	reserves, err := exec.Balance(v.UnderlyingAsset, v.Address)
	if err != nil {
		return vaultReport{}, err
	}
	policy, err := exec.Policy(v.Address)
	if err != nil {
		return vaultReport{}, err
	}
	entry := vaultReport{
		Address:            v.Address.Hex(),
		Name:               v.Name,
		Paused:             v.Paused,
		BackingRatioBps:    v.BackingRatio,
		TotalWrapped:       v.TotalWrapped,
		Reserves:           reserves,
		FeesCollected:      v.TotalFeesCollected,
		PendingRewards:     status.PendingFees,
		DeferredBuyback:    v.DeferredBuyback,
		RebalanceCount:     v.RebalanceCount,
		OracleCountdown:    status.OracleCountdown,
		RebalanceCountdown: status.RebalanceCountdown,
		GuardIdle:          v.Guard.Idle(),
	}
	entry.Policy.BurnFeeBps = policy.BurnFeeBps
	entry.Policy.PartnerFeeBps = policy.PartnerFeeBps
	entry.Policy.Treasury = policy.TreasuryWallet.Hex()
	return entry, nil
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
