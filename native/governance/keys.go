package governance

import "github.com/ethereum/go-ethereum/common"

var (
	defaultPolicyKey  = []byte("governance/policy/default")
	vaultPolicyPrefix = []byte("governance/policy/vault/")
	oracleIndexKey    = []byte("governance/oracles")
	authorityIndexKey = []byte("governance/authorities")
	modulePausePrefix = []byte("governance/pause/")
)

func vaultPolicyKey(vault common.Address) []byte {
	buf := make([]byte, len(vaultPolicyPrefix)+common.AddressLength)
	copy(buf, vaultPolicyPrefix)
	copy(buf[len(vaultPolicyPrefix):], vault.Bytes())
	return buf
}

func modulePauseKey(module string) []byte {
	buf := make([]byte, len(modulePausePrefix)+len(module))
	copy(buf, modulePausePrefix)
	copy(buf[len(modulePausePrefix):], module)
	return buf
}
