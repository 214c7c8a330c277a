package vault

import "github.com/ethereum/go-ethereum/common"

var (
	vaultRecordPrefix = []byte("vault/record/")
	vaultIndexKey     = []byte("vault/index")
)

func vaultRecordKey(addr common.Address) []byte {
	buf := make([]byte, len(vaultRecordPrefix)+common.AddressLength)
	copy(buf, vaultRecordPrefix)
	copy(buf[len(vaultRecordPrefix):], addr.Bytes())
	return buf
}
