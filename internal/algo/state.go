package algo

import (
	"encoding/base64"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

// Application state keys. algod returns state keys base64-encoded.
const (
	keyAsset              = "token"
	keyBlock              = "block"
	keyTotalEffort        = "total_effort"
	keyTotalTransactions  = "total_transactions"
	keyHalving            = "halving"
	keyHalvingSupply      = "halving_supply"
	keyMinedSupply        = "mined_supply"
	keyMinerReward        = "miner_reward"
	keyLastMiner          = "last_miner"
	keyLastMinerEffort    = "last_miner_effort"
	keyCurrentMiner       = "current_miner"
	keyCurrentMinerEffort = "current_miner_effort"
	keyStartTimestamp     = "start_timestamp"
	keyEffort             = "effort"
)

func stateValue(kvs []models.TealKeyValue, key string) (models.TealValue, bool) {
	encoded := base64.StdEncoding.EncodeToString([]byte(key))
	for _, kv := range kvs {
		if kv.Key == encoded {
			return kv.Value, true
		}
	}
	return models.TealValue{}, false
}

func stateUint(kvs []models.TealKeyValue, key string) (uint64, error) {
	v, ok := stateValue(kvs, key)
	if !ok {
		return 0, errors.Errorf("state key %q not found", key)
	}
	return v.Uint, nil
}

func stateAddress(kvs []models.TealKeyValue, key string) (string, error) {
	v, ok := stateValue(kvs, key)
	if !ok {
		return "", errors.Errorf("state key %q not found", key)
	}
	raw, err := base64.StdEncoding.DecodeString(v.Bytes)
	if err != nil {
		return "", errors.Wrapf(err, "state key %q is not valid base64", key)
	}
	address, err := sdktypes.EncodeAddress(raw)
	if err != nil {
		return "", errors.Wrapf(err, "state key %q is not an address", key)
	}
	return address, nil
}

// Available is the spendable part of an account: the amount above the
// protocol minimum balance, floored at zero.
func Available(account models.Account) uint64 {
	if account.Amount <= account.MinBalance {
		return 0
	}
	return account.Amount - account.MinBalance
}
