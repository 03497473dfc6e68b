package types

import "fmt"

// Network selects the target chain.
type Network string

const (
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// ParseNetwork parses the positional network argument.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case Testnet:
		return Testnet, nil
	case Mainnet:
		return Mainnet, nil
	default:
		return "", fmt.Errorf("unknown network %q (must be testnet or mainnet)", s)
	}
}

// ApplicationData is the decoded global state of the mining application.
type ApplicationData struct {
	ID                 uint64
	Asset              uint64
	Block              uint64
	TotalEffort        uint64
	TotalTransactions  uint64
	Halving            uint64
	HalvingSupply      uint64
	MinedSupply        uint64
	MinerReward        uint64
	LastMiner          string
	LastMinerEffort    uint64
	CurrentMiner       string
	CurrentMinerEffort uint64
	StartTimestamp     uint64
}

// MinerData is the miner-side view: the deposit account's local effort and
// the miner account's spendable balance.
type MinerData struct {
	OwnEffort        uint64
	AvailableBalance uint64 // amount - min balance, floored at 0
}

// SubmissionResult reports the outcome of one transaction submission.
type SubmissionResult struct {
	TxID           string
	ConfirmedRound uint64
	Err            error
}

// Success reports whether the submission went through.
func (r SubmissionResult) Success() bool {
	return r.Err == nil
}
