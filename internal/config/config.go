package config

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/orange-mining/ora-miner/pkg/types"
)

// Viper keys, matched case-insensitively against the environment. A .env
// file in the working directory is loaded into the process environment
// first, so either source works.
const (
	keyMinerMnemonic   = "miner_mnemonic"
	keyDepositMnemonic = "deposit_mnemonic"
	keyDepositAddress  = "deposit_address"
	keyBalanceFloor    = "minimum_balance_threshold"
)

// Errors
var (
	ErrMissingMinerMnemonic  = errors.New("MINER_MNEMONIC must be set")
	ErrMissingDepositAddress = errors.New("DEPOSIT_ADDRESS must be set (or DEPOSIT_MNEMONIC)")
	ErrMissingAppID          = errors.New("application id must be set (APP_TESTNET / APP_MAINNET)")
)

// Node holds the algod connection settings and application id for one network.
type Node struct {
	Token  string
	Server string
	Port   string
	AppID  uint64
}

// Address returns the algod endpoint, joining server and port when a port
// is configured.
func (n Node) Address() string {
	if n.Port == "" {
		return n.Server
	}
	return n.Server + ":" + n.Port
}

// Config holds everything read from the environment at startup. It is
// read-only after Load and passed explicitly to the components that need it.
type Config struct {
	// MinerAccount signs the mine transactions.
	MinerAccount crypto.Account

	// DepositAddress receives the mining credit. Derived from
	// DEPOSIT_MNEMONIC when that is set, otherwise read directly.
	DepositAddress string

	// DepositKey is only set when DEPOSIT_MNEMONIC is configured; it is
	// used solely to opt the deposit account into the application and asset.
	DepositKey ed25519.PrivateKey

	// BalanceFloor is the available balance (microalgos) below which the
	// miner stops.
	BalanceFloor uint64

	nodes map[types.Network]Node
}

// Load reads the configuration from a .env file (if present) and the
// process environment. Required values that are missing or malformed make
// it fail; configuration errors are not transient, so there are no retries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("algod_testnet_server", "https://testnet-api.algonode.cloud")
	v.SetDefault("algod_mainnet_server", "https://mainnet-api.algonode.cloud")
	v.SetDefault(keyBalanceFloor, uint64(1_000_000))

	cfg := &Config{
		BalanceFloor: v.GetUint64(keyBalanceFloor),
		nodes: map[types.Network]Node{
			types.Testnet: {
				Token:  v.GetString("algod_testnet_token"),
				Server: v.GetString("algod_testnet_server"),
				Port:   v.GetString("algod_testnet_port"),
				AppID:  v.GetUint64("app_testnet"),
			},
			types.Mainnet: {
				Token:  v.GetString("algod_mainnet_token"),
				Server: v.GetString("algod_mainnet_server"),
				Port:   v.GetString("algod_mainnet_port"),
				AppID:  v.GetUint64("app_mainnet"),
			},
		},
	}

	minerMnemonic := strings.TrimSpace(v.GetString(keyMinerMnemonic))
	if minerMnemonic == "" {
		return nil, ErrMissingMinerMnemonic
	}
	minerKey, err := mnemonic.ToPrivateKey(minerMnemonic)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "miner mnemonic is malformed")
	}
	cfg.MinerAccount, err = crypto.AccountFromPrivateKey(minerKey)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "miner mnemonic is malformed")
	}

	if depositMnemonic := strings.TrimSpace(v.GetString(keyDepositMnemonic)); depositMnemonic != "" {
		depositKey, err := mnemonic.ToPrivateKey(depositMnemonic)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "deposit mnemonic is malformed")
		}
		acct, err := crypto.AccountFromPrivateKey(depositKey)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "deposit mnemonic is malformed")
		}
		cfg.DepositKey = depositKey
		cfg.DepositAddress = acct.Address.String()
	} else {
		addr := strings.TrimSpace(v.GetString(keyDepositAddress))
		if addr == "" {
			return nil, ErrMissingDepositAddress
		}
		if _, err := sdktypes.DecodeAddress(addr); err != nil {
			return nil, pkgerrors.Wrap(err, "deposit address is invalid")
		}
		cfg.DepositAddress = addr
	}

	return cfg, nil
}

// MinerAddress derives just the miner address from MINER_MNEMONIC, without
// requiring the rest of the configuration.
func MinerAddress() (string, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	minerMnemonic := strings.TrimSpace(v.GetString(keyMinerMnemonic))
	if minerMnemonic == "" {
		return "", ErrMissingMinerMnemonic
	}
	minerKey, err := mnemonic.ToPrivateKey(minerMnemonic)
	if err != nil {
		return "", pkgerrors.Wrap(err, "miner mnemonic is malformed")
	}
	acct, err := crypto.AccountFromPrivateKey(minerKey)
	if err != nil {
		return "", pkgerrors.Wrap(err, "miner mnemonic is malformed")
	}
	return acct.Address.String(), nil
}

// Node returns the algod settings for the given network. The application id
// has no sane default and must be configured.
func (c *Config) Node(network types.Network) (Node, error) {
	node := c.nodes[network]
	if node.AppID == 0 {
		return Node{}, ErrMissingAppID
	}
	return node, nil
}

// HasDepositKey reports whether the deposit mnemonic was configured, which
// enables the automatic opt-in flow.
func (c *Config) HasDepositKey() bool {
	return c.DepositKey != nil
}
