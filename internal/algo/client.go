// Package algo wraps the algod REST client with the queries the miner
// needs: node status, the mining application's global state, and the
// miner/deposit account views.
package algo

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"

	"github.com/orange-mining/ora-miner/internal/config"
	"github.com/orange-mining/ora-miner/pkg/types"
)

// Client queries one algod node about one mining application.
type Client struct {
	algod          *algod.Client
	appID          uint64
	minerAddress   string
	depositAddress string
}

// NewClient connects to the configured node.
func NewClient(node config.Node, minerAddress, depositAddress string) (*Client, error) {
	ac, err := algod.MakeClient(node.Address(), node.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create algod client")
	}
	return &Client{
		algod:          ac,
		appID:          node.AppID,
		minerAddress:   minerAddress,
		depositAddress: depositAddress,
	}, nil
}

// Algod exposes the underlying SDK client for transaction submission.
func (c *Client) Algod() *algod.Client {
	return c.algod
}

// AppID returns the mining application id this client targets.
func (c *Client) AppID() uint64 {
	return c.appID
}

// LastRound reports the node's latest round, proving connectivity.
func (c *Client) LastRound(ctx context.Context) (uint64, error) {
	status, err := c.algod.Status().Do(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "node connection failed")
	}
	return status.LastRound, nil
}

// SuggestedParams fetches the current transaction parameters.
func (c *Client) SuggestedParams(ctx context.Context) (sdktypes.SuggestedParams, error) {
	sp, err := c.algod.SuggestedParams().Do(ctx)
	if err != nil {
		return sdktypes.SuggestedParams{}, errors.Wrap(err, "failed to fetch suggested params")
	}
	return sp, nil
}

// AccountInformation fetches the full account record for an address.
func (c *Client) AccountInformation(ctx context.Context, address string) (models.Account, error) {
	info, err := c.algod.AccountInformation(address).Do(ctx)
	if err != nil {
		return models.Account{}, errors.Wrapf(err, "failed to fetch account %s", address)
	}
	return info, nil
}

// AvailableBalance returns the spendable balance of an address.
func (c *Client) AvailableBalance(ctx context.Context, address string) (uint64, error) {
	info, err := c.AccountInformation(ctx, address)
	if err != nil {
		return 0, err
	}
	return Available(info), nil
}

// ApplicationData fetches and decodes the mining application's global state.
func (c *Client) ApplicationData(ctx context.Context) (types.ApplicationData, error) {
	app, err := c.algod.GetApplicationByID(c.appID).Do(ctx)
	if err != nil {
		return types.ApplicationData{}, errors.Wrapf(err, "failed to fetch application %d", c.appID)
	}
	state := app.Params.GlobalState

	data := types.ApplicationData{ID: c.appID}
	for _, field := range []struct {
		key string
		dst *uint64
	}{
		{keyAsset, &data.Asset},
		{keyBlock, &data.Block},
		{keyTotalEffort, &data.TotalEffort},
		{keyTotalTransactions, &data.TotalTransactions},
		{keyHalving, &data.Halving},
		{keyHalvingSupply, &data.HalvingSupply},
		{keyMinedSupply, &data.MinedSupply},
		{keyMinerReward, &data.MinerReward},
		{keyLastMinerEffort, &data.LastMinerEffort},
		{keyCurrentMinerEffort, &data.CurrentMinerEffort},
		{keyStartTimestamp, &data.StartTimestamp},
	} {
		if *field.dst, err = stateUint(state, field.key); err != nil {
			return types.ApplicationData{}, err
		}
	}
	if data.LastMiner, err = stateAddress(state, keyLastMiner); err != nil {
		return types.ApplicationData{}, err
	}
	if data.CurrentMiner, err = stateAddress(state, keyCurrentMiner); err != nil {
		return types.ApplicationData{}, err
	}
	return data, nil
}

// MinerData fetches the deposit account's local effort and the miner
// account's available balance. The deposit account must be opted into the
// application.
func (c *Client) MinerData(ctx context.Context) (types.MinerData, error) {
	minerInfo, err := c.AccountInformation(ctx, c.minerAddress)
	if err != nil {
		return types.MinerData{}, err
	}
	depositInfo, err := c.AccountInformation(ctx, c.depositAddress)
	if err != nil {
		return types.MinerData{}, err
	}

	localState, ok := localAppState(depositInfo, c.appID)
	if !ok {
		return types.MinerData{}, errors.Errorf("deposit address is not opted into app %d", c.appID)
	}
	effort, err := stateUint(localState, keyEffort)
	if err != nil {
		return types.MinerData{}, err
	}

	return types.MinerData{
		OwnEffort:        effort,
		AvailableBalance: Available(minerInfo),
	}, nil
}

// localAppState finds an account's local state for the given application.
func localAppState(account models.Account, appID uint64) ([]models.TealKeyValue, bool) {
	for _, app := range account.AppsLocalState {
		if app.Id == appID {
			return app.KeyValue, true
		}
	}
	return nil, false
}

// HoldsAsset reports whether the account is opted into the given asset.
func HoldsAsset(account models.Account, assetID uint64) bool {
	for _, holding := range account.Assets {
		if holding.AssetId == assetID {
			return true
		}
	}
	return false
}

// OptedIntoApp reports whether the account is opted into the application.
func OptedIntoApp(account models.Account, appID uint64) bool {
	_, ok := localAppState(account, appID)
	return ok
}
