package submit

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"

	"github.com/orange-mining/ora-miner/internal/algo"
	"github.com/orange-mining/ora-miner/internal/config"
	"github.com/orange-mining/ora-miner/internal/logger"
)

// Opt-in costs in microalgos: the min-balance increase plus the 1000
// microalgo transaction fee. A brand-new account additionally needs the
// base min balance.
const (
	appOptInCost      = 129_500
	assetOptInCost    = 101_000
	newAccountReserve = 100_000
)

// EnsureOptIns verifies the deposit account is opted into the mining
// application and its reward asset, opting it in when the deposit mnemonic
// is configured. Mining credits would otherwise be unclaimable.
func EnsureOptIns(ctx context.Context, client *algo.Client, cfg *config.Config, log *logger.Logger) error {
	app, err := client.ApplicationData(ctx)
	if err != nil {
		return err
	}
	info, err := client.AccountInformation(ctx, cfg.DepositAddress)
	if err != nil {
		return err
	}

	if !algo.OptedIntoApp(info, app.ID) {
		if !cfg.HasDepositKey() {
			return errors.Errorf("deposit address not opted into app %d (set DEPOSIT_MNEMONIC to opt in automatically)", app.ID)
		}
		log.Println("Opting the deposit address into the application...")
		if err := ensureFunds(info, appOptInCost); err != nil {
			return err
		}
		if err := optInApp(ctx, client, cfg, app.ID); err != nil {
			return errors.Wrapf(err, "deposit address not opted into app %d", app.ID)
		}
		log.Println("Deposit address opted into the application.")

		if info, err = client.AccountInformation(ctx, cfg.DepositAddress); err != nil {
			return err
		}
	}

	if !algo.HoldsAsset(info, app.Asset) {
		if !cfg.HasDepositKey() {
			log.Printf("Deposit address not opted into asset %d.", app.Asset)
			return nil
		}
		log.Println("Opting the deposit address into the asset...")
		if err := ensureFunds(info, assetOptInCost); err != nil {
			return err
		}
		if err := optInAsset(ctx, client, cfg, app.Asset); err != nil {
			return errors.Wrapf(err, "deposit address not opted into asset %d", app.Asset)
		}
		log.Println("Deposit address opted into the asset.")
	}

	return nil
}

func optInApp(ctx context.Context, client *algo.Client, cfg *config.Config, appID uint64) error {
	sender, err := sdktypes.DecodeAddress(cfg.DepositAddress)
	if err != nil {
		return err
	}
	sp, err := client.SuggestedParams(ctx)
	if err != nil {
		return err
	}
	txn, err := transaction.MakeApplicationOptInTx(
		appID, nil, nil, nil, nil, sp, sender, nil, sdktypes.Digest{}, [32]byte{}, sdktypes.ZeroAddress)
	if err != nil {
		return err
	}
	return signAndConfirm(ctx, client, cfg, txn)
}

func optInAsset(ctx context.Context, client *algo.Client, cfg *config.Config, assetID uint64) error {
	sp, err := client.SuggestedParams(ctx)
	if err != nil {
		return err
	}
	// A zero-amount self transfer is the asset opt-in.
	txn, err := transaction.MakeAssetTransferTxn(
		cfg.DepositAddress, cfg.DepositAddress, 0, nil, sp, "", assetID)
	if err != nil {
		return err
	}
	return signAndConfirm(ctx, client, cfg, txn)
}

func signAndConfirm(ctx context.Context, client *algo.Client, cfg *config.Config, txn sdktypes.Transaction) error {
	txid, stx, err := crypto.SignTransaction(cfg.DepositKey, txn)
	if err != nil {
		return err
	}
	if _, err := client.Algod().SendRawTransaction(stx).Do(ctx); err != nil {
		return err
	}
	if _, err := transaction.WaitForConfirmation(client.Algod(), txid, 4, ctx); err != nil {
		return err
	}
	return nil
}

// ensureFunds checks the deposit account can cover an opt-in.
func ensureFunds(info models.Account, needed uint64) error {
	if info.Amount == 0 {
		needed += newAccountReserve
	}
	available := algo.Available(info)
	if available < needed {
		return errors.Errorf("deposit account has low balance (%d microalgos), fund with an additional %d microalgos",
			info.Amount, needed-available)
	}
	return nil
}
