// Package submit builds, signs and broadcasts the mine transactions. All
// signing and wire encoding is owned by the Algorand SDK; the rest of the
// tool only sees the narrow Submitter surface.
package submit

import (
	"context"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"

	"github.com/orange-mining/ora-miner/internal/algo"
	"github.com/orange-mining/ora-miner/pkg/types"
)

//go:embed contract.json
var contractJSON []byte

// paramsTTL bounds how stale the cached suggested params and application
// state may get between submissions.
const paramsTTL = 5 * time.Second

// MineSubmitter submits mine(address) application calls crediting the
// deposit address, signed by the miner account.
type MineSubmitter struct {
	client  *algo.Client
	signer  transaction.TransactionSigner
	sender  sdktypes.Address
	deposit sdktypes.Address
	method  abi.Method

	mu        sync.Mutex
	app       types.ApplicationData
	sp        sdktypes.SuggestedParams
	fetchedAt time.Time
}

// NewMineSubmitter wires a submitter for the given miner account and
// deposit address.
func NewMineSubmitter(client *algo.Client, miner crypto.Account, depositAddress string) (*MineSubmitter, error) {
	deposit, err := sdktypes.DecodeAddress(depositAddress)
	if err != nil {
		return nil, errors.Wrap(err, "deposit address is invalid")
	}

	contract, err := loadContract()
	if err != nil {
		return nil, err
	}
	method, err := contract.GetMethodByName("mine")
	if err != nil {
		return nil, errors.Wrap(err, "mining contract has no mine method")
	}

	return &MineSubmitter{
		client:  client,
		signer:  transaction.BasicAccountTransactionSigner{Account: miner},
		sender:  miner.Address,
		deposit: deposit,
		method:  method,
	}, nil
}

// Submit sends one mine call with the given flat fee. seq is encoded into
// the note so every transaction in a run is distinct.
func (s *MineSubmitter) Submit(ctx context.Context, fee uint64, seq uint64) types.SubmissionResult {
	app, sp, err := s.params(ctx)
	if err != nil {
		return types.SubmissionResult{Err: err}
	}
	sp.FlatFee = true
	sp.Fee = sdktypes.MicroAlgos(fee)

	var atc transaction.AtomicTransactionComposer
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:           app.ID,
		Method:          s.method,
		MethodArgs:      []interface{}{s.deposit[:]},
		Sender:          s.sender,
		SuggestedParams: sp,
		OnComplete:      sdktypes.NoOpOC,
		Signer:          s.signer,
		Note:            SequenceNote(seq),
		ForeignAccounts: []string{app.LastMiner, s.deposit.String()},
		ForeignAssets:   []uint64{app.Asset},
	})
	if err != nil {
		return types.SubmissionResult{Err: errors.Wrap(err, "failed to build mine call")}
	}

	res, err := atc.Execute(s.client.Algod(), ctx, 5)
	if err != nil {
		return types.SubmissionResult{Err: errors.Wrap(err, "mine call failed")}
	}

	result := types.SubmissionResult{ConfirmedRound: res.ConfirmedRound}
	if len(res.TxIDs) > 0 {
		result.TxID = res.TxIDs[0]
	}
	return result
}

// params returns suggested params and application state, refetching them
// when the cache is older than paramsTTL.
func (s *MineSubmitter) params(ctx context.Context) (types.ApplicationData, sdktypes.SuggestedParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.fetchedAt) < paramsTTL {
		return s.app, s.sp, nil
	}

	app, err := s.client.ApplicationData(ctx)
	if err != nil {
		return types.ApplicationData{}, sdktypes.SuggestedParams{}, err
	}
	sp, err := s.client.SuggestedParams(ctx)
	if err != nil {
		return types.ApplicationData{}, sdktypes.SuggestedParams{}, err
	}

	s.app = app
	s.sp = sp
	s.fetchedAt = time.Now()
	return s.app, s.sp, nil
}

// SequenceNote encodes a sequence number as minimal big-endian bytes.
// Zero encodes to an empty note.
func SequenceNote(seq uint64) []byte {
	if seq == 0 {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	i := 0
	for buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func loadContract() (*abi.Contract, error) {
	contract := new(abi.Contract)
	if err := json.Unmarshal(contractJSON, contract); err != nil {
		return nil, errors.Wrap(err, "failed to parse mining contract")
	}
	return contract, nil
}
