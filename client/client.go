// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/stf"
)

// Client defines stf client operations.
type Client interface {
	// GetBalance fetches the balance of an address
	GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error)
	// GetSequencer fetches the sequencer publishing from a DA address
	GetSequencer(ctx context.Context, daAddr ids.ShortID) (*stf.GetSequencerReply, error)
	// GetAccount fetches the account of a credential
	GetAccount(ctx context.Context, credID ids.ID) (*stf.GetAccountReply, error)
	// GetSlot fetches an applied slot; a nil height fetches the latest one
	GetSlot(ctx context.Context, height *uint64) (*stf.GetSlotReply, error)
	GetBatchReceipt(ctx context.Context, batchID ids.ID) (*stf.BatchReceipt, error)
	GetTxReceipt(ctx context.Context, hash ids.ID) (*stf.TxReceipt, error)
	// SubmitSlot applies a slot and returns the outcome of every batch
	SubmitSlot(ctx context.Context, slot *stf.Slot) (*stf.SubmitSlotReply, error)
}

// New creates a new client object for the endpoint at [uri].
func New(uri string) Client {
	return &client{
		uri:  uri,
		http: http.DefaultClient,
	}
}

type client struct {
	uri  string
	http *http.Client
}

func (cli *client) send(ctx context.Context, method string, args interface{}, reply interface{}) error {
	body, err := json2.EncodeClientRequest(stf.Name+"."+method, args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

func (cli *client) GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error) {
	resp := new(stf.GetBalanceReply)
	err := cli.send(ctx, "getBalance", &stf.AddressArgs{Address: addr.String()}, resp)
	return uint64(resp.Balance), err
}

func (cli *client) GetSequencer(ctx context.Context, daAddr ids.ShortID) (*stf.GetSequencerReply, error) {
	resp := new(stf.GetSequencerReply)
	if err := cli.send(ctx, "getSequencer", &stf.AddressArgs{Address: daAddr.String()}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetAccount(ctx context.Context, credID ids.ID) (*stf.GetAccountReply, error) {
	resp := new(stf.GetAccountReply)
	if err := cli.send(ctx, "getAccount", &stf.IDArgs{ID: credID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetSlot(ctx context.Context, height *uint64) (*stf.GetSlotReply, error) {
	args := &stf.GetSlotArgs{Latest: height == nil}
	if height != nil {
		args.Height = cjson.Uint64(*height)
	}
	resp := new(stf.GetSlotReply)
	if err := cli.send(ctx, "getSlot", args, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetBatchReceipt(ctx context.Context, batchID ids.ID) (*stf.BatchReceipt, error) {
	resp := new(stf.GetBatchReceiptReply)
	if err := cli.send(ctx, "getBatchReceipt", &stf.IDArgs{ID: batchID}, resp); err != nil {
		return nil, err
	}
	return &resp.Receipt, nil
}

func (cli *client) GetTxReceipt(ctx context.Context, hash ids.ID) (*stf.TxReceipt, error) {
	resp := new(stf.GetTxReceiptReply)
	if err := cli.send(ctx, "getTxReceipt", &stf.IDArgs{ID: hash}, resp); err != nil {
		return nil, err
	}
	return &resp.Receipt, nil
}

func (cli *client) SubmitSlot(ctx context.Context, slot *stf.Slot) (*stf.SubmitSlotReply, error) {
	args, err := EncodeSlot(slot)
	if err != nil {
		return nil, err
	}
	resp := new(stf.SubmitSlotReply)
	if err := cli.send(ctx, "submitSlot", args, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// EncodeSlot is the inverse of stf.SubmitSlotArgs.Slot.
func EncodeSlot(slot *stf.Slot) (*stf.SubmitSlotArgs, error) {
	args := &stf.SubmitSlotArgs{
		Height:  cjson.Uint64(slot.Height),
		Batches: make([]stf.APIBatch, len(slot.Batches)),
	}
	for i, b := range slot.Batches {
		batch := stf.APIBatch{
			Sequencer: b.Sequencer.String(),
			Txs:       make([]string, len(b.Txs)),
		}
		for j, tx := range b.Txs {
			encoded, err := encodeTx(tx)
			if err != nil {
				return nil, err
			}
			batch.Txs[j] = encoded
		}
		args.Batches[i] = batch
	}
	return args, nil
}

func encodeTx(tx auth.RawTx) (string, error) {
	return formatting.EncodeWithChecksum(formatting.Hex, tx.Data)
}
