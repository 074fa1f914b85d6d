// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ledgermint/ledgermint/business/web/errs"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/state"
	"github.com/ledgermint/ledgermint/foundation/events"
	"github.com/ledgermint/ledgermint/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a new user transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "sig:nonce", signedTx, "to", signedTx.ToID, "value", signedTx.Value, "tip_cap", signedTx.GasTipCap, "fee_cap", signedTx.GasFeeCap)
	if err := h.State.SubmitWalletTransaction(signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in priority order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	baseFee := h.State.RetrieveBaseFee()
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, 0, len(mempool))
	for _, tran := range mempool {
		account, _ := tran.FromAccount()

		trans = append(trans, tx{
			FromAccount: account,
			To:          tran.ToID,
			ChainID:     tran.ChainID,
			Nonce:       tran.Nonce,
			Value:       tran.Value,
			GasTipCap:   tran.GasTipCap,
			GasFeeCap:   tran.GasFeeCap,
			Data:        tran.Data,
			TimeStamp:   tran.TimeStamp,
			GasUnits:    tran.GasUnits,
			Sig:         tran.SignatureString(),
			Priority:    tran.Priority(baseFee),
		})
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns the current balance and nonce for one or all accounts.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")

	var accounts map[database.AccountID]database.Account
	switch account {
	case "":
		accounts = h.State.RetrieveAccounts()

	default:
		accountID, err := database.ToAccountID(account)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		acct, err := h.State.QueryAccount(accountID)
		if err != nil {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		accounts = map[database.AccountID]database.Account{accountID: acct}
	}

	acts := make([]info, 0, len(accounts))
	for account, acct := range accounts {
		acts = append(acts, info{
			Account: account,
			Balance: acct.Balance,
			Nonce:   acct.Nonce,
		})
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].Account < acts[j].Account })

	ai := actInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.MempoolCount(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// TxSeen reports whether the given transaction hash might be present in the
// chain according to the membership filter. A false answer is definitive.
func (h Handlers) TxSeen(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	stats := h.State.RetrieveStats()

	resp := struct {
		Hash              string  `json:"hash"`
		Seen              bool    `json:"seen"`
		FalsePositiveRate float64 `json:"false_positive_rate"`
	}{
		Hash:              hash,
		Seen:              h.State.MightContainTransaction(hash),
		FalsePositiveRate: stats.FilterFalsePositiveRate,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// TxProof produces a merkle inclusion proof for a committed transaction.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	proof, err := h.State.VerifyTransactionInclusion(hash)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if !proof.Found {
		return web.Respond(ctx, w, proof, http.StatusNotFound)
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// Stats returns a summary of the node's current state.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	stats := h.State.RetrieveStats()
	return web.Respond(ctx, w, stats, http.StatusOK)
}
