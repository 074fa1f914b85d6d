// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ledgermint/ledgermint/business/web/errs"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/state"
	"github.com/ledgermint/ledgermint/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()

	status := struct {
		LatestBlockHash   string `json:"latest_block_hash"`
		LatestBlockNumber uint64 `json:"latest_block_number"`
		Uncommitted       int    `json:"uncommitted"`
	}{
		LatestBlockHash:   latestBlock.Hash(),
		LatestBlockNumber: latestBlock.Header.Number,
		Uncommitted:       h.State.MempoolCount(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Mine forces the node to mine the next block to the specified beneficiary,
// even when the mempool is empty. An empty block still pays the mining reward.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var payload struct {
		BeneficiaryID string `json:"beneficiary_id" validate:"required"`
	}
	if err := web.Decode(r, &payload); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	beneficiaryID, err := database.ToAccountID(payload.BeneficiaryID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	// Stop any in-flight search so two searches never compete for the same
	// block number. The worker stays parked until done is called, which
	// happens after this mine settles the ledger.
	if h.State.Worker != nil {
		done := h.State.Worker.SignalCancelMining()
		defer done()
	}

	block, duration, err := h.State.MineNewBlock(ctx, beneficiaryID)
	if err != nil {
		if errors.Is(err, database.ErrMiningExhausted) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("mined block", "traceid", v.TraceID, "block", block.Hash(), "number", block.Header.Number, "txs", len(block.Transactions()), "duration", duration)

	resp := struct {
		Hash     string `json:"hash"`
		Number   uint64 `json:"number"`
		Trans    int    `json:"trans"`
		Duration string `json:"duration"`
	}{
		Hash:     block.Hash(),
		Number:   block.Header.Number,
		Trans:    len(block.Transactions()),
		Duration: duration.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ValidateChain re-validates the full chain from genesis.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.ValidateChain(); err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "chain validated",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}
