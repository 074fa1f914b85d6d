package public

import "github.com/ledgermint/ledgermint/foundation/blockchain/database"

type tx struct {
	FromAccount database.AccountID `json:"from"`
	To          database.AccountID `json:"to"`
	ChainID     uint16             `json:"chain_id"`
	Nonce       uint64             `json:"nonce"`
	Value       uint64             `json:"value"`
	GasTipCap   uint64             `json:"gas_tip_cap"`
	GasFeeCap   uint64             `json:"gas_fee_cap"`
	Data        []byte             `json:"data"`
	TimeStamp   uint64             `json:"timestamp"`
	GasUnits    uint64             `json:"gas_units"`
	Sig         string             `json:"sig"`
	Priority    uint64             `json:"priority"`
}

type info struct {
	Account database.AccountID `json:"account"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}
