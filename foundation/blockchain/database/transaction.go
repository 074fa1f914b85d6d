package database

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ledgermint/ledgermint/foundation/blockchain/signature"
)

// Tx is the transactional information between two parties. The fee is the
// two-cap form: GasFeeCap bounds the total price paid per unit of gas and
// GasTipCap bounds the portion of that price paid to the miner. The base
// portion, set by the chain, is burned.
type Tx struct {
	ChainID   uint16    `json:"chain_id"`    // The chain id the transaction is bound to.
	Nonce     uint64    `json:"nonce"`       // Strictly sequential id for the transaction from this sender.
	ToID      AccountID `json:"to"`          // Account receiving the benefit of the transaction.
	Value     uint64    `json:"value"`       // Monetary value transferred by this transaction.
	GasTipCap uint64    `json:"gas_tip_cap"` // Maximum priority fee per unit of gas paid to the miner.
	GasFeeCap uint64    `json:"gas_fee_cap"` // Maximum total fee per unit of gas.
	Data      []byte    `json:"data"`        // Extra data related to the transaction.
}

// NewTx constructs a new transaction.
func NewTx(chainID uint16, nonce uint64, toID AccountID, value uint64, gasTipCap uint64, gasFeeCap uint64, data []byte) (Tx, error) {
	if !toID.IsAccountID() {
		return Tx{}, fmt.Errorf("to account is not properly formatted")
	}

	tx := Tx{
		ChainID:   chainID,
		Nonce:     nonce,
		ToID:      toID,
		Value:     value,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Data:      data,
	}

	return tx, nil
}

// PreImageHash returns the digest of the transaction in its witness-free
// form, before any signature is attached. This digest stays stable across
// signing so a payload can be referenced before and after it is signed.
func (tx Tx) PreImageHash() string {
	return signature.Hash(tx)
}

// EffectiveGasPrice returns the price per unit of gas this transaction pays
// under the specified base fee. The result never exceeds GasFeeCap and,
// provided GasFeeCap covers the base fee, never drops below the base fee.
func (tx Tx) EffectiveGasPrice(baseFee uint64) uint64 {
	if tx.GasFeeCap < baseFee {
		return tx.GasFeeCap
	}

	tip := tx.GasTipCap
	if tip > tx.GasFeeCap-baseFee {
		tip = tx.GasFeeCap - baseFee
	}

	return baseFee + tip
}

// Priority returns the portion of the effective gas price paid to the miner
// under the specified base fee. Transactions with a higher priority are
// mined first.
func (tx Tx) Priority(baseFee uint64) uint64 {
	price := tx.EffectiveGasPrice(baseFee)
	if price < baseFee {
		return 0
	}

	return price - baseFee
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// Validate the to account address is a valid address.
	if !tx.ToID.IsAccountID() {
		return SignedTx{}, fmt.Errorf("to account is not properly formatted")
	}

	// Sign the transaction with the private key to produce a signature.
	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	// Construct the signed transaction by adding the signature
	// in the [R|S|V] format.
	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the ledger.
type SignedTx struct {
	Tx
	V *big.Int `json:"v"` // Recovery identifier, either 31 or 32 with mintID.
	R *big.Int `json:"r"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Second coordinate of the ECDSA signature.
}

// Validate verifies the transaction has a proper signature that conforms to
// our standards, is associated with the data claimed to be signed, and is
// bound to the specified chain. It also checks the format of the to account.
func (tx SignedTx) Validate(chainID uint16) error {
	if tx.ChainID != chainID {
		return fmt.Errorf("transaction is for chain id %d, expected %d", tx.ChainID, chainID)
	}

	if !tx.ToID.IsAccountID() {
		return errors.New("invalid account for to account")
	}

	if err := signature.VerifySignature(tx.V, tx.R, tx.S); err != nil {
		return err
	}

	return nil
}

// FromAccount extracts the account id that signed the transaction.
func (tx SignedTx) FromAccount() (AccountID, error) {
	address, err := signature.FromAddress(tx.Tx, tx.V, tx.R, tx.S)
	return AccountID(address), err
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	from, err := tx.FromAccount()
	if err != nil {
		from = "unknown"
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}

// =============================================================================

// BlockTx represents the transaction as it's recorded inside a block. This
// includes a timestamp and the gas units the transaction consumes.
type BlockTx struct {
	SignedTx
	TimeStamp uint64 `json:"timestamp"` // The time the transaction was received.
	GasUnits  uint64 `json:"gas_units"` // The number of units of gas used by this transaction.
}

// NewBlockTx constructs a new block transaction.
func NewBlockTx(signedTx SignedTx, gasUnits uint64) BlockTx {
	return BlockTx{
		SignedTx:  signedTx,
		TimeStamp: uint64(time.Now().UTC().Unix()),
		GasUnits:  gasUnits,
	}
}

// Cost returns the total amount the sender is debited for this transaction
// under the specified base fee: the transferred value plus the full fee.
func (tx BlockTx) Cost(baseFee uint64) uint64 {
	return tx.Value + tx.EffectiveGasPrice(baseFee)*tx.GasUnits
}

// Size returns the serialized byte size of the transaction, used to bound
// the total byte size of a block.
func (tx BlockTx) Size() uint64 {
	data, err := json.Marshal(tx)
	if err != nil {
		return 0
	}

	return uint64(len(data))
}

// Hash implements the merkle Hashable interface for providing a hash of the
// block transaction. The digest covers the full encoding, signature included.
func (tx BlockTx) Hash() ([]byte, error) {
	str := signature.Hash(tx)
	return hex.DecodeString(str[2:])
}

// HashHex returns the content hash of the transaction as a hex encoded
// string. This is the identity callers use for membership and inclusion
// queries.
func (tx BlockTx) HashHex() string {
	return signature.Hash(tx)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two block transactions. If the nonce and signatures are the
// same, the two transactions are the same.
func (tx BlockTx) Equals(otherTx BlockTx) bool {
	txSig := signature.ToSignatureBytes(tx.V, tx.R, tx.S)
	otherTxSig := signature.ToSignatureBytes(otherTx.V, otherTx.R, otherTx.S)

	return tx.Nonce == otherTx.Nonce && bytes.Equal(txSig, otherTxSig)
}
