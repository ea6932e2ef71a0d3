package blockchain

import (
	"bytes"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/crypto"
	"github.com/junaeth-project/qposd/qpos"
	"github.com/junaeth-project/qposd/txscript"
	"github.com/junaeth-project/qposd/wire"
)

// CalcMinFee computes the minimum fee a transaction of the given
// serialized size must pay, per spec.md §4.3's size-scaled formula:
// one base fee per 1000-byte increment, bumped by MinTxOutValue for every
// output valued below the dust threshold, and doubled when the block
// it targets is already more than half full.
func CalcMinFee(serializeSize int, blockFullness int64, outputs []*wire.TxOut) int64 {
	increments := int64(1 + serializeSize/1000)
	fee := MinTxFee * increments

	for _, out := range outputs {
		if out.Value < Cent {
			fee += MinTxOutValue
		}
	}

	if blockFullness > BlockSizeGen/2 {
		fee *= 2
	}
	return fee
}

// ConnectInputs spends tx's inputs against utxo, accumulating the fee it
// pays into *feeIn. It enforces coinbase-maturity and checks every input's
// signature, returning a *RuleError for any failure per spec.md §4.3 and
// §7. fork gates the BIP65-style CHECKLOCKTIMEVERIFY rule active as of
// Fork005 (when locktime is interpreted as a height/time lock at all).
func ConnectInputs(utxo *UTXOSet, tx *wire.Transaction, height int32, fork config.Fork, feeIn *int64) ([]*UTXOEntry, error) {
	spent := make([]*UTXOEntry, len(tx.TxIn))
	var valueIn int64

	for i, in := range tx.TxIn {
		entry, ok := utxo.Lookup(in.PreviousOutPoint)
		if !ok {
			return nil, ruleErr(ErrMissingTxOut, 10, "input %d spends unknown or already-spent outpoint %s", i, in.PreviousOutPoint)
		}
		if entry.IsCoinBase && height-entry.BlockHeight < CoinbaseMaturityConfirmations {
			return nil, ruleErr(ErrImmatureSpend, 10, "input %d spends a coinbase output only %d blocks deep, needs %d",
				i, height-entry.BlockHeight, CoinbaseMaturityConfirmations)
		}
		if fork >= config.Fork005 && in.Sequence != wire.MaxTxInSequenceNum {
			if tx.LockTime > uint64(height) && tx.LockTime < LockTimeThreshold {
				return nil, ruleErr(ErrBadSignature, 10, "input %d: transaction locktime %d not yet reached at height %d", i, tx.LockTime, height)
			}
		}

		if err := verifySpendAuthority(tx, i, entry.Output.PkScript); err != nil {
			return nil, err
		}

		if spentEntry, ok := utxo.SpendInput(in.PreviousOutPoint); ok {
			spent[i] = spentEntry
		}
		valueIn += entry.Output.Value
	}

	var valueOut int64
	for _, out := range tx.TxOut {
		valueOut += out.Value
	}
	if valueOut > valueIn {
		return nil, ruleErr(ErrInsufficientFee, 10, "transaction spends %d but only has %d in inputs", valueOut, valueIn)
	}
	fee := valueIn - valueOut
	minFee := CalcMinFee(tx.SerializeSize(), 0, tx.TxOut)
	if fee < minFee {
		return nil, ruleErr(ErrInsufficientFee, 5, "transaction fee %d is below the minimum %d", fee, minFee)
	}
	*feeIn += fee
	return spent, nil
}

// txValueIn sums the previous outputs tx's inputs spend, looked up from
// utxo before ConnectInputs marks them spent. A coinbase transaction has no
// real inputs and contributes zero, matching spec.md §4.4's treatment of
// value-in as a non-coinbase-only quantity.
func txValueIn(utxo *UTXOSet, tx *wire.Transaction) int64 {
	if tx.IsCoinBase() {
		return 0
	}
	var valueIn int64
	for _, in := range tx.TxIn {
		if entry, ok := utxo.Lookup(in.PreviousOutPoint); ok {
			valueIn += entry.Output.Value
		}
	}
	return valueIn
}

// txValueOut sums tx's own outputs, coinbase or not.
func txValueOut(tx *wire.Transaction) int64 {
	var valueOut int64
	for _, out := range tx.TxOut {
		valueOut += out.Value
	}
	return valueOut
}

// txSpecialValues returns the total PURCHASE* output value and the total
// CLAIM value tx carries, the purchased/claimed components spec.md §4.4's
// mint and money-supply formulas need alongside value-in/value-out and
// fees.
func txSpecialValues(tx *wire.Transaction) (purchased, claimed int64) {
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		switch sol.Class {
		case txscript.Purchase1Ty, txscript.Purchase3Ty:
			purchased += out.Value
		case txscript.ClaimTy:
			claimed += int64(sol.Op.ClaimValue)
		}
	}
	return purchased, claimed
}

// LockTimeThreshold is the classic Bitcoin-lineage cutoff distinguishing a
// locktime interpreted as a block height from one interpreted as a unix
// timestamp.
const LockTimeThreshold = 500000000

// verifySpendAuthority checks the signature on a non-special (ordinary
// pay-to-pubkey-hash or pay-to-pubkey) input. qPoS special transactions
// (purchase/set-key/set-state/claim) are single-input and are already
// signature-checked by their dedicated Check* function against the
// registry's recorded owner key; this path covers everything else.
func verifySpendAuthority(tx *wire.Transaction, vin int, prevPkScript []byte) error {
	sol, err := txscript.Solve(prevPkScript)
	if err != nil {
		return ruleErr(ErrBadSignature, 10, "input %d: unrecognized previous output script", vin)
	}
	switch sol.Class {
	case txscript.PubKeyHashTy:
		sig, pubkeyBytes, ok := txscript.ExtractSigAndPubKey(tx.TxIn[vin].SignatureScript)
		if !ok {
			return ruleErr(ErrBadSignature, 100, "input %d: malformed signature script", vin)
		}
		pubkey, err := crypto.ParsePubKey(pubkeyBytes)
		if err != nil {
			return ruleErr(ErrBadSignature, 100, "input %d: unparseable public key", vin)
		}
		h := chainhash.CalcHash160(pubkeyBytes)
		if !bytes.Equal(h[:], sol.PushData[0]) {
			return ruleErr(ErrBadSignature, 100, "input %d: public key does not match pubkey hash", vin)
		}
		hash, err := txscript.CalcSignatureHash(tx, vin, prevPkScript)
		if err != nil {
			return ruleErr(ErrBadSignature, 100, "input %d: %v", vin, err)
		}
		if !crypto.Verify(pubkey, hash[:], sig) {
			return ruleErr(ErrBadSignature, 100, "input %d: signature verification failed", vin)
		}
		return nil
	case txscript.PubKeyTy:
		pubkey, err := crypto.ParsePubKey(sol.PushData[0])
		if err != nil {
			return ruleErr(ErrBadSignature, 100, "input %d: unparseable public key", vin)
		}
		hash, err := txscript.CalcSignatureHash(tx, vin, prevPkScript)
		if err != nil {
			return ruleErr(ErrBadSignature, 100, "input %d: %v", vin, err)
		}
		if !crypto.Verify(pubkey, hash[:], tx.TxIn[vin].SignatureScript) {
			return ruleErr(ErrBadSignature, 100, "input %d: signature verification failed", vin)
		}
		return nil
	default:
		// Purchase/set-key/set-state/claim outputs authenticate through
		// their own Check* path against the registry, not here; anything
		// else unrecognized is rejected.
		if sol.Class == txscript.NonStandardTy {
			return ruleErr(ErrBadSignature, 10, "input %d: unrecognized previous output script", vin)
		}
		return nil
	}
}

// ApplyQPoSOperations walks every output of tx, applying the registry
// mutation each qPoS-specific template describes: purchases register a new
// staker, set-key/set-state ops mutate an existing one, and claims debit
// the registry balance. Called once per transaction as it is connected,
// after CheckPurchases/CheckSetKeys/CheckSetState/CheckClaim have already
// accepted it. height is the connecting block's height, recorded against
// any staker a DISABLE output targets.
func ApplyQPoSOperations(registry *qpos.Registry, tx *wire.Transaction, blockHash chainhash.Hash, height int32) error {
	txHash := tx.TxHash()
	for vout, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		op := sol.Op
		switch sol.Class {
		case txscript.Purchase1Ty, txscript.Purchase3Ty:
			owner, err := crypto.ParsePubKey(op.Owner)
			if err != nil {
				return err
			}
			staker := registry.Purchase(owner, out.Value, txHash, uint32(vout), blockHash)
			if sol.Class == txscript.Purchase3Ty {
				delegate, err := crypto.ParsePubKey(op.Delegate)
				if err != nil {
					return err
				}
				controller, err := crypto.ParsePubKey(op.Controller)
				if err != nil {
					return err
				}
				staker.PubkeyDelegate = delegate
				staker.PubkeyController = controller
			}
			staker.SetDelegatePayout(op.PayoutPCM)
			if op.Alias != "" {
				if err := registry.SetAlias(staker.ID, op.Alias); err != nil {
					return err
				}
			}
		case txscript.SetOwnerTy, txscript.SetDelegateTy, txscript.SetControllerTy:
			staker, ok := registry.GetStaker(op.StakerID)
			if !ok {
				continue
			}
			newKey, err := crypto.ParsePubKey(op.Pubkey)
			if err != nil {
				return err
			}
			switch sol.Class {
			case txscript.SetOwnerTy:
				staker.PubkeyOwner = newKey
			case txscript.SetDelegateTy:
				staker.PubkeyDelegate = newKey
				staker.SetDelegatePayout(op.PayoutPCM)
			case txscript.SetControllerTy:
				staker.PubkeyController = newKey
			}
		case txscript.EnableTy:
			if staker, ok := registry.GetStaker(op.StakerID); ok {
				staker.Enable()
			}
		case txscript.DisableTy:
			if staker, ok := registry.GetStaker(op.StakerID); ok {
				staker.Disable(height)
			}
		case txscript.ClaimTy:
			claimant, err := crypto.ParsePubKey(op.Pubkey)
			if err != nil {
				return err
			}
			if err := registry.Claim(claimant, int64(op.ClaimValue)); err != nil {
				return err
			}
		}
	}
	return nil
}

