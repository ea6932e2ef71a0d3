package blockchain

import (
	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/crypto"
	"github.com/junaeth-project/qposd/qpos"
	"github.com/junaeth-project/qposd/txscript"
	"github.com/junaeth-project/qposd/wire"
)

// CheckTransaction performs every context-free sanity check on tx: the
// checks that depend only on the transaction's own bytes, never on chain
// state or the registry. Grounded on the teacher's
// blockdag/validate.go:CheckTransactionSanity.
func CheckTransaction(tx *wire.Transaction) error {
	if len(tx.TxIn) == 0 {
		return ruleErr(ErrNoInputs, 10, "transaction has no inputs")
	}
	if len(tx.TxOut) == 0 {
		return ruleErr(ErrNoOutputs, 10, "transaction has no outputs")
	}
	if tx.SerializeSize() > wire.MaxBlockSize {
		return ruleErr(ErrTxTooBig, 10, "transaction is larger than max block size")
	}

	var totalOut int64
	for _, out := range tx.TxOut {
		if out.Value < 0 || out.Value > MaxMoney {
			return ruleErr(ErrBadTxOutValue, 100, "transaction output value %d out of range", out.Value)
		}
		totalOut += out.Value
		if totalOut > MaxMoney {
			return ruleErr(ErrBadTxOutValue, 100, "total transaction output value exceeds max money")
		}
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if _, dup := seen[in.PreviousOutPoint]; dup {
			return ruleErr(ErrDuplicateTxInputs, 100, "transaction spends outpoint %s more than once", in.PreviousOutPoint)
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}

	if tx.IsCoinBase() {
		scriptLen := len(tx.TxIn[0].SignatureScript)
		if scriptLen < 2 || scriptLen > 100 {
			return ruleErr(ErrBadCoinbaseScriptLen, 100, "coinbase script length %d out of range [2,100]", scriptLen)
		}
	} else {
		for _, in := range tx.TxIn {
			if in.PreviousOutPoint.Hash == chainhash.ZeroHash && in.PreviousOutPoint.Index == 0xffffffff {
				return ruleErr(ErrUnexpectedCoinbase, 100, "non-coinbase transaction has a coinbase-shaped input")
			}
		}
	}
	return nil
}

// VerifyInputSignature checks that tx's input vin is signed by owner,
// using the classic single-input sighash every qPoS special transaction
// and ordinary spend shares. prevPkScript is the script of the output
// being spent.
func VerifyInputSignature(tx *wire.Transaction, vin int, prevPkScript []byte, owner *crypto.PublicKey) error {
	if vin < 0 || vin >= len(tx.TxIn) {
		return ruleErr(ErrBadSignature, 100, "signature check on out-of-range input %d", vin)
	}
	sig, pubkeyBytes, ok := txscript.ExtractSigAndPubKey(tx.TxIn[vin].SignatureScript)
	if !ok {
		return ruleErr(ErrBadSignature, 100, "input %d: malformed signature script", vin)
	}
	signer, err := crypto.ParsePubKey(pubkeyBytes)
	if err != nil {
		return ruleErr(ErrBadSignature, 100, "input %d: unparseable public key", vin)
	}
	if owner != nil && !signer.Equals(owner) {
		return ruleErr(ErrNotOwnerKey, 100, "input %d: signed by a key other than the expected owner key", vin)
	}
	hash, err := txscript.CalcSignatureHash(tx, vin, prevPkScript)
	if err != nil {
		return ruleErr(ErrBadSignature, 100, "input %d: %v", vin, err)
	}
	if !crypto.Verify(signer, hash[:], sig) {
		return ruleErr(ErrBadSignature, 100, "input %d: signature verification failed", vin)
	}
	return nil
}

// CheckPurchases extracts and validates every PURCHASE1/PURCHASE3 output in
// tx against registry, per spec.md §4.3: price must fall in
// [price, 2*price], the declared payout must not exceed MaxPurchasePCM,
// and the alias (if any) must not already be registered.
func CheckPurchases(registry *qpos.Registry, tx *wire.Transaction, price int64) error {
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		if sol.Class != txscript.Purchase1Ty && sol.Class != txscript.Purchase3Ty {
			continue
		}
		op := sol.Op
		if out.Value < price || out.Value > 2*price {
			return ruleErr(ErrBadPurchasePrice, 10, "purchase value %d outside [%d,%d]", out.Value, price, 2*price)
		}
		if op.PayoutPCM > MaxPurchasePCM {
			return ruleErr(ErrBadPurchasePCM, 10, "purchase payout %d exceeds %d", op.PayoutPCM, MaxPurchasePCM)
		}
		if len(op.Alias) > MaxAliasLength {
			return ruleErr(ErrBadPurchasePrice, 10, "purchase alias exceeds %d bytes", MaxAliasLength)
		}
		if op.Alias != "" {
			if _, taken := registry.GetStakerByAlias(op.Alias); taken {
				return ruleErr(ErrAliasTaken, 10, "alias %q already registered", op.Alias)
			}
		}
		if _, err := crypto.ParsePubKey(op.Owner); err != nil {
			return ruleErr(ErrBadPurchasePrice, 10, "purchase owner key does not parse")
		}
		if sol.Class == txscript.Purchase3Ty {
			if _, err := crypto.ParsePubKey(op.Delegate); err != nil {
				return ruleErr(ErrBadPurchasePrice, 10, "purchase delegate key does not parse")
			}
			if _, err := crypto.ParsePubKey(op.Controller); err != nil {
				return ruleErr(ErrBadPurchasePrice, 10, "purchase controller key does not parse")
			}
		}
	}
	return nil
}

// setKeyOps collects every SETOWNER/SETDELEGATE/SETCONTROLLER output in tx.
func setKeyOps(tx *wire.Transaction) []struct {
	out *wire.TxOut
	sol txscript.Solutions
} {
	var ops []struct {
		out *wire.TxOut
		sol txscript.Solutions
	}
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		switch sol.Class {
		case txscript.SetOwnerTy, txscript.SetDelegateTy, txscript.SetControllerTy:
			ops = append(ops, struct {
				out *wire.TxOut
				sol txscript.Solutions
			}{out, sol})
		}
	}
	return ops
}

// CheckSetKeys validates SETOWNER/SETDELEGATE/SETCONTROLLER outputs
// against registry and the single input signature that authorizes them:
// spec.md §4.3 requires exactly one input, every targeted staker ID equal,
// the signing key equal to that staker's current owner key, and — if an
// owner change is among the ops — that it come last.
//
// Resolves the open question spec.md §9 flags (the fKeyTypes bitmask
// accumulation: `&=` vs `|=`) as `|=`: each successive SET op ORs its key
// type into the seen-types mask, matching the "which key types appear in
// this transaction" reading the rest of the one-input rule depends on; an
// `&=` accumulator could never see more than the first op's bit set and
// would make the owner-last rule unreachable for any multi-op transaction.
func CheckSetKeys(registry *qpos.Registry, tx *wire.Transaction, inputOwner *crypto.PublicKey) error {
	ops := setKeyOps(tx)
	if len(ops) == 0 {
		return nil
	}
	if len(tx.TxIn) != 1 {
		return ruleErr(ErrTooManyKeyOps, 10, "set-key transaction must have exactly one input, has %d", len(tx.TxIn))
	}

	var targetID uint32
	haveTarget := false
	var seenTypes uint32
	ownerChangeIndex := -1
	for i, op := range ops {
		id := op.sol.Op.StakerID
		if !haveTarget {
			targetID = id
			haveTarget = true
		} else if id != targetID {
			return ruleErr(ErrMultiStakerTarget, 10, "set-key transaction targets more than one staker")
		}
		staker, ok := registry.GetStaker(id)
		if !ok {
			return ruleErr(ErrStakerUnqualified, 10, "set-key transaction targets unknown staker %d", id)
		}
		if inputOwner == nil || !staker.PubkeyOwner.Equals(inputOwner) {
			return ruleErr(ErrNotOwnerKey, 10, "set-key transaction not signed by staker %d's owner key", id)
		}
		var bit uint32
		switch op.sol.Class {
		case txscript.SetOwnerTy:
			bit = 1
			ownerChangeIndex = i
		case txscript.SetDelegateTy:
			bit = 2
		case txscript.SetControllerTy:
			bit = 4
		}
		if seenTypes&bit != 0 {
			return ruleErr(ErrTooManyKeyOps, 10, "set-key transaction carries more than one op of the same key type")
		}
		seenTypes |= bit
	}
	if seenTypes&1 != 0 && ownerChangeIndex != len(ops)-1 {
		return ruleErr(ErrOwnerChangeNotLast, 10, "owner-key change must be the last set-key output in the transaction")
	}
	return nil
}

// CheckSetState validates ENABLE/DISABLE outputs: the same one-input,
// single-staker-target, owner-signature rule as CheckSetKeys. It does not
// look at the staker's current enabled state, so an ENABLE of an enabled
// staker or a DISABLE of a disabled one passes this check.
func CheckSetState(registry *qpos.Registry, tx *wire.Transaction, inputOwner *crypto.PublicKey) error {
	var targets []uint32
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		if sol.Class != txscript.EnableTy && sol.Class != txscript.DisableTy {
			continue
		}
		targets = append(targets, sol.Op.StakerID)
	}
	if len(targets) == 0 {
		return nil
	}
	for _, id := range targets[1:] {
		if id != targets[0] {
			return ruleErr(ErrMultiStakerTarget, 10, "set-state transaction targets more than one staker")
		}
	}
	if len(tx.TxIn) != 1 {
		return ruleErr(ErrMultipleSetState, 10, "set-state transaction must have exactly one input")
	}
	staker, ok := registry.GetStaker(targets[0])
	if !ok {
		return ruleErr(ErrStakerUnqualified, 10, "set-state transaction targets unknown staker %d", targets[0])
	}
	if inputOwner == nil || !staker.PubkeyOwner.Equals(inputOwner) {
		return ruleErr(ErrNotOwnerKey, 10, "set-state transaction not signed by staker's owner key")
	}
	return nil
}

// CheckClaim validates CLAIM outputs: no claim before the purchase fork,
// exactly one input and one output, and a registry balance sufficient to
// cover the claimed value. CheckClaim takes no signer and does not compare
// the transaction's signing key with the claimed pubkey.
func CheckClaim(registry *qpos.Registry, tx *wire.Transaction, fork config.Fork) error {
	var claims int
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil || sol.Class != txscript.ClaimTy {
			continue
		}
		claims++
		if fork < config.ForkPurchase {
			return ruleErr(ErrBadClaimShape, 10, "claim outputs are not valid before the purchase fork activates")
		}
		if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
			return ruleErr(ErrBadClaimShape, 10, "claim transaction must have exactly one input and one output")
		}
		claimant, err := crypto.ParsePubKey(sol.Op.Pubkey)
		if err != nil {
			return ruleErr(ErrBadClaimShape, 10, "claim output carries an unparseable public key")
		}
		if registry.Balance(claimant) < int64(sol.Op.ClaimValue) {
			return ruleErr(ErrClaimExceedsBalance, 10, "claim of %d exceeds balance", sol.Op.ClaimValue)
		}
	}
	if claims > 1 {
		return ruleErr(ErrBadClaimShape, 10, "transaction carries more than one claim output")
	}
	return nil
}

// CheckBlockBatchConsistency enforces the block-wide qPoS invariants
// spec.md §4.4 describes: no two transactions in the same block may
// register the same alias, target the same staker for a key/state change,
// or claim against the same pubkey's balance (since each check above only
// sees its own transaction's view of the registry, a same-block double
// spend of these resources would otherwise pass every per-tx check).
func CheckBlockBatchConsistency(block *wire.Block) error {
	aliases := make(map[string]struct{})
	setTargets := make(map[uint32]struct{})
	claimants := make(map[string]struct{})

	for _, tx := range block.Transactions {
		for _, out := range tx.TxOut {
			sol, err := txscript.Solve(out.PkScript)
			if err != nil {
				continue
			}
			switch sol.Class {
			case txscript.Purchase1Ty, txscript.Purchase3Ty:
				if sol.Op.Alias == "" {
					continue
				}
				key := sol.Op.Alias
				if _, dup := aliases[key]; dup {
					return ruleErr(ErrDuplicatePurchaseAlias, 20, "alias %q registered twice in one block", key)
				}
				aliases[key] = struct{}{}
			case txscript.SetOwnerTy, txscript.SetDelegateTy, txscript.SetControllerTy,
				txscript.EnableTy, txscript.DisableTy:
				id := sol.Op.StakerID
				if _, dup := setTargets[id]; dup {
					return ruleErr(ErrDuplicateSetKeyTarget, 20, "staker %d targeted by more than one set-key/state op in one block", id)
				}
				setTargets[id] = struct{}{}
			case txscript.ClaimTy:
				key := string(sol.Op.Pubkey)
				if _, dup := claimants[key]; dup {
					return ruleErr(ErrClaimExceedsBalance, 20, "same pubkey claims more than once in one block")
				}
				claimants[key] = struct{}{}
			}
		}
	}
	return nil
}

// CountSigOps returns the number of signature operations tx carries across
// both its inputs' signature scripts and its outputs' public-key scripts.
// Grounded on the teacher's blockdag/validate.go:CountSigOps.
func CountSigOps(tx *wire.Transaction) int {
	total := 0
	for _, in := range tx.TxIn {
		total += txscript.SigOpCount(in.SignatureScript)
	}
	for _, out := range tx.TxOut {
		total += txscript.SigOpCount(out.PkScript)
	}
	return total
}

// CheckMerkleRoot recomputes block's merkle root from its transaction list
// and compares it against the header's declared value.
func CheckMerkleRoot(block *wire.Block) error {
	if block.MerkleRoot() != block.Header.MerkleRoot {
		return ruleErr(ErrBadMerkleRoot, 100, "merkle root mismatch")
	}
	return nil
}

// CheckBlockSanity performs every context-free check on block: size bounds,
// transaction-level sanity for each transaction, the merkle root, and
// (once qPoS has activated) the fork-gated absence of coinbase/coinstake
// transactions. Grounded on the teacher's
// blockdag/validate.go:checkBlockSanity.
func CheckBlockSanity(block *wire.Block, fork config.Fork) error {
	if len(block.Transactions) == 0 {
		return ruleErr(ErrNoTransactions, 100, "block has no transactions")
	}
	size := block.SerializeSize()
	if size > wire.MaxBlockSize {
		return ruleErr(ErrBlockTooBig, 100, "block size %d exceeds maximum %d", size, wire.MaxBlockSize)
	}

	if fork >= config.ForkQPOS {
		for _, tx := range block.Transactions {
			if tx.IsCoinBase() {
				return ruleErr(ErrUnexpectedCoinbase, 100, "qPoS block must not contain a coinbase transaction")
			}
		}
		if len(block.Header.BlockSig) == 0 {
			return ruleErr(ErrBadBlockSignature, 100, "qPoS block header carries no signature")
		}
	} else {
		coinbaseCount := 0
		for _, tx := range block.Transactions {
			if tx.IsCoinBase() {
				coinbaseCount++
			}
		}
		if coinbaseCount != 1 {
			return ruleErr(ErrMultipleCoinstakes, 100, "block must contain exactly one coinbase before qPoS activates, has %d", coinbaseCount)
		}
		if !block.Transactions[0].IsCoinBase() {
			return ruleErr(ErrUnexpectedCoinbase, 100, "first transaction in block must be the coinbase")
		}
	}

	for i, tx := range block.Transactions {
		if i == 0 && tx.IsCoinBase() {
			continue
		}
		if err := CheckTransaction(tx); err != nil {
			return err
		}
	}

	if err := CheckMerkleRoot(block); err != nil {
		return err
	}
	if err := CheckBlockBatchConsistency(block); err != nil {
		return err
	}
	return nil
}

// CheckQPoSSlot validates the header's claim to its production slot:
// stakerID must be the staker currently on duty at the header's timestamp,
// and the header's BlockSig must recover to that staker's delegate key.
func CheckQPoSSlot(header *wire.BlockHeader, registry *qpos.Registry, now uint32) error {
	queue := registry.Queue()
	if queue == nil {
		return ruleErr(ErrBadQPoSSlot, 50, "no staker queue has been built yet")
	}
	if header.Timestamp > now+FutureDriftSeconds {
		return ruleErr(ErrBadBlockTime, 20, "block timestamp is too far in the future")
	}
	if !queue.TimeIsInCurrentSlotWindow(header.Timestamp) {
		return ruleErr(ErrBadQPoSSlot, 50, "block timestamp %d is outside the current slot window", header.Timestamp)
	}
	dutyID := queue.CurrentID()
	if header.StakerID != dutyID {
		return ruleErr(ErrBadQPoSSlot, 50, "header claims staker %d, but %d is on duty", header.StakerID, dutyID)
	}
	staker, ok := registry.GetStaker(header.StakerID)
	if !ok {
		return ruleErr(ErrStakerUnqualified, 50, "header's staker %d is not registered", header.StakerID)
	}
	if !staker.IsEnabled() {
		return ruleErr(ErrStakerUnqualified, 50, "header's staker %d is disabled or disqualified", header.StakerID)
	}

	unsigned := *header
	unsigned.BlockSig = nil
	hash := unsigned.BlockHash()
	recovered, _, err := crypto.RecoverCompact(header.BlockSig, hash[:])
	if err != nil {
		return ruleErr(ErrBadBlockSignature, 100, "block signature does not recover: %v", err)
	}
	if !recovered.Equals(staker.PubkeyDelegate) {
		return ruleErr(ErrBadBlockSignature, 100, "block signature does not match staker %d's delegate key", header.StakerID)
	}
	return nil
}
