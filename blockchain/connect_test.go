package blockchain

import (
	"testing"

	"github.com/decred/dcrd/txscript/v4"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/crypto"
	"github.com/junaeth-project/qposd/qpos"
	wirets "github.com/junaeth-project/qposd/txscript"
	"github.com/junaeth-project/qposd/wire"
)

func p2pkhScript(hash160 []byte) []byte {
	s := []byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20}
	s = append(s, hash160...)
	s = append(s, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)
	return s
}

func TestCalcMinFeeScalesWithSizeAndDustAndFullness(t *testing.T) {
	base := CalcMinFee(500, 0, nil)
	if base != MinTxFee {
		t.Errorf("CalcMinFee(500 bytes) = %d, want %d", base, MinTxFee)
	}

	bigger := CalcMinFee(1500, 0, nil)
	if bigger != MinTxFee*2 {
		t.Errorf("CalcMinFee(1500 bytes) = %d, want %d", bigger, MinTxFee*2)
	}

	withDust := CalcMinFee(500, 0, []*wire.TxOut{{Value: 1}})
	if withDust != MinTxFee+MinTxOutValue {
		t.Errorf("CalcMinFee with a dust output = %d, want %d", withDust, MinTxFee+MinTxOutValue)
	}

	full := CalcMinFee(500, BlockSizeGen, nil)
	if full != MinTxFee*2 {
		t.Errorf("CalcMinFee in a more-than-half-full block = %d, want %d", full, MinTxFee*2)
	}
}

func TestConnectInputsAcceptsValidPubKeyHashSpend(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := priv.PubKey()
	hash160 := chainhash.CalcHash160(pub.SerializeCompressed())
	script := p2pkhScript(hash160[:])

	prevTx := wire.NewTransaction()
	prevTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}})
	prevTx.AddTxOut(&wire.TxOut{Value: 100000, PkScript: script})

	utxo := NewUTXOSet()
	utxo.AddOutputs(prevTx, 1)

	spendTx := wire.NewTransaction()
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}})
	spendTx.AddTxOut(&wire.TxOut{Value: 50000, PkScript: []byte{0x6a}})

	hash, err := wirets.CalcSignatureHash(spendTx, 0, script)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %v", err)
	}
	sig, err := priv.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	spendTx.TxIn[0].SignatureScript = wirets.BuildSigScript(sig, pub.SerializeCompressed())

	var fee int64
	spent, err := ConnectInputs(utxo, spendTx, 200, config.Fork005, &fee)
	if err != nil {
		t.Fatalf("ConnectInputs: %v", err)
	}
	if len(spent) != 1 || spent[0].Output.Value != 100000 {
		t.Errorf("spent entries = %+v, want one entry of value 100000", spent)
	}
	if fee != 50000 {
		t.Errorf("accumulated fee = %d, want 50000", fee)
	}
	if _, ok := utxo.Lookup(spendTx.TxIn[0].PreviousOutPoint); ok {
		t.Errorf("spent outpoint is still reported unspent")
	}
}

func TestConnectInputsRejectsBadSignature(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := priv.PubKey()
	hash160 := chainhash.CalcHash160(pub.SerializeCompressed())
	script := p2pkhScript(hash160[:])

	prevTx := wire.NewTransaction()
	prevTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{2}, Index: 0}})
	prevTx.AddTxOut(&wire.TxOut{Value: 10000, PkScript: script})

	utxo := NewUTXOSet()
	utxo.AddOutputs(prevTx, 1)

	spendTx := wire.NewTransaction()
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}})
	spendTx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: []byte{0x6a}})

	other, _ := crypto.GenerateKey()
	hash, _ := wirets.CalcSignatureHash(spendTx, 0, script)
	sig, _ := other.Sign(hash[:])
	spendTx.TxIn[0].SignatureScript = wirets.BuildSigScript(sig, other.PubKey().SerializeCompressed())

	var fee int64
	if _, err := ConnectInputs(utxo, spendTx, 200, config.Fork005, &fee); err == nil {
		t.Errorf("ConnectInputs accepted a signature from a key that does not match the pubkey hash")
	}
}

func TestConnectInputsRejectsImmatureCoinbaseSpend(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := priv.PubKey()
	hash160 := chainhash.CalcHash160(pub.SerializeCompressed())
	script := p2pkhScript(hash160[:])

	coinbase := wire.NewTransaction()
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}})
	coinbase.AddTxOut(&wire.TxOut{Value: 10000, PkScript: script})

	utxo := NewUTXOSet()
	utxo.AddOutputs(coinbase, 1)

	spendTx := wire.NewTransaction()
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: coinbase.TxHash(), Index: 0}})
	spendTx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: []byte{0x6a}})

	var fee int64
	// Only 5 blocks deep: far short of CoinbaseMaturityConfirmations.
	if _, err := ConnectInputs(utxo, spendTx, 6, config.Fork005, &fee); err == nil {
		t.Errorf("ConnectInputs accepted a coinbase spend before maturity")
	}
}

func TestConnectInputsRejectsOverspend(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	pub := priv.PubKey()
	hash160 := chainhash.CalcHash160(pub.SerializeCompressed())
	script := p2pkhScript(hash160[:])

	prevTx := wire.NewTransaction()
	prevTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{3}, Index: 0}})
	prevTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: script})

	utxo := NewUTXOSet()
	utxo.AddOutputs(prevTx, 1)

	spendTx := wire.NewTransaction()
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}})
	spendTx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: []byte{0x6a}})

	hash, _ := wirets.CalcSignatureHash(spendTx, 0, script)
	sig, _ := priv.Sign(hash[:])
	spendTx.TxIn[0].SignatureScript = wirets.BuildSigScript(sig, pub.SerializeCompressed())

	var fee int64
	if _, err := ConnectInputs(utxo, spendTx, 200, config.Fork005, &fee); err == nil {
		t.Errorf("ConnectInputs accepted a transaction spending more than its input value")
	}
}

func TestApplyQPoSOperationsAppliesPurchaseAndClaim(t *testing.T) {
	registry := qpos.NewRegistry(5)
	owner, _ := crypto.GenerateKey()

	tx := wire.NewTransaction()
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{4}, Index: 0}})

	// ApplyQPoSOperations relies on txscript.Solve to classify each
	// output; reuse validate_test.go's payload/tag encoders rather than
	// duplicating them here.
	script := buildQPoSScript(tagPurchase1, purchasePayload("staker-one", owner.PubKey().SerializeCompressed(), 10000))
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: script})

	if err := ApplyQPoSOperations(registry, tx, chainhash.Hash{5}, 10); err != nil {
		t.Fatalf("ApplyQPoSOperations: %v", err)
	}
	staker, ok := registry.GetStakerByAlias("staker-one")
	if !ok {
		t.Fatalf("purchase did not register a staker under its alias")
	}
	if staker.PurchasePrice != 1000 {
		t.Errorf("staker PurchasePrice = %d, want 1000", staker.PurchasePrice)
	}
}
