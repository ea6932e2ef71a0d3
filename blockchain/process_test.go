package blockchain

import (
	"testing"

	"github.com/decred/dcrd/txscript/v4"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/crypto"
	wirets "github.com/junaeth-project/qposd/txscript"
	"github.com/junaeth-project/qposd/wire"
)

func testParams() *config.Params {
	return &config.Params{
		Name:              "unit-test",
		Forks:             config.ForkTable{{config.ForkGenesis, 0}, {config.ForkQPOS, 1}},
		QPTargetSlotTime:  5,
		BlocksPerSnapshot: 1000,
		CoinbaseMaturity:  100,
	}
}

func genesisBlock() *wire.Block {
	coinbase := wire.NewTransaction()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff},
		SignatureScript:  []byte{0x01, 0x02},
	})
	coinbase.AddTxOut(&wire.TxOut{Value: 1000 * Coin, PkScript: []byte{0x6a}})
	block := &wire.Block{
		Header:       wire.BlockHeader{Height: 0},
		Transactions: []*wire.Transaction{coinbase},
	}
	block.Header.MerkleRoot = block.MerkleRoot()
	return block
}

func TestProcessBlockAcceptsGenesis(t *testing.T) {
	c := NewChain(testParams())
	isMain, isOrphan, err := c.ProcessBlock(genesisBlock(), 1000)
	if err != nil {
		t.Fatalf("ProcessBlock(genesis): %v", err)
	}
	if !isMain || isOrphan {
		t.Fatalf("ProcessBlock(genesis) = (%v, %v), want (true, false)", isMain, isOrphan)
	}
	tip := c.Index.Tip()
	if tip == nil || tip.Height != 0 {
		t.Fatalf("tip after genesis = %+v, want height 0", tip)
	}
}

func TestProcessBlockRejectsDuplicateGenesis(t *testing.T) {
	c := NewChain(testParams())
	blk := genesisBlock()
	if _, _, err := c.ProcessBlock(blk, 1000); err != nil {
		t.Fatalf("ProcessBlock(genesis): %v", err)
	}
	if _, _, err := c.ProcessBlock(blk, 1000); err == nil {
		t.Errorf("ProcessBlock accepted the same block hash twice")
	}
}

func TestProcessBlockReportsOrphanForUnknownParent(t *testing.T) {
	c := NewChain(testParams())
	if _, _, err := c.ProcessBlock(genesisBlock(), 1000); err != nil {
		t.Fatalf("ProcessBlock(genesis): %v", err)
	}

	orphan := &wire.Block{
		Header:       wire.BlockHeader{PrevBlock: chainhash.Hash{0xff}, Height: 1},
		Transactions: []*wire.Transaction{wire.NewTransaction()},
	}
	_, isOrphan, err := c.ProcessBlock(orphan, 1000)
	if err != nil {
		t.Fatalf("ProcessBlock(orphan) returned an error instead of flagging an orphan: %v", err)
	}
	if !isOrphan {
		t.Errorf("ProcessBlock did not report a block with an unknown parent as an orphan")
	}
}

// buildQPoSChild constructs a valid height-1 qPoS block extending genesis,
// produced by the sole registered staker's delegate key.
func buildQPoSChild(t *testing.T, c *Chain, genesisHash chainhash.Hash, priv *crypto.PrivateKey, stakerID uint32) *wire.Block {
	t.Helper()

	funding := wire.NewTransaction()
	funding.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x42}, Index: 0}})
	hash160 := chainhash.CalcHash160(priv.PubKey().SerializeCompressed())
	fundingScript := []byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20}
	fundingScript = append(fundingScript, hash160[:]...)
	fundingScript = append(fundingScript, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)
	funding.AddTxOut(&wire.TxOut{Value: 1_000_000, PkScript: fundingScript})
	c.UTXO.AddOutputs(funding, 0)

	spend := wire.NewTransaction()
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: funding.TxHash(), Index: 0}})
	spend.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x6a}})
	sigHash, err := wirets.CalcSignatureHash(spend, 0, fundingScript)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %v", err)
	}
	sig, err := priv.Sign(sigHash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	spend.TxIn[0].SignatureScript = wirets.BuildSigScript(sig, priv.PubKey().SerializeCompressed())

	header := wire.BlockHeader{PrevBlock: genesisHash, Height: 1, StakerID: stakerID, Timestamp: 1000}
	block := &wire.Block{Header: header, Transactions: []*wire.Transaction{spend}}
	header.MerkleRoot = block.MerkleRoot()

	unsigned := header
	unsigned.BlockSig = nil
	blockHash := unsigned.BlockHash()
	blockSig, err := priv.SignCompact(blockHash[:])
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	header.BlockSig = blockSig
	block.Header = header
	return block
}

func TestProcessBlockConnectsValidQPoSChild(t *testing.T) {
	c := NewChain(testParams())
	if _, _, err := c.ProcessBlock(genesisBlock(), 1000); err != nil {
		t.Fatalf("ProcessBlock(genesis): %v", err)
	}
	genesisHash := c.Index.Tip().Hash

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	staker := c.Registry.Purchase(priv.PubKey(), 1000, chainhash.Hash{}, 0, chainhash.Hash{})
	c.Registry.BuildQueue(1000, chainhash.Hash{0x99})

	child := buildQPoSChild(t, c, genesisHash, priv, staker.ID)
	isMain, isOrphan, err := c.ProcessBlock(child, 1005)
	if err != nil {
		t.Fatalf("ProcessBlock(child): %v", err)
	}
	if !isMain || isOrphan {
		t.Fatalf("ProcessBlock(child) = (%v, %v), want (true, false)", isMain, isOrphan)
	}
	if c.Index.Tip().Height != 1 {
		t.Errorf("tip height = %d, want 1", c.Index.Tip().Height)
	}
}

func TestProcessBlockRejectsWrongDutyStaker(t *testing.T) {
	c := NewChain(testParams())
	if _, _, err := c.ProcessBlock(genesisBlock(), 1000); err != nil {
		t.Fatalf("ProcessBlock(genesis): %v", err)
	}
	genesisHash := c.Index.Tip().Hash

	priv, _ := crypto.GenerateKey()
	staker := c.Registry.Purchase(priv.PubKey(), 1000, chainhash.Hash{}, 0, chainhash.Hash{})
	c.Registry.BuildQueue(1000, chainhash.Hash{0x99})

	child := buildQPoSChild(t, c, genesisHash, priv, staker.ID+1) // claims the wrong staker ID
	if _, _, err := c.ProcessBlock(child, 1005); err == nil {
		t.Errorf("ProcessBlock accepted a block claiming a staker ID that is not on duty")
	}
}
