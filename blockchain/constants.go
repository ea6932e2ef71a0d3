package blockchain

// MaxMoney is the absolute supply ceil; no output or output sum may exceed
// it (spec.md §3).
const MaxMoney = 2_000_000_000 * Coin

// Coin is the number of base units in one XST.
const Coin = 1_000_000

// Cent is one hundredth of a Coin, the threshold spec.md §4.3's fee
// formula uses to decide whether an output is "dust".
const Cent = Coin / 100

// MinTxOutValue is the minimum value (besides explicit type exceptions
// such as a purchase/claim/null-data output) any transaction output may
// carry.
const MinTxOutValue = Cent / 10

// MinTxFee and MinRelayTxFee are the base fee constants spec.md §4.3's
// size-scaled fee formula multiplies.
const (
	MinTxFee      = Cent
	MinRelayTxFee = Cent / 10
)

// BlockSizeGen is the soft generation-size ceiling used by the "block more
// than half full" fee-scaling rule.
const BlockSizeGen = 1_000_000

// MaxBlockSigOps bounds the signature-operation count of a block.
const MaxBlockSigOps = 20_000

// CoinbaseMaturity is the number of confirmations a coinbase/coinstake
// output must accumulate before it can be spent; ConnectInputs enforces
// CoinbaseMaturity+20 per spec.md §4.3.
const CoinbaseMaturity = 100

// CoinbaseMaturityConfirmations is the total confirmation depth
// ConnectInputs requires of a coinbase/coinstake spend.
const CoinbaseMaturityConfirmations = CoinbaseMaturity + 20

// QPosBlockReward is the fixed per-block reward credited to the producing
// staker's owner key.
const QPosBlockReward = 10 * Coin

// FutureDriftSeconds bounds how far into the future (relative to the
// validating node's clock) a pre-qPoS coinstake timestamp may claim to be.
const FutureDriftSeconds = 10 * 60

// MaxAliasLength bounds a purchase's alias length in bytes.
const MaxAliasLength = 256

// MaxPurchasePCM is the maximum payout-per-cent-mille a purchase/set-
// delegate operation may declare (100% = 100000 per spec.md §4.3).
const MaxPurchasePCM = 100_000
