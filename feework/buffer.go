// Package feework implements the memory-hard proof-of-work a transaction
// can carry in lieu of a money fee: an Argon2d hash over the transaction
// body and a nonce, whose cost buys a fee-equivalent "difficulty" the
// mempool and block validator compare against the usual minimum fee.
//
// Grounded on original_source/src/feeless/Feework.{hpp,cpp} and
// FeeworkBuffer.{hpp,cpp}.
package feework

import (
	"sync"

	"github.com/tvdburgt/go-argon2"
)

// Buffer serializes feework hash computations behind a mutex and carries
// the fixed Argon2d parameters. It holds no scratch memory of its own:
// each Hash call passes a copy of the parameters, with that call's memory
// cost, to argon2.Hash. Only one hash can be computed at a time; callers that
// need concurrency should keep a small pool of Buffers rather than share
// one across goroutines under contention.
type Buffer struct {
	mu     sync.Mutex
	config *argon2.Config
}

// NewBuffer returns a Buffer whose stored memory cost is maxMCost KiB; Hash
// replaces it with the per-call mcost. No working memory is allocated here.
func NewBuffer(maxMCost uint32) *Buffer {
	return &Buffer{
		config: &argon2.Config{
			HashLength:  HashLen,
			TimeCost:    TCost,
			MemoryCost:  maxMCost,
			Parallelism: Parallelism,
			Mode:        argon2.ModeArgon2d,
			Version:     argon2.Version13,
		},
	}
}

// Hash computes Argon2d(data, work) under mcost KiB of memory, serializing
// access to the shared scratch buffer the way the original's
// boost::lock_guard<FeeworkBuffer> does.
func (b *Buffer) Hash(data, work []byte, mcost uint32) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := *b.config
	cfg.MemoryCost = mcost
	return argon2.Hash(&cfg, data, work)
}
