package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// MaxDifficulty is the largest meaningful difficulty: every hex character
// of the hash would have to be zero.
const MaxDifficulty = 2 * types.HashSize

// PoW errors.
var (
	ErrInvalidProof  = errors.New("invalid proof of work")
	ErrBadDifficulty = errors.New("difficulty out of range")
)

// PoW implements proof-of-work: a block is valid when the hex form of its
// hash starts with at least difficulty '0' characters.
type PoW struct {
	// Threads controls the number of parallel mining goroutines.
	// 0 or 1 = single-threaded (default). Each goroutine searches a
	// strided partition of the nonce space.
	Threads int
}

// NewPoW creates a new PoW engine.
func NewPoW(threads int) *PoW {
	return &PoW{Threads: threads}
}

// ValidateDifficulty checks that d is within [0, MaxDifficulty].
func ValidateDifficulty(d int) error {
	if d < 0 || d > MaxDifficulty {
		return fmt.Errorf("%w: %d, want 0..%d", ErrBadDifficulty, d, MaxDifficulty)
	}
	return nil
}

// MeetsDifficulty reports whether hash has at least d leading zero hex
// characters.
func MeetsDifficulty(hash types.Hash, d int) bool {
	return hash.LeadingZeros() >= d
}

// Verify checks that the stored hash matches recomputation and meets the
// difficulty target.
func (p *PoW) Verify(blk *block.Block, difficulty int) error {
	if blk == nil {
		return fmt.Errorf("%w: nil block", ErrInvalidProof)
	}
	computed := blk.ComputeHash()
	if blk.Hash != computed {
		return fmt.Errorf("%w: stored hash %s, computed %s", ErrInvalidProof, blk.Hash, computed)
	}
	if !MeetsDifficulty(computed, difficulty) {
		return fmt.Errorf("%w: hash %s has %d leading zeros, want %d",
			ErrInvalidProof, computed, computed.LeadingZeros(), difficulty)
	}
	return nil
}

// Seal searches nonces 0, 1, 2, ... until the block hash meets the target,
// then sets Nonce and Hash on blk. When ctx is cancelled, mining stops and
// ctx.Err() is returned with blk unchanged.
// If Threads > 1, mining runs in parallel goroutines with strided nonce partitioning.
func (p *PoW) Seal(ctx context.Context, blk *block.Block, difficulty int) error {
	if blk == nil {
		return fmt.Errorf("nil block")
	}
	if err := ValidateDifficulty(difficulty); err != nil {
		return err
	}

	var (
		nonce uint64
		err   error
	)
	if p.Threads <= 1 {
		nonce, err = sealSingle(ctx, blk.SigningPrefix(), difficulty)
	} else {
		nonce, err = sealParallel(ctx, blk.SigningPrefix(), difficulty, p.Threads)
	}
	if err != nil {
		return err
	}
	blk.Nonce = nonce
	blk.Hash = blk.ComputeHash()
	return nil
}

// sealSingle mines with a single goroutine.
func sealSingle(ctx context.Context, prefix []byte, difficulty int) (uint64, error) {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)

	for nonce := uint64(0); ; nonce++ {
		// Check cancellation every 65536 iterations.
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
		if MeetsDifficulty(crypto.Hash(buf), difficulty) {
			return nonce, nil
		}
		if nonce == ^uint64(0) {
			return 0, fmt.Errorf("nonce space exhausted")
		}
	}
}

// sealParallel mines with multiple goroutines, each searching a strided
// partition of the nonce space (goroutine i starts at nonce=i, step=threads).
// The lowest winning nonce is not guaranteed; any valid one is returned.
func sealParallel(ctx context.Context, prefix []byte, difficulty, threads int) (uint64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, len(prefix)+8)
			copy(buf, prefix)

			for nonce := startNonce; ; nonce += stride {
				// Check cancellation every ~65536 iterations per goroutine.
				if (nonce/stride)&0xFFFF == 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
				if MeetsDifficulty(crypto.Hash(buf), difficulty) {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				// Overflow: would wrap around past max uint64.
				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	// Wait in background so goroutines are cleaned up.
	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return 0, ctx.Err()
		}
		return r.nonce, r.err
	case <-ctx.Done():
		// A winner may have cancelled ctx itself; prefer its result.
		select {
		case r, ok := <-found:
			if ok && r.err == nil {
				return r.nonce, nil
			}
		default:
		}
		return 0, ctx.Err()
	}
}
