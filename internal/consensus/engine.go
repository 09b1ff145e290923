// Package consensus implements the proof-of-work rule that secures the chain.
package consensus

import (
	"context"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
)

// Engine seals candidate blocks and verifies sealed ones against a
// difficulty target.
type Engine interface {
	Seal(ctx context.Context, blk *block.Block, difficulty int) error
	Verify(blk *block.Block, difficulty int) error
}
