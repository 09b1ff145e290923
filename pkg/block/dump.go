package block

import (
	"encoding/json"
	"fmt"
)

// Dump is the full-chain export document.
type Dump struct {
	Chain  []*Block `json:"chain"`
	Length int      `json:"length"`
}

type dumpJSON struct {
	Chain  *[]json.RawMessage `json:"chain"`
	Length *int               `json:"length"`
}

// NewDump wraps chain in a dump document.
func NewDump(chain []*Block) *Dump {
	return &Dump{Chain: chain, Length: len(chain)}
}

// MarshalJSON encodes the dump. An empty chain encodes as [].
func (d Dump) MarshalJSON() ([]byte, error) {
	type plain Dump
	p := plain(d)
	if p.Chain == nil {
		p.Chain = []*Block{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON decodes a dump, requiring both fields and that length
// matches the number of blocks.
func (d *Dump) UnmarshalJSON(data []byte) error {
	var j dumpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: dump: %v", ErrSerialization, err)
	}
	if j.Chain == nil {
		return missing("dump", "chain")
	}
	if j.Length == nil {
		return missing("dump", "length")
	}
	if *j.Length != len(*j.Chain) {
		return fmt.Errorf("%w: dump: length %d does not match %d blocks", ErrSerialization, *j.Length, len(*j.Chain))
	}

	chain := make([]*Block, len(*j.Chain))
	for i, raw := range *j.Chain {
		b := new(Block)
		if err := b.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("chain[%d]: %w", i, err)
		}
		chain[i] = b
	}
	*d = Dump{Chain: chain, Length: len(chain)}
	return nil
}

// DecodeDump parses a chain dump document.
func DecodeDump(data []byte) (*Dump, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, decodeError(err)
	}
	return &d, nil
}
