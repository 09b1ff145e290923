package p2p

import (
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// ErrBadSeed is returned for seed addresses that are not full peer
// multiaddrs (…/p2p/<peer-id>).
var ErrBadSeed = errors.New("bad seed address")

// ParseSeed parses one seed multiaddr.
func ParseSeed(s string) (peer.AddrInfo, error) {
	s = strings.TrimSpace(s)
	ma, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return peer.AddrInfo{}, fmt.Errorf("%w: %q: %v", ErrBadSeed, s, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return peer.AddrInfo{}, fmt.Errorf("%w: %q: %v", ErrBadSeed, s, err)
	}
	if len(info.Addrs) == 0 {
		return peer.AddrInfo{}, fmt.Errorf("%w: %q: no transport address", ErrBadSeed, s)
	}
	return *info, nil
}

// ParseSeeds parses a seed list. Entries for the same peer are merged.
func ParseSeeds(seeds []string) ([]peer.AddrInfo, error) {
	var out []peer.AddrInfo
	index := make(map[peer.ID]int)
	for _, s := range seeds {
		info, err := ParseSeed(s)
		if err != nil {
			return nil, err
		}
		if i, ok := index[info.ID]; ok {
			out[i].Addrs = append(out[i].Addrs, info.Addrs...)
			continue
		}
		index[info.ID] = len(out)
		out = append(out, info)
	}
	return out, nil
}
