// Package peers keeps the set of nodes a session talks to, bootstraps it
// from a seed list and refreshes it from the nodes themselves.
package peers

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
)

// Registry holds the known peers of one session.
type Registry struct {
	mu    sync.Mutex
	peers []types.Peer
	rnd   *rand.Rand
}

// NewRegistry creates an empty registry. rnd may be nil to use the global
// source.
func NewRegistry(rnd *rand.Rand) *Registry {
	return &Registry{rnd: rnd, peers: []types.Peer{}}
}

// Normalize applies the defaults every peer must carry: protocol http when
// absent and port 4003 unless it is one of the two public API ports.
func Normalize(p types.Peer) types.Peer {
	out := types.Peer{
		IP:       strings.TrimSpace(p.IP),
		Port:     p.Port,
		Protocol: strings.ToLower(strings.TrimSpace(p.Protocol)),
	}
	if out.Port != types.DefaultPeerPort && out.Port != types.SecurePeerPort {
		out.Port = types.DefaultPeerPort
	}
	if out.Protocol == "" {
		out.Protocol = types.ProtocolHTTP
	}
	return out
}

// NormalizeAll normalizes every peer of list.
func NormalizeAll(list []types.Peer) []types.Peer {
	out := make([]types.Peer, 0, len(list))
	for _, p := range list {
		out = append(out, Normalize(p))
	}
	return out
}

// Sanitize normalizes a remotely supplied list and drops entries that are
// still invalid afterwards.
func Sanitize(list []types.Peer) []types.Peer {
	out := make([]types.Peer, 0, len(list))
	for _, p := range NormalizeAll(list) {
		if utils.ValidatePeer(p) != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Replace swaps the whole peer set for list, normalized.
func (r *Registry) Replace(list []types.Peer) {
	normalized := NormalizeAll(list)

	r.mu.Lock()
	r.peers = normalized
	r.mu.Unlock()
}

// PickRandom returns a uniformly chosen peer, or types.ErrNoPeers.
func (r *Registry) PickRandom() (types.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.peers) == 0 {
		return types.Peer{}, types.ErrNoPeers
	}

	var i int
	if r.rnd != nil {
		i = r.rnd.IntN(len(r.peers))
	} else {
		i = rand.IntN(len(r.peers))
	}
	return r.peers[i], nil
}

// Peers returns a copy of the current set.
func (r *Registry) Peers() []types.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Peer{}, r.peers...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

func (r *Registry) Empty() bool {
	return r.Len() == 0
}
