package types

import (
	"net"
	"strconv"
	"strings"
)

const (
	NetworkMainnet = "mainnet"
	NetworkDevnet  = "devnet"

	CoinARK = "ARK"
)

// Ports accepted for a node's public API. Anything else is rewritten to
// DefaultPeerPort.
const (
	DefaultPeerPort = 4003
	SecurePeerPort  = 8443

	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

const (
	DefaultRetryCount    = 5
	DefaultMaxLatencyMs  = 100
	DefaultRateSourceURL = "https://min-api.cryptocompare.com/data/histoday"

	// AcceptHeader identifies the node API version every request expects.
	AcceptHeader = "application/vnd.ark.core-api.v2+json"
)

// Address version bytes for ARK networks.
const (
	ARKMainnetAddressVersion byte = 0x17
	ARKDevnetAddressVersion  byte = 0x1e
)

// AddressVersion returns the expected base58check version byte for a known
// coin/network pair.
func AddressVersion(coin, network string) (byte, bool) {
	if !strings.EqualFold(coin, CoinARK) {
		return 0, false
	}
	switch strings.ToLower(network) {
	case NetworkMainnet:
		return ARKMainnetAddressVersion, true
	case NetworkDevnet:
		return ARKDevnetAddressVersion, true
	}
	return 0, false
}

// Seeds maps a lower-case coin to a map of lower-case network name to the
// seed list URL for that network.
type Seeds map[string]map[string]string

// DefaultSeeds returns the public ARK seed lists.
func DefaultSeeds() Seeds {
	return Seeds{
		"ark": {
			NetworkMainnet: "https://raw.githubusercontent.com/ArkEcosystem/peers/master/mainnet.json",
			NetworkDevnet:  "https://raw.githubusercontent.com/ArkEcosystem/peers/master/devnet.json",
		},
	}
}

// Lookup finds the seed URL for coin and network, ignoring case.
func (s Seeds) Lookup(coin, network string) (string, bool) {
	networks, ok := s[strings.ToLower(coin)]
	if !ok {
		return "", false
	}
	url, ok := networks[strings.ToLower(network)]
	return url, ok && url != ""
}

// Clone returns a deep copy.
func (s Seeds) Clone() Seeds {
	out := make(Seeds, len(s))
	for coin, networks := range s {
		cp := make(map[string]string, len(networks))
		for name, url := range networks {
			cp[name] = url
		}
		out[coin] = cp
	}
	return out
}

// Peer is a node exposing the public API.
type Peer struct {
	IP       string `json:"ip" validate:"required"`
	Port     int    `json:"port" validate:"oneof=4003 8443"`
	Protocol string `json:"protocol" validate:"oneof=http https"`
}

// PeerInfo is a peer as listed by another node's peer-list endpoint.
// Latency is in milliseconds and nil when the node did not report one.
type PeerInfo struct {
	Peer
	Latency *float64 `json:"latency"`
	Version string   `json:"version,omitempty"`
}

// URL returns the base URL of the peer's API.
func (p Peer) URL() string {
	return p.Protocol + "://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

func (p Peer) String() string {
	return p.URL()
}
