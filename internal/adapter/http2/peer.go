package http2

// Peer distinguishes which side of a connection this engine instance plays,
// governing legal stream-ID parity and who may initiate PUSH_PROMISE.
type Peer uint8

const (
	PeerClient Peer = iota
	PeerServer
)

// initiatesOdd reports whether streams this peer opens use odd IDs (true
// for clients) or even IDs (false for servers).
func (p Peer) initiatesOdd() bool { return p == PeerClient }

// ownsID reports whether streamID was legally opened by this peer (as
// opposed to the remote side).
func (p Peer) ownsID(streamID uint32) bool {
	odd := streamID%2 == 1
	return odd == p.initiatesOdd()
}
