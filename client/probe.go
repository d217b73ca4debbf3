package client

import (
	"net"
	"time"

	"github.com/audreyd114/B438-Checkers/protocol"
)

// ProbeLatency measures round-trip time against the server's UDP probe.
// It is fire-and-forget over an unreliable channel: a lost datagram simply
// times out and the caller may retry with the next sequence number.
func ProbeLatency(addr string, seq uint64, timeout time.Duration) (time.Duration, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	sent := time.Now()
	if _, err := conn.Write(protocol.ProbePacket(seq, sent.UnixNano())); err != nil {
		return 0, err
	}

	conn.SetReadDeadline(sent.Add(timeout))
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return 0, err
		}
		gotSeq, nanos, ok := protocol.ParseProbePacket(buf[:n])
		if !ok || gotSeq != seq {
			continue // stale or mangled echo; keep waiting
		}
		return time.Duration(time.Now().UnixNano() - nanos), nil
	}
}
