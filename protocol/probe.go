package protocol

import "encoding/binary"

// ProbePacketSize is a sequence number plus a sender timestamp, both
// uint64 big-endian. The UDP latency probe is the only user; game state
// never travels this way.
const ProbePacketSize = 16

// ProbePacket builds a probe datagram.
func ProbePacket(seq uint64, nanos int64) []byte {
	buf := make([]byte, ProbePacketSize)
	binary.BigEndian.PutUint64(buf[:8], seq)
	binary.BigEndian.PutUint64(buf[8:], uint64(nanos))
	return buf
}

// ParseProbePacket extracts the sequence number and timestamp.
func ParseProbePacket(buf []byte) (seq uint64, nanos int64, ok bool) {
	if len(buf) != ProbePacketSize {
		return 0, 0, false
	}
	return binary.BigEndian.Uint64(buf[:8]), int64(binary.BigEndian.Uint64(buf[8:])), true
}
