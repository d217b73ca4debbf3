package server

import (
	"net"

	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/protocol"
)

// StartProbe runs a UDP echo responder for low-priority latency pings.
// Packets are unreliable by design and never carry game state; turn
// traffic stays on the websocket. Returns the listener so callers can
// close it.
func StartProbe(addr string) (net.PacketConn, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", pc.LocalAddr().String()).Msg("UDP latency probe listening")
	go func() {
		buf := make([]byte, 64)
		for {
			n, remote, err := pc.ReadFrom(buf)
			if err != nil {
				log.Info().Err(err).Msg("Probe listener closed")
				return
			}
			if n != protocol.ProbePacketSize {
				continue // garbage; drop silently
			}
			if _, err := pc.WriteTo(buf[:n], remote); err != nil {
				log.Warn().Err(err).Str("remote", remote.String()).Msg("Probe echo failed")
			}
		}
	}()
	return pc, nil
}
