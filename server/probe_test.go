package server

import (
	"testing"
	"time"

	"github.com/audreyd114/B438-Checkers/client"
)

func TestProbeEchoRoundTrip(t *testing.T) {
	pc, err := StartProbe("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start probe: %v", err)
	}
	defer pc.Close()

	rtt, err := client.ProbeLatency(pc.LocalAddr().String(), 7, 2*time.Second)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if rtt <= 0 {
		t.Fatalf("rtt = %v", rtt)
	}
}
