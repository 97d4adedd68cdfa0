package engine

import (
	"net/netip"

	"github.com/kychen/flowsim/internal/topology"
)

func flowKey(src, dst netip.Addr) topology.FlowKey {
	return topology.FlowKey{Src: src, Dst: dst}
}
