package controller

import (
	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// comB recomputes max-min fair shares considering only the old-elephant
// flow set (spec.md §4.6 step 4 "comB: a scaled-down version of §4.5
// that ignores mice"), returning each flow's fair share under this
// restricted view. It is a local, scratch-space bottleneck-iteration
// pass — it never touches internal/allocator's per-link bookkeeping on
// topology.Link, only reads Cap.
func comB(elephants []*flow.Flow) map[topology.FlowKey]float64 {
	share := make(map[topology.FlowKey]float64, len(elephants))
	if len(elephants) == 0 {
		return share
	}

	type linkState struct {
		unassignedBW float64
		nUnassigned  int
	}

	links := make(map[*topology.Link]*linkState)
	flowLinks := make(map[topology.FlowKey][]*topology.Link, len(elephants))
	remaining := make(map[topology.FlowKey]*flow.Flow, len(elephants))

	for _, f := range elephants {
		remaining[f.Key] = f
		flowLinks[f.Key] = f.Links
		for _, l := range f.Links {
			ls, ok := links[l]
			if !ok {
				ls = &linkState{unassignedBW: l.Cap}
				links[l] = ls
			}
			ls.nUnassigned++
		}
	}

	for len(remaining) > 0 {
		var bottleneck *topology.Link
		var bottleneckState *linkState
		for l, ls := range links {
			if ls.nUnassigned == 0 {
				continue
			}
			if bottleneckState == nil || ls.unassignedBW/float64(ls.nUnassigned) < bottleneckState.unassignedBW/float64(bottleneckState.nUnassigned) {
				bottleneck, bottleneckState = l, ls
			}
		}
		if bottleneckState == nil {
			break
		}
		fairShare := bottleneckState.unassignedBW / float64(bottleneckState.nUnassigned)

		for key := range remaining {
			onBottleneck := false
			for _, l := range flowLinks[key] {
				if l == bottleneck {
					onBottleneck = true
					break
				}
			}
			if !onBottleneck {
				continue
			}
			share[key] = fairShare
			for _, l := range flowLinks[key] {
				ls := links[l]
				ls.unassignedBW -= fairShare
				if ls.unassignedBW < 0 {
					ls.unassignedBW = 0
				}
				ls.nUnassigned--
			}
			delete(remaining, key)
		}
	}

	return share
}
