package controller

import (
	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// Install commits f to every switch's flow table along path and
// registers it on each traversed link, mirroring SimCtrl.py's
// packet_in success branch (spec.md §4.3).
func (c *Controller) Install(f *flow.Flow, path []string, links []*topology.Link) {
	f.Path = path
	f.Links = links
	for _, name := range path {
		c.topo.MustNode(name).InstallEntry(f.Key)
	}
	for _, l := range links {
		l.AddFlow(f.Key)
	}
}

// Evict removes f's flow-table entries and link registrations once its
// idle timeout has elapsed (spec.md §4.4 Finished -> Removed).
func (c *Controller) Evict(f *flow.Flow) {
	c.removeFromTables(f)
	delete(c.lastSample, f.Key)
	delete(c.oldElephants, f.Key)
}

// removeFromTables uninstalls f's current path without touching its
// elephant-sampling history, so Reroute can relocate a flow without
// losing its byte-counter trend.
func (c *Controller) removeFromTables(f *flow.Flow) {
	for _, name := range f.Path {
		if n, ok := c.topo.Node(name); ok {
			n.RemoveEntry(f.Key)
		}
	}
	for _, l := range f.Links {
		l.RemoveFlow(f.Key)
	}
}
