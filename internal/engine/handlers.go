package engine

import "github.com/kychen/flowsim/internal/flow"

// handleFlowArrival admits a's flow request and schedules a PacketIn
// for it. In non-saturate modes it also self-reschedules the next
// FlowArrival; in saturate mode, arrivals are paced by FlowEnd instead
// (spec.md §4.4 handle_EvFlowArrival, §4.7 gen_init_flows).
func (s *Simulation) handleFlowArrival(a *Arrival) {
	key := flowKey(a.SrcIP, a.DstIP)
	f := flow.New(key, a.SrcNode, a.DstNode, a.Size, a.Rate, s.now)
	s.tracked[key] = f

	s.queue.Schedule(s.now, PacketIn, f)

	if !s.arrivals.Saturate() {
		next, nextArrival := s.arrivals.Next(s.now, s.trackedKeys())
		s.queue.ScheduleArrival(nextArrival, next)
	}
}

// handlePacketIn is the controller's path-selection and admission
// decision point: on a feasible path, schedule FlowInstall at the same
// tick (OpenFlow packet-in/flow-mod round trip); otherwise retry after
// RetryInterval, counting the attempt (spec.md §4.3 "admission").
// FindPath itself restricts candidates to feasible paths, so a returned
// error means none exist.
func (s *Simulation) handlePacketIn(f *flow.Flow) {
	path, links, err := s.ctrl.FindPath(s.topo, f.SrcNode, f.DstNode)
	if err != nil {
		f.Resend++
		s.queue.Schedule(s.now+s.cfg.RetryInterval, PacketIn, f)
		return
	}
	f.Path, f.Links = path, links
	s.queue.Schedule(s.now, FlowInstall, f)
}

// handleFlowInstall re-checks the chosen path's feasibility (tables may
// have filled since PacketIn), then commits the flow to every switch's
// flow table and admits it into the active set competing for bandwidth.
// An infeasible path is rejected like a failed PacketIn.
func (s *Simulation) handleFlowInstall(f *flow.Flow) {
	if !s.ctrl.IsFeasible(f.Path) {
		f.Resend++
		s.queue.Schedule(s.now+s.cfg.RetryInterval, PacketIn, f)
		return
	}
	s.ctrl.Install(f, f.Path, f.Links)
	f.Status = flow.Active
	f.InstallTime = s.now
	f.UpdateTime = s.now
	s.active[f.Key] = f
}

// handleFlowEnd runs off the allocator's side channel, not the heap:
// the flow with the soonest projected completion finishes, leaves the
// active set, and its table entries are scheduled for eviction after
// IdleTimeout. In saturate mode a replacement flow from the same source
// host arrives at the same tick (spec.md §4.4).
func (s *Simulation) handleFlowEnd(f *flow.Flow) {
	f.Finish(s.now)
	delete(s.active, f.Key)
	s.stats.RecordFlow(f)
	s.queue.Schedule(s.now+s.cfg.IdleTimeout, IdleTimeout, f)

	if s.arrivals.Saturate() {
		next := s.arrivals.NextFromSource(s.now, f.SrcNode, f.Key.Src, s.trackedKeys())
		s.queue.ScheduleArrival(s.now, next)
	}
}

// handleIdleTimeout evicts a finished flow's table entries and link
// registrations once it has sat idle long enough (spec.md §4.4
// Finished -> Removed).
func (s *Simulation) handleIdleTimeout(f *flow.Flow) {
	s.ctrl.Evict(f)
	f.Status = flow.Removed
	f.RemoveTime = s.now
	delete(s.tracked, f.Key)
}

// handleCollectCnt samples every tracked flow's byte counter for the
// elephant-flow rerouter, then resets it and reschedules itself
// (spec.md §4.6 "byte counter sampling").
func (s *Simulation) handleCollectCnt() {
	tracked := make([]*flow.Flow, 0, len(s.tracked))
	for _, f := range s.tracked {
		tracked = append(tracked, f)
	}
	s.ctrl.Sample(s.now, tracked)
	for _, f := range tracked {
		f.CollectTime = s.now
		f.Cnt = 0
	}
	if s.cfg.CollectInterval > 0 {
		s.queue.Schedule(s.now+s.cfg.CollectInterval, CollectCnt, nil)
	}
}

// handleReroute asks the controller to reassign the current top
// elephant flows to a better path, then reschedules itself (spec.md
// §4.6).
func (s *Simulation) handleReroute() {
	active := make([]*flow.Flow, 0, len(s.active))
	for _, f := range s.active {
		active = append(active, f)
	}
	s.ctrl.Reroute(s.now, active)
	if s.cfg.RerouteInterval > 0 {
		s.queue.Schedule(s.now+s.cfg.RerouteInterval, Reroute, nil)
	}
}
