// Package flowgen synthesizes the flow-arrival process the engine
// drives: which edge switches talk to which, how big each flow is, and
// how fast flows arrive (spec.md §4.7), grounded on SimFlowGen.py's
// pluggable src/dst, size, and arrival distributions.
package flowgen

// SrcDstMode selects how the generator pairs edge switches.
type SrcDstMode int

const (
	// Uniform picks two distinct edge switches with equal probability.
	Uniform SrcDstMode = iota
	// Gravity weights a pair by the product of their host counts —
	// busy switches talk to busy switches more often.
	Gravity
	// AntiGravity weights a pair inversely to their host-count
	// product — busy switches preferentially talk to quiet ones.
	AntiGravity
)

// SizeMode selects the flow-size distribution. It does not affect the
// rate cap: every generated flow gets Config.RateCap.
type SizeMode int

const (
	// UniformSize draws a size uniformly from [SizeMin, SizeMax].
	UniformSize SizeMode = iota
	// Bimodal draws SmallSize with probability SmallProb, else
	// LargeSize — the classic "mice and elephants" mixture.
	Bimodal
	// LogNormal draws from a log-normal distribution, the common
	// model for real-world flow-size tails.
	LogNormal
)

// ArrivalMode selects the inter-arrival process.
type ArrivalMode int

const (
	// Saturate seeds one flow per host up front and keeps every host
	// saturated thereafter: each FlowEnd immediately synthesizes a
	// replacement flow from the same source (spec.md §4.4, §4.7).
	Saturate ArrivalMode = iota
	// Const draws each inter-arrival gap uniformly from
	// [(1-Cutoff)*ConstInterval, (1+Cutoff)*ConstInterval].
	Const
	// Exp draws inter-arrival times from an exponential distribution
	// (a Poisson arrival process).
	Exp
)

// Config parameterizes one Generator (spec.md §6 flowgen options).
type Config struct {
	SrcDst SrcDstMode
	Size   SizeMode
	Arrival ArrivalMode

	SizeMin, SizeMax float64 // UniformSize

	BimodalSmallProb float64 // Bimodal
	BimodalSmallSize float64
	BimodalLargeSize float64

	LogNormalMu    float64 // LogNormal, in ln-space
	LogNormalSigma float64

	// RateCap is the per-flow source-rate cap handed to every
	// generated flow; +Inf means source-unlimited (spec.md §4.5).
	RateCap float64

	ConstInterval   float64 // Const
	ExpMeanInterval float64 // Exp

	// Cutoff widens Const's fixed interval into a uniform range
	// (1±Cutoff)*ConstInterval (spec.md §4.7 "uniform in (1±cutoff)/λ").
	Cutoff float64 // Const

	// InitSpread bounds the random start offset assigned to each host's
	// initial saturate-mode flow (spec.md §4.7 gen_init_flows spread).
	InitSpread float64 // Saturate
}
