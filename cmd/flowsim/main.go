// Command flowsim runs one discrete-event network-flow simulation
// from a YAML config and a pair of topology CSVs, writing the result
// CSVs to the configured output directory (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/kychen/flowsim/internal/controller"
	"github.com/kychen/flowsim/internal/engine"
	"github.com/kychen/flowsim/internal/flowgen"
	"github.com/kychen/flowsim/internal/metrics"
	"github.com/kychen/flowsim/internal/routedb"
	"github.com/kychen/flowsim/internal/simconfig"
	"github.com/kychen/flowsim/internal/stats"
	"github.com/kychen/flowsim/internal/topoload"
)

func main() {
	configPath := flag.String("config", "", "path to run config YAML (required)")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address while running")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "flowsim: -config is required")
		os.Exit(2)
	}

	runID := uuid.New().String()
	logger := log.New(os.Stderr, fmt.Sprintf("flowsim[%s] ", runID[:8]), log.LstdFlags|log.Lmicroseconds)

	if err := run(*configPath, *metricsAddr, logger); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, logger *log.Logger) error {
	cfg, err := simconfig.Load(configPath)
	if err != nil {
		return err
	}

	topo, err := topoload.Load(cfg.NodesCSV, cfg.LinksCSV, topoload.Overrides{})
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}
	logger.Printf("topology loaded: %d nodes", len(topo.Nodes()))

	if err := echoConfig(cfg); err != nil {
		return fmt.Errorf("echoing effective config: %w", err)
	}

	pathDBMode, err := parsePathDBMode(cfg.PathDBMode)
	if err != nil {
		return err
	}
	rdb, err := routedb.Build(topo, pathDBMode, cfg.KPaths)
	if err != nil {
		return fmt.Errorf("building route database: %w", err)
	}

	pathMode, err := parsePathSelectMode(cfg.PathSelectMode)
	if err != nil {
		return err
	}
	reroutePolicy, err := parseReroutePolicy(cfg.ReroutePolicy)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))
	ctrl := controller.New(topo, rdb, pathMode, reroutePolicy, rng, cfg.RerouteTopN)

	genCfg, err := buildFlowgenConfig(cfg)
	if err != nil {
		return err
	}
	gen := flowgen.New(topo, genCfg, rng)

	sink, err := stats.NewSink(cfg.OutputDir, cfg.IgnoreHead)
	if err != nil {
		return fmt.Errorf("opening stats sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Printf("closing stats sink: %v", cerr)
		}
	}()

	reg := metrics.NewRegistry()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			logger.Printf("serving metrics on %s", metricsAddr)
			if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				logger.Printf("metrics server: %v", serveErr)
			}
		}()
	}

	sim := engine.New(topo, ctrl, gen, metrics.WrapStats(sink, reg), engine.Config{
		SrcLimited:        cfg.SrcLimited,
		IdleTimeout:       cfg.IdleTimeout,
		RetryInterval:     cfg.RetryInterval,
		CollectInterval:   cfg.CollectInterval,
		RerouteInterval:   cfg.RerouteInterval,
		LinkUtilInterval:  cfg.LinkUtilInterval,
		TableUtilInterval: cfg.TableUtilInterval,
		MaxTime:           cfg.MaxTime,
	})

	logger.Printf("starting run: max_time=%g output_dir=%s", cfg.MaxTime, cfg.OutputDir)
	sim.Run()
	logger.Printf("run complete")
	return nil
}

// echoConfig writes the fully-defaulted, validated config next to the
// run's other output so a result directory is self-describing
// (spec.md SUPPLEMENTED FEATURES "config echo").
func echoConfig(cfg simconfig.Config) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.OutputDir, "config_echo.yaml"), data, 0o644)
}

func parsePathDBMode(s string) (routedb.Mode, error) {
	switch s {
	case "one_shortest":
		return routedb.OneShortest, nil
	case "all_shortest":
		return routedb.AllShortest, nil
	case "kpath_yen":
		return routedb.KPathYen, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown pathdb_mode %q", s)
	}
}

func parsePathSelectMode(s string) (controller.PathMode, error) {
	switch s {
	case "ecmp":
		return controller.ModeECMP, nil
	case "random":
		return controller.ModeRandom, nil
	case "fe":
		return controller.ModeFE, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown path_select_mode %q", s)
	}
}

func parseReroutePolicy(s string) (controller.ReroutePolicy, error) {
	switch s {
	case "oab":
		return controller.PolicyOAB, nil
	case "greedy":
		return controller.PolicyGreedy, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown reroute_policy %q", s)
	}
}

func buildFlowgenConfig(cfg simconfig.Config) (flowgen.Config, error) {
	srcDst, err := parseSrcDstMode(cfg.SrcDstMode)
	if err != nil {
		return flowgen.Config{}, err
	}
	size, err := parseSizeMode(cfg.SizeMode)
	if err != nil {
		return flowgen.Config{}, err
	}
	arrival, err := parseArrivalMode(cfg.ArrivalMode)
	if err != nil {
		return flowgen.Config{}, err
	}
	return flowgen.Config{
		SrcDst:           srcDst,
		Size:             size,
		Arrival:          arrival,
		SizeMin:          cfg.SizeMin,
		SizeMax:          cfg.SizeMax,
		BimodalSmallProb: cfg.BimodalSmallProb,
		BimodalSmallSize: cfg.BimodalSmallSize,
		BimodalLargeSize: cfg.BimodalLargeSize,
		LogNormalMu:      cfg.LogNormalMu,
		LogNormalSigma:   cfg.LogNormalSigma,
		RateCap:          cfg.EffectiveRateCap(),
		ConstInterval:    cfg.ConstInterval,
		Cutoff:           cfg.ConstCutoff,
		ExpMeanInterval:  cfg.ExpMeanInterval,
		InitSpread:       cfg.ArrInitSpread,
	}, nil
}

func parseSrcDstMode(s string) (flowgen.SrcDstMode, error) {
	switch s {
	case "uniform":
		return flowgen.Uniform, nil
	case "gravity":
		return flowgen.Gravity, nil
	case "antigravity":
		return flowgen.AntiGravity, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown srcdst_mode %q", s)
	}
}

func parseSizeMode(s string) (flowgen.SizeMode, error) {
	switch s {
	case "uniform":
		return flowgen.UniformSize, nil
	case "bimodal":
		return flowgen.Bimodal, nil
	case "lognormal":
		return flowgen.LogNormal, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown size_mode %q", s)
	}
}

func parseArrivalMode(s string) (flowgen.ArrivalMode, error) {
	switch s {
	case "saturate":
		return flowgen.Saturate, nil
	case "const":
		return flowgen.Const, nil
	case "exp":
		return flowgen.Exp, nil
	default:
		return 0, fmt.Errorf("flowsim: unknown arrival_mode %q", s)
	}
}
