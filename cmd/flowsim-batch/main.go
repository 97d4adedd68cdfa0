// Command flowsim-batch runs a directory of run-config YAML files
// through the flowsim binary, a bounded number at a time, and reports
// which runs failed — the Go analogue of the original's multi_run.py
// sweep driver (spec.md SUPPLEMENTED FEATURES).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

type outcome struct {
	config string
	err    error
	output []byte
}

func main() {
	configsDir := flag.String("configs-dir", "", "directory of run-config YAML files (required)")
	flowsimBin := flag.String("flowsim-bin", "flowsim", "path to the flowsim binary")
	parallel := flag.Int("parallel", runtime.NumCPU(), "maximum concurrent runs")
	flag.Parse()

	if *configsDir == "" {
		fmt.Fprintln(os.Stderr, "flowsim-batch: -configs-dir is required")
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "flowsim-batch ", log.LstdFlags)

	configs, err := listConfigs(*configsDir)
	if err != nil {
		logger.Fatalf("listing configs: %v", err)
	}
	if len(configs) == 0 {
		logger.Fatalf("no *.yaml configs found under %s", *configsDir)
	}
	logger.Printf("found %d configs, running up to %d at a time", len(configs), *parallel)

	results := runAll(configs, *flowsimBin, *parallel, logger)

	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			logger.Printf("FAIL %s: %v\n%s", r.config, r.err, r.output)
		} else {
			logger.Printf("OK   %s", r.config)
		}
	}
	if failures > 0 {
		logger.Fatalf("%d/%d runs failed", failures, len(results))
	}
	logger.Printf("all %d runs succeeded", len(results))
}

func listConfigs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var configs []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		configs = append(configs, filepath.Join(dir, e.Name()))
	}
	sort.Strings(configs)
	return configs, nil
}

// runAll executes every config through flowsimBin, at most parallel
// concurrently, returning results in the same order as configs.
func runAll(configs []string, flowsimBin string, parallel int, logger *log.Logger) []outcome {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]outcome, len(configs))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for i, cfgPath := range configs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, cfgPath string) {
			defer wg.Done()
			defer func() { <-sem }()
			logger.Printf("starting %s", cfgPath)
			out, err := exec.Command(flowsimBin, "-config", cfgPath).CombinedOutput()
			results[i] = outcome{config: cfgPath, err: err, output: out}
		}(i, cfgPath)
	}

	wg.Wait()
	return results
}
