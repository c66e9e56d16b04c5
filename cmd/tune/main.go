package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/inkstride/config"
)

type options struct {
	configPath string
	maxEvals   int
	population int
	outputDir  string
	input      float64
	targets    Targets
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.maxEvals, "max-evals", 300, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Float64Var(&opts.input, "input", 40, "Force held during the sprint trial")
	flag.Float64Var(&opts.targets.TopSpeed, "top-speed", 7, "Target top speed (m/s)")
	flag.Float64Var(&opts.targets.AccelTime, "accel-time", 0.35, "Target time to 95% of top speed (s)")
	flag.Float64Var(&opts.targets.StopDistance, "stop-distance", 1.0, "Target coast distance after release (m)")
	flag.Float64Var(&opts.targets.JumpHeight, "jump-height", 1.8, "Target jump apex (m)")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("--output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, opts.targets, opts.input, baseCfg)

	tl, err := newTuneLog(filepath.Join(opts.outputDir, "tune_log.csv"), params, opts.maxEvals)
	if err != nil {
		return err
	}
	defer tl.Close()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			tl.Record(fitness, evaluator.LastMetrics(), raw)
			return fitness
		},
	}

	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + 3*params.Dim()/2
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize}
	settings := &optimize.Settings{FuncEvaluations: opts.maxEvals}

	fmt.Printf("Tuning %d parameters, population=%d, max_evals=%d\n", params.Dim(), popSize, opts.maxEvals)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg))
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	best := tl.bestParams
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no evaluations completed")
	}

	fmt.Printf("\nDone: %d evaluations in %s, best fitness %.6f\n", tl.evals, formatDuration(time.Since(tl.start)), tl.bestFitness)
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.4f\n", spec.Path, best[i])
	}

	// Reload so the written file carries the user's overrides, not the
	// evaluator's scratch copy.
	bestCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	params.ApplyToConfig(bestCfg, best)
	if err := bestCfg.WriteYAML(filepath.Join(opts.outputDir, "best_config.yaml")); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}

	report := struct {
		Targets Targets `json:"targets"`
		Best    Metrics `json:"best"`
	}{opts.targets, evaluator.BestMetrics()}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.outputDir, "best_metrics.json"), data, 0644)
}

// tuneLog writes one CSV row per evaluation and prints progress.
type tuneLog struct {
	f        *os.File
	w        *csv.Writer
	maxEvals int
	start    time.Time

	evals       int
	bestFitness float64
	bestParams  []float64
}

func newTuneLog(path string, params *ParamVector, maxEvals int) (*tuneLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating tune log: %w", err)
	}
	w := csv.NewWriter(f)
	header := []string{"eval", "fitness", "top_speed", "accel_time", "stop_distance", "jump_height"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return &tuneLog{f: f, w: w, maxEvals: maxEvals, start: time.Now(), bestFitness: math.Inf(1)}, nil
}

// Record logs one evaluation of the clamped parameters raw.
func (tl *tuneLog) Record(fitness float64, m Metrics, raw []float64) {
	tl.evals++
	if fitness < tl.bestFitness {
		tl.bestFitness = fitness
		tl.bestParams = raw
	}

	row := []string{
		strconv.Itoa(tl.evals),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(m.TopSpeed, 'f', 4, 64),
		strconv.FormatFloat(m.AccelTime, 'f', 4, 64),
		strconv.FormatFloat(m.StopDistance, 'f', 4, 64),
		strconv.FormatFloat(m.JumpHeight, 'f', 4, 64),
	}
	for _, v := range raw {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := tl.w.Write(row); err != nil {
		log.Printf("tune log: %v", err)
	}
	tl.w.Flush()

	elapsed := time.Since(tl.start)
	eta := time.Duration(tl.maxEvals-tl.evals) * (elapsed / time.Duration(tl.evals))
	fmt.Printf("[%d/%d] top=%.2f accel=%.2fs stop=%.2fm jump=%.2fm fit=%.5f best=%.5f | %s, eta %s\n",
		tl.evals, tl.maxEvals, m.TopSpeed, m.AccelTime, m.StopDistance, m.JumpHeight,
		fitness, tl.bestFitness, formatDuration(elapsed), formatDuration(eta))
}

func (tl *tuneLog) Close() error {
	tl.w.Flush()
	return tl.f.Close()
}

// formatDuration renders d as 1h02m03s, or 2m03s under an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
