package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/imageio"
	"github.com/cwbudde/evopolyfit/internal/pipeline"
	"github.com/cwbudde/evopolyfit/internal/report"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// Artifact names written next to best.png.
const (
	diffImage = "diff.png"
	plotImage = "fitness.png"
)

var (
	refPath     string
	outDir      string
	maxSize     int
	jobID       string
	dataDir     string
	historyKind string
	historyPath string
	plot        bool

	runOpts      = pipeline.DefaultOptions()
	runMutations string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single polygon-fitting job",
	Long: `Evolves polygon genomes against a reference image and writes best.png,
diff.png and a JSON-lines trace into the output directory. With --data-dir the
final state is also saved as a checkpoint that "resume" can continue.`,
	RunE: runFit,
}

func init() {
	runCmd.Flags().StringVar(&refPath, "ref", "", "Reference image path (required)")
	runCmd.Flags().StringVar(&outDir, "out", "out", "Output directory (defaults to the job directory when --data-dir is set)")
	runCmd.Flags().IntVar(&maxSize, "max-size", 256, "Downscale the reference so neither side exceeds this (0 = keep size)")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "Run identifier (default: random UUID)")
	addStorageFlags(runCmd)
	addOptionFlags(runCmd, &runOpts, &runMutations)

	runCmd.MarkFlagRequired("ref")
	rootCmd.AddCommand(runCmd)
}

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Checkpoint store directory (empty = no checkpoint)")
	cmd.Flags().StringVar(&historyKind, "history", "", "Epoch history backend (memory, sqlite)")
	cmd.Flags().StringVar(&historyPath, "history-db", "history.db", "SQLite database for --history sqlite")
	cmd.Flags().BoolVar(&plot, "plot", false, "Write a fitness-over-epochs plot")
}

// addOptionFlags binds every run option to a flag, defaulting to o's
// current values.
func addOptionFlags(cmd *cobra.Command, o *pipeline.Options, mutations *string) {
	f := cmd.Flags()
	f.IntVar(&o.Polygons, "polygons", o.Polygons, "Polygons per genome")
	f.IntVar(&o.Vertices, "vertices", o.Vertices, "Vertices per polygon")
	f.IntVar(&o.PopulationSize, "pop", o.PopulationSize, "Population size")
	f.IntVar(&o.Epochs, "epochs", o.Epochs, "Epochs to run (0 = until stagnation or interrupt)")
	f.Int64Var(&o.Seed, "seed", o.Seed, "Random seed")
	f.BoolVar(&o.Parallel, "parallel", o.Parallel, "Evaluate and breed in parallel")
	f.IntVar(&o.Workers, "workers", o.Workers, "Parallel workers (0 = GOMAXPROCS)")
	f.IntVar(&o.GridFactor, "grid", o.GridFactor, "Segment grid factor for local search")

	f.Float64Var(&o.AlphaMin, "alpha-min", o.AlphaMin, "Lowest polygon alpha")
	f.Float64Var(&o.AlphaMax, "alpha-max", o.AlphaMax, "Highest polygon alpha")

	f.StringVar(&o.Selection, "selection", o.Selection, "Parent selection (tournament)")
	f.IntVar(&o.TournamentSize, "tournament", o.TournamentSize, "Tournament size")

	f.StringVar(&o.Crossover, "crossover", o.Crossover, "Crossover (uniform, single-point)")
	f.Float64Var(&o.CrossoverProbability, "crossover-prob", o.CrossoverProbability, "Probability that a pair is recombined")
	f.Float64Var(&o.CrossoverPoint, "crossover-point", o.CrossoverPoint, "Single-point split as a fraction of the genome")
	f.Float64Var(&o.UniformProbability, "uniform-prob", o.UniformProbability, "Per-polygon swap probability for uniform crossover")
	f.IntVar(&o.AlphaChildTries, "alpha-child-tries", o.AlphaChildTries, "Retries until a child beats both parents (0 = off)")

	*mutations = strings.Join(o.Mutations, ",")
	f.StringVar(mutations, "mutations", *mutations, "Comma separated mutation chain (delta, replacement, local-search, polish)")
	f.Float64Var(&o.MutationRate, "mutation-rate", o.MutationRate, "Per-polygon mutation rate")
	f.Float64Var(&o.VertexExtent, "vertex-extent", o.VertexExtent, "Delta vertex step as a fraction of the canvas")
	f.Float64Var(&o.ColourExtent, "colour-extent", o.ColourExtent, "Delta colour step as a fraction of 255")
	f.Float64Var(&o.SeedDistance, "seed-distance", o.SeedDistance, "Replacement vertex spread as a fraction of the canvas (0 = anywhere)")
	f.IntVar(&o.PolishIterations, "polish-iters", o.PolishIterations, "Optimizer iterations per colour polish")
	f.IntVar(&o.PolishSwarm, "polish-swarm", o.PolishSwarm, "Optimizer population per colour polish")

	f.StringVar(&o.Replacement, "replacement", o.Replacement, "Replacement (generational, elitism)")
	f.IntVar(&o.Elites, "elites", o.Elites, "Individuals kept by elitism")

	f.IntVar(&o.Patience, "patience", o.Patience, "Stop after this many epochs without improvement (0 = off)")
	f.Float64Var(&o.Threshold, "threshold", o.Threshold, "Relative improvement that resets patience")
	f.IntVar(&o.RenderEvery, "render-every", o.RenderEvery, "Save generation_<epoch>.png every N epochs (0 = off)")
}

// runSpec describes one CLI run.
type runSpec struct {
	JobID   string
	RefPath string
	MaxSize int
	Options pipeline.Options

	OutDir      string
	AppendTrace bool
	Store       *store.FSStore    // nil: no checkpoint
	Resume      *store.Checkpoint // nil: fresh run

	HistoryKind string
	HistoryPath string
	Plot        bool
}

func (s runSpec) config() store.JobConfig {
	return store.JobConfig{
		RefPath:        s.RefPath,
		MaxSize:        s.MaxSize,
		Polygons:       s.Options.Polygons,
		Vertices:       s.Options.Vertices,
		PopulationSize: s.Options.PopulationSize,
		Epochs:         s.Options.Epochs,
		Seed:           s.Options.Seed,
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	runOpts.Mutations = pipeline.ParseMutations(runMutations)

	spec := runSpec{
		JobID:       jobID,
		RefPath:     refPath,
		MaxSize:     maxSize,
		Options:     runOpts,
		OutDir:      outDir,
		HistoryKind: historyKind,
		HistoryPath: historyPath,
		Plot:        plot,
	}
	if spec.JobID == "" {
		spec.JobID = uuid.New().String()
	}
	if dataDir != "" {
		st, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		spec.Store = st
		if !cmd.Flags().Changed("out") {
			spec.OutDir = st.JobDir(spec.JobID)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := execute(ctx, spec)
	if err != nil {
		return err
	}
	printResult(cmd, spec, res)
	return nil
}

// execute loads the reference, runs the pipeline and writes every artifact
// the runSpec asks for. An interrupted run still saves its best genome.
func execute(ctx context.Context, spec runSpec) (*pipeline.Result, error) {
	ref, err := imageio.Load(spec.RefPath, spec.MaxSize)
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.Build(ref, spec.Options)
	if err != nil {
		return nil, err
	}
	if spec.Resume != nil {
		if err := pipe.Resume(spec.Resume.Best); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(spec.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	trace, err := store.NewTraceWriter(spec.OutDir, spec.AppendTrace)
	if err != nil {
		return nil, err
	}
	defer trace.Close()

	out := pipeline.Output{RunID: spec.JobID, Dir: spec.OutDir, Trace: trace}
	if prev := spec.Resume; prev != nil {
		out.FirstEpoch, out.PriorEvaluations = prev.Epoch+1, prev.Evaluations
	}
	if spec.HistoryKind != "" {
		history, err := store.NewHistory(ctx, spec.HistoryKind, spec.HistoryPath)
		if err != nil {
			return nil, err
		}
		defer history.Close()
		out.History = history
	}

	res, err := pipe.Run(ctx, out)
	if res == nil {
		return nil, err
	}
	if err != nil {
		slog.Warn("Run outputs incomplete", "job_id", spec.JobID, "error", err)
	}
	if res.Cancelled {
		slog.Warn("Run interrupted, saving best so far", "job_id", spec.JobID, "epochs", res.Summary.Epochs)
	}

	if err := saveDiff(spec.OutDir, pipe, res.Best); err != nil {
		return res, err
	}
	if spec.Store != nil {
		if err := saveCheckpoint(spec, res); err != nil {
			return res, err
		}
	}
	if spec.Plot {
		title := fmt.Sprintf("%s (%d polygons)", filepath.Base(spec.RefPath), spec.Options.Polygons)
		if err := report.PlotFitness(res.History, title, filepath.Join(spec.OutDir, plotImage)); err != nil {
			return res, err
		}
	}
	return res, nil
}

func saveDiff(dir string, pipe *pipeline.Pipeline, best fit.Genome) error {
	diff := pipe.Fitness().DiffImage(pipe.Renderer().Decode(best))
	return imageio.Save(filepath.Join(dir, diffImage), diff)
}

// saveCheckpoint stores the run's best genome. The epoch and evaluation
// counts are those of the last record, so a resumed run carries on from the
// checkpoint it started from.
func saveCheckpoint(spec runSpec, res *pipeline.Result) error {
	last := res.History[len(res.History)-1]
	initial, epoch, evaluations := res.Summary.InitialFitness, last.Epoch, last.Evaluations
	if prev := spec.Resume; prev != nil {
		initial = prev.InitialFitness
	}

	cp := store.NewCheckpoint(spec.JobID, res.Best, res.BestFitness, initial, epoch, evaluations, spec.config())
	if err := spec.Store.SaveCheckpoint(spec.JobID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	slog.Info("Checkpoint saved", "job_id", spec.JobID, "epoch", epoch, "best_fitness", res.BestFitness)
	return nil
}

func printResult(cmd *cobra.Command, spec runSpec, res *pipeline.Result) {
	s := res.Summary
	perSecond := 0.0
	if s.Duration > 0 {
		perSecond = float64(res.Evaluations) / s.Duration.Seconds()
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Job %s: %s\n", spec.JobID, s)
	fmt.Fprintf(w, "Wrote %s (%.0f evaluations/sec, %s)\n",
		filepath.Join(spec.OutDir, report.BestImage), perSecond, s.Duration.Round(time.Millisecond))
	if res.Cancelled {
		fmt.Fprintln(w, "Interrupted before the stop condition was reached.")
	}
}

// errNoCheckpointStore is returned by commands that need --data-dir.
var errNoCheckpointStore = errors.New("--data-dir is required")
