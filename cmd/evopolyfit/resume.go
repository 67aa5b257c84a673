package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/evopolyfit/internal/pipeline"
	"github.com/cwbudde/evopolyfit/internal/store"
)

var (
	resumeOpts      = pipeline.DefaultOptions()
	resumeMutations string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Continue a run from its checkpoint",
	Long: `Loads the checkpoint of a previous run from --data-dir and evolves it
further. The checkpointed genome enters the first generation unchanged and
perturbed copies of it fill the rest of the population. Reference, size and
genome shape come from the checkpoint; operator flags apply to the new run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	addStorageFlags(resumeCmd)
	addOptionFlags(resumeCmd, &resumeOpts, &resumeMutations)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	if dataDir == "" {
		return errNoCheckpointStore
	}
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	cp, err := st.LoadCheckpoint(args[0])
	if err != nil {
		return err
	}

	resumeOpts.Mutations = pipeline.ParseMutations(resumeMutations)
	spec, err := resumeSpec(cp, resumeOpts, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	spec.Store = st
	spec.OutDir = st.JobDir(cp.JobID)
	spec.HistoryKind, spec.HistoryPath, spec.Plot = historyKind, historyPath, plot

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := execute(ctx, spec)
	if err != nil {
		return err
	}
	printResult(cmd, spec, res)
	return nil
}

// resumeSpec builds the run for checkpoint cp. The genome shape always comes
// from the checkpoint; population and seed only when no flag overrides them.
func resumeSpec(cp *store.Checkpoint, opts pipeline.Options, changed func(string) bool) (runSpec, error) {
	opts.Polygons = cp.Config.Polygons
	opts.Vertices = cp.Config.Vertices
	if !changed("pop") {
		opts.PopulationSize = cp.Config.PopulationSize
	}
	if !changed("seed") {
		opts.Seed = cp.Config.Seed + int64(cp.Epoch)
	}

	spec := runSpec{
		JobID:       cp.JobID,
		RefPath:     cp.Config.RefPath,
		MaxSize:     cp.Config.MaxSize,
		Options:     opts,
		AppendTrace: true,
		Resume:      cp,
	}
	if err := cp.IsCompatible(spec.config()); err != nil {
		return runSpec{}, err
	}
	return spec, nil
}
