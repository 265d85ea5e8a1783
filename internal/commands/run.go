package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/accounts"
	"github.com/cleared-dev/densify/internal/config"
	"github.com/cleared-dev/densify/internal/engine"
	"github.com/cleared-dev/densify/internal/export"
	"github.com/cleared-dev/densify/internal/gitops"
	"github.com/cleared-dev/densify/internal/ledgerfile"
	"github.com/cleared-dev/densify/internal/metrics"
	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/overrides"
	"github.com/cleared-dev/densify/internal/runlog"
)

type runParams struct {
	ledgerPath    string
	overridesPath string
	outDir        string
	metricsFile   string
	commit        bool
}

func newRunCommand(o *options) *cobra.Command {
	var p runParams
	var seed int64
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Densify a ledger into monthly series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				o.cfg.Engine.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				o.cfg.Engine.Workers = workers
			}
			if p.outDir == "" {
				p.outDir = o.cfg.Output.Dir
			}
			if p.metricsFile == "" {
				p.metricsFile = o.cfg.Metrics.Textfile
			}
			if !cmd.Flags().Changed("commit") {
				p.commit = o.cfg.Git.AutoCommit
			}
			return runDensify(cmd.OutOrStdout(), o, p)
		},
	}

	cmd.Flags().StringVar(&p.ledgerPath, "ledger", "", "ledger YAML file (required)")
	_ = cmd.MarkFlagRequired("ledger")
	cmd.Flags().StringVar(&p.overridesPath, "overrides", "", "overrides YAML applied before densifying")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed; 0 draws a fresh one")
	cmd.Flags().IntVar(&workers, "workers", 0, "accounts densified in parallel; 0 uses all CPUs")
	cmd.Flags().StringVar(&p.outDir, "out", "", "output directory (default from config)")
	cmd.Flags().StringVar(&p.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&p.commit, "commit", false, "commit the outputs to the enclosing git repository")

	return cmd
}

func runDensify(w io.Writer, o *options, p runParams) error {
	l, err := loadLedger(p.ledgerPath, p.overridesPath)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	res, err := engine.Run(l, engine.Options{
		Seed:              o.cfg.Engine.Seed,
		Tolerance:         o.cfg.Engine.Tolerance,
		ConflictTolerance: o.cfg.Engine.ConflictTolerance,
		Workers:           o.cfg.Engine.Workers,
		Logger:            &o.logger,
		Recorder:          collector,
	})
	collector.RunFinished(err)
	if p.metricsFile != "" {
		if werr := collector.WriteTextfile(p.metricsFile); werr != nil {
			o.logger.Error().Err(werr).Str("path", p.metricsFile).Msg("metrics not written")
		}
	}
	if err != nil {
		return fmt.Errorf("densifying %s: %w", p.ledgerPath, err)
	}

	if err := export.Save(p.outDir, &res.Output, o.cfg.Output.Precision); err != nil {
		return err
	}
	if err := accounts.Build(l, &res.Output).Save(p.outDir); err != nil {
		return err
	}
	runID := runlog.NewRunID()
	if err := runlog.Append(p.outDir, runlog.RunEntries(runID, time.Now().UTC(), res)); err != nil {
		return err
	}

	fmt.Fprintf(w, "Densified %d accounts over %s (seed %d, run %s)\n", len(res.Series), res.Range, res.Seed, runID)
	fmt.Fprintf(w, "Balancing account: %s\n", res.Balancing.Name)
	for _, c := range res.Conflicts {
		fmt.Fprintf(w, "warning: conflicting constraint: %s\n", c)
	}
	fmt.Fprintf(w, "Wrote %s\n", filepath.Join(p.outDir, export.FileName))

	if p.commit {
		hash, err := commitOutputs(p.outDir, fmt.Sprintf("densify: run %s (seed %d, %s)", runID, res.Seed, res.Range), o.cfg.Git)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Committed %s\n", hash)
	}
	return nil
}

// commitOutputs commits dir in the repository that contains it.
func commitOutputs(dir, message string, cfg config.GitConfig) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	root, err := gitops.Root(abs)
	if err != nil {
		return "", err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolving repository root: %w", err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("locating output dir in repository: %w", err)
	}
	return gitops.Commit(root, message, gitops.Author{Name: cfg.AuthorName, Email: cfg.AuthorEmail}, rel)
}

// loadLedger reads a ledger and applies overrides when a path is given.
func loadLedger(ledgerPath, overridesPath string) (*model.Ledger, error) {
	l, err := ledgerfile.Load(ledgerPath)
	if err != nil {
		return nil, err
	}
	if overridesPath == "" {
		return l, nil
	}
	actions, err := overrides.Load(overridesPath)
	if err != nil {
		return nil, err
	}
	return overrides.Apply(l, actions)
}
