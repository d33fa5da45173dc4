package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gxo-labs/fondsolve/internal/policystore"
	"github.com/gxo-labs/fondsolve/internal/solver"
	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
)

type batchOptions struct {
	solver      solverFlags
	parallelism int
	outDir      string
	format      string
	save        bool
}

func newBatchCmd(a *app) *cobra.Command {
	o := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <problem.yaml>...",
		Short: "Solve several problems concurrently and print a summary",
		Long: `Batch solves every problem file as an independent run and prints one
summary line per problem. Proven policies are written to --out-dir when set.
The exit status is the most severe one among the runs.`,
		Args: argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args, o)
		},
	}
	o.solver.register(cmd)
	cmd.Flags().IntVarP(&o.parallelism, "parallelism", "p", 0, "Problems solved at once (0 uses the config file, then the CPU count)")
	cmd.Flags().StringVar(&o.outDir, "out-dir", "", "Directory to write proven policies into")
	cmd.Flags().StringVar(&o.format, "format", "json", "Policy file format: json, yaml or dot")
	cmd.Flags().BoolVar(&o.save, "save", false, "Store proven policies in the policy store")
	return cmd
}

type batchResult struct {
	path   string
	report *fond.SolveReport
	err    error
}

func (a *app) runBatch(cmd *cobra.Command, paths []string, o *batchOptions) error {
	parallelism := o.parallelism
	if parallelism < 0 {
		return usageError(fmt.Errorf("--parallelism cannot be negative"))
	}
	if parallelism == 0 {
		parallelism = a.cfg.Batch.Parallelism
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	s, cleanup, err := a.newSolver(cmd, &o.solver)
	defer cleanup()
	if err != nil {
		return err
	}

	var store *policystore.Store
	if o.save {
		store, err = a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx := cmd.Context()
	results := make([]batchResult, len(paths))
	var g errgroup.Group
	g.SetLimit(parallelism)
	a.log.Infof("Solving %d problem(s) with parallelism %d...", len(paths), parallelism)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = a.solveBatchEntry(ctx, s, store, path, o)
			return nil
		})
	}
	_ = g.Wait()

	return a.printBatchSummary(results)
}

func (a *app) solveBatchEntry(ctx context.Context, s *solver.Solver, store *policystore.Store, path string, o *batchOptions) batchResult {
	res := batchResult{path: path}
	solved, err := a.solveFile(ctx, s, path, &o.solver)
	if err != nil {
		res.err = err
		a.log.Errorf("Problem file '%s' failed: %v", path, err)
		return res
	}
	res.report = solved.report
	if solved.doc == nil {
		return res
	}
	if o.outDir != "" {
		target := filepath.Join(o.outDir, solved.doc.Problem+"."+formatExtension(o.format))
		if err := writeDocumentFile(target, o.format, solved.doc); err != nil {
			res.err = err
			a.log.Errorf("Writing policy for '%s' failed: %v", solved.doc.Problem, err)
			return res
		}
	}
	if store != nil {
		if err := store.Save(ctx, solved.doc); err != nil {
			res.err = err
			a.log.Errorf("Saving policy for '%s' failed: %v", solved.doc.Problem, err)
		}
	}
	return res
}

func formatExtension(format string) string {
	switch f := strings.ToLower(format); f {
	case "yml":
		return "yaml"
	case "":
		return "json"
	default:
		return f
	}
}

// printBatchSummary writes one line per problem and returns the most severe
// exit status: failures, then timeouts, then disproven problems.
func (a *app) printBatchSummary(results []batchResult) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBLEM\tRESULT\tPOLICY\tITERATIONS\tNODES\tDURATION")

	code := ExitSuccess
	for _, r := range results {
		if r.report == nil {
			fmt.Fprintf(tw, "%s\tERROR\t-\t-\t-\t-\n", r.path)
			code = ExitFailure
			continue
		}
		rep := r.report
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%v\n", rep.ProblemName, rep.Result, rep.PolicySize,
			rep.Iterations, humanize.Comma(int64(rep.NodesCreated)), rep.Duration.Truncate(time.Millisecond))
		if r.err != nil {
			code = ExitFailure
			continue
		}
		code = moreSevere(code, resultExitCode(rep.Result))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if code == ExitSuccess {
		return nil
	}
	return &exitError{code: code}
}

func moreSevere(current, next int) int {
	rank := func(code int) int {
		switch code {
		case ExitFailure:
			return 3
		case ExitTimeout:
			return 2
		case ExitDisproven:
			return 1
		}
		return 0
	}
	if rank(next) > rank(current) {
		return next
	}
	return current
}
