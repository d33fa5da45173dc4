package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gxo-labs/fondsolve/internal/config"
	"github.com/gxo-labs/fondsolve/internal/explicit"
	"github.com/gxo-labs/fondsolve/internal/export"
	"github.com/gxo-labs/fondsolve/internal/heuristic"
	"github.com/gxo-labs/fondsolve/internal/solver"
	"github.com/gxo-labs/fondsolve/internal/verify"
	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
)

type solveOptions struct {
	solver solverFlags
	format string
	out    string
	save   bool
}

func newSolveCmd(a *app) *cobra.Command {
	o := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Search for a strong-cyclic policy and print it",
		Long: `Solve loads a problem file, searches for a strong-cyclic policy and writes
it to stdout (or --out). The exit status is 0 when a policy was found, 3 when
none exists, 124 on timeout and 1 on any other failure.`,
		Args: argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSolve(cmd, args[0], o)
		},
	}
	o.solver.register(cmd)
	cmd.Flags().StringVar(&o.format, "format", export.FormatYAML, "Output format: json, yaml or dot")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Write the policy to this file instead of stdout")
	cmd.Flags().BoolVar(&o.save, "save", false, "Store the policy in the policy store")
	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, path string, o *solveOptions) error {
	s, cleanup, err := a.newSolver(cmd, &o.solver)
	defer cleanup()
	if err != nil {
		return err
	}

	solved, err := a.solveFile(cmd.Context(), s, path, &o.solver)
	if err != nil {
		return err
	}
	if solved.report.Result != fond.ResultProven {
		return &exitError{code: resultExitCode(solved.report.Result)}
	}

	if o.save {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(cmd.Context(), solved.doc); err != nil {
			return err
		}
		a.log.Infof("Policy for '%s' saved to %s.", solved.doc.Problem, a.cfg.Store.Path)
	}

	if o.out == "" {
		return export.Write(a.stdout, o.format, solved.doc)
	}
	return writeDocumentFile(o.out, o.format, solved.doc)
}

// solved is one finished run. doc is set only for proven runs.
type solved struct {
	problem *explicit.Problem
	report  *fond.SolveReport
	doc     *export.Document
}

// solveFile loads, solves and (when proven) verifies and exports one problem.
// A non-proven verdict is not an error.
func (a *app) solveFile(ctx context.Context, s *solver.Solver, path string, f *solverFlags) (*solved, error) {
	doc, err := config.LoadProblemFromFile(path)
	if err != nil {
		return nil, err
	}
	problem, err := explicit.FromDoc(doc)
	if err != nil {
		return nil, err
	}
	h, err := heuristic.New(f.heuristic, problem)
	if err != nil {
		return nil, err
	}

	a.log.Infof("Solving '%s' (%d states, %d operators, heuristic %s)...", problem.Name(), len(problem.States()), len(problem.Operators()), f.heuristic)
	report, err := s.Solve(ctx, fond.SolveRequest{Name: problem.Name(), Problem: problem, Heuristic: h})
	if err != nil {
		return nil, fmt.Errorf("solve '%s': %w", path, err)
	}
	a.logReport(report)

	out := &solved{problem: problem, report: report}
	if report.Result != fond.ResultProven {
		return out, nil
	}
	if f.verify {
		summary, err := verify.Policy(problem, report.Policy)
		if err != nil {
			return nil, fmt.Errorf("policy for '%s' failed verification: %w", problem.Name(), err)
		}
		a.log.Debugf("Policy for '%s' verified: %d reachable state(s), %d goal(s).", problem.Name(), summary.Reachable, summary.Goals)
	}
	out.doc, err = export.NewDocument(report)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *app) logReport(report *fond.SolveReport) {
	statusLine := fmt.Sprintf("Problem '%s' finished. Result: %s", report.ProblemName, report.Result)
	summaryLine := fmt.Sprintf("Duration: %v. Iterations=%d, Bound=%d, Nodes=%s, Expansions=%s, DeadEnds=%d, PolicySize=%d",
		report.Duration.Truncate(time.Millisecond),
		report.Iterations, report.FinalBound,
		humanize.Comma(int64(report.NodesCreated)), humanize.Comma(int64(report.Expansions)),
		report.DeadEnds, report.PolicySize)

	switch report.Result {
	case fond.ResultProven:
		a.log.Infof("%s. %s", statusLine, summaryLine)
	case fond.ResultDisproven:
		a.log.Warnf("%s. %s", statusLine, summaryLine)
	default:
		a.log.Errorf("%s. %s", statusLine, summaryLine)
		if report.Error != "" {
			a.log.Errorf("Reason: %s", report.Error)
		}
	}
}

func writeDocumentFile(path, format string, doc *export.Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory '%s': %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file '%s': %w", path, err)
	}
	if err := export.Write(f, format, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
