package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gxo-labs/fondsolve/internal/config"
	"github.com/gxo-labs/fondsolve/internal/explicit"
	"github.com/gxo-labs/fondsolve/internal/export"
	"github.com/gxo-labs/fondsolve/internal/policystore"
	"github.com/gxo-labs/fondsolve/internal/verify"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect policies saved with 'solve --save'",
	}

	var format string
	show := &cobra.Command{
		Use:   "show <problem-name>",
		Short: "Print a stored policy",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *policystore.Store) error {
				doc, err := store.Load(args[0])
				if err != nil {
					return err
				}
				return export.Write(a.stdout, format, doc)
			})
		},
	}
	show.Flags().StringVar(&format, "format", export.FormatYAML, "Output format: json, yaml or dot")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored policies",
		Args:  argsUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *policystore.Store) error {
				summaries, err := store.List()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROBLEM\tSIZE\tALGORITHM\tRUN ID")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Problem, s.Size, s.Algorithm, s.RunID)
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <problem-name>",
		Short: "Remove a stored policy",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *policystore.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.log.Infof("Deleted policy for '%s'.", args[0])
				return nil
			})
		},
	}

	check := &cobra.Command{
		Use:   "verify <problem.yaml>",
		Short: "Check a stored policy against its problem file",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *policystore.Store) error {
				return a.verifyStored(store, args[0])
			})
		},
	}

	cmd.AddCommand(show, list, del, check)
	return cmd
}

func (a *app) withStore(fn func(*policystore.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) verifyStored(store *policystore.Store, problemPath string) error {
	doc, err := config.LoadProblemFromFile(problemPath)
	if err != nil {
		return err
	}
	problem, err := explicit.FromDoc(doc)
	if err != nil {
		return err
	}
	stored, err := store.Load(problem.Name())
	if err != nil {
		return err
	}
	pol, err := stored.ToPolicy(problem, func(key string) planning.State { return explicit.State(key) })
	if err != nil {
		return err
	}
	summary, err := verify.Policy(problem, pol)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: policy is strong-cyclic (%d reachable state(s), %d goal(s))\n",
		problem.Name(), summary.Reachable, summary.Goals)
	return nil
}
