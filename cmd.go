package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fasttree/internal/alignment"
	"fasttree/internal/config"
	"fasttree/internal/infer"
	"fasttree/internal/newick"
	"fasttree/internal/nj"
	"fasttree/internal/tree"
)

var version = "dev"

type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fasttree --algo {nj,slowtree} [flags] <alignment> [<output>]",
		Short: "Build a neighbor-joining tree from a multiple sequence alignment",
		Long: `Build an unrooted phylogenetic tree with branch lengths from aligned
nucleotide or protein sequences (FASTA or NEXUS, optionally .gz or .xz).

  nj        exact neighbor-joining over the full distance matrix
  slowtree  profile-based joining with a running total profile

The tree is written in Newick format to <output>, or to standard output.
Every flag can also be set as FASTTREE_<FLAG> in the environment or in the
file named by --config.`,
		Args:              cobra.RangeArgs(1, 2),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.build,
	}
	config.AddFlags(root.PersistentFlags())
	root.AddCommand(a.compareCmd(), a.distCmd(), versionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.LogLevel)
	a.cfg = cfg
	return nil
}

func (a *app) build(cmd *cobra.Command, args []string) error {
	if err := a.cfg.RequireAlgorithm(); err != nil {
		return err
	}
	aln, err := alignment.Load(args[0], a.cfg.Format)
	if err != nil {
		return err
	}
	t, _, err := infer.Build(cmd.Context(), aln, a.cfg.Options())
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return newick.Write(cmd.OutOrStdout(), t)
	}
	return writeFile(args[1], func(w io.Writer) error { return newick.Write(w, t) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output")
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	log.Infof("wrote %s", path)
	return nil
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <alignment>",
		Short: "Build the tree with both algorithms and compare their topologies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aln, err := alignment.Load(args[0], a.cfg.Format)
			if err != nil {
				return err
			}
			opts := a.cfg.Options()
			trees := make([]*tree.Tree, 2)
			out := cmd.OutOrStdout()
			for k, algo := range []infer.Algorithm{infer.NeighborJoining, infer.Incremental} {
				opts.Algorithm = algo
				t, stats, err := infer.Build(cmd.Context(), aln, opts)
				if err != nil {
					return err
				}
				trees[k] = t
				fmt.Fprintf(out, "%-9s joins=%d refreshes=%d full-scans=%d negative=%d saturated=%d\n",
					algo, stats.Joins, stats.Refreshes, stats.FullScans, stats.NegativeBranches, stats.Saturated)
			}
			c, err := tree.Compare(trees[0], trees[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "splits=%d shared=%d robinson-foulds=%d conflicting=%d\n", c.Splits, c.Shared, c.RF, c.Conflicting)
			return nil
		},
	}
}

func (a *app) distCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dist <alignment> [<output>]",
		Short: "Print the corrected pairwise distances as a PHYLIP square matrix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			aln, err := alignment.Load(args[0], a.cfg.Format)
			if err != nil {
				return err
			}
			d, est, err := nj.Matrix(cmd.Context(), aln, a.cfg.Workers)
			if err != nil {
				return err
			}
			if n := est.Saturated(); n > 0 {
				log.Warnf("%d distances saturated at the correction limit", n)
			}
			write := func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "%d\n", aln.Len()); err != nil {
					return errors.Wrap(err, "writing matrix")
				}
				for i := range aln.Len() {
					fmt.Fprintf(w, "%-10s", aln.Label(i))
					for j := range aln.Len() {
						fmt.Fprintf(w, " %.6f", d.At(i, j))
					}
					if _, err := fmt.Fprintln(w); err != nil {
						return errors.Wrap(err, "writing matrix")
					}
				}
				return nil
			}
			if len(args) < 2 {
				return write(cmd.OutOrStdout())
			}
			return writeFile(args[1], write)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fasttree %s\n", version)
		},
	}
}
