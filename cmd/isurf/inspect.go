package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/interface.report/internal/storage/sqlite"
	"github.com/banshee-data/interface.report/internal/surface"
	"github.com/banshee-data/interface.report/internal/surface/spectrum"
)

type inspectOptions struct {
	qu    int
	recon bool
	xy    bool
}

func newInspectCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <input.json>",
		Short: "Report spectra of the stored surfaces of a trajectory",
		Long: "inspect loads the stored surfaces of every frame of a trajectory and\n" +
			"prints the intrinsic area, pivot exchange rate, power spectrum and\n" +
			"capillary tension of each interface, averaged over frames.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, a, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.qu, "qu", -1, "resolution to report at (default: the stored qm)")
	f.BoolVar(&opts.recon, "recon", false, "use reconstructed coefficients where stored")
	f.BoolVar(&opts.xy, "xy", false, "also print the height-height correlation map")
	return cmd
}

// sideReport aggregates one interface over the frames of a trajectory.
type sideReport struct {
	ensemble *spectrum.Ensemble
	areas    []float64
	pivots   [][]int
}

func runInspect(cmd *cobra.Command, a *app, opts *inspectOptions, input string) error {
	frames, err := readInput(input)
	if err != nil {
		return err
	}
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlite.NewCoefficientStore(db)

	var (
		reports [2]*sideReport
		first   *surface.Result
	)
	for i, f := range frames {
		p := a.cfg.Params(f.Cell)
		res, err := store.Get(cmd.Context(), sqlite.Key{Frame: i, QM: p.QM, N0: p.N0, Phi: p.Phi})
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("frame %d has no stored surface for qm=%d n0=%d phi=%g; run build first",
				i, p.QM, p.N0, p.Phi)
		}
		if err != nil {
			return err
		}
		if first == nil {
			first = res
		}
		for _, s := range surface.Sides {
			surf := res.Surface(s, opts.recon)
			if reports[s] == nil {
				e, err := spectrum.NewEnsemble(surf)
				if err != nil {
					return err
				}
				reports[s] = &sideReport{ensemble: e}
			} else if err := reports[s].ensemble.Add(surf); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			reports[s].areas = append(reports[s].areas, surf.IntrinsicArea(res.QM))
			reports[s].pivots = append(reports[s].pivots, res.Pivots[s])
		}
	}

	qu := opts.qu
	if qu < 0 || qu > first.QM {
		qu = first.QM
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "frames %d, qm %d, qu %d, n0 %d, phi %g\n", len(frames), first.QM, qu, first.N0, first.Phi)
	for _, s := range surface.Sides {
		printSideReport(w, s, reports[s], qu, first.N0, a.cfg.GetTemperature(), opts.xy)
	}
	return nil
}

func printSideReport(w io.Writer, s surface.Side, r *sideReport, qu, n0 int, temperature float64, xy bool) {
	mean, std := stat.MeanStdDev(r.areas, nil)
	if len(r.areas) < 2 {
		std = 0
	}
	fmt.Fprintf(w, "\n%s surface\n", s)
	fmt.Fprintf(w, "  intrinsic area  %.6f ± %.6f\n", mean, std)
	fmt.Fprintf(w, "  pivot exchange  %.4f per frame\n", spectrum.PivotExchangeRate(r.pivots, n0))

	power := r.ensemble.PowerSpectrum(qu)
	tension := r.ensemble.CapillaryTension(qu, temperature)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Q2\tMODES\tPOWER (Å²)\tTENSION (mN/m)")
	for i, b := range power {
		fmt.Fprintf(tw, "  %.4f\t%d\t%.6g\t%.6g\n", b.Q2, b.Count, b.Value, tension[i].Value)
	}
	tw.Flush()

	if xy {
		fmt.Fprintf(w, "  xy correlation\n%v\n",
			mat.Formatted(r.ensemble.XYCorrelation(qu), mat.Prefix("  "), mat.Squeeze()))
	}
}
