package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dynrelax/internal/storage"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tNODES\tBARS\tITERS\tCONVERGED\tKE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\t%.3g\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Nodes,
			run.Bars,
			run.Iterations,
			run.Converged,
			run.KineticEnergy,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	energy, iters, err := st.LoadEnergy(runID)
	if err != nil {
		return err
	}
	geom, err := st.LoadGeometry(runID)
	if err != nil {
		return err
	}

	if len(energy) == 0 && len(geom.Positions) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(energy))

	if len(energy) > 0 {
		// The decay spans many orders of magnitude.
		logE := make([]float64, len(energy))
		for i, e := range energy {
			logE[i] = math.Log10(math.Max(e, 1e-300))
		}
		caption := fmt.Sprintf("log10 kinetic energy, iterations %d..%d", iters[0], iters[len(iters)-1])
		fmt.Println(asciigraph.Plot(logE,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}

	if len(geom.Positions) > 0 {
		dz := make([]float64, len(geom.Positions))
		for i := range geom.Positions {
			dz[i] = geom.Positions[i].Z - geom.Initial[i].Z
		}
		fmt.Println(asciigraph.Plot(dz,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("vertical displacement by node"),
		))
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, cfg, result, err := st.LoadResult(runID)
	if err != nil {
		return err
	}

	if outFile == "" {
		return storage.WriteJSON(os.Stdout, meta.Model, cfg, result)
	}
	if err := storage.ExportJSON(outFile, meta.Model, cfg, result); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	return nil
}
