package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/sim"
)

type ExportData struct {
	Model            string              `json:"model"`
	Solver           config.SolverConfig `json:"solver"`
	Iterations       int                 `json:"iterations"`
	Converged        bool                `json:"converged"`
	KineticEnergy    float64             `json:"kinetic_energy"`
	Timestep         float64             `json:"timestep"`
	EnergyIterations []int               `json:"energy_iterations"`
	Energy           []float64           `json:"energy"`
	Initial          [][3]float64        `json:"initial"`
	Positions        [][3]float64        `json:"positions"`
	BarForces        []float64           `json:"bar_forces"`
	Metrics          map[string]float64  `json:"metrics"`
}

func NewExportData(model string, cfg *config.Config, result *sim.Result) *ExportData {
	data := &ExportData{
		Model:            model,
		Solver:           cfg.Solver,
		Iterations:       result.Iterations,
		Converged:        result.Converged,
		KineticEnergy:    result.KineticEnergy,
		Timestep:         result.Timestep,
		EnergyIterations: result.EnergyIterations,
		Energy:           result.Energy,
		Initial:          make([][3]float64, len(result.Initial)),
		Positions:        make([][3]float64, len(result.Positions)),
		BarForces:        result.BarForces,
		Metrics:          finite(result.Metrics),
	}

	for i, p := range result.Initial {
		data.Initial[i] = [3]float64{p.X, p.Y, p.Z}
	}
	for i, p := range result.Positions {
		data.Positions[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return data
}

func ExportJSON(path string, model string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, model, cfg, result)
}

func WriteJSON(w io.Writer, model string, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(model, cfg, result))
}
