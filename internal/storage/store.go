package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	metadataFile = "metadata.json"
	geometryFile = "geometry.csv"
	energyFile   = "energy.csv"
	forcesFile   = "forces.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string              `json:"id"`
	Model         string              `json:"model"`
	Timestamp     time.Time           `json:"timestamp"`
	Seed          int64               `json:"seed"`
	Nodes         int                 `json:"nodes"`
	Bars          int                 `json:"bars"`
	Iterations    int                 `json:"iterations"`
	Converged     bool                `json:"converged"`
	KineticEnergy float64             `json:"kinetic_energy"`
	Timestep      float64             `json:"timestep"`
	Restarts      int                 `json:"restarts"`
	Solver        config.SolverConfig `json:"solver"`
	Params        map[string]float64  `json:"params,omitempty"`
	Metrics       map[string]float64  `json:"metrics"`
}

// Geometry is the node table of a stored run.
type Geometry struct {
	Initial   []r3.Vec
	Positions []r3.Vec
}

// Save writes a run directory and returns its id. Non-finite metrics are
// left out of metadata.json.
func (s *Store) Save(model string, cfg *config.Config, result *sim.Result) (string, error) {
	runID := uuid.New().String()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:            runID,
		Model:         model,
		Timestamp:     time.Now(),
		Seed:          cfg.Seed,
		Nodes:         len(result.Positions),
		Bars:          len(result.BarForces),
		Iterations:    result.Iterations,
		Converged:     result.Converged,
		KineticEnergy: result.KineticEnergy,
		Timestep:      result.Timestep,
		Restarts:      result.Restarts,
		Solver:        cfg.Solver,
		Params:        cfg.Clone().Params,
		Metrics:       finite(result.Metrics),
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeGeometry(filepath.Join(runDir, geometryFile), result); err != nil {
		return "", err
	}
	if err := writeEnergy(filepath.Join(runDir, energyFile), result); err != nil {
		return "", err
	}
	if err := writeForces(filepath.Join(runDir, forcesFile), result); err != nil {
		return "", err
	}

	return runID, nil
}

func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := rows(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeGeometry(path string, result *sim.Result) error {
	header := []string{"node", "x0", "y0", "z0", "x", "y", "z"}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for i, p := range result.Positions {
			var p0 r3.Vec
			if i < len(result.Initial) {
				p0 = result.Initial[i]
			}
			row := []string{
				strconv.Itoa(i),
				formatFloat(p0.X), formatFloat(p0.Y), formatFloat(p0.Z),
				formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeEnergy(path string, result *sim.Result) error {
	header := []string{"iteration", "kinetic_energy"}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for i, ke := range result.Energy {
			row := []string{strconv.Itoa(result.EnergyIterations[i]), formatFloat(ke)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeForces(path string, result *sim.Result) error {
	header := []string{"bar", "force"}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for i, f := range result.BarForces {
			if err := w.Write([]string{strconv.Itoa(i), formatFloat(f)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) readCSV(runID, name string, fields int) ([][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = fields

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %s: %w", runID, name, err)
	}
	if len(records) < 2 {
		return [][]float64{}, nil
	}

	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: %s line %d: %w", runID, name, i+2, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) LoadGeometry(runID string) (*Geometry, error) {
	rows, err := s.readCSV(runID, geometryFile, 7)
	if err != nil {
		return nil, err
	}

	g := &Geometry{
		Initial:   make([]r3.Vec, len(rows)),
		Positions: make([]r3.Vec, len(rows)),
	}
	for i, row := range rows {
		g.Initial[i] = r3.Vec{X: row[1], Y: row[2], Z: row[3]}
		g.Positions[i] = r3.Vec{X: row[4], Y: row[5], Z: row[6]}
	}
	return g, nil
}

// LoadEnergy returns the sampled kinetic energy trace and its iterations.
func (s *Store) LoadEnergy(runID string) ([]float64, []int, error) {
	rows, err := s.readCSV(runID, energyFile, 2)
	if err != nil {
		return nil, nil, err
	}

	energy := make([]float64, len(rows))
	iters := make([]int, len(rows))
	for i, row := range rows {
		iters[i] = int(row[0])
		energy[i] = row[1]
	}
	return energy, iters, nil
}

func (s *Store) LoadForces(runID string) ([]float64, error) {
	rows, err := s.readCSV(runID, forcesFile, 2)
	if err != nil {
		return nil, err
	}

	forces := make([]float64, len(rows))
	for i, row := range rows {
		forces[i] = row[1]
	}
	return forces, nil
}

// LoadResult reassembles a stored run into its metadata, the config it ran
// with and a result.
func (s *Store) LoadResult(runID string) (*RunMetadata, *config.Config, *sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	geom, err := s.LoadGeometry(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	energy, iters, err := s.LoadEnergy(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	forces, err := s.LoadForces(runID)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := config.DefaultConfig()
	cfg.Model = meta.Model
	cfg.Seed = meta.Seed
	cfg.Solver = meta.Solver
	cfg.Params = meta.Params

	result := &sim.Result{
		Iterations:       meta.Iterations,
		Converged:        meta.Converged,
		KineticEnergy:    meta.KineticEnergy,
		Timestep:         meta.Timestep,
		Restarts:         meta.Restarts,
		Energy:           energy,
		EnergyIterations: iters,
		Initial:          geom.Initial,
		Positions:        geom.Positions,
		BarForces:        forces,
		Metrics:          meta.Metrics,
	}
	return meta, cfg, result, nil
}
