package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
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
	ID        string             `json:"id"`
	Scene     string             `json:"scene"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Steps     int                `json:"steps"`
	Bodies    []string           `json:"bodies"`
	Metrics   map[string]float64 `json:"metrics"`
}

var header = []string{
	"time", "step", "body", "kind",
	"x", "y", "z",
	"qw", "qx", "qy", "qz",
	"vx", "vy", "vz",
	"wx", "wy", "wz",
	"sleeping",
}

func (s *Store) newRunDir(scene string) (string, string, error) {
	base := strings.NewReplacer("/", "_", " ", "_").Replace(scene)
	if base == "" {
		base = "run"
	}
	stamp := time.Now().Unix()
	for n := 0; ; n++ {
		runID := fmt.Sprintf("%s_%d", base, stamp)
		if n > 0 {
			runID = fmt.Sprintf("%s_%d_%d", base, stamp, n)
		}
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
	}
}

// Save writes metadata.json and states.csv for a run and returns its id.
func (s *Store) Save(scene string, cfg sim.Config, result *sim.Result) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	runID, runDir, err := s.newRunDir(scene)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scene:     scene,
		Timestamp: time.Now(),
		Seed:      cfg.Seed,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Steps:     result.StepsTaken,
		Metrics:   result.Metrics,
	}
	if f := result.Final(); f != nil {
		for _, b := range f.Bodies {
			meta.Bodies = append(meta.Bodies, b.Name)
		}
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "states.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(header); err != nil {
		return "", err
	}

	fmtF := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, f := range result.Frames {
		for _, b := range f.Bodies {
			q := b.Orientation
			row := []string{
				fmtF(f.Time), strconv.FormatUint(f.Step, 10), b.Name, b.Kind.String(),
				fmtF(b.Position[0]), fmtF(b.Position[1]), fmtF(b.Position[2]),
				fmtF(q.W), fmtF(q.V[0]), fmtF(q.V[1]), fmtF(q.V[2]),
				fmtF(b.LinearVelocity[0]), fmtF(b.LinearVelocity[1]), fmtF(b.LinearVelocity[2]),
				fmtF(b.AngularVelocity[0]), fmtF(b.AngularVelocity[1]), fmtF(b.AngularVelocity[2]),
				strconv.FormatBool(b.Sleeping),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns the stored runs, newest first.
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

	slices.SortStableFunc(runs, func(a, b RunMetadata) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadFrames reads states.csv back into frames. Step statistics are not
// stored and come back empty.
func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	csvPath := filepath.Join(s.baseDir, runID, "states.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	frames := make([]sim.Frame, 0)
	for i := 1; i < len(records); i++ {
		b, t, step, err := parseRow(records[i])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvPath, i+1, err)
		}
		if n := len(frames); n == 0 || frames[n-1].Step != step {
			frames = append(frames, sim.Frame{Step: step, Time: t})
		}
		f := &frames[len(frames)-1]
		f.Bodies = append(f.Bodies, b)
	}

	return frames, nil
}

func parseRow(rec []string) (sim.BodyState, float64, uint64, error) {
	var b sim.BodyState
	step, err := strconv.ParseUint(rec[1], 10, 64)
	if err != nil {
		return b, 0, 0, err
	}
	vals := make([]float64, 0, 14)
	for _, i := range []int{0, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16} {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return b, 0, 0, err
		}
		vals = append(vals, v)
	}
	kind, err := world.ParseBodyKind(rec[3])
	if err != nil {
		return b, 0, 0, err
	}
	sleeping, err := strconv.ParseBool(rec[17])
	if err != nil {
		return b, 0, 0, err
	}

	b = sim.BodyState{
		Name:            rec[2],
		Kind:            kind,
		Position:        mgl64.Vec3{vals[1], vals[2], vals[3]},
		Orientation:     mgl64.Quat{W: vals[4], V: mgl64.Vec3{vals[5], vals[6], vals[7]}},
		LinearVelocity:  mgl64.Vec3{vals[8], vals[9], vals[10]},
		AngularVelocity: mgl64.Vec3{vals[11], vals[12], vals[13]},
		Sleeping:        sleeping,
	}
	return b, vals[0], step, nil
}
