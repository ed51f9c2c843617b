package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/rigidsim/internal/sim"
)

type ExportBody struct {
	Name            string     `json:"name"`
	Position        [3]float64 `json:"position"`
	Orientation     [4]float64 `json:"orientation"`
	LinearVelocity  [3]float64 `json:"linear_velocity"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
	Sleeping        bool       `json:"sleeping,omitempty"`
}

type ExportFrame struct {
	Step   uint64       `json:"step"`
	Time   float64      `json:"time"`
	Bodies []ExportBody `json:"bodies"`
}

type ExportData struct {
	Scene    string             `json:"scene"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Frames   []ExportFrame      `json:"frames"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

func exportData(scene string, dt, duration float64, frames []sim.Frame, metrics map[string]float64) ExportData {
	data := ExportData{
		Scene:    scene,
		Dt:       dt,
		Duration: duration,
		Steps:    len(frames),
		Frames:   make([]ExportFrame, len(frames)),
		Metrics:  metrics,
	}
	for i, f := range frames {
		ef := ExportFrame{Step: f.Step, Time: f.Time, Bodies: make([]ExportBody, len(f.Bodies))}
		for j, b := range f.Bodies {
			q := b.Orientation
			ef.Bodies[j] = ExportBody{
				Name:            b.Name,
				Position:        b.Position,
				Orientation:     [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
				LinearVelocity:  b.LinearVelocity,
				AngularVelocity: b.AngularVelocity,
				Sleeping:        b.Sleeping,
			}
		}
		data.Frames[i] = ef
	}
	return data
}

// WriteJSON encodes recorded frames as indented JSON.
func WriteJSON(w io.Writer, scene string, dt, duration float64, frames []sim.Frame, metrics map[string]float64) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(scene, dt, duration, frames, metrics))
}

func ExportJSON(path string, scene string, dt, duration float64, frames []sim.Frame, metrics map[string]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, scene, dt, duration, frames, metrics)
}
