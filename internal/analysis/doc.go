// Package analysis post-processes recorded runs.
//
// Every tool works on [sim.Frame] slices, so it applies equally to a live
// run and to one loaded back from storage:
//
//   - [Series]: one axis of a body's position or velocity over time
//   - [DominantFrequency]: strongest oscillation frequency via FFT
//   - [SettleTime], [SceneSettleTime]: when bodies come to rest
//   - [PhasePortrait], [GeneratePoincareSection]: phase space views
//   - [LyapunovExponent]: divergence rate of two nearby runs
//
// # Oscillation
//
// A pendulum's period can be read off its horizontal position:
//
//	xs := analysis.Series(res.Frames, "bob", analysis.Position, 0)
//	f, err := analysis.DominantFrequency(xs, cfg.Dt*float64(cfg.RecordEvery))
package analysis
