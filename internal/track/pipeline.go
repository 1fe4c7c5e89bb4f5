package track

import (
	"fmt"
	"sync"

	"github.com/courtside-data/rally.report/internal/monitoring"
)

// Result carries everything one batch run produced. Trajectories and
// samples are keyed by entity; entities flagged insufficient appear only in
// Insufficient, never with fabricated metrics.
type Result struct {
	Config       AnalysisConfig
	Transform    *Transform
	Start        int
	End          int
	Trajectories map[EntityID]*Trajectory
	Samples      map[EntityID][]KinematicSample
	Bounces      []BounceEvent
	Coverage     map[EntityID]CoverageReport
	Insufficient map[EntityID]error
	Report       *RallyReport
}

// Pipeline runs one full analysis pass over a detection stream. Entities
// are independent once calibration completes, so stabilization and
// kinematics run in parallel per entity against the shared read-only
// transform: single writer during calibration, many readers after.
type Pipeline struct {
	cfg AnalysisConfig
	src DetectionSource
}

// NewPipeline validates the configuration and binds the source. An invalid
// configuration is fatal before any frame is touched.
func NewPipeline(cfg AnalysisConfig, src DetectionSource) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("pipeline: nil detection source")
	}
	return &Pipeline{cfg: cfg, src: src}, nil
}

// Run executes the batch pass. Calibration failure aborts the whole run;
// any per-entity failure is recorded and the remaining entities proceed.
func (p *Pipeline) Run() (*Result, error) {
	raw, start, end, err := Ingest(p.src)
	if err != nil {
		return nil, err
	}

	transform, err := CalibrateFromSource(p.src, p.cfg.ReprojectionToleranceM)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:       p.cfg,
		Transform:    transform,
		Start:        start,
		End:          end,
		Trajectories: make(map[EntityID]*Trajectory),
		Samples:      make(map[EntityID][]KinematicSample),
		Coverage:     make(map[EntityID]CoverageReport),
		Insufficient: make(map[EntityID]error),
	}

	stab := NewStabilizer(p.cfg)
	kin := NewKinematics(p.cfg, transform)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for id, positions := range raw {
		wg.Add(1)
		go func(id EntityID, positions map[int]PixelPoint) {
			defer wg.Done()
			traj, err := stab.Stabilize(id, positions, start, end)
			if err != nil {
				mu.Lock()
				res.Insufficient[id] = err
				mu.Unlock()
				monitoring.Logf("pipeline: %v", err)
				return
			}
			traj = stab.Smooth(traj)
			samples := kin.Samples(traj)
			mu.Lock()
			res.Trajectories[id] = traj
			res.Samples[id] = samples
			mu.Unlock()
		}(id, positions)
	}
	wg.Wait()

	if ballTraj, ok := res.Trajectories[BallEntity]; ok {
		judge := NewBounceJudge(p.cfg, transform)
		res.Bounces = judge.Detect(ballTraj)
	}

	window := FrameRange{Start: start, End: end}
	for _, id := range playerEntities(res.Samples) {
		res.Coverage[id] = Coverage(id, res.Samples[id], window)
	}

	agg := NewAggregator(p.cfg, transform)
	res.Report = agg.Build(start, end, res.Trajectories, res.Samples, res.Bounces, res.Coverage, res.Insufficient)

	monitoring.Logf("pipeline: frames [%d, %d], %d entities, %d bounces, %d insufficient",
		start, end, len(res.Trajectories), len(res.Bounces), len(res.Insufficient))
	return res, nil
}
