package track

import (
	"math"
	"sort"
	"strings"

	"github.com/courtside-data/rally.report/internal/court"
)

// EntityFrameStat is one entity's aligned per-frame output: the stabilized
// pixel position, its court-plane mapping, and the kinematic readings when
// a sample exists for that frame.
type EntityFrameStat struct {
	Pixel        PixelPoint
	Court        court.Point
	SpeedMps     float64
	CumDistanceM float64
	HasKinematic bool
	Interpolated bool
}

// FrameStat aligns all entities at one frame. Entities with no data at the
// frame are absent from the map; absence is never encoded as zero.
type FrameStat struct {
	Frame    int
	Entities map[EntityID]EntityFrameStat
}

// ShotStat describes one flight segment between consecutive ball events:
// who hit it, how fast the ball travelled, and how fast the opponent moved
// during the exchange.
type ShotStat struct {
	StartFrame       int
	EndFrame         int
	Player           EntityID
	Opponent         EntityID
	BallSpeedMps     float64 // Segment-average flight speed
	BallPeakSpeedMps float64 // Peak instantaneous speed in the segment
	OpponentSpeedMps float64
}

// PlayerSummary accumulates per-player statistics over the analysed range.
type PlayerSummary struct {
	Entity          EntityID
	Shots           int
	LastShotMps     float64
	TotalShotMps    float64
	AverageShotMps  float64
	TotalDistanceM  float64
	AverageSpeedMps float64
	PeakSpeedMps    float64
}

// RallyReport is the merged output for the rendering/reporting layer.
type RallyReport struct {
	Start        int
	End          int
	Frames       []FrameStat
	Bounces      []BounceEvent
	Shots        []ShotStat
	Coverage     map[EntityID]CoverageReport
	Players      map[EntityID]PlayerSummary
	Insufficient map[EntityID]string
}

// Aggregator merges per-component outputs by frame index and entity. It
// performs alignment only; every number it reports was computed upstream.
type Aggregator struct {
	cfg       AnalysisConfig
	transform *Transform
}

// NewAggregator returns an aggregator bound to the run's transform.
func NewAggregator(cfg AnalysisConfig, transform *Transform) *Aggregator {
	return &Aggregator{cfg: cfg, transform: transform}
}

// Build assembles the rally report for [start, end].
func (a *Aggregator) Build(
	start, end int,
	trajectories map[EntityID]*Trajectory,
	samples map[EntityID][]KinematicSample,
	bounces []BounceEvent,
	coverage map[EntityID]CoverageReport,
	insufficient map[EntityID]error,
) *RallyReport {
	report := &RallyReport{
		Start:        start,
		End:          end,
		Bounces:      bounces,
		Coverage:     coverage,
		Players:      make(map[EntityID]PlayerSummary),
		Insufficient: make(map[EntityID]string),
	}
	for id, err := range insufficient {
		report.Insufficient[id] = err.Error()
	}

	report.Frames = a.buildFrames(start, end, trajectories, samples)
	report.Shots = a.buildShots(bounces, samples)
	a.buildPlayerSummaries(report, samples)
	return report
}

func (a *Aggregator) buildFrames(
	start, end int,
	trajectories map[EntityID]*Trajectory,
	samples map[EntityID][]KinematicSample,
) []FrameStat {
	frames := make([]FrameStat, 0, end-start+1)
	for f := start; f <= end; f++ {
		stat := FrameStat{Frame: f, Entities: make(map[EntityID]EntityFrameStat)}
		for id, traj := range trajectories {
			pix, ok := traj.At(f)
			if !ok {
				continue
			}
			efs := EntityFrameStat{
				Pixel: pix,
				Court: a.transform.PixelToCourt(pix),
			}
			for _, p := range traj.Points {
				if p.Frame == f {
					efs.Interpolated = p.Interpolated
					break
				}
			}
			if ks, ok := SampleAt(samples[id], f); ok {
				efs.SpeedMps = ks.SpeedMps
				efs.CumDistanceM = ks.CumDistanceM
				efs.HasKinematic = true
			}
			stat.Entities[id] = efs
		}
		frames = append(frames, stat)
	}
	return frames
}

// buildShots derives one ShotStat per pair of consecutive ball events. The
// hitter is the player nearest the ball at the segment start; with exactly
// two players the other one is the opponent, whose average speed over the
// segment is recorded.
func (a *Aggregator) buildShots(bounces []BounceEvent, samples map[EntityID][]KinematicSample) []ShotStat {
	if len(bounces) < 2 {
		return nil
	}

	players := playerEntities(samples)
	var shots []ShotStat
	for i := 0; i < len(bounces)-1; i++ {
		f0, f1 := bounces[i].Frame, bounces[i+1].Frame
		elapsed := a.cfg.FrameSeconds(f1 - f0)
		if elapsed <= 0 {
			continue
		}

		shot := ShotStat{StartFrame: f0, EndFrame: f1}
		shot.BallSpeedMps = bounces[i].Position.Distance(bounces[i+1].Position) / elapsed
		shot.BallPeakSpeedMps = PeakSpeed(samples[BallEntity], f0, f1)

		hitter, ok := nearestPlayer(players, samples, f0, bounces[i].Position)
		if ok {
			shot.Player = hitter
			if opp, ok := opponentOf(players, hitter); ok {
				shot.Opponent = opp
				shot.OpponentSpeedMps = DistanceBetween(samples[opp], f0, f1) / elapsed
			}
		}
		shots = append(shots, shot)
	}
	return shots
}

func (a *Aggregator) buildPlayerSummaries(report *RallyReport, samples map[EntityID][]KinematicSample) {
	for _, id := range playerEntities(samples) {
		s := samples[id]
		sum := PlayerSummary{Entity: id}
		var speedTotal float64
		for _, ks := range s {
			speedTotal += ks.SpeedMps
			if ks.SpeedMps > sum.PeakSpeedMps {
				sum.PeakSpeedMps = ks.SpeedMps
			}
		}
		if len(s) > 0 {
			sum.TotalDistanceM = s[len(s)-1].CumDistanceM
			sum.AverageSpeedMps = speedTotal / float64(len(s))
		}
		for _, shot := range report.Shots {
			if shot.Player != id {
				continue
			}
			sum.Shots++
			sum.LastShotMps = shot.BallSpeedMps
			sum.TotalShotMps += shot.BallSpeedMps
		}
		if sum.Shots > 0 {
			sum.AverageShotMps = sum.TotalShotMps / float64(sum.Shots)
		}
		report.Players[id] = sum
	}
}

// playerEntities returns the player entity IDs present in the sample set,
// sorted for deterministic iteration.
func playerEntities(samples map[EntityID][]KinematicSample) []EntityID {
	var out []EntityID
	for id := range samples {
		if id != BallEntity && strings.HasPrefix(string(id), "player_") {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nearestPlayer finds the player closest to the ball position at the given
// frame, using each player's nearest kinematic sample.
func nearestPlayer(players []EntityID, samples map[EntityID][]KinematicSample, frame int, ball court.Point) (EntityID, bool) {
	best := EntityID("")
	bestDist := math.MaxFloat64
	for _, id := range players {
		pos, ok := positionNear(samples[id], frame)
		if !ok {
			continue
		}
		if d := pos.Distance(ball); d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best, best != ""
}

// positionNear returns the court position of the sample nearest the frame.
func positionNear(samples []KinematicSample, frame int) (court.Point, bool) {
	if len(samples) == 0 {
		return court.Point{}, false
	}
	bestIdx := 0
	bestGap := math.MaxInt
	for i, s := range samples {
		gap := s.Frame - frame
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			bestGap = gap
			bestIdx = i
		}
	}
	return samples[bestIdx].Position, true
}

// opponentOf returns the other player when exactly two are tracked.
func opponentOf(players []EntityID, hitter EntityID) (EntityID, bool) {
	if len(players) != 2 {
		return "", false
	}
	if players[0] == hitter {
		return players[1], true
	}
	return players[0], true
}
