package track

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/courtside-data/rally.report/internal/court"
)

// Detection classes produced by the external object detector.
const (
	ClassPlayer = "player"
	ClassBall   = "ball"
)

// Detection is one raw detector output for one frame. NormalizeDetections
// folds a frame's detections into a FrameDetections record.
type Detection struct {
	Class      string      `json:"class"`
	Box        BoundingBox `json:"box"`
	TrackID    int         `json:"track_id,omitempty"` // Players only
	Confidence float64     `json:"confidence"`
}

// NormalizeDetections regroups one frame's raw detector output: player
// boxes keyed by track id and a single ball box. Degenerate boxes are
// dropped; when the detector emits several ball candidates or duplicate
// track ids, the highest confidence wins. Unknown classes are ignored.
func NormalizeDetections(frame int, dets []Detection) FrameDetections {
	fd := FrameDetections{Frame: frame}
	playerConf := make(map[int]float64)
	ballConf := -1.0
	for _, d := range dets {
		if d.Box.Height() <= 0 || d.Box.Right <= d.Box.Left {
			continue
		}
		switch d.Class {
		case ClassPlayer:
			if prev, ok := playerConf[d.TrackID]; ok && d.Confidence <= prev {
				continue
			}
			if fd.Players == nil {
				fd.Players = make(map[int]BoundingBox)
			}
			fd.Players[d.TrackID] = d.Box
			playerConf[d.TrackID] = d.Confidence
		case ClassBall:
			if d.Confidence > ballConf {
				box := d.Box
				fd.Ball = &box
				ballConf = d.Confidence
			}
		}
	}
	return fd
}

// FrameDetections is the normalized per-frame record handed to the pipeline:
// player boxes keyed by persistent track id, at most one ball box, and the
// court keypoints observed in that frame (possibly empty for camera-fixed
// footage where keypoints are regressed once).
type FrameDetections struct {
	Frame     int
	Players   map[int]BoundingBox
	Ball      *BoundingBox
	Keypoints KeypointSet
}

// DetectionSource is the narrow capability the core needs from the vision
// layer: yield the normalized detections for frame i. Implementations back
// it with a real detector, a recorded stub, or a synthetic stream in tests.
type DetectionSource interface {
	FrameCount() int
	FrameAt(i int) (FrameDetections, error)
}

// StreamSource is a slice-backed DetectionSource for recorded or synthetic
// detection streams.
type StreamSource struct {
	frameRate float64
	frames    []FrameDetections
}

// NewStreamSource builds a source from pre-normalized frames. Frames are
// sorted by index; duplicate frame indices are rejected.
func NewStreamSource(frameRate float64, frames []FrameDetections) (*StreamSource, error) {
	sorted := make([]FrameDetections, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Frame == sorted[i-1].Frame {
			return nil, fmt.Errorf("duplicate frame index %d in detection stream", sorted[i].Frame)
		}
	}
	return &StreamSource{frameRate: frameRate, frames: sorted}, nil
}

// FrameRate returns the stream's frame rate, or zero if unknown.
func (s *StreamSource) FrameRate() float64 { return s.frameRate }

// FrameCount returns the number of frames in the stream.
func (s *StreamSource) FrameCount() int { return len(s.frames) }

// FrameAt returns the detections for position i in the stream.
func (s *StreamSource) FrameAt(i int) (FrameDetections, error) {
	if i < 0 || i >= len(s.frames) {
		return FrameDetections{}, fmt.Errorf("frame position %d out of range [0, %d)", i, len(s.frames))
	}
	return s.frames[i], nil
}

// streamFile is the on-disk JSON shape for a recorded detection stream.
type streamFile struct {
	FrameRate float64       `json:"frame_rate"`
	Frames    []streamFrame `json:"frames"`
}

// streamFrame accepts either raw detector output under "detections" or the
// already-regrouped "players"/"ball" form; explicit fields win over the raw
// list when both are present.
type streamFrame struct {
	Frame      int                      `json:"frame"`
	Detections []Detection              `json:"detections,omitempty"`
	Players    map[string]BoundingBox   `json:"players,omitempty"`
	Ball       *BoundingBox             `json:"ball,omitempty"`
	Keypoints  map[string]pixelPointDTO `json:"keypoints,omitempty"`
}

type pixelPointDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LoadStream reads a recorded detection stream from a JSON file produced by
// the detector/keypoint collaborators.
func LoadStream(path string) (*StreamSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detection stream: %w", err)
	}
	var file streamFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse detection stream: %w", err)
	}

	frames := make([]FrameDetections, 0, len(file.Frames))
	for _, f := range file.Frames {
		fd := NormalizeDetections(f.Frame, f.Detections)
		if f.Ball != nil {
			fd.Ball = f.Ball
		}
		for id, box := range f.Players {
			tid, err := strconv.Atoi(id)
			if err != nil {
				return nil, fmt.Errorf("frame %d: bad player track id %q", f.Frame, id)
			}
			if fd.Players == nil {
				fd.Players = make(map[int]BoundingBox, len(f.Players))
			}
			fd.Players[tid] = box
		}
		if len(f.Keypoints) > 0 {
			fd.Keypoints = make(KeypointSet, len(f.Keypoints))
			for name, p := range f.Keypoints {
				fd.Keypoints[court.Landmark(name)] = PixelPoint{X: p.X, Y: p.Y}
			}
		}
		frames = append(frames, fd)
	}
	return NewStreamSource(file.FrameRate, frames)
}

// Ingest walks the source once and regroups detections by entity: one raw
// position map per player track id and one for the ball. Player positions
// are foot points; the ball position is the box centre. Frames where an
// entity was not detected are simply absent from its map.
func Ingest(src DetectionSource) (raw map[EntityID]map[int]PixelPoint, start, end int, err error) {
	n := src.FrameCount()
	if n == 0 {
		return nil, 0, 0, fmt.Errorf("detection stream is empty")
	}

	raw = make(map[EntityID]map[int]PixelPoint)
	start, end = -1, -1
	for i := 0; i < n; i++ {
		fd, err := src.FrameAt(i)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("ingest frame %d: %w", i, err)
		}
		if start == -1 || fd.Frame < start {
			start = fd.Frame
		}
		if fd.Frame > end {
			end = fd.Frame
		}
		for tid, box := range fd.Players {
			id := PlayerEntity(tid)
			if raw[id] == nil {
				raw[id] = make(map[int]PixelPoint)
			}
			raw[id][fd.Frame] = box.FootPoint()
		}
		if fd.Ball != nil {
			if raw[BallEntity] == nil {
				raw[BallEntity] = make(map[int]PixelPoint)
			}
			raw[BallEntity][fd.Frame] = fd.Ball.Center()
		}
	}
	return raw, start, end, nil
}

// ReferenceKeypoints returns the keypoint set of the first frame carrying a
// complete required landmark set. Calibration uses a single designated
// reference frame for camera-fixed footage.
func ReferenceKeypoints(src DetectionSource) (KeypointSet, error) {
	for i := 0; i < src.FrameCount(); i++ {
		fd, err := src.FrameAt(i)
		if err != nil {
			return nil, err
		}
		if fd.Keypoints.HasRequired() {
			return fd.Keypoints, nil
		}
	}
	return nil, &CalibrationError{Reason: "no frame carries the required court landmarks"}
}
