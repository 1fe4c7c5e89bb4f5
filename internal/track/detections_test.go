package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/courtside-data/rally.report/internal/court"
)

func TestBoundingBoxReferencePoints(t *testing.T) {
	box := BoundingBox{Left: 100, Top: 200, Right: 140, Bottom: 300}

	if c := box.Center(); c.X != 120 || c.Y != 250 {
		t.Errorf("Center = %+v, want (120, 250)", c)
	}
	if f := box.FootPoint(); f.X != 120 || f.Y != 300 {
		t.Errorf("FootPoint = %+v, want (120, 300)", f)
	}
	if h := box.Height(); h != 100 {
		t.Errorf("Height = %v, want 100", h)
	}
}

func TestNormalizeDetections(t *testing.T) {
	dets := []Detection{
		{Class: ClassPlayer, TrackID: 1, Confidence: 0.9, Box: BoundingBox{Left: 100, Top: 500, Right: 140, Bottom: 600}},
		{Class: ClassPlayer, TrackID: 1, Confidence: 0.4, Box: BoundingBox{Left: 700, Top: 500, Right: 740, Bottom: 600}},
		{Class: ClassPlayer, TrackID: 2, Confidence: 0.8, Box: BoundingBox{Left: 900, Top: 400, Right: 940, Bottom: 500}},
		{Class: ClassBall, Confidence: 0.3, Box: BoundingBox{Left: 10, Top: 10, Right: 20, Bottom: 20}},
		{Class: ClassBall, Confidence: 0.7, Box: BoundingBox{Left: 630, Top: 350, Right: 650, Bottom: 370}},
		{Class: ClassBall, Confidence: 0.99, Box: BoundingBox{Left: 50, Top: 40, Right: 60, Bottom: 40}}, // Degenerate
		{Class: "racket", Confidence: 0.9, Box: BoundingBox{Left: 0, Top: 0, Right: 10, Bottom: 10}},
	}

	fd := NormalizeDetections(7, dets)
	if fd.Frame != 7 {
		t.Errorf("Frame = %d, want 7", fd.Frame)
	}

	if len(fd.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(fd.Players))
	}
	if fd.Players[1].Left != 100 {
		t.Errorf("Duplicate track id 1 resolved to Left=%v, want the 0.9-confidence box at 100", fd.Players[1].Left)
	}

	if fd.Ball == nil {
		t.Fatal("Expected a ball box")
	}
	if fd.Ball.Left != 630 {
		t.Errorf("Ball Left = %v, want the most confident valid box at 630", fd.Ball.Left)
	}
}

func TestNormalizeDetectionsEmpty(t *testing.T) {
	fd := NormalizeDetections(3, nil)
	if fd.Ball != nil || fd.Players != nil {
		t.Errorf("Expected an empty record, got %+v", fd)
	}
}

func TestNewStreamSourceRejectsDuplicates(t *testing.T) {
	frames := []FrameDetections{{Frame: 3}, {Frame: 1}, {Frame: 3}}
	if _, err := NewStreamSource(24, frames); err == nil {
		t.Error("Expected error for duplicate frame index")
	}
}

func TestNewStreamSourceSorts(t *testing.T) {
	frames := []FrameDetections{{Frame: 5}, {Frame: 1}, {Frame: 3}}
	src, err := NewStreamSource(24, frames)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	want := []int{1, 3, 5}
	for i, w := range want {
		fd, err := src.FrameAt(i)
		if err != nil {
			t.Fatalf("FrameAt(%d) failed: %v", i, err)
		}
		if fd.Frame != w {
			t.Errorf("FrameAt(%d).Frame = %d, want %d", i, fd.Frame, w)
		}
	}
	if _, err := src.FrameAt(3); err == nil {
		t.Error("Expected error for out-of-range position")
	}
}

func TestIngest(t *testing.T) {
	ball := BoundingBox{Left: 630, Top: 350, Right: 650, Bottom: 370}
	p1 := BoundingBox{Left: 390, Top: 600, Right: 410, Bottom: 700}
	frames := []FrameDetections{
		{Frame: 10, Players: map[int]BoundingBox{1: p1}, Ball: &ball},
		{Frame: 11, Players: map[int]BoundingBox{1: p1}},
		{Frame: 12, Ball: &ball},
	}
	src, err := NewStreamSource(24, frames)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}

	raw, start, end, err := Ingest(src)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if start != 10 || end != 12 {
		t.Errorf("Range = [%d, %d], want [10, 12]", start, end)
	}

	ballRaw := raw[BallEntity]
	if len(ballRaw) != 2 {
		t.Fatalf("Expected 2 ball positions, got %d", len(ballRaw))
	}
	if got := ballRaw[10]; got != ball.Center() {
		t.Errorf("Ball position = %+v, want the box centre %+v", got, ball.Center())
	}
	if _, ok := ballRaw[11]; ok {
		t.Error("Frame 11 has no ball; its entry must be absent, not zero")
	}

	playerRaw := raw[PlayerEntity(1)]
	if got := playerRaw[10]; got != p1.FootPoint() {
		t.Errorf("Player position = %+v, want the foot point %+v", got, p1.FootPoint())
	}
	if _, ok := playerRaw[12]; ok {
		t.Error("Frame 12 has no player 1; its entry must be absent")
	}
}

func TestIngestEmpty(t *testing.T) {
	src, err := NewStreamSource(24, nil)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	if _, _, _, err := Ingest(src); err == nil {
		t.Error("Expected error for an empty stream")
	}
}

func TestLoadStream(t *testing.T) {
	payload := `{
		"frame_rate": 30,
		"frames": [
			{
				"frame": 0,
				"players": {"1": {"left": 390, "top": 600, "right": 410, "bottom": 700}},
				"ball": {"left": 630, "top": 350, "right": 650, "bottom": 370},
				"keypoints": {
					"baseline_far_left": {"x": 200, "y": 100},
					"baseline_far_right": {"x": 1080, "y": 100}
				}
			},
			{"frame": 1}
		]
	}`
	path := filepath.Join(t.TempDir(), "stream.json")
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src, err := LoadStream(path)
	if err != nil {
		t.Fatalf("LoadStream failed: %v", err)
	}
	if src.FrameRate() != 30 {
		t.Errorf("FrameRate = %v, want 30", src.FrameRate())
	}
	if src.FrameCount() != 2 {
		t.Fatalf("FrameCount = %d, want 2", src.FrameCount())
	}

	fd, err := src.FrameAt(0)
	if err != nil {
		t.Fatalf("FrameAt(0) failed: %v", err)
	}
	if fd.Ball == nil || fd.Ball.Left != 630 {
		t.Errorf("Ball box not loaded: %+v", fd.Ball)
	}
	if box, ok := fd.Players[1]; !ok || box.Bottom != 700 {
		t.Errorf("Player box not loaded: %+v", fd.Players)
	}
	if p, ok := fd.Keypoints[court.BaselineFarLeft]; !ok || p.X != 200 {
		t.Errorf("Keypoint not loaded: %+v", fd.Keypoints)
	}
}

func TestLoadStreamRawDetections(t *testing.T) {
	payload := `{
		"frame_rate": 24,
		"frames": [
			{
				"frame": 0,
				"detections": [
					{"class": "player", "track_id": 1, "confidence": 0.9, "box": {"left": 390, "top": 600, "right": 410, "bottom": 700}},
					{"class": "ball", "confidence": 0.6, "box": {"left": 630, "top": 350, "right": 650, "bottom": 370}}
				]
			},
			{
				"frame": 1,
				"detections": [
					{"class": "ball", "confidence": 0.6, "box": {"left": 100, "top": 100, "right": 120, "bottom": 120}}
				],
				"ball": {"left": 200, "top": 200, "right": 220, "bottom": 220}
			}
		]
	}`
	path := filepath.Join(t.TempDir(), "raw.json")
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src, err := LoadStream(path)
	if err != nil {
		t.Fatalf("LoadStream failed: %v", err)
	}

	fd, err := src.FrameAt(0)
	if err != nil {
		t.Fatalf("FrameAt(0) failed: %v", err)
	}
	if box, ok := fd.Players[1]; !ok || box.Bottom != 700 {
		t.Errorf("Player box not normalized from raw detections: %+v", fd.Players)
	}
	if fd.Ball == nil || fd.Ball.Left != 630 {
		t.Errorf("Ball box not normalized from raw detections: %+v", fd.Ball)
	}

	// An explicit ball field wins over the raw list.
	fd, err = src.FrameAt(1)
	if err != nil {
		t.Fatalf("FrameAt(1) failed: %v", err)
	}
	if fd.Ball == nil || fd.Ball.Left != 200 {
		t.Errorf("Explicit ball box should override the raw detection: %+v", fd.Ball)
	}
}

func TestLoadStreamBadInput(t *testing.T) {
	if _, err := LoadStream(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"frames": [{"frame": 0, "players": {"x": {}}}]}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadStream(path); err == nil {
		t.Error("Expected error for a non-numeric player track id")
	}
}

func TestReferenceKeypointsFirstComplete(t *testing.T) {
	partial := KeypointSet{court.BaselineFarLeft: {X: 1, Y: 1}}
	frames := []FrameDetections{
		{Frame: 0, Keypoints: partial},
		{Frame: 1, Keypoints: cameraKeypoints()},
		{Frame: 2},
	}
	src, err := NewStreamSource(24, frames)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}

	ks, err := ReferenceKeypoints(src)
	if err != nil {
		t.Fatalf("ReferenceKeypoints failed: %v", err)
	}
	if !ks.HasRequired() {
		t.Error("Returned keypoint set is incomplete")
	}
	if len(ks) != len(cameraKeypoints()) {
		t.Errorf("Expected the complete frame 1 set, got %d landmarks", len(ks))
	}
}
