// Command rallyreport runs one batch analysis pass over a detection stream
// and emits the rally report as HTML charts, a court diagram PNG and rows
// in a SQLite database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/courtside-data/rally.report/internal/config"
	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/matchdb"
	"github.com/courtside-data/rally.report/internal/report"
	"github.com/courtside-data/rally.report/internal/track"
)

var (
	detectionsFile = flag.String("detections", "", "Detection stream JSON file (required)")
	tuningFile     = flag.String("tuning", "", "Tuning config JSON file (optional)")
	dbFile         = flag.String("db", "", "SQLite database to persist the run into (optional)")
	htmlFile       = flag.String("html", "", "Output HTML dashboard path (optional)")
	plotFile       = flag.String("plot", "", "Output court diagram PNG path (optional)")
	units          = flag.String("units", court.KMPH, "Display units for speeds: mps, mph, kmph or kph")
	mode           = flag.String("mode", "", "Play mode override: singles or doubles")
)

func main() {
	flag.Parse()

	if *detectionsFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	if !court.IsValidUnit(*units) {
		log.Fatalf("invalid units %q (valid: %v)", *units, court.ValidUnits)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	cfg := tuning.AnalysisConfig()
	if *mode != "" {
		cfg.Mode = court.PlayMode(*mode)
	}

	src, err := track.LoadStream(*detectionsFile)
	if err != nil {
		log.Fatalf("failed to load detection stream: %v", err)
	}
	// The stream's recorded frame rate wins unless the tuning file pins one.
	if tuning.FrameRate == nil && src.FrameRate() > 0 {
		cfg.FrameRate = src.FrameRate()
	}

	pipeline, err := track.NewPipeline(cfg, src)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	res, err := pipeline.Run()
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	printSummary(res, *units)

	if *dbFile != "" {
		db, err := matchdb.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		runID, err := matchdb.NewRunStore(db).SaveResult(*detectionsFile, res)
		if err != nil {
			log.Fatalf("failed to persist run: %v", err)
		}
		fmt.Printf("saved run %s to %s\n", runID, *dbFile)
	}

	if *htmlFile != "" {
		if err := report.WriteHTMLFile(*htmlFile, res.Report, *units); err != nil {
			log.Fatalf("failed to write HTML report: %v", err)
		}
		fmt.Printf("wrote %s\n", *htmlFile)
	}

	if *plotFile != "" {
		if err := report.SaveCourtPNG(*plotFile, res.Report); err != nil {
			log.Fatalf("failed to write court diagram: %v", err)
		}
		fmt.Printf("wrote %s\n", *plotFile)
	}
}

func printSummary(res *track.Result, units string) {
	r := res.Report
	fmt.Printf("analysed frames %d to %d (%s, %.1f fps)\n",
		r.Start, r.End, res.Config.Mode, res.Config.FrameRate)

	for id, reason := range r.Insufficient {
		fmt.Printf("  %s: insufficient track (%s)\n", id, reason)
	}

	fmt.Printf("bounces: %d\n", len(r.Bounces))
	for _, b := range r.Bounces {
		fmt.Printf("  frame %d at (%.2f, %.2f): %s (margin %.2fm)\n",
			b.Frame, b.Position.X, b.Position.Y, b.Verdict, b.MarginM)
	}

	fmt.Printf("shots: %d\n", len(r.Shots))
	for _, sh := range r.Shots {
		fmt.Printf("  frames %d-%d by %s: %.1f %s (peak %.1f)\n",
			sh.StartFrame, sh.EndFrame, sh.Player,
			court.ConvertSpeed(sh.BallSpeedMps, units), units,
			court.ConvertSpeed(sh.BallPeakSpeedMps, units))
	}

	for _, id := range sortedPlayerIDs(r) {
		p := r.Players[id]
		cov, hasCov := r.Coverage[id]
		fmt.Printf("%s: %d shots, avg shot %.1f %s, moved %.1fm",
			id, p.Shots, court.ConvertSpeed(p.AverageShotMps, units), units, p.TotalDistanceM)
		if hasCov {
			fmt.Printf(", covered %.1f m2", cov.AreaM2)
		}
		fmt.Println()
	}
}

func sortedPlayerIDs(r *track.RallyReport) []track.EntityID {
	ids := make([]track.EntityID, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
