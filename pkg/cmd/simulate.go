package cmd

import (
	"fmt"
	"log"

	"FrameTimeline/pkg/graphing"
	"FrameTimeline/pkg/refresh"
	"FrameTimeline/pkg/timing"
)

// Simulate drives N synthetic display frames through the timeline, prints
// the dump, and reports the rate selection the observed cadence leads to.
func Simulate(args []string) {
	ctx, cleanup := InitCmd("simulate", args)
	defer cleanup()
	cfg := ctx.Config

	driver := newFrameDriver(ctx)
	log.Printf("Simulating %d frames at %.2ffps (jank chance %.2f)",
		cfg.Frames, cfg.Fps, cfg.JankChance)

	for i := 0; i < cfg.Frames; i++ {
		driver.DriveFrame()
	}
	ctx.Timeline.FlushPending()

	fmt.Print(ctx.Timeline.ParseArgs([]string{cfg.DumpFilter}))

	now := driver.base + timing.Nanos(driver.frame)*driver.fps.Period()
	layers := driver.LayerRequirements(now)
	selected := ctx.Engine.SelectBestRate(layers, refresh.GlobalSignals{})
	log.Printf("Layer vote: %s at %s", layers[0].Vote, layers[0].DesiredFps)
	log.Printf("Selected refresh rate: %s", selected)
	log.Printf("Recorded %d observations", ctx.Recorder.Count())

	if ctx.Exporter != nil {
		if err := ctx.Exporter.Flush(); err != nil {
			log.Printf("Failed to flush exporter: %v", err)
		}
		log.Printf("Exported records to %s", ctx.Exporter.Path())
	}

	if cfg.Graphs {
		dir := cfg.GraphDir
		if dir == "" {
			dir = "graphs"
		}
		gen, err := graphing.NewGenerator(dir, cfg.UUID)
		if err != nil {
			log.Fatalf("Failed to create graph generator: %v", err)
		}
		if err := gen.GenerateFromRecords(ctx.Recorder.Records()); err != nil {
			log.Fatalf("Failed to generate graphs: %v", err)
		}
		log.Printf("Generated graphs in %s", dir)
	}
}
