package cmd

import (
	"flag"
	"log"
	"math/rand"
	"time"

	"FrameTimeline/pkg/exporting"
	"FrameTimeline/pkg/refresh"
	"FrameTimeline/pkg/timeline"
	"FrameTimeline/pkg/timing"
	"FrameTimeline/pkg/tokens"
	"FrameTimeline/pkg/usage"
	"FrameTimeline/pkg/utils"
)

// CmdContext holds initialized command resources.
type CmdContext struct {
	Config   *utils.Config
	Timeline *timeline.Timeline
	Engine   *refresh.Engine
	Recorder *exporting.Recorder
	Stream   *exporting.Stream
	Exporter *exporting.Exporter
}

// InitCmd parses flags and wires the timeline, policy engine and record
// pipeline every subcommand shares.
func InitCmd(name string, args []string) (*CmdContext, func()) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg := utils.NewConfig()
	utils.GetFlags(fs, cfg)
	fs.Parse(args)

	stream := exporting.NewStream()
	recorder := exporting.NewRecorder(cfg.UUID, cfg.Hostname).WithBuffer().WithStream(stream)

	var exporter *exporting.Exporter
	if cfg.OutputFile != "" {
		var err error
		exporter, err = exporting.NewExporter(cfg.OutputFile, cfg.Format)
		if err != nil {
			log.Fatalf("Failed to create exporter: %v", err)
		}
		recorder.WithExporter(exporter)
	}

	tl := timeline.NewTimeline(tokens.NewLedger(), recorder, timeline.DefaultThresholds())
	if err := tl.SetMaxDisplayFrames(cfg.HistoryDepth); err != nil {
		log.Fatalf("Invalid history depth: %v", err)
	}

	engine, err := refresh.NewEngine(defaultConfigs(), 0)
	if err != nil {
		log.Fatalf("Failed to build refresh engine: %v", err)
	}

	ctx := &CmdContext{
		Config:   cfg,
		Timeline: tl,
		Engine:   engine,
		Recorder: recorder,
		Stream:   stream,
		Exporter: exporter,
	}

	cleanup := func() {
		if exporter != nil {
			if err := exporter.Close(); err != nil {
				log.Printf("Failed to close exporter: %v", err)
			}
		}
		stream.Close()
	}

	return ctx, cleanup
}

// defaultConfigs is the simulated panel: 60/90/120Hz in one config group.
func defaultConfigs() []refresh.RefreshRate {
	rates := []timing.Fps{60, 90, 120}
	configs := make([]refresh.RefreshRate, len(rates))
	for i, fps := range rates {
		configs[i] = refresh.RefreshRate{
			ConfigID:    i,
			VsyncPeriod: fps.Period(),
			ConfigGroup: 0,
			Fps:         fps,
		}
	}
	return configs
}

// frameDriver pushes synthetic frames through the timeline: a predicted
// triple per frame, with a configurable chance of the producer running one
// vsync long.
type frameDriver struct {
	tl         *timeline.Timeline
	tracker    *usage.Tracker
	rng        *rand.Rand
	fps        timing.Fps
	jankChance float64
	base       timing.Nanos
	frame      int
}

func newFrameDriver(ctx *CmdContext) *frameDriver {
	seed := ctx.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &frameDriver{
		tl:         ctx.Timeline,
		tracker:    usage.NewTracker("app#0"),
		rng:        rand.New(rand.NewSource(seed)),
		fps:        timing.Fps(ctx.Config.Fps),
		jankChance: ctx.Config.JankChance,
		base:       timing.Now(),
	}
}

// DriveFrame runs one display refresh end to end: issue tokens, queue the
// app's frame, arm and present the display frame, signal the fence.
func (d *frameDriver) DriveFrame() {
	period := d.fps.Period()
	start := d.base + timing.Nanos(d.frame)*period
	d.frame++

	appPredictions := timing.TimelineItem{
		Start:   start,
		End:     start + period/2,
		Present: start + period,
	}
	displayPredictions := timing.TimelineItem{
		Start:   start + period/2,
		End:     start + period*3/4,
		Present: start + period,
	}
	appToken := d.tl.Tokens().Issue(appPredictions)
	displayToken := d.tl.Tokens().Issue(displayPredictions)

	late := d.rng.Float64() < d.jankChance
	finish := start + period/2
	presentAt := start + period
	if late {
		finish += period
		presentAt += period
	}

	sf := d.tl.CreateSurfaceFrame(appToken, 1234, 1000, d.tracker.Name(), "app window")
	sf.SetActualQueueTime(start + period/4)
	sf.SetAcquireFenceTime(finish)
	sf.SetRenderRate(d.fps)
	sf.SetPresentState(timing.Presented, 0)

	d.tl.SetWakeUp(displayToken, start+period/2, d.fps)
	d.tl.AddSurfaceFrame(sf)

	fence := timeline.NewSoftwareFence()
	displayEnd := start + period*3/4
	if late {
		displayEnd += period
	}
	d.tl.SetPresent(displayEnd, fence)
	fence.Signal(presentAt)
	d.tl.FlushPending()

	d.tracker.RecordPresent(presentAt, presentAt, usage.BufferUpdate)
}

// LayerRequirements derives the simulated layer's current selection input.
func (d *frameDriver) LayerRequirements(now timing.Nanos) []refresh.LayerRequirement {
	vote := d.tracker.Vote(now)
	return []refresh.LayerRequirement{{
		Name:       d.tracker.Name(),
		OwnerUID:   1000,
		Vote:       vote.Type,
		DesiredFps: vote.Fps,
		Weight:     1.0,
		Focused:    true,
	}}
}
