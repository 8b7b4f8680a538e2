package cmd

import (
	"fmt"
	"log"

	"FrameTimeline/pkg/exporting"
	"FrameTimeline/pkg/timeline"
	"FrameTimeline/pkg/timing"
	"FrameTimeline/pkg/utils"
)

// Replay loads frame events from a record file and feeds them through the
// timeline. Each event record describes one display refresh with a single
// producer frame:
//
//	layer, uid, fps,
//	predicted_start_ns, predicted_end_ns, predicted_present_ns,
//	queue_ns, acquire_ns, wakeup_ns, finish_ns, present_ns, dropped
func Replay(args []string) {
	ctx, cleanup := InitCmd("replay", args)
	defer cleanup()
	cfg := ctx.Config

	if cfg.InputFile == "" {
		log.Fatal("Input file required. Usage: ftl replay -input <event-file>")
	}

	events, err := exporting.LoadRecords(cfg.InputFile)
	if err != nil {
		log.Fatalf("Failed to load events: %v", err)
	}
	log.Printf("Replaying %d frame events from %s", len(events), cfg.InputFile)

	for _, ev := range events {
		replayEvent(ctx, ev)
	}
	ctx.Timeline.FlushPending()

	fmt.Print(ctx.Timeline.ParseArgs([]string{cfg.DumpFilter}))
	log.Printf("Recorded %d observations", ctx.Recorder.Count())

	if ctx.Exporter != nil {
		if err := ctx.Exporter.Flush(); err != nil {
			log.Printf("Failed to flush exporter: %v", err)
		}
		log.Printf("Exported records to %s", ctx.Exporter.Path())
	}
}

func replayEvent(ctx *CmdContext, ev exporting.Record) {
	tl := ctx.Timeline

	predictions := timing.TimelineItem{
		Start:   utils.ToInt64(ev["predicted_start_ns"]),
		End:     utils.ToInt64(ev["predicted_end_ns"]),
		Present: utils.ToInt64(ev["predicted_present_ns"]),
	}
	fps := timing.Fps(utils.ToFloat64(ev["fps"]))
	if !fps.IsValid() {
		fps = 60
	}

	appToken := tl.Tokens().Issue(predictions)
	displayToken := tl.Tokens().Issue(predictions)

	layer := utils.ToString(ev["layer"])
	if layer == "" {
		layer = "unknown"
	}
	sf := tl.CreateSurfaceFrame(appToken, 0, uint32(utils.ToInt64(ev["uid"])), layer, layer)
	if t := utils.ToInt64(ev["queue_ns"]); t != 0 {
		sf.SetActualQueueTime(t)
	}
	if t := utils.ToInt64(ev["acquire_ns"]); t != 0 {
		sf.SetAcquireFenceTime(t)
	}
	sf.SetRenderRate(fps)

	state := timing.Presented
	if b, ok := ev["dropped"].(bool); ok && b {
		state = timing.Dropped
	}
	sf.SetPresentState(state, 0)

	tl.SetWakeUp(displayToken, utils.ToInt64(ev["wakeup_ns"]), fps)
	tl.AddSurfaceFrame(sf)
	tl.SetPresent(utils.ToInt64(ev["finish_ns"]), timeline.SignaledFence(utils.ToInt64(ev["present_ns"])))
}
