package main

import (
	"fmt"
	"os"

	"FrameTimeline/pkg/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "simulate", "sim":
		cmd.Simulate(args)
	case "replay", "rp":
		cmd.Replay(args)
	case "serve", "s":
		cmd.Serve(args)
	case "graph", "g":
		cmd.Graph(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`FrameTimeline - frame timing tracker and refresh-rate selector

Usage:
  ftl <command> [flags]

Commands:
  simulate, sim   Drive synthetic display frames through the timeline
  replay, rp      Replay frame events from a record file
  serve, s        Start the HTTP/websocket front end
  graph, g        Generate charts from exported frame records

Simulation Flags:
  -frames int          Number of display frames to drive (default: 120)
  -fps float           Display refresh rate (default: 60)
  -jank-chance float   Probability of injecting a late frame (default: 0.1)
  -seed int            Random seed (0 = time-based)
  -depth int           Display frame history depth (default: 64)
  -filter string       Dump filter: -all or -jank (default: -all)

Output Flags:
  -format string       Output format: jsonl, parquet, csv, tsv (default: jsonl)
  -output string       Output file path
  -input string        Input record file path (replay)

Graph Flags:
  -graphs              Generate graphs after a run
  -graph-dir string    Graph output directory

Serve Flags:
  -port int            HTTP server port (default: 8080)
  -interval int        Background frame interval in ms (default: 100)

Examples:
  # Simulate two seconds of 90Hz with 20% late frames
  ftl simulate -frames 180 -fps 90 -jank-chance 0.2 -output frames.jsonl

  # Janky frames only
  ftl simulate -filter -jank

  # Replay recorded events from parquet
  ftl replay -input events.parquet -output replayed.jsonl

  # HTTP server with live stream on /stream
  ftl serve -port 9090 -interval 16

  # Generate charts
  ftl graph -output graphs/ frames.jsonl
`)
}
