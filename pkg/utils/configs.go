package utils

import (
	"flag"
	"os"

	"github.com/google/uuid"
)

// Config carries the settings shared by the ftl subcommands. Each subcommand
// builds its own FlagSet over the same struct and ignores what it doesn't use.
type Config struct {
	Frames       int
	Fps          float64
	JankChance   float64
	Seed         int64
	HistoryDepth int
	Format       string
	OutputFile   string
	InputFile    string
	Graphs       bool
	GraphDir     string
	Port         int
	Interval     int
	DumpFilter   string
	UUID         string
	Hostname     string
}

func NewConfig() *Config {
	return &Config{
		Frames:       120,
		Fps:          60,
		HistoryDepth: 64,
		Format:       "jsonl",
		Port:         8080,
		Interval:     100,
		UUID:         uuid.NewString(),
		Hostname:     GetHostname(),
	}
}

// GetFlags registers the shared flags on the subcommand's FlagSet.
func GetFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "Number of display frames to drive")
	fs.Float64Var(&cfg.Fps, "fps", cfg.Fps, "Display refresh rate")
	fs.Float64Var(&cfg.JankChance, "jank-chance", 0.1, "Probability of injecting a late frame")
	fs.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 = time-based)")
	fs.IntVar(&cfg.HistoryDepth, "depth", cfg.HistoryDepth, "Display frame history depth")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Output format")
	fs.StringVar(&cfg.OutputFile, "output", "", "Output file path")
	fs.StringVar(&cfg.InputFile, "input", "", "Input record file path")
	fs.BoolVar(&cfg.Graphs, "graphs", false, "Generate graphs")
	fs.StringVar(&cfg.GraphDir, "graph-dir", "", "Graph output directory")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.IntVar(&cfg.Interval, "interval", cfg.Interval, "Fence poll interval (ms)")
	fs.StringVar(&cfg.DumpFilter, "filter", "-all", "Dump filter (-all or -jank)")
}

func GetHostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
