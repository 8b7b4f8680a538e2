package cmd

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"FrameTimeline/pkg/graphing"
	"FrameTimeline/pkg/utils"
)

// Graph renders HTML charts from an exported record file.
func Graph(args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	var outputDir string
	fs.StringVar(&outputDir, "output", "", "Output directory for graphs")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("Input file required. Usage: ftl graph [flags] <input-file>")
	}

	inputFile := fs.Arg(0)
	if _, err := os.Stat(inputFile); err != nil {
		log.Fatalf("Input file not found: %s", inputFile)
	}

	if outputDir == "" {
		base := filepath.Base(inputFile)
		outputDir = strings.TrimSuffix(base, filepath.Ext(base)) + "_graphs"
	}

	log.Printf("Generating graphs from %s", inputFile)
	if err := graphing.GenerateGraphsFromFile(inputFile, outputDir, utils.GetHostname()); err != nil {
		log.Fatalf("Failed to generate graphs: %v", err)
	}
	log.Printf("Successfully generated graphs in %s", outputDir)
}
