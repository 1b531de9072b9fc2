package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"page-dewarp/internal/batch"
	"page-dewarp/internal/config"
	"page-dewarp/internal/cv"
	"page-dewarp/internal/page"
)

func main() {
	var (
		verbose    bool
		configPath string
		method     string
		fine       bool
		deskew     bool
		jobs       int
		dryRun     bool
		out        batch.Output
	)
	flag.BoolVar(&verbose, "verbose", false, "Print debug information")
	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.StringVar(&method, "method", "", "Dewarping method: kim2014 or meng2014")
	flag.BoolVar(&fine, "fine", false, "Redraw glyphs onto straight baselines after dewarping")
	flag.BoolVar(&deskew, "deskew", false, "Rotate text lines level before dewarping")
	flag.IntVar(&jobs, "jobs", 1, "Number of images processed in parallel")
	flag.BoolVar(&dryRun, "dry-run", false, "Do not write dewarped output images")
	flag.StringVar(&out.Dir, "output-dir", "", "Output directory for processed images")
	flag.BoolVar(&out.Overwrite, "overwrite", false, "Overwrite original images")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] image_files...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(2)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			cfg.Method = method
		case "fine":
			cfg.Fine = fine
		case "deskew":
			cfg.Deskew = deskew
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	// Expand directories
	var inputFiles []string
	for _, file := range files {
		if !batch.IsDir(file) {
			inputFiles = append(inputFiles, file)
			continue
		}
		if !out.Overwrite && out.Dir == "" {
			fmt.Fprintf(os.Stderr, "ERROR: When passing a folder, provide --output-dir or --overwrite\n")
			os.Exit(2)
		}
		dirFiles, err := batch.ExpandDirectory(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to list directory '%s': %v\n", file, err)
			continue
		}
		inputFiles = append(inputFiles, dirFiles...)
	}

	proc := page.New(cfg, log)
	total := len(inputFiles)

	var (
		g     errgroup.Group
		tally batch.Tally
	)
	g.SetLimit(max(jobs, 1))
	for idx, filename := range inputFiles {
		g.Go(func() error {
			status := fmt.Sprintf("[%d/%d] ", idx+1, total)
			defer func() {
				if r := recover(); r != nil {
					tally.Skip()
					fmt.Fprintf(os.Stderr, "%sWARNING: Skipping '%s': %v\n", status, filename, r)
				}
			}()

			written, err := processImage(proc, filename, out, dryRun)
			if err != nil {
				tally.Skip()
				fmt.Fprintf(os.Stderr, "%sWARNING: Skipping '%s': %v\n", status, filename, err)
				return nil
			}
			tally.Done()
			if dryRun {
				fmt.Printf("%swould dewarp %d page(s) (%s)\n", status, len(written), filepath.Base(filename))
				return nil
			}
			fmt.Printf("%sdewarped %d page(s) -> %s\n", status, len(written), strings.Join(written, ", "))
			return nil
		})
	}
	g.Wait()

	if code := tally.ExitCode(); code != 0 {
		_, skipped := tally.Counts()
		fmt.Fprintf(os.Stderr, "ERROR: All %d image(s) skipped\n", skipped)
		os.Exit(code)
	}
}

// processImage dewarps one file and returns the paths it wrote, or the
// paths it would write on a dry run.
func processImage(proc *page.Processor, filename string, out batch.Output, dryRun bool) ([]string, error) {
	img, err := cv.Read(filename)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	pages, err := proc.Dewarp(img)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range pages {
			p.Close()
		}
	}()

	var written []string
	for i, p := range pages {
		outPath, err := out.Path(filename, i, len(pages))
		if err != nil {
			return written, err
		}
		if !dryRun {
			if err := cv.Write(outPath, p); err != nil {
				return written, err
			}
			slog.Debug("wrote dewarped page", "path", outPath)
		}
		written = append(written, outPath)
	}
	return written, nil
}

