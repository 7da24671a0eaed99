// pakview is a CLI utility for inspecting game package archives and
// pre-warming the decoded-image cache through the load pipeline.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/pakview/internal/config"
	"github.com/Faultbox/pakview/internal/diskcache"
	"github.com/Faultbox/pakview/internal/imagemeta"
	"github.com/Faultbox/pakview/internal/loader"
	"github.com/Faultbox/pakview/internal/logger"
	"github.com/Faultbox/pakview/pkg/pak"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "probe":
		cmdProbe(args)
	case "warm":
		cmdWarm(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pakview - game package archive utility

Usage:
  pakview <command> [options]

Commands:
  info <file.pak>                 Show archive information
  list <file.pak> [pattern]       List entries (optional glob pattern)
  probe <file.pak> <entry>        Validate an image entry and print its dimensions
  warm <file.pak|dir> [...]       Pre-decode thumbnails into the disk cache

Examples:
  pakview info mods/author.pack.12.pak
  pakview list mods/author.pack.12.pak "*.png"
  pakview probe mods/author.pack.12.pak previews/scene1.jpg
  pakview warm -size 256 ./mods`)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pakview info <file.pak>")
		os.Exit(1)
	}

	archive, err := pak.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	entries := archive.List()

	extCount := make(map[string]int)
	images := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		if isImagePath(e) {
			images++
		}
	}

	fmt.Printf("Archive: %s\n", args[0])
	fmt.Printf("Size:    %.2f MB\n", float64(archive.FileSize())/(1024*1024))
	fmt.Printf("Entries: %d (%d images)\n", len(entries), images)
	fmt.Println()
	fmt.Println("Entries by type:")

	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].count > stats[j].count
	})

	for _, s := range stats {
		fmt.Printf("  %-10s %d\n", s.ext, s.count)
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N entries (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pakview list <file.pak> [pattern]")
		os.Exit(1)
	}

	archive, err := pak.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	entries := archive.List()
	sort.Strings(entries)

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, e := range entries {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(e))
			if !matched && !strings.Contains(e, pattern) {
				continue
			}
		}
		fmt.Println(e)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d entries matched)\n", count)
	}
}

func cmdProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	budget := fs.Int("budget", loader.DefaultProbeBudget, "Header probe byte budget")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: pakview probe <file.pak> <entry>")
		os.Exit(1)
	}

	archive, err := pak.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	entry := fs.Arg(1)
	header, err := archive.ReadHeader(entry, *budget)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !imagemeta.IsImageHeader(header) {
		fmt.Printf("%s: not a PNG or JPEG entry\n", entry)
		os.Exit(1)
	}

	info, _ := archive.Stat(entry)
	if w, h, ok := imagemeta.ProbeDimensions(header); ok {
		fmt.Printf("%s: %d x %d (%d bytes)\n", entry, w, h, info.Size)
	} else {
		fmt.Printf("%s: valid image header, dimensions not found in first %d bytes\n", entry, *budget)
	}
}

func cmdWarm(args []string) {
	fs := flag.NewFlagSet("warm", flag.ExitOnError)
	size := fs.Int("size", 256, "Thumbnail target size in pixels")
	loads := fs.Int("loads", 0, "Max concurrent loads (0 = auto)")
	handles := fs.Int("handles", 0, "Max open handles per archive (0 = auto)")
	cacheDir := fs.String("cache-dir", "", "Decoded-image cache directory")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pakview warm [options] <file.pak|dir> [...]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *loads > 0 {
		cfg.Pipeline.MaxConcurrentLoads = *loads
	}
	if *handles > 0 {
		cfg.Pipeline.MaxHandlesPerArchive = *handles
	}
	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cache, err := diskcache.New(cfg.CacheDir(), logger.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	exec := loader.NewLoopExecutor()
	defer exec.Close()

	pipe := loader.New(loader.Options{
		MaxConcurrentLoads:   cfg.Pipeline.MaxConcurrentLoads,
		MaxHandlesPerArchive: cfg.Pipeline.MaxHandlesPerArchive,
		ProbeBudget:          cfg.Pipeline.ProbeBudgetBytes,
		HandleTimeout:        cfg.Pipeline.HandleTimeout.Std(),
		ReleaseTimeout:       cfg.Pipeline.ReleaseTimeout.Std(),
		Cache:                cache,
		Executor:             exec,
		Logger:               logger.Log,
	})
	pipe.Start()
	defer pipe.Close()

	results := make(chan loader.Result, 1024)
	submitted := 0
	for _, archivePath := range collectArchives(fs.Args()) {
		n, err := warmArchive(pipe, archivePath, *size, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", archivePath, err)
			continue
		}
		submitted += n
	}

	ok, failed := 0, 0
	for i := 0; i < submitted; i++ {
		r := <-results
		if r.OK {
			ok++
			pipe.Refs().Release(r.Texture.ID)
		} else {
			failed++
			fmt.Fprintf(os.Stderr, "  %s!%s: %s\n", r.ArchivePath, r.EntryPath, r.Kind)
		}
	}

	fmt.Printf("Warmed %d thumbnails into %s (%d failed)\n", ok, cache.Dir(), failed)
}

// warmArchive submits a thumbnail job for every image entry of one archive.
func warmArchive(pipe *loader.Pipeline, archivePath string, size int, results chan<- loader.Result) (int, error) {
	archive, err := pak.Open(archivePath)
	if err != nil {
		return 0, err
	}
	entries := archive.List()
	archive.Close()

	sink := func(r loader.Result) { results <- r }

	n := 0
	for _, entry := range entries {
		if !isImagePath(entry) {
			continue
		}
		pipe.SubmitThumbnail(&loader.Job{
			ArchivePath:  archivePath,
			EntryPath:    entry,
			TargetWidth:  size,
			TargetHeight: size,
			Sink:         sink,
		})
		n++
	}
	return n, nil
}

// collectArchives expands arguments into archive file paths, walking
// directories for package extensions.
func collectArchives(args []string) []string {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", arg, err)
			continue
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if isArchivePath(path) {
				paths = append(paths, path)
			}
			return nil
		})
	}
	return paths
}

func isArchivePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pak", ".zip", ".var":
		return true
	}
	return false
}

func isImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
