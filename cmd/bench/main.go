// Bench is a benchmarking tool for measuring linesort throughput and memory
// usage on synthetic data.
//
// Usage:
//
//	go run ./cmd/bench -size 1024 -chunk 64 -workers 4
//
// Flags:
//
//	-size      Size of the generated source file in MiB (default: 256)
//	-chunk     Chunk size in MiB (default: 100)
//	-memory    Merge buffer budget in MiB (default: 500)
//	-workers   Number of parallel chunk sorters (default: 1)
//	-seed      Generator seed (default: 1)
//	-dir       Directory for the source, chunks and result (default: temp dir)
//	-verify    Verify the merged output (default: true)
//	-compress  Store sorted chunks zstd-compressed (default: false)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/linesort"
	"github.com/tamirms/linesort/internal/synth"
)

const mib = 1024 * 1024

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

func main() {
	sizeFlag := flag.Int64("size", 256, "source size in MiB")
	chunkFlag := flag.Int64("chunk", linesort.DefaultChunkSize/mib, "chunk size in MiB")
	memoryFlag := flag.Int64("memory", linesort.DefaultMemoryBudget/mib, "merge buffer budget in MiB")
	workersFlag := flag.Int("workers", 1, "number of parallel chunk sorters")
	seedFlag := flag.Uint("seed", 1, "generator seed")
	dirFlag := flag.String("dir", "", "working directory (default: new temp dir)")
	verifyFlag := flag.Bool("verify", true, "verify merged output")
	compressFlag := flag.Bool("compress", false, "zstd-compress sorted chunks")
	debugFlag := flag.Bool("debug", false, "log pipeline events to stderr")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sort phase only)")
	flag.Parse()

	dir := *dirFlag
	if dir == "" {
		tmp, err := os.MkdirTemp("", "linesort-bench-")
		if err != nil {
			fmt.Printf("Failed to create temp dir: %v\n", err)
			return
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	}
	source := filepath.Join(dir, "bench.txt")

	fmt.Printf("Generating %d MiB of synthetic lines...\n", *sizeFlag)
	genStart := time.Now()
	f, err := os.Create(source)
	if err != nil {
		fmt.Printf("Failed to create source: %v\n", err)
		return
	}
	written, err := synth.New(uint32(*seedFlag)).WriteLines(f, *sizeFlag*mib)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Printf("Failed to generate source: %v\n", err)
		return
	}
	genDuration := time.Since(genStart)

	var logger *slog.Logger
	if *debugFlag {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses.
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		pf, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = pf.Close() }()
		if err := pprof.StartCPUProfile(pf); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Sorting...")
	res, err := linesort.SortFile(context.Background(), source,
		linesort.WithChunkSize(*chunkFlag*mib),
		linesort.WithMemoryBudget(*memoryFlag*mib),
		linesort.WithWorkers(*workersFlag),
		linesort.WithVerify(*verifyFlag),
		linesort.WithChunkCompression(*compressFlag),
		linesort.WithLogger(logger),
	)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	close(done)

	if err != nil {
		fmt.Printf("Sort failed: %v\n", err)
		return
	}

	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════╗\n")
	fmt.Printf("║ Metric              ║ Value            ║\n")
	fmt.Printf("╠═════════════════════╬══════════════════╣\n")
	fmt.Printf("║ Source size         ║ %8.1f MiB     ║\n", float64(written)/mib)
	fmt.Printf("║ Records             ║ %12d     ║\n", res.Records)
	fmt.Printf("║ Chunks              ║ %12d     ║\n", res.Chunks)
	fmt.Printf("║ Workers             ║ %12d     ║\n", *workersFlag)
	fmt.Printf("║ Generate time       ║ %8.2f sec     ║\n", genDuration.Seconds())
	fmt.Printf("║ Sort time           ║ %8.2f sec     ║\n", res.Duration.Seconds())
	fmt.Printf("║ Sort throughput     ║ %8.2f MiB/s   ║\n", float64(written)/mib/res.Duration.Seconds())
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB      ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB      ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("║ Checksum            ║ %016x ║\n", res.Checksum)
	fmt.Printf("╚═════════════════════╩══════════════════╝\n")
}
