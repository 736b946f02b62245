// Package linesort sorts line-oriented text files that do not fit in memory
// using an external merge sort with bounded RAM usage.
//
// The sort runs in three strictly sequential stages:
//
//  1. Split: the source is read once and cut into raw chunk files of about
//     the configured chunk size (default 100 MiB), always at line boundaries.
//  2. Sort: each chunk is memory-mapped, its lines are sorted byte-wise and
//     written to a sorted chunk, zstd-compressed with WithChunkCompression;
//     the raw chunk is deleted. Chunks are independent, so WithWorkers sorts
//     several at once.
//  3. Merge: all sorted chunks are merged through small per-chunk read-ahead
//     buffers sized from a global budget (default 500 MiB) into the result.
//
// Lines are compared as raw bytes (bytes.Compare); there is no locale
// collation or case folding. Duplicate lines are kept.
//
// # Basic Usage
//
//	res, err := linesort.SortFile(ctx, "data.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Path) // data_Sorted.txt
//
// Checking a file:
//
//	stats, err := linesort.Verify("data_Sorted.txt")
//	if errors.Is(err, sorterrors.ErrUnsortedOutput) {
//	    // not sorted
//	}
//
// # Package Structure
//
//   - Public API: sorter.go (NewSorter, Sort, SortFile, State), digest.go (Verify)
//   - Configuration: sort_options.go (SortOption, With* functions)
//   - Stages: splitter.go, chunk_sorter.go, merger.go, chunk_reader.go
//   - Chunk compression: chunk_codec.go (zstd encoder and decoder settings)
//   - File naming: chunk_files.go (chunk names, ResultPath, merge buffer sizing)
//   - Errors: errors/ (sentinels, StageError)
//   - Platform: fadvise_*.go, reserve_*.go (OS-specific I/O hints)
package linesort
