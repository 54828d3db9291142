package bamio

import (
	"context"
	"os"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
)

// ensureIndex loads the .bai index for path, rebuilding it from the BAM
// file itself if it is missing or older than the BAM file (4.E "Index
// management": a stale or absent index is rebuilt, not treated as an
// error).
func ensureIndex(ctx context.Context, path string) (*bam.Index, error) {
	idxPath := path + ".bai"
	bamInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if idxInfo, err := os.Stat(idxPath); err == nil && idxInfo.ModTime().After(bamInfo.ModTime()) {
		if idx, err := readIndex(idxPath); err == nil {
			return idx, nil
		}
		log.Printf("bamio: %s is present but unreadable, rebuilding", idxPath)
	}
	return buildIndex(ctx, path, idxPath)
}

func readIndex(idxPath string) (*bam.Index, error) {
	f, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bam.ReadIndex(f)
}

// buildIndex scans the BAM file sequentially and writes a fresh .bai
// next to it, then reloads it. Building is a sequential, single pass
// over the file; it does not require an existing index.
func buildIndex(ctx context.Context, path, idxPath string) (*bam.Index, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := bam.NewReader(f, 0)
	if err != nil {
		return nil, err
	}
	out, err := os.Create(idxPath)
	if err != nil {
		return nil, err
	}
	if err := bam.WriteIndex(out, r); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	log.Printf("bamio: built index %s in %s", idxPath, time.Since(start))
	return readIndex(idxPath)
}
