package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// bgzfEOF is the BGZF end-of-file marker block every well-formed BAM
// ends with, per the SAM/BAM spec. Grounded on the teacher's own
// magicBlock constant (encoding/bam/shardedbam.go).
var bgzfEOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
	0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// MergeShardBAMs concatenates per-contig shard BAMs into one final BAM
// by raw BGZF block splicing, per spec.md §4.F ("Merging"): every
// shard but the last has its terminal EOF block trimmed, and each
// shard's presence of that EOF block is validated before trimming.
// shardPaths must already be in final output order (spec.md §5: final
// BAM order equals the order contigs were returned by the reader).
func MergeShardBAMs(shardPaths []string, outPath string) error {
	if len(shardPaths) == 0 {
		return fmt.Errorf("pipeline: no shards to merge")
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("pipeline: creating merged BAM: %w", err)
	}
	defer out.Close()

	for i, path := range shardPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("pipeline: reading shard %s: %w", path, err)
		}
		if !bytes.HasSuffix(data, bgzfEOF) {
			return fmt.Errorf("pipeline: shard %s missing BGZF EOF marker", path)
		}
		last := i == len(shardPaths)-1
		if !last {
			data = data[:len(data)-len(bgzfEOF)]
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("pipeline: writing merged BAM: %w", err)
		}
	}
	return nil
}

// MergeCountFiles appends each shard's barcode|gene count lines to a
// single expression file, in shard order, per spec.md §4.F: "Expression-
// count shards are concatenated by simple file append."
func MergeCountFiles(shardPaths []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("pipeline: creating expression file: %w", err)
	}
	defer out.Close()

	for _, path := range shardPaths {
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("pipeline: reading count shard %s: %w", path, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("pipeline: appending count shard %s: %w", path, err)
		}
	}
	return nil
}
