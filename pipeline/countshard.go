package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Schaudge/scrnatag/umi"
)

// WriteCountShard writes this contig's final barcode\tgene\tumi_count
// lines (plus an optional trailing read_count column in scrna mode),
// per spec.md §6 and §4.F step 9/10. In UMI mode, counts come from the
// post-correction histogram (zeroed entries are merged-away UMIs and
// are excluded, per spec.md invariant 2: umi_count equals the number
// of surviving UMIs after correction). In no-UMI mode, counts come
// from the per-key read tally built during step 9.
func WriteCountShard(result *ContigResult, path string, scrna bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pipeline: creating count shard %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if result.Histogram != nil {
		return writeUMICounts(w, result.Histogram, scrna)
	}
	return writeReadCounts(w, result.ReadCount)
}

func writeUMICounts(w *bufio.Writer, hist *umi.Histogram, scrna bool) error {
	keys := hist.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		barcode, gene, ok := splitKey(key)
		if !ok {
			continue
		}
		counts := hist.Get(key)
		umiCount := 0
		readCount := 0
		for _, c := range counts {
			if c > 0 {
				umiCount++
			}
			readCount += c
		}
		if umiCount == 0 {
			continue
		}
		if scrna {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", barcode, gene, umiCount, readCount); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", barcode, gene, umiCount); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeReadCounts(w *bufio.Writer, counts map[string]int) error {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		barcode, gene, ok := splitKey(key)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", barcode, gene, counts[key]); err != nil {
			return err
		}
	}
	return nil
}

func splitKey(key string) (barcode, gene string, ok bool) {
	i := strings.LastIndex(key, "|")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
