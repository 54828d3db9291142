// Package pipeline implements the per-contig worker (4.F): parse,
// filter, annotate, dedup, and emit, fanned out one goroutine per
// contig up to a configurable core limit (component F).
package pipeline

import (
	"strings"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/Schaudge/scrnatag/classify"
	"github.com/Schaudge/scrnatag/umi"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

var (
	tagHI = sam.NewTag("HI")
	tagCB = sam.NewTag("CB")
	tagUR = sam.NewTag("UR")
	tagUY = sam.NewTag("UY")
	tagGE = sam.NewTag("GE")
)

// Config holds the per-run options a contig worker consults, mirroring
// spec.md §6's CLI surface.
type Config struct {
	MapQThreshold int
	SaveLQ        bool
	SaveDup       bool
	UMIOn         bool
}

// ContigResult is everything one contig worker produces: its metrics,
// its classifier counters, and (in UMI mode) the per-(barcode,gene)
// UMI histogram to be corrected by 4.G once every input BAM has been
// scanned for this contig.
type ContigResult struct {
	Contig    string
	Metrics   Metrics
	Counters  classify.Counters
	Histogram *umi.Histogram     // nil in no-UMI mode
	ReadCount map[string]int     // barcode|gene -> read count, no-UMI mode only
}

// ProcessContig runs steps 1-10 of 4.F over every record iter yields,
// writing surviving records to w in input order (spec.md §5: "the
// emitted shard preserves the input order of records").
func ProcessContig(contig string, iter bamio.RecordIterator, index *annotation.Index, classifier *classify.Classifier, cfg Config, w *bamio.Writer) (*ContigResult, error) {
	result := &ContigResult{Contig: contig}
	fps := newFingerprintSet()
	if cfg.UMIOn {
		result.Histogram = umi.NewHistogram()
	} else {
		result.ReadCount = map[string]int{}
	}

	for iter.Next() {
		r := iter.Record()

		// Step 1: secondary alignment (HI > 1) is skipped entirely -
		// not counted, not emitted.
		if hi, ok := bamio.GetInt(r, tagHI); ok && hi > 1 {
			continue
		}

		// Step 2.
		result.Metrics.incTotal()

		// Step 3: lift qname fields into tags, truncate qname.
		parsed := ParseQname(r.Name)
		if parsed.HasBarcode {
			setTag(r, tagCB, parsed.Barcode)
		}
		if parsed.HasUMI {
			setTag(r, tagUR, parsed.UMI)
			if parsed.UMIQual != "" {
				setTag(r, tagUY, parsed.UMIQual)
			}
		}
		r.Name = BaseQname(r.Name)

		// Step 4: mapping-quality filter.
		if int(r.MapQ) < cfg.MapQThreshold {
			if cfg.SaveLQ {
				bamio.MarkQCFail(r)
				if err := w.Write(r); err != nil {
					return result, err
				}
			}
			continue
		}

		// Step 5.
		result.Metrics.incFiltered()

		// Step 6: locus-function classification (4.D).
		blocks := bamio.AlignmentBlocks(r)
		// r.Pos is 0-based; the annotation index and AlignmentBlocks
		// both use 1-based coordinates (r.End() is already a 1-based
		// inclusive end, since it equals the 0-based Pos plus the
		// total aligned length).
		refName := contig
		if r.Ref != nil {
			refName = r.Ref.Name()
		}
		genes := index.Query(refName, r.Pos+1, r.End())
		classifier.Classify(r, blocks, r.Flags&sam.Reverse != 0, genes)

		gene, hasGene := bamio.GetString(r, tagGE)
		if !hasGene {
			if err := w.Write(r); err != nil {
				return result, err
			}
			continue
		}

		// Step 7.
		result.Metrics.incAnnotated()

		// Step 8: dedup.
		isDup := false
		canonicalUMI := ""
		if cfg.UMIOn {
			if parsed.HasUMI && strings.IndexByte(parsed.UMI, 'N') >= 0 {
				continue // discard reads with an 'N' in the UMI
			}
			key := umi.Key(parsed.Barcode, gene)
			count := result.Histogram.Add(key, parsed.UMI)
			isDup = count > 1
			canonicalUMI = parsed.UMI
		} else {
			fp := Fingerprint(r, parsed.Barcode)
			isDup = !fps.addIfAbsent(fp)
		}

		if isDup {
			result.Metrics.incDuplicate()
			if !cfg.SaveDup {
				continue
			}
			bamio.MarkDuplicate(r)
			if cfg.UMIOn && canonicalUMI != "" {
				setTag(r, sam.NewTag("UB"), canonicalUMI)
			}
		} else {
			result.Metrics.incUnique()
		}

		// Step 9: read-count bookkeeping (no-UMI mode only; UMI mode's
		// counts live in the histogram until 4.G runs).
		if !cfg.UMIOn {
			result.ReadCount[umi.Key(parsed.Barcode, gene)]++
		}

		// Step 10.
		if err := w.Write(r); err != nil {
			return result, err
		}
	}
	if err := iter.Err(); err != nil {
		return result, err
	}
	result.Counters = classifier.Counters().Snapshot()
	return result, nil
}

func setTag(r *sam.Record, tag sam.Tag, val string) {
	if err := bamio.SetString(r, tag, val); err != nil {
		log.Error.Printf("pipeline: %s: failed to set tag %s: %v", r.Name, tag, err)
	}
}
