package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/Schaudge/scrnatag/classify"
	"github.com/Schaudge/scrnatag/umi"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"golang.org/x/sync/errgroup"
)

// tooManyContigsThreshold is spec.md §4.F's ">10,000" trigger for
// falling back to a single whole-file worker instead of per-contig
// fan-out.
const tooManyContigsThreshold = 10000

// RunOptions configures one end-to-end pipeline run over a single
// opened input.
type RunOptions struct {
	Config
	ClassifyOptions classify.Options
	Cores           int    // 0 means runtime.NumCPU()
	ShardDir        string // directory for per-contig shard BAMs
	UMIMinNum       int
	UMIMismatch     int
}

// Run executes 4.F end to end over reader: per-contig fan-out (or
// whole-file fallback), then, for UMI-mode contigs, the 4.G correction
// and re-emit pass. It returns one ContigResult per contig processed
// plus the merged UMI-correction metrics.
func Run(ctx context.Context, reader *bamio.Reader, index *annotation.Index, opts RunOptions) ([]*ContigResult, *umi.Metrics, error) {
	cores := opts.Cores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	if err := os.MkdirAll(opts.ShardDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("pipeline: creating shard dir: %w", err)
	}

	contigs := reader.Contigs()
	umiMetrics := umi.NewMetrics()

	wholeFile := len(contigs) > tooManyContigsThreshold || cores == 1
	if wholeFile {
		result, err := runSingleWorker(reader, index, opts, umiMetrics, "ALL")
		if err != nil {
			return nil, nil, err
		}
		return []*ContigResult{result}, umiMetrics, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(cores)
	results := make([]*ContigResult, len(contigs))
	for i, c := range contigs {
		i, c := i, c
		g.Go(func() error {
			result, err := runContigWorker(reader, index, opts, umiMetrics, c.Name)
			if err != nil {
				return fmt.Errorf("pipeline: contig %s: %w", c.Name, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// spec.md §7: a per-contig task failure is fatal to the run;
		// partial shards are left for the caller to clean up.
		return nil, nil, err
	}
	return results, umiMetrics, nil
}

func runContigWorker(reader *bamio.Reader, index *annotation.Index, opts RunOptions, umiMetrics *umi.Metrics, contig string) (*ContigResult, error) {
	iter, err := reader.QueryContig(contig)
	if err != nil {
		return nil, err
	}
	return runWorker(reader, index, opts, umiMetrics, contig, iter)
}

func runSingleWorker(reader *bamio.Reader, index *annotation.Index, opts RunOptions, umiMetrics *umi.Metrics, label string) (*ContigResult, error) {
	return runWorker(reader, index, opts, umiMetrics, label, reader.QueryAll())
}

func runWorker(reader *bamio.Reader, index *annotation.Index, opts RunOptions, umiMetrics *umi.Metrics, label string, iter bamio.RecordIterator) (*ContigResult, error) {
	shardPath := filepath.Join(opts.ShardDir, label+".bam")
	w, err := bamio.Create(shardPath, reader.Header())
	if err != nil {
		return nil, err
	}

	classifier := classify.New(opts.ClassifyOptions)
	result, err := ProcessContig(label, iter, index, classifier, opts.Config, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return result, err
	}

	if opts.Config.UMIOn && result.Histogram != nil {
		corrections := umi.Correct(result.Histogram, umi.Options{MinNum: opts.UMIMinNum, Mismatch: opts.UMIMismatch}, umiMetrics)
		if err := reemitWithCorrections(shardPath, reader.Header(), corrections, opts.Config.SaveDup); err != nil {
			return result, err
		}
	}
	return result, nil
}

// reemitWithCorrections implements 4.F's second UMI-mode phase: after
// all input has been scanned for this contig, re-read the shard and
// attach a UB tag carrying the canonical UMI to every duplicate whose
// UMI was corrected, per spec.md §4.F ("attaching a UB tag with the
// canonical UMI on duplicates when save_dup").
func reemitWithCorrections(shardPath string, header *sam.Header, corrections umi.Correction, saveDup bool) error {
	if !saveDup || len(corrections) == 0 {
		return nil
	}
	tmpPath := shardPath + ".corrected"

	bamr, err := bamio.OpenSequential(shardPath)
	if err != nil {
		return err
	}
	defer bamr.Close()

	w, err := bamio.Create(tmpPath, header)
	if err != nil {
		return err
	}

	for {
		r, err := bamr.Read()
		if err != nil {
			break
		}
		barcode, _ := bamio.GetString(r, sam.NewTag("CB"))
		gene, _ := bamio.GetString(r, sam.NewTag("GE"))
		umiVal, hasUMI := bamio.GetString(r, sam.NewTag("UR"))
		if hasUMI {
			key := umi.Key(barcode, gene)
			if keyCorr, ok := corrections[key]; ok {
				if canonical, ok := keyCorr[umiVal]; ok {
					if err := bamio.SetString(r, sam.NewTag("UB"), canonical); err != nil {
						log.Error.Printf("pipeline: %s: failed to set UB tag: %v", r.Name, err)
					}
				}
			}
		}
		if err := w.Write(r); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, shardPath)
}
