// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
scrnatag annotates and deduplicates a sorted single-cell/spatial RNA-seq
BAM against a GTF/GFF gene model: it tags every alignment with its
locus function and gene, collapses PCR duplicates by cell barcode +
UMI (or, without UMIs, by alignment position + barcode), and emits a merged BAM, a barcode/gene expression table,
and a metrics report.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/Schaudge/scrnatag/classify"
	"github.com/Schaudge/scrnatag/kde"
	"github.com/Schaudge/scrnatag/matrixio"
	"github.com/Schaudge/scrnatag/pipeline"
	"github.com/Schaudge/scrnatag/saturation"
	"github.com/Schaudge/scrnatag/umi"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	inputFlag    = flag.String("i", "", "Input BAM path list, comma-separated (required). Also accepts -I.")
	inputFlagAlt = flag.String("I", "", "Alias for -i")
	outputFlag   = flag.String("o", "", "Output merged BAM path (required). Also accepts -O.")
	outputFlagAlt= flag.String("O", "", "Alias for -o")
	annoFlag     = flag.String("a", "", "Annotation file, .gtf or .gff (required, must exist). Also accepts -A.")
	annoFlagAlt  = flag.String("A", "", "Alias for -a")
	summaryFlag  = flag.String("s", "", "Metrics/summary output path (required). Also accepts -S.")
	summaryFlagAlt = flag.String("S", "", "Alias for -s")
	exprFlag     = flag.String("e", "", "Expression table output path (required). Also accepts -E.")
	exprFlagAlt  = flag.String("E", "", "Alias for -e")
	mapqFlag     = flag.Int("q", 10, "Mapping-quality threshold. Also accepts -Q.")
	mapqFlagAlt  = flag.Int("Q", -1, "Alias for -q")
	coresFlag    = flag.Int("c", 0, "Worker threads (0 = detected cores). Also accepts -C.")
	coresFlagAlt = flag.Int("C", -1, "Alias for -c")

	saveLQ  = flag.Bool("save_lq", false, "Retain low-quality reads, marked QC-fail, instead of dropping them")
	saveDup = flag.Bool("save_dup", false, "Retain duplicate reads, marked duplicate, instead of dropping them")

	annoMode = flag.Int("anno_mode", 0, "Locus-function annotation policy: 0=DROP_SEQ_V1, 1=DROP_SEQ_V2, 2=TENX")

	umiOn       = flag.Bool("umi_on", false, "Enable UMI-based deduplication (default: fingerprint-based)")
	umiMinNum   = flag.Int("umi_min_num", 5, "Keys with at most this many distinct UMIs are left uncorrected")
	umiMismatch = flag.Int("umi_mismatch", 1, "Maximum Hamming distance at which two UMIs merge")

	satFile = flag.String("sat_file", "", "Saturation-sampling output path (requires --umi_on)")

	scrna           = flag.Bool("scrna", false, "Single-cell matrix mode: write a Matrix-Market triplet and a KDE-derived barcode filter")
	noFilterMatrix  = flag.Bool("no_filter_matrix", false, "In scrna mode, skip KDE threshold filtering of the matrix")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Annotate and deduplicate a sorted single-cell/spatial BAM.\n\n")
	flag.PrintDefaults()
}

// firstNonEmpty returns a if non-empty, else b. Used to resolve the
// lower/uppercase flag alias pairs spec.md §6 documents (-i/-I etc).
func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonNegative(a, b int) int {
	if b >= 0 {
		return b
	}
	return a
}

func main() {
	flag.Usage = usage
	flag.Parse()
	shutdown := grail.Init()
	defer shutdown()

	inputPath := firstNonEmpty(*inputFlag, *inputFlagAlt)
	outputPath := firstNonEmpty(*outputFlag, *outputFlagAlt)
	annoPath := firstNonEmpty(*annoFlag, *annoFlagAlt)
	summaryPath := firstNonEmpty(*summaryFlag, *summaryFlagAlt)
	exprPath := firstNonEmpty(*exprFlag, *exprFlagAlt)
	mapq := firstNonNegative(*mapqFlag, *mapqFlagAlt)
	cores := firstNonNegative(*coresFlag, *coresFlagAlt)

	if inputPath == "" || outputPath == "" || annoPath == "" || summaryPath == "" || exprPath == "" {
		log.Error.Printf("scrnatag: -i, -o, -a, -s, and -e are all required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(annoPath); err != nil {
		log.Fatalf("scrnatag: annotation file %s: %v", annoPath, err)
	}
	if *satFile != "" && !*umiOn {
		log.Fatalf("scrnatag: --sat_file requires --umi_on")
	}

	policy := classify.Policy(*annoMode)
	if policy != classify.DropSeqV1 && policy != classify.DropSeqV2 && policy != classify.TenX {
		log.Fatalf("scrnatag: --anno_mode must be 0, 1, or 2 (got %d)", *annoMode)
	}

	ctx := vcontext.Background()
	run(ctx, runConfig{
		inputPaths:     strings.Split(inputPath, ","),
		outputPath:     outputPath,
		annoPath:       annoPath,
		summaryPath:    summaryPath,
		exprPath:       exprPath,
		mapq:           mapq,
		cores:          cores,
		saveLQ:         *saveLQ,
		saveDup:        *saveDup,
		policy:         policy,
		umiOn:          *umiOn,
		umiMinNum:      *umiMinNum,
		umiMismatch:    *umiMismatch,
		satFile:        *satFile,
		scrna:          *scrna,
		noFilterMatrix: *noFilterMatrix,
	})
}

type runConfig struct {
	inputPaths     []string
	outputPath     string
	annoPath       string
	summaryPath    string
	exprPath       string
	mapq           int
	cores          int
	saveLQ         bool
	saveDup        bool
	policy         classify.Policy
	umiOn          bool
	umiMinNum      int
	umiMismatch    int
	satFile        string
	scrna          bool
	noFilterMatrix bool
}

// run drives the whole pipeline: load the annotation, process each
// input BAM's contigs in parallel (4.F), merge the per-contig shards
// (4.F "Merging"), then the serial scrna matrix-filter phase (4.H/4.I)
// that original_source/handleBam/handleBam.cpp runs after the parallel
// phase completes.
func run(ctx context.Context, cfg runConfig) {
	index, err := annotation.Load(ctx, cfg.annoPath)
	if err != nil {
		log.Fatalf("scrnatag: loading annotation %s: %v", cfg.annoPath, err)
	}
	geneIndex := annotation.NewIndex(ctx, index)
	log.Printf("scrnatag: loaded %d genes across %d contigs", geneIndex.NumGenes(), len(geneIndex.Contigs()))

	shardDir, err := os.MkdirTemp("", "scrnatag-shards-")
	if err != nil {
		log.Fatalf("scrnatag: creating shard directory: %v", err)
	}
	defer os.RemoveAll(shardDir)

	var allResults []*pipeline.ContigResult
	var allShardBAMs, allShardCounts []string
	umiMetrics := umi.NewMetrics()
	totalMetrics := pipeline.Metrics{}
	classifyCounters := classify.Counters{}

	for bi, path := range cfg.inputPaths {
		reader, err := bamio.Open(ctx, path)
		if err != nil {
			log.Fatalf("scrnatag: opening %s: %v", path, err)
		}

		results, metrics, err := pipeline.Run(ctx, reader, geneIndex, pipeline.RunOptions{
			Config: pipeline.Config{
				MapQThreshold: cfg.mapq,
				SaveLQ:        cfg.saveLQ,
				SaveDup:       cfg.saveDup,
				UMIOn:         cfg.umiOn,
			},
			ClassifyOptions: classify.Options{
				Policy:              cfg.policy,
				UseStrandInfo:       cfg.policy != classify.TenX,
				AllowMultiGeneReads: cfg.policy == classify.TenX,
			},
			Cores:       cfg.cores,
			ShardDir:    filepath.Join(shardDir, fmt.Sprintf("bam%d", bi)),
			UMIMinNum:   cfg.umiMinNum,
			UMIMismatch: cfg.umiMismatch,
		})
		reader.Close()
		if err != nil {
			log.Fatalf("scrnatag: processing %s: %v", path, err)
		}

		for _, result := range results {
			countPath := filepath.Join(shardDir, fmt.Sprintf("bam%d-%s.counts", bi, result.Contig))
			if err := pipeline.WriteCountShard(result, countPath, cfg.scrna); err != nil {
				log.Fatalf("scrnatag: writing count shard for %s: %v", result.Contig, err)
			}
			allShardBAMs = append(allShardBAMs, filepath.Join(shardDir, fmt.Sprintf("bam%d", bi), result.Contig+".bam"))
			allShardCounts = append(allShardCounts, countPath)
			totalMetrics.Add(result.Metrics)
			classifyCounters.Add(result.Counters)
		}
		umiMetrics.Merge(metrics)
		allResults = append(allResults, results...)
	}

	if err := pipeline.MergeShardBAMs(allShardBAMs, cfg.outputPath); err != nil {
		log.Fatalf("scrnatag: merging shard BAMs: %v", err)
	}
	if err := pipeline.MergeCountFiles(allShardCounts, cfg.exprPath); err != nil {
		log.Fatalf("scrnatag: merging expression shards: %v", err)
	}

	if err := writeMetricsFile(cfg.summaryPath, totalMetrics, classifyCounters, umiMetrics); err != nil {
		log.Fatalf("scrnatag: writing metrics file %s: %v", cfg.summaryPath, err)
	}

	if cfg.satFile != "" {
		if err := writeSaturationFile(cfg.satFile, cfg.policy, allResults); err != nil {
			log.Fatalf("scrnatag: writing saturation file %s: %v", cfg.satFile, err)
		}
	}

	if cfg.scrna {
		if err := writeMatrix(ctx, cfg.outputPath, cfg.exprPath, allResults, cfg.noFilterMatrix); err != nil {
			log.Fatalf("scrnatag: writing single-cell matrix: %v", err)
		}
	}
}

// writeMetricsFile emits the header-commented sections spec.md §6
// requires: filter/dedup, annotation, UMI correction, and the 1-based
// mismatch-position / base-pair-type histograms.
func writeMetricsFile(path string, m pipeline.Metrics, c classify.Counters, um *umi.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, "# filter/dedup")
	fmt.Fprintf(f, "total\t%d\n", m.Total)
	fmt.Fprintf(f, "filtered\t%d\n", m.Filtered)
	fmt.Fprintf(f, "annotated\t%d\n", m.Annotated)
	fmt.Fprintf(f, "unique\t%d\n", m.Unique)
	fmt.Fprintf(f, "duplicate\t%d\n", m.Duplicate)

	fmt.Fprintln(f, "# annotation")
	fmt.Fprintf(f, "wrong_strand\t%d\n", c.WrongStrand)
	fmt.Fprintf(f, "right_strand\t%d\n", c.RightStrand)
	fmt.Fprintf(f, "ambiguous_rejected\t%d\n", c.AmbiguousRejected)
	fmt.Fprintf(f, "ambiguous_gene_fixed\t%d\n", c.AmbiguousGeneFixed)
	fmt.Fprintf(f, "no_gene\t%d\n", c.NoGene)
	fmt.Fprintf(f, "exonic\t%d\n", c.Exonic)
	fmt.Fprintf(f, "intronic\t%d\n", c.Intronic)
	fmt.Fprintf(f, "intergenic\t%d\n", c.Intergenic)
	fmt.Fprintf(f, "transcriptome\t%d\n", c.Transcriptome)

	fmt.Fprintln(f, "# umi correction: mismatch positions (1-based)")
	for pos := 1; pos <= maxPosition(um.Positions); pos++ {
		if n, ok := um.Positions[pos]; ok {
			fmt.Fprintf(f, "%d\t%d\n", pos, n)
		}
	}

	fmt.Fprintln(f, "# umi correction: mismatch types (from x to, over A,C,G,T)")
	bases := []byte{'A', 'C', 'G', 'T'}
	for i, from := range bases {
		for j, to := range bases {
			fmt.Fprintf(f, "%c%c\t%d\n", from, to, um.Types[i*4+j])
		}
	}
	return nil
}

func maxPosition(positions map[int]int64) int {
	max := 0
	for p := range positions {
		if p > max {
			max = p
		}
	}
	return max
}

// writeSaturationFile picks a sampler per 4.I based on the annotation
// policy: DROP_SEQ policies target Stereo-seq-style spatial barcodes
// ("row_col"), so they sample with CoordinateSampler; TENX targets
// droplet barcodes with no spatial structure, so it samples with
// SequenceSampler. This mapping is not named in
// spec.md's CLI surface (which only exposes --sat_file); it is
// recorded as an explicit decision, not left ambiguous.
func writeSaturationFile(path string, policy classify.Policy, results []*pipeline.ContigResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if policy == classify.TenX {
		s := saturation.NewSequenceSampler()
		for _, result := range results {
			if result.Histogram == nil {
				continue
			}
			if err := s.AddData(result.Histogram.Raw()); err != nil {
				return err
			}
		}
		_, err = f.WriteString(s.Sample())
		return err
	}

	s := saturation.NewCoordinateSampler()
	for _, result := range results {
		if result.Histogram == nil {
			continue
		}
		if err := s.AddData(result.Histogram.Raw()); err != nil {
			return err
		}
	}
	_, err = f.WriteString(s.Sample())
	return err
}

// writeMatrix implements spec.md §6's scrna output: a gzip'd
// Matrix-Market triplet plus barcodes.tsv.gz/genes.tsv.gz, optionally
// pre-filtered by the 4.H KDE threshold over per-barcode total UMI
// counts unless --no_filter_matrix was given.
func writeMatrix(ctx context.Context, bamPath, exprPath string, results []*pipeline.ContigResult, noFilter bool) error {
	barcodeTotals := map[string]float64{}
	for _, result := range results {
		if result.Histogram == nil {
			continue
		}
		for key, counts := range result.Histogram.Raw() {
			barcode, _, ok := umi.SplitKey(key)
			if !ok {
				continue
			}
			for _, c := range counts {
				if c > 0 {
					barcodeTotals[barcode]++
				}
			}
		}
	}

	keep := map[string]bool{}
	if noFilter || len(barcodeTotals) == 0 {
		for b := range barcodeTotals {
			keep[b] = true
		}
	} else {
		counts := make([]float64, 0, len(barcodeTotals))
		for _, v := range barcodeTotals {
			counts = append(counts, v)
		}
		safety, _, err := kde.Threshold(counts, kde.ModeBead)
		if err != nil {
			log.Error.Printf("scrnatag: KDE threshold failed, keeping all barcodes: %v", err)
			for b := range barcodeTotals {
				keep[b] = true
			}
		} else {
			for b, total := range barcodeTotals {
				if total >= safety {
					keep[b] = true
				}
			}
		}
	}

	dir := filepath.Dir(bamPath)
	return matrixio.WriteFromCountFile(ctx, exprPath, dir, keep)
}
