// Package matrixio writes the gzip'd Matrix-Market barcode x gene
// expression matrix single-cell (scrna) mode produces (spec.md §6):
// matrix.mtx.gz, barcodes.tsv.gz, genes.tsv.gz.
package matrixio

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// entry is one non-zero (gene, barcode) -> count triplet read from the
// merged expression table.
type entry struct {
	gene, barcode int // 1-based insertion-order indices
	count         int64
}

// WriteFromCountFile reads exprPath (the merged barcode\tgene\tumi_count
// table pipeline.MergeCountFiles produced) and writes matrix.mtx.gz,
// barcodes.tsv.gz, and genes.tsv.gz into dir. Only barcodes present in
// keep are retained; if keep is empty every barcode is retained.
// Indices in matrix.mtx.gz are 1-based, assigned in the order each
// gene/barcode is first seen (spec.md §6).
func WriteFromCountFile(ctx context.Context, exprPath, dir string, keep map[string]bool) error {
	f, err := file.Open(ctx, exprPath)
	if err != nil {
		return errors.E(err, "matrixio: opening", exprPath)
	}
	defer file.CloseAndReport(ctx, f, &err)

	barcodeIdx := map[string]int{}
	var barcodes []string
	geneIdx := map[string]int{}
	var genes []string
	var entries []entry

	filterAll := len(keep) == 0
	scanner := bufio.NewScanner(f.Reader(ctx))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		barcode, gene := fields[0], fields[1]
		if !filterAll && !keep[barcode] {
			continue
		}
		count, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || count <= 0 {
			continue
		}

		bi, ok := barcodeIdx[barcode]
		if !ok {
			bi = len(barcodes) + 1
			barcodeIdx[barcode] = bi
			barcodes = append(barcodes, barcode)
		}
		gi, ok := geneIdx[gene]
		if !ok {
			gi = len(genes) + 1
			geneIdx[gene] = gi
			genes = append(genes, gene)
		}
		entries = append(entries, entry{gene: gi, barcode: bi, count: count})
	}
	if err := scanner.Err(); err != nil {
		return errors.E(err, "matrixio: reading", exprPath)
	}

	if err := writeGzipLines(ctx, filepath.Join(dir, "barcodes.tsv.gz"), barcodes); err != nil {
		return err
	}
	if err := writeGzipLines(ctx, filepath.Join(dir, "genes.tsv.gz"), genes); err != nil {
		return err
	}
	return writeMatrix(ctx, filepath.Join(dir, "matrix.mtx.gz"), len(genes), len(barcodes), entries)
}

func writeGzipLines(ctx context.Context, path string, lines []string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "matrixio: creating", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	gz := gzip.NewWriter(f.Writer(ctx))
	defer gz.Close()
	w := bufio.NewWriter(gz)
	defer w.Flush()
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return errors.E(err, "matrixio: writing", path)
		}
	}
	return nil
}

// writeMatrix emits a standard integer-coordinate Matrix-Market file,
// rows = genes, cols = barcodes, following the 10x/cellranger
// convention the original tool's output is meant to be a drop-in
// replacement for.
func writeMatrix(ctx context.Context, path string, nGenes, nBarcodes int, entries []entry) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "matrixio: creating", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	gz := gzip.NewWriter(f.Writer(ctx))
	defer gz.Close()
	w := bufio.NewWriter(gz)
	defer w.Flush()

	if _, err := fmt.Fprintln(w, "%%MatrixMarket matrix coordinate integer general"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d %d %d\n", nGenes, nBarcodes, len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d %d %d\n", e.gene, e.barcode, e.count); err != nil {
			return errors.E(err, "matrixio: writing", path)
		}
	}
	return nil
}
