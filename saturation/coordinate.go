package saturation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const barcodeSep = "_"
const keySep = "|"
const defaultBin = 150

// coordinateEntry is one read observed against a spatial (row,col)
// barcode, mirroring CoordinateBarcode::ST in the original.
type coordinateEntry struct {
	row, col uint32
	gene     uint32
	umi      uint32
}

// CoordinateSampler is the saturation sampler variant for spatial
// barcodes of the form "..._row_col" (4.I "Coordinate barcodes").
type CoordinateSampler struct {
	genes   *geneTable
	entries []coordinateEntry
	bin     uint32
}

// NewCoordinateSampler returns an empty CoordinateSampler using the
// default bin size of 150, matching Saturation::_bin in the original.
func NewCoordinateSampler() *CoordinateSampler {
	return &CoordinateSampler{genes: newGeneTable(), bin: defaultBin}
}

// ParseCoordinateBarcode splits a "..._row_col" barcode into its row
// and column, per 4.I: the last two '_'-separated fields are numeric
// column then row (reading right to left), matching the original's
// find_last_of('_') walk.
func ParseCoordinateBarcode(barcode string) (row, col uint32, err error) {
	lastUnderscore := strings.LastIndex(barcode, barcodeSep)
	if lastUnderscore < 0 {
		return 0, 0, errors.Errorf("saturation: barcode %q has no %q separator", barcode, barcodeSep)
	}
	colStr := barcode[lastUnderscore+1:]
	rest := barcode[:lastUnderscore]
	prevUnderscore := strings.LastIndex(rest, barcodeSep)
	rowStr := rest
	if prevUnderscore >= 0 {
		rowStr = rest[prevUnderscore+1:]
	}
	c, err := strconv.ParseUint(colStr, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "saturation: parsing column from %q", barcode)
	}
	r, err := strconv.ParseUint(rowStr, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "saturation: parsing row from %q", barcode)
	}
	return uint32(r), uint32(c), nil
}

// AddData ingests one contig's (barcode|gene) -> (umi -> count)
// histogram, matching CoordinateBarcode::addData.
func (s *CoordinateSampler) AddData(raw map[string]map[string]int) error {
	for key, counts := range raw {
		i := strings.LastIndex(key, keySep)
		if i < 0 {
			continue
		}
		barcode, gene := key[:i], key[i+1:]
		row, col, err := ParseCoordinateBarcode(barcode)
		if err != nil {
			return err
		}
		geneID := s.genes.intern(gene)
		for u, count := range counts {
			if count <= 0 {
				continue
			}
			umiID, err := EncodeUMI(u)
			if err != nil {
				return err
			}
			entry := coordinateEntry{row: row, col: col, gene: geneID, umi: umiID}
			for n := 0; n < count; n++ {
				s.entries = append(s.entries, entry)
			}
		}
	}
	return nil
}

// Sample runs the fraction sweep and returns the saturation report, in
// the format described by 4.I: "#sample bar_x bar_y1 bar_y2 bin_x
// bin_y1 bin_y2" followed by one line per fraction.
func (s *CoordinateSampler) Sample() string {
	var sb strings.Builder
	sb.WriteString("#sample bar_x bar_y1 bar_y2 bin_x bin_y1 bin_y2\n")

	order := shuffle(len(s.entries))
	noGene, hasNoGene := s.genes.noGeneID()

	barcodeData := map[uint64]map[uint64]int{}
	binData := map[uint64]map[uint64]int{}
	pos := 0
	for _, f := range fractions {
		size := int(f * float64(len(s.entries)))
		for ; pos < size && pos < len(order); pos++ {
			e := s.entries[order[pos]]
			barcodeKey := uint64(e.col)<<32 | uint64(e.row)
			value := uint64(e.gene)<<32 | uint64(e.umi)
			addTo(barcodeData, barcodeKey, value)

			binCol, binRow := e.col/s.bin, e.row/s.bin
			binKey := uint64(binRow)<<16 | uint64(binCol)
			addTo(binData, binKey, value)
		}

		barMetrics := saturationOf(barcodeData, noGene, hasNoGene)
		binMetrics := saturationOf(binData, noGene, hasNoGene)
		if barMetrics.Reads == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%g %g %g %d %g %g %d\n", f,
			meanReadsPerBarcode(barMetrics.Reads, len(barcodeData)), saturationFraction(barMetrics), barMetrics.MedianGenes,
			meanReadsPerBarcode(binMetrics.Reads, len(binData)), saturationFraction(binMetrics), binMetrics.MedianGenes)
	}
	return sb.String()
}

func addTo(data map[uint64]map[uint64]int, key, value uint64) {
	m, ok := data[key]
	if !ok {
		m = map[uint64]int{}
		data[key] = m
	}
	m[value]++
}
