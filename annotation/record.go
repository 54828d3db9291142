// Package annotation parses a GTF or GFF3 gene model into per-contig
// interval indices used to classify aligned reads by locus function.
//
// The loader, gene builder, and interval index mirror the shape of
// fusion/parsegencode.ReadGTF: read raw rows first, group them by key,
// then fold the groups into a typed tree.
package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Record is one annotation line, after attribute extraction.
type Record struct {
	Contig         string
	Start, End     int // 1-based inclusive
	Strand         byte
	FeatureType    string
	GeneID         string
	GeneName       string
	GeneVersion    string
	TranscriptID   string
	TranscriptName string
}

// LoadResult is the output of Load: records grouped by gene name, plus
// the set of contigs observed.
type LoadResult struct {
	Genes   map[string][]Record
	Contigs map[string]bool
}

// knownGTFKeys are the only attribute keys the loader retains.
var knownGTFKeys = []string{"gene_id", "gene_name", "transcript_id", "transcript_name"}

// Load reads a GTF or GFF3 file (dispatched by extension, `.gz` transparently
// decompressed) and groups records by gene name.  Comment lines and records
// with an empty gene name are dropped.
func Load(ctx context.Context, path string) (*LoadResult, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "annotation: opening", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}
	isGFF := strings.HasSuffix(strings.TrimSuffix(path, ".gz"), ".gff") ||
		strings.HasSuffix(strings.TrimSuffix(path, ".gz"), ".gff3")

	result := &LoadResult{
		Genes:   map[string][]Record{},
		Contigs: map[string]bool{},
	}
	var carryGeneID, carryGeneName, carryTransID, carryTransName string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			continue
		}
		start, err1 := strconv.Atoi(fields[3])
		end, err2 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil {
			log.Error.Printf("annotation: %s:%d: bad coordinates, skipping", path, lineNo)
			continue
		}
		feature := fields[2]
		rec := Record{
			Contig:      fields[0],
			Start:       start,
			End:         end,
			FeatureType: feature,
		}
		if len(fields[6]) > 0 {
			rec.Strand = fields[6][0]
		}

		if isGFF {
			attrs := parseGFFAttributes(fields[8])
			switch feature {
			case "region":
				carryGeneID, carryGeneName, carryTransID, carryTransName = "", "", "", ""
			case "gene":
				carryGeneID = attrs["ID"]
				carryGeneName = attrs["Name"]
				if carryGeneName == "" {
					carryGeneName = attrs["gene_name"]
				}
				carryTransID, carryTransName = "", ""
			case "mRNA":
				carryTransID = attrs["ID"]
				carryTransName = attrs["Name"]
			}
			rec.GeneID = carryGeneID
			rec.GeneName = carryGeneName
			rec.TranscriptID = carryTransID
			rec.TranscriptName = carryTransName
			if attrs["gene_id"] != "" {
				rec.GeneID = attrs["gene_id"]
			}
			if attrs["gene_name"] != "" {
				rec.GeneName = attrs["gene_name"]
			}
			if v, ok := attrs["transcript_id"]; ok {
				rec.TranscriptID = v
			}
			if v, ok := attrs["transcript_name"]; ok {
				rec.TranscriptName = v
			}
		} else {
			attrs := parseGTFAttributes(fields[8])
			rec.GeneID = attrs["gene_id"]
			rec.GeneName = attrs["gene_name"]
			rec.TranscriptID = attrs["transcript_id"]
			rec.TranscriptName = attrs["transcript_name"]
			rec.GeneVersion = attrs["gene_version"]
		}

		if feature != "gene" && rec.TranscriptID == "" {
			log.Error.Printf("annotation: %s:%d: missing transcript_id on non-gene record, skipping", path, lineNo)
			continue
		}
		if rec.GeneName == "" {
			continue
		}
		result.Contigs[rec.Contig] = true
		result.Genes[rec.GeneName] = append(result.Genes[rec.GeneName], rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "annotation: reading", path)
	}
	log.Printf("annotation: loaded %d gene names from %s (%d contigs)", len(result.Genes), path, len(result.Contigs))
	return result, nil
}

// parseGTFAttributes parses `key "value";` pairs, retaining only knownGTFKeys.
func parseGTFAttributes(s string) map[string]string {
	out := map[string]string{}
	remaining := len(knownGTFKeys)
	fields := strings.Fields(s)
	for i := 0; i < len(fields) && remaining > 0; i++ {
		key := fields[i]
		if !isKnownGTFKey(key) {
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		val := fields[i+1]
		val = strings.TrimPrefix(val, "\"")
		val = strings.TrimSuffix(val, ";")
		val = strings.TrimSuffix(val, "\";")
		val = strings.TrimSuffix(val, "\"")
		if _, ok := out[key]; !ok {
			out[key] = val
			remaining--
		}
		i++
	}
	return out
}

func isKnownGTFKey(key string) bool {
	for _, k := range knownGTFKeys {
		if k == key {
			return true
		}
	}
	return false
}

// parseGFFAttributes parses `key=value;key2=value2` pairs.
func parseGFFAttributes(s string) map[string]string {
	out := map[string]string{}
	for _, field := range strings.Split(s, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = strings.Trim(kv[1], "\"")
	}
	return out
}

// structuralError reports an annotation record problem, grounded on
// fusion/gene_db.go's "the offending gene is skipped, not fatal" style.
type structuralError struct {
	gene, transcript string
	cause            error
}

func (e *structuralError) Error() string {
	if e.transcript != "" {
		return fmt.Sprintf("annotation: gene %s transcript %s: %v", e.gene, e.transcript, e.cause)
	}
	return fmt.Sprintf("annotation: gene %s: %v", e.gene, e.cause)
}

func (e *structuralError) Unwrap() error { return e.cause }
