package annotation

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/log"
)

// Exon is a half-open-to-inclusive genomic range within a transcript.
type Exon struct {
	Start, End int
}

// Transcript is one transcript of a Gene.
type Transcript struct {
	Name                         string
	TranscriptionStart           int
	TranscriptionEnd             int
	CodingStart                  int
	CodingEnd                    int
	Exons                        []Exon // sorted by Start
	Length                       int    // sum of exon sizes
}

// Gene is a fully-built gene entry, ready for insertion into an Index.
// One Gene always resides on exactly one contig: a gene_id that spans
// multiple contigs in the source annotation is split into multiple Gene
// entries by the builder.
type Gene struct {
	Contig      string
	Start, End  int
	Strand      byte
	Name        string
	ID          string
	FeatureType string
	Version     string

	// Transcripts maps transcript name to Transcript. Keys are unique per gene.
	Transcripts map[string]*Transcript
}

// Build folds the records for a single gene name into one or more Gene
// entries (4.B). Structural problems (gene_id disagreement, exon overlap,
// an exon with start>end, zero transcripts) cause the offending
// gene-run to be dropped with a logged error; other runs for the same
// name still succeed.
func Build(geneName string, records []Record) []*Gene {
	if len(records) == 0 {
		return nil
	}
	records = selectMaxVersion(records)

	var genes []*Gene
	runStart := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) || records[i].Contig != records[runStart].Contig {
			if g, err := buildOne(geneName, records[runStart:i]); err != nil {
				log.Error.Print(err)
			} else {
				genes = append(genes, g)
			}
			runStart = i
		}
	}
	return genes
}

// selectMaxVersion partitions records by gene_version and keeps only the
// partition with the maximum version string, preserving original order.
// Records with an empty version are treated as a single partition "".
func selectMaxVersion(records []Record) []Record {
	maxVersion := records[0].GeneVersion
	for _, r := range records[1:] {
		if r.GeneVersion > maxVersion {
			maxVersion = r.GeneVersion
		}
	}
	var out []Record
	for _, r := range records {
		if r.GeneVersion == maxVersion {
			out = append(out, r)
		}
	}
	return out
}

func buildOne(geneName string, records []Record) (*Gene, error) {
	contig := records[0].Contig
	g := &Gene{
		Contig:      contig,
		Name:        geneName,
		Transcripts: map[string]*Transcript{},
	}
	geneID := ""
	start, end := records[0].Start, records[0].End
	for _, r := range records {
		if r.Start < start {
			start = r.Start
		}
		if r.End > end {
			end = r.End
		}
		if r.GeneID != "" {
			if geneID == "" {
				geneID = r.GeneID
			} else if geneID != r.GeneID {
				return nil, &structuralError{gene: geneName, cause: fmt.Errorf("gene_id disagreement: %s vs %s", geneID, r.GeneID)}
			}
		}
		if r.FeatureType == "gene" {
			g.FeatureType = r.FeatureType
			g.Strand = r.Strand
			g.Version = r.GeneVersion
		}
	}
	g.ID = geneID
	g.Start, g.End = start, end
	if g.Strand == 0 && len(records) > 0 {
		g.Strand = records[0].Strand
	}

	byTranscript := map[string][]Record{}
	var order []string
	for _, r := range records {
		if r.FeatureType == "gene" {
			continue
		}
		if _, ok := byTranscript[r.TranscriptID]; !ok {
			order = append(order, r.TranscriptID)
		}
		byTranscript[r.TranscriptID] = append(byTranscript[r.TranscriptID], r)
	}

	for _, tid := range order {
		trecs := byTranscript[tid]
		t, err := buildTranscript(trecs)
		if err != nil {
			return nil, &structuralError{gene: geneName, transcript: tid, cause: err}
		}
		g.Transcripts[t.Name] = t
	}
	if len(g.Transcripts) == 0 {
		return nil, &structuralError{gene: geneName, cause: fmt.Errorf("no transcripts")}
	}
	return g, nil
}

func buildTranscript(records []Record) (*Transcript, error) {
	name := records[0].TranscriptName
	if name == "" {
		name = records[0].TranscriptID
	}
	t := &Transcript{Name: name}

	var exons []Exon
	var cdsMin, cdsMax int
	haveCDS := false
	for _, r := range records {
		switch r.FeatureType {
		case "exon":
			if r.Start > r.End {
				return nil, fmt.Errorf("exon start>end (%d,%d)", r.Start, r.End)
			}
			exons = append(exons, Exon{r.Start, r.End})
		case "CDS":
			if !haveCDS || r.Start < cdsMin {
				cdsMin = r.Start
			}
			if !haveCDS || r.End > cdsMax {
				cdsMax = r.End
			}
			haveCDS = true
		}
	}
	sort.Slice(exons, func(i, j int) bool { return exons[i].Start < exons[j].Start })
	for i := 1; i < len(exons); i++ {
		if exons[i].Start <= exons[i-1].End {
			return nil, fmt.Errorf("overlapping exons [%d,%d] and [%d,%d]",
				exons[i-1].Start, exons[i-1].End, exons[i].Start, exons[i].End)
		}
	}
	t.Exons = exons

	if len(exons) == 0 {
		// Transcript bounds fall back to the raw record range (e.g. a
		// transcript-only GFF3 row with no child exon features yet).
		t.TranscriptionStart = records[0].Start
		t.TranscriptionEnd = records[0].End
	} else {
		t.TranscriptionStart = exons[0].Start
		t.TranscriptionEnd = exons[0].End
		for _, e := range exons {
			if e.Start < t.TranscriptionStart {
				t.TranscriptionStart = e.Start
			}
			if e.End > t.TranscriptionEnd {
				t.TranscriptionEnd = e.End
			}
		}
	}
	if haveCDS {
		t.CodingStart, t.CodingEnd = cdsMin, cdsMax
	} else {
		t.CodingStart, t.CodingEnd = t.TranscriptionStart, t.TranscriptionEnd
	}
	for _, e := range t.Exons {
		t.Length += e.End - e.Start + 1
	}
	return t, nil
}
