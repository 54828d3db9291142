package annotation

import (
	"context"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
)

// Index is a per-contig interval index over Gene ranges (4.C). It is built
// once at startup and is immutable and safe for concurrent Query calls
// afterward, per spec.md §5 ("Shared state").
type Index struct {
	trees  map[string]*interval.IntTree
	genes  []*Gene // arena; geneEntry.id indexes into this slice
	loaded map[string]bool
}

// geneEntry adapts *Gene to interval.IntTree's interval.Interface' mutable
// interface, per the pattern demonstrated by kortschak-ins/cmd/ins's
// subjectInterval.
type geneEntry struct {
	id   uintptr
	gene *Gene
}

func (e geneEntry) Overlap(b interval.IntRange) bool {
	return e.gene.Start <= b.End && b.Start <= e.gene.End
}
func (e geneEntry) ID() uintptr               { return e.id }
func (e geneEntry) Range() interval.IntRange  { return interval.IntRange{Start: e.gene.Start, End: e.gene.End + 1} }
func (e geneEntry) String() string            { return e.gene.Name }

// NewIndex builds an Index from the parsed gene records keyed by gene
// name (as produced by Load), running the Gene Builder (4.B) on each
// name and inserting the result into the per-contig interval trees.
func NewIndex(ctx context.Context, result *LoadResult) *Index {
	idx := &Index{
		trees:  map[string]*interval.IntTree{},
		loaded: map[string]bool{},
	}
	for geneName, records := range result.Genes {
		for _, g := range Build(geneName, records) {
			idx.insert(g)
		}
	}
	for contig := range idx.trees {
		idx.trees[contig].AdjustRanges()
	}
	log.Printf("annotation: indexed %d genes across %d contigs", len(idx.genes), len(idx.trees))
	return idx
}

func (idx *Index) insert(g *Gene) {
	tree, ok := idx.trees[g.Contig]
	if !ok {
		tree = &interval.IntTree{}
		idx.trees[g.Contig] = tree
	}
	id := uintptr(len(idx.genes))
	idx.genes = append(idx.genes, g)
	entry := geneEntry{id: id, gene: g}
	if err := tree.Insert(entry, true); err != nil {
		log.Error.Printf("annotation: failed to insert gene %s: %v", g.Name, err)
	}
}

// Query returns every Gene on contig whose extent overlaps [lo,hi]
// (inclusive), per spec.md invariant 5.
func (idx *Index) Query(contig string, lo, hi int) []*Gene {
	tree, ok := idx.trees[contig]
	if !ok {
		return nil
	}
	overlaps := tree.Get(interval.IntRange{Start: lo, End: hi + 1})
	out := make([]*Gene, 0, len(overlaps))
	for _, o := range overlaps {
		out = append(out, o.(geneEntry).gene)
	}
	return out
}

// Contigs returns the set of contig names that have at least one gene.
func (idx *Index) Contigs() []string {
	out := make([]string, 0, len(idx.trees))
	for c := range idx.trees {
		out = append(out, c)
	}
	return out
}

// NumGenes returns the total number of Gene entries in the index arena.
func (idx *Index) NumGenes() int { return len(idx.genes) }
