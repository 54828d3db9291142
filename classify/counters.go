package classify

import "sync/atomic"

// Counters accumulates per-record classification outcomes. Every field
// is updated with atomic adds on the hot path (spec's "cross-thread
// aggregation of atomic counters" design note); Snapshot and Add are
// used only at merge time, after a worker's per-contig pass completes.
type Counters struct {
	Total                int64
	WrongStrand          int64
	RightStrand          int64
	AmbiguousRejected    int64
	AmbiguousGeneFixed   int64
	NoGene               int64
	Exonic               int64
	Intronic             int64
	Intergenic           int64
	Transcriptome        int64
}

func (c *Counters) incTotal()              { atomic.AddInt64(&c.Total, 1) }
func (c *Counters) incWrongStrand()        { atomic.AddInt64(&c.WrongStrand, 1) }
func (c *Counters) incRightStrand()        { atomic.AddInt64(&c.RightStrand, 1) }
func (c *Counters) incAmbiguousRejected()  { atomic.AddInt64(&c.AmbiguousRejected, 1) }
func (c *Counters) incAmbiguousGeneFixed() { atomic.AddInt64(&c.AmbiguousGeneFixed, 1) }
func (c *Counters) incNoGene()             { atomic.AddInt64(&c.NoGene, 1) }
func (c *Counters) incExonic()             { atomic.AddInt64(&c.Exonic, 1) }
func (c *Counters) incIntronic()           { atomic.AddInt64(&c.Intronic, 1) }
func (c *Counters) incIntergenic()         { atomic.AddInt64(&c.Intergenic, 1) }
func (c *Counters) incTranscriptome()      { atomic.AddInt64(&c.Transcriptome, 1) }

// Snapshot returns a point-in-time copy of c's fields, safe to call
// concurrently with incrementers.
func (c *Counters) Snapshot() Counters {
	return Counters{
		Total:              atomic.LoadInt64(&c.Total),
		WrongStrand:        atomic.LoadInt64(&c.WrongStrand),
		RightStrand:        atomic.LoadInt64(&c.RightStrand),
		AmbiguousRejected:  atomic.LoadInt64(&c.AmbiguousRejected),
		AmbiguousGeneFixed: atomic.LoadInt64(&c.AmbiguousGeneFixed),
		NoGene:             atomic.LoadInt64(&c.NoGene),
		Exonic:             atomic.LoadInt64(&c.Exonic),
		Intronic:           atomic.LoadInt64(&c.Intronic),
		Intergenic:         atomic.LoadInt64(&c.Intergenic),
		Transcriptome:      atomic.LoadInt64(&c.Transcriptome),
	}
}

// Add merges another worker's (already-finalized) snapshot into c. Used
// at the end of a per-contig pass, so plain adds are sufficient.
func (c *Counters) Add(other Counters) {
	c.Total += other.Total
	c.WrongStrand += other.WrongStrand
	c.RightStrand += other.RightStrand
	c.AmbiguousRejected += other.AmbiguousRejected
	c.AmbiguousGeneFixed += other.AmbiguousGeneFixed
	c.NoGene += other.NoGene
	c.Exonic += other.Exonic
	c.Intronic += other.Intronic
	c.Intergenic += other.Intergenic
	c.Transcriptome += other.Transcriptome
}
