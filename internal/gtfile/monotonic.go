package gtfile

import (
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// monotonicityCheck verifies that variants are written in strictly
// increasing order, a precondition the PBWT/position-delta encoding
// silently assumes; violating it would corrupt the pos column's delta
// scheme and the sample codec's list-merge walk. The invariant only
// ever compares against the single most recently observed variant, so
// a plain field suffices — no ordered set of past variants is needed.
type monotonicityCheck struct {
	prev variant.Desc
	have bool
}

func (c *monotonicityCheck) observe(d variant.Desc) error {
	if c.have && !c.prev.Less(d) {
		return errors.Errorf("gtfile: variant %s:%d (fp %x) is not strictly after previous %s:%d (fp %x)",
			d.Chrom, d.Pos, d.Fingerprint(), c.prev.Chrom, c.prev.Pos, c.prev.Fingerprint())
	}
	c.prev = d
	c.have = true
	return nil
}
