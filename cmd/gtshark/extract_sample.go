package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/gtfile"
	"github.com/refresh-bio/gtshark/internal/pipeline"
	"github.com/refresh-bio/gtshark/internal/progress"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/refresh-bio/gtshark/internal/vcfio"
)

func runExtractSample(args []string) error {
	fs := flag.NewFlagSet("extract-sample", flag.ExitOnError)
	bcf := fs.Bool("b", false, "emit BCF block container")
	level := fs.Int("c", 6, "BCF compression level 0..9")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errors.Errorf("extract-sample: expected <db> <sample_id> <out.vcf>, got %d args", fs.NArg())
	}
	dbBase, sampleID, outPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	ctx := vcontext.Background()
	db, err := gtfile.Open(ctx, dbBase)
	if err != nil {
		return err
	}
	defer db.Close()

	idx := -1
	for i, s := range db.Samples {
		if s == sampleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New(sampleLookupError(sampleID, db.Samples))
	}

	vfile, err := vcfio.CreateForWriting(ctx, outPath, []string{sampleID}, db.Ploidy, *bcf, *level)
	if err != nil {
		return err
	}
	vfile.SetHeader(db.Header)

	report := progress.New(os.Stdout)
	var count uint64
	for {
		desc, gts, ok, err := db.GetVariant()
		if err != nil {
			vfile.Close(ctx)
			return err
		}
		if !ok {
			break
		}
		if err := vfile.SetVariant(ctx, desc, []variant.GenotypeByte{gts[idx]}); err != nil {
			vfile.Close(ctx)
			return err
		}
		count++
		if count%pipeline.BatchSize == 0 {
			report(count)
		}
	}
	return vfile.Close(ctx)
}

// sampleLookupError builds the lookup-error diagnostic (§7): the
// requested sample id is absent, so report the db's closest sample
// name by edit distance as a "did you mean" suggestion.
func sampleLookupError(id string, samples []string) string {
	best := ""
	bestDist := -1
	for _, s := range samples {
		d := matchr.Levenshtein(id, s)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = s
		}
	}
	if best == "" {
		return fmt.Sprintf("extract-sample: sample %q not found in db", id)
	}
	return fmt.Sprintf("extract-sample: sample %q not found in db; did you mean %q?", id, best)
}
