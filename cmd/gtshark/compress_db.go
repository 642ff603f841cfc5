package main

import (
	"flag"
	"os"

	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/gtfile"
	"github.com/refresh-bio/gtshark/internal/pipeline"
	"github.com/refresh-bio/gtshark/internal/progress"
	"github.com/refresh-bio/gtshark/internal/vcfio"
)

func runCompressDB(args []string) error {
	fs := flag.NewFlagSet("compress-db", flag.ExitOnError)
	neglectLimit := fs.Uint("nl", 10, "neglect limit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.Errorf("compress-db: expected <in.vcf> <out_db>, got %d args", fs.NArg())
	}
	inPath, outBase := fs.Arg(0), fs.Arg(1)

	ctx := vcontext.Background()
	ploidy, err := vcfio.SniffPloidy(ctx, inPath)
	if err != nil {
		return err
	}
	vfile, err := vcfio.OpenForReading(ctx, inPath, false)
	if err != nil {
		return err
	}
	defer vfile.Close(ctx)

	db, err := gtfile.NewWriter(ctx, outBase, vfile.GetSamplesList(), ploidy, uint32(*neglectLimit))
	if err != nil {
		return err
	}
	db.SetHeader(vfile.GetHeader())

	report := progress.New(os.Stdout)
	var count uint64

	readBatch := func() (*pipeline.Batch, bool, error) {
		b := &pipeline.Batch{}
		for len(b.Descs) < pipeline.BatchSize {
			desc, gts, ok, err := vfile.GetVariant(ctx)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				break
			}
			b.Descs = append(b.Descs, desc)
			b.Data = append(b.Data, gts)
		}
		return b, len(b.Descs) > 0, nil
	}

	// The PBWT + range-coding step (the pipeline's transform stage):
	// db.SetVariant advances the shared permutation sequentially, so
	// it cannot be parallelized across batches, but running it here
	// lets the io worker read ahead while the sync worker's progress
	// reporting trails behind.
	transformBatch := func(b *pipeline.Batch) error {
		for i, desc := range b.Descs {
			if err := db.SetVariant(desc, b.Data[i]); err != nil {
				return err
			}
		}
		return nil
	}

	syncBatch := func(b *pipeline.Batch) error {
		count += uint64(len(b.Descs))
		report(count)
		return nil
	}

	if err := pipeline.Run(readBatch, transformBatch, syncBatch); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}
