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

func runDecompressDB(args []string) error {
	fs := flag.NewFlagSet("decompress-db", flag.ExitOnError)
	bcf := fs.Bool("b", false, "emit BCF block container")
	level := fs.Int("c", 6, "BCF compression level 0..9")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.Errorf("decompress-db: expected <in_db> <out.vcf>, got %d args", fs.NArg())
	}
	inBase, outPath := fs.Arg(0), fs.Arg(1)

	ctx := vcontext.Background()
	db, err := gtfile.Open(ctx, inBase)
	if err != nil {
		return err
	}
	defer db.Close()

	vfile, err := vcfio.CreateForWriting(ctx, outPath, db.Samples, db.Ploidy, *bcf, *level)
	if err != nil {
		return err
	}
	vfile.SetHeader(db.Header)

	report := progress.New(os.Stdout)
	var count uint64

	// gtfile.Reader.GetVariant fuses descriptor decode and PBWT decode
	// into one sequential call, so that combined work runs in the io
	// stage here; transform is a pass-through. The io/sync overlap
	// still lets the next batch decode while this one's VCF text is
	// being written.
	readBatch := func() (*pipeline.Batch, bool, error) {
		b := &pipeline.Batch{}
		for len(b.Descs) < pipeline.BatchSize {
			desc, gts, ok, err := db.GetVariant()
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

	identity := func(*pipeline.Batch) error { return nil }

	syncBatch := func(b *pipeline.Batch) error {
		for i, desc := range b.Descs {
			if err := vfile.SetVariant(ctx, desc, b.Data[i]); err != nil {
				return err
			}
		}
		count += uint64(len(b.Descs))
		report(count)
		return nil
	}

	if err := pipeline.Run(readBatch, identity, syncBatch); err != nil {
		vfile.Close(ctx)
		return err
	}
	return vfile.Close(ctx)
}
