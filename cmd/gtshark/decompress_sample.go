package main

import (
	"flag"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/gtfile"
	"github.com/refresh-bio/gtshark/internal/progress"
	"github.com/refresh-bio/gtshark/internal/samplefile"
	"github.com/refresh-bio/gtshark/internal/vcfio"
)

func runDecompressSample(args []string) error {
	fs := flag.NewFlagSet("decompress-sample", flag.ExitOnError)
	bcf := fs.Bool("b", false, "emit BCF block container")
	level := fs.Int("c", 6, "BCF compression level 0..9")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errors.Errorf("decompress-sample: expected <db> <in_sample> <out.vcf>, got %d args", fs.NArg())
	}
	dbBase, inPath, outPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	ctx := vcontext.Background()
	db, err := gtfile.Open(ctx, dbBase)
	if err != nil {
		return err
	}
	defer db.Close()

	in, err := file.Open(ctx, inPath)
	if err != nil {
		return errors.Wrapf(err, "decompress-sample: open %s", inPath)
	}
	defer in.Close(ctx)

	rd, err := samplefile.OpenReader(ctx, db, in.Reader(ctx))
	if err != nil {
		return err
	}
	rd.Progress = progress.New(os.Stdout)

	vfile, err := vcfio.CreateForWriting(ctx, outPath, []string{rd.SampleName()}, db.Ploidy, *bcf, *level)
	if err != nil {
		return err
	}
	vfile.SetHeader(rd.Header())

	for {
		desc, gt, ok, err := rd.GetVariant()
		if err != nil {
			vfile.Close(ctx)
			return err
		}
		if !ok {
			break
		}
		if err := vfile.SetVariant(ctx, desc, gt); err != nil {
			vfile.Close(ctx)
			return err
		}
	}
	return vfile.Close(ctx)
}
