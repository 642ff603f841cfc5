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

func runCompressSample(args []string) error {
	fs := flag.NewFlagSet("compress-sample", flag.ExitOnError)
	headerShare := fs.Bool("sh", false, "store the sample's own header delta against the db header")
	extraVariants := fs.Bool("ev", false, "enable extra-variants alignment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errors.Errorf("compress-sample: expected <db> <in.vcf> <out_sample>, got %d args", fs.NArg())
	}
	dbBase, inPath, outPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	ctx := vcontext.Background()
	db, err := gtfile.Open(ctx, dbBase)
	if err != nil {
		return err
	}
	defer db.Close()

	vfile, err := vcfio.OpenForReading(ctx, inPath, false)
	if err != nil {
		return err
	}
	defer vfile.Close(ctx)

	samples := vfile.GetSamplesList()
	if len(samples) != 1 {
		return errors.Errorf("compress-sample: expected exactly one sample in %s, got %d", inPath, len(samples))
	}

	w, err := samplefile.NewWriter(ctx, db, vfile, samples[0], *extraVariants, *headerShare)
	if err != nil {
		return err
	}
	w.Progress = progress.New(os.Stdout)

	if err := w.Run(); err != nil {
		return err
	}

	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.Wrapf(err, "compress-sample: create %s", outPath)
	}
	if err := w.WriteTo(out.Writer(ctx)); err != nil {
		out.Close(ctx)
		return err
	}
	return out.Close(ctx)
}
