// gtshark implements the five-subcommand CLI of §6: compress-db,
// decompress-db, compress-sample, decompress-sample, and
// extract-sample. compress-db and decompress-db run through
// internal/pipeline; the sample subcommands drive samplefile directly.
package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "compress-db":
		err = runCompressDB(args)
	case "decompress-db":
		err = runDecompressDB(args)
	case "compress-sample":
		err = runCompressSample(args)
	case "decompress-sample":
		err = runDecompressSample(args)
	case "extract-sample":
		err = runExtractSample(args)
	case "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gtshark: unknown subcommand %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("gtshark %s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage:
  gtshark compress-db [-nl N] <in.vcf> <out_db>
  gtshark decompress-db [-b] [-c 0..9] <in_db> <out.vcf>
  gtshark compress-sample [-sh] [-ev] <db> <in.vcf> <out_sample>
  gtshark decompress-sample [-b] [-c 0..9] <db> <in_sample> <out.vcf>
  gtshark extract-sample [-b] [-c 0..9] <db> <sample_id> <out.vcf>
`)
}
