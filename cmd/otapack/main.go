package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/text"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	otapack "github.com/Eliminater74/atoto-firmware-downloader"
)

func main() {
	var (
		repackPath string
		overwrite  bool
		keepDat    bool
		raw        bool
		quality    int
		jobs       int
		logLevel   string
	)

	flag.StringVarP(&repackPath, "repack", "r", "", "repack a raw image into .transfer.list + .new.dat.br")
	flag.BoolVar(&overwrite, "overwrite", false, "redo outputs that already exist")
	flag.BoolVar(&keepDat, "keep-dat", false, "keep the intermediate .new.dat after compressing")
	flag.BoolVar(&raw, "raw", false, "also produce <name>_raw.img via simg2img when available")
	flag.IntVarP(&quality, "quality", "q", otapack.DefaultQuality, "brotli quality (0-11)")
	flag.IntVarP(&jobs, "jobs", "j", 4, "partitions to process in parallel")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetHandler(cli.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	log.SetLevelFromString(logLevel)

	codec := otapack.NewCodec(quality)

	if repackPath != "" {
		if err := repackImage(codec, repackPath, overwrite, keepDat); err != nil {
			log.WithError(err).Error("repack failed")
			os.Exit(1)
		}
		return
	}

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	failed, err := extractTree(codec, root, options{
		overwrite: overwrite,
		raw:       raw,
		jobs:      jobs,
	})
	if err != nil {
		log.WithError(err).Error("scan failed")
		os.Exit(1)
	}
	if failed > 0 {
		log.Warnf("done with %d error(s)", failed)
		os.Exit(1)
	}
	log.Info("done")
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  otapack [flags] [root]              extract: decompress *.new.dat.br and
                                      build *.img from *.transfer.list pairs
                                      found under root (default ".")
  otapack --repack <image.img>        repack: emit .transfer.list, .patch.dat
                                      and .new.dat.br next to the image

Flags:
%s`, flag.CommandLine.FlagUsages())
}
