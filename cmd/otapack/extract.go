package main

import (
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	otapack "github.com/Eliminater74/atoto-firmware-downloader"
)

type options struct {
	overwrite bool
	raw       bool
	jobs      int
}

// extractTree walks root, decompresses every *.new.dat.br next to itself and
// then builds <base>.img from every <base>.transfer.list with a sibling
// <base>.new.dat. Partitions are independent, so both phases run in parallel
// up to opts.jobs; a failing pair is logged and counted, never aborting its
// siblings. Returns how many files failed.
func extractTree(codec *otapack.Codec, root string, opts options) (int, error) {
	brFiles, transfers, err := scanTree(root)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"root":      root,
		"payloads":  len(brFiles),
		"manifests": len(transfers),
	}).Info("scanned")

	var failed atomic.Int64
	fail := func(path string, err error, msg string) {
		failed.Add(1)
		log.WithError(err).WithField("file", filepath.Base(path)).Error(msg)
	}

	if opts.jobs < 1 {
		opts.jobs = 1
	}

	var g errgroup.Group
	g.SetLimit(opts.jobs)
	for _, br := range brFiles {
		br := br
		g.Go(func() error {
			dat := strings.TrimSuffix(br, ".br")
			if !opts.overwrite && exists(dat) {
				log.WithField("file", filepath.Base(dat)).Debug("skip, exists")
				return nil
			}
			if err := decompressFile(codec, br, dat); err != nil {
				fail(br, err, "decompress failed")
			}
			return nil
		})
	}
	g.Wait()

	var c errgroup.Group
	c.SetLimit(opts.jobs)
	for _, list := range transfers {
		list := list
		c.Go(func() error {
			base := strings.TrimSuffix(list, ".transfer.list")
			dat := base + ".new.dat"
			img := base + ".img"

			if !exists(dat) {
				log.WithField("file", filepath.Base(dat)).Warn("skip, no payload next to manifest")
				return nil
			}
			if !opts.overwrite && exists(img) {
				log.WithField("file", filepath.Base(img)).Debug("skip, exists")
				return nil
			}
			if err := buildImage(list, dat, img); err != nil {
				fail(list, err, "reconstruction failed")
				return nil
			}
			if opts.raw {
				convertRaw(img, base+"_raw.img", opts.overwrite)
			}
			return nil
		})
	}
	c.Wait()

	return int(failed.Load()), nil
}

// scanTree collects *.new.dat.br payloads and *.transfer.list manifests.
func scanTree(root string) (brFiles, transfers []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch name := strings.ToLower(d.Name()); {
		case strings.HasSuffix(name, ".new.dat.br"):
			brFiles = append(brFiles, path)
		case strings.HasSuffix(name, ".transfer.list"):
			transfers = append(transfers, path)
		}
		return nil
	})
	return brFiles, transfers, err
}

func decompressFile(codec *otapack.Codec, src, dst string) error {
	compressed, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	raw, err := codec.Decompress(compressed)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, raw, 0644); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file": filepath.Base(dst),
		"size": humanize.Bytes(uint64(len(raw))),
	}).Info("decompressed")
	return nil
}

// buildImage replays one manifest/payload pair into an image file.
func buildImage(listPath, datPath, imgPath string) error {
	text, err := os.ReadFile(listPath)
	if err != nil {
		return err
	}
	m, err := otapack.ParseTransferList(string(text))
	if err != nil {
		return err
	}

	payload, err := os.Open(datPath)
	if err != nil {
		return err
	}
	defer payload.Close()

	out, err := os.Create(imgPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := otapack.Reconstruct(m, payload, out); err != nil {
		// A short payload leaves a partial image behind; remove it so
		// nothing downstream mistakes it for a valid one.
		out.Close()
		os.Remove(imgPath)
		return err
	}

	digest, err := fileDigest(imgPath)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"image":   filepath.Base(imgPath),
		"version": m.Version,
		"size":    humanize.Bytes(uint64(m.ImageSize())),
		"xxh64":   digest,
	}).Info("reconstructed")
	return nil
}

// fileDigest returns the XXH64 digest of a file, hex encoded.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// convertRaw shells out to simg2img for sparse images when the caller asked
// for raw output. Best effort: failures are logged, never counted.
func convertRaw(img, rawImg string, overwrite bool) {
	if !overwrite && exists(rawImg) {
		return
	}
	if !otapack.IsSparseImage(img) {
		log.WithField("image", filepath.Base(img)).Debug("not sparse, raw skipped")
		return
	}
	simg2img, err := exec.LookPath("simg2img")
	if err != nil {
		log.Warn("simg2img not found, raw skipped")
		return
	}
	if out, err := exec.Command(simg2img, img, rawImg).CombinedOutput(); err != nil {
		log.WithError(err).WithField("output", strings.TrimSpace(string(out))).
			Warn("simg2img failed")
		os.Remove(rawImg)
		return
	}
	log.WithField("image", filepath.Base(rawImg)).Info("raw image written")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
