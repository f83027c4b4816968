package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	otapack "github.com/Eliminater74/atoto-firmware-downloader"
)

// repackImage converts one raw image back into the transfer format, writing
// <base>.transfer.list, <base>.patch.dat and <base>.new.dat.br next to it.
// The intermediate <base>.new.dat is removed after compression unless the
// caller asked to keep it.
func repackImage(codec *otapack.Codec, imagePath string, overwrite, keepDat bool) error {
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	listPath := base + ".transfer.list"
	patchPath := base + ".patch.dat"
	datPath := base + ".new.dat"
	brPath := base + ".new.dat.br"

	if !overwrite {
		for _, p := range []string{listPath, brPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s exists, use --overwrite", filepath.Base(p))
			}
		}
	}

	m, payload, err := otapack.Repack(imagePath)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"image":  filepath.Base(imagePath),
		"blocks": m.TotalBlocks,
		"padded": humanize.Bytes(uint64(len(payload))),
	}).Info("repacking")

	list, err := os.Create(listPath)
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(list); err != nil {
		list.Close()
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}

	if err := os.WriteFile(patchPath, otapack.NewPatchStub, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(datPath, payload, 0644); err != nil {
		return err
	}

	compressed, err := codec.Compress(payload)
	if err != nil {
		return err
	}
	if err := os.WriteFile(brPath, compressed, 0644); err != nil {
		return err
	}

	if !keepDat {
		os.Remove(datPath)
	}

	log.WithFields(log.Fields{
		"payload": filepath.Base(brPath),
		"size":    humanize.Bytes(uint64(len(compressed))),
		"quality": codec.Quality(),
	}).Info("repacked")
	return nil
}
