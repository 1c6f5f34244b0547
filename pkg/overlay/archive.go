package overlay

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
)

// ArchiveSource is a tar stream of the media content tree, optionally gzipped.
// Entries are read forward only and each one is written straight to the image.
type ArchiveSource struct {
	Reader io.Reader
	// Strict fails on entries that are neither directories nor regular files
	// instead of skipping them.
	Strict bool
}

func (a ArchiveSource) Apply(img Image, root string) error {
	r, err := decompress(a.Reader)
	if err != nil {
		return err
	}
	tr := tar.NewReader(r)

	if err := img.CreateDirectory(root); err != nil {
		return fmt.Errorf("%w: creating %s: %w", constants.ErrImageWrite, root, err)
	}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading media content archive: %w", err)
		}
		if err := a.entry(img, root, hdr, tr); err != nil {
			return err
		}
	}
}

// entry places a single archive entry. The tar reader discards whatever the
// image did not consume when moving to the next header.
func (a ArchiveSource) entry(img Image, root string, hdr *tar.Header, r io.Reader) error {
	name := path.Clean(strings.TrimPrefix(hdr.Name, "/"))
	if name == "." || hdr.Typeflag == tar.TypeXGlobalHeader {
		return nil
	}
	dest := path.Join(root, name)
	if !strings.HasPrefix(dest, root+"/") {
		return fmt.Errorf("%w: %s escapes %s", constants.ErrUnsupportedEntry, hdr.Name, root)
	}

	info := hdr.FileInfo()
	switch {
	case info.IsDir():
		utils.Log.Debug().Str("where", dest).Msg("Creating directory")
		if err := img.CreateDirectory(dest); err != nil {
			return fmt.Errorf("%w: creating %s: %w", constants.ErrImageWrite, dest, err)
		}
	case info.Mode().IsRegular() && hdr.Typeflag != tar.TypeLink:
		var mode *os.FileMode
		if IsExecutable(hdr.Mode) {
			m := constants.ExecutableFileMode
			mode = &m
		}
		utils.Log.Debug().Str("where", dest).Int64("size", hdr.Size).Bool("executable", mode != nil).Msg("Writing file")
		if err := img.WriteFile(dest, io.LimitReader(r, hdr.Size), hdr.Size, mode); err != nil {
			return fmt.Errorf("%w: writing %s: %w", constants.ErrImageWrite, dest, err)
		}
	default:
		if a.Strict {
			return fmt.Errorf("%w: %s has type %q", constants.ErrUnsupportedEntry, hdr.Name, string(hdr.Typeflag))
		}
		utils.Log.Warn().Str("what", hdr.Name).Str("type", string(hdr.Typeflag)).Msg("Skipping unsupported media content entry")
	}
	return nil
}

// IsExecutable tests the owner execute bit of a tar header mode.
func IsExecutable(mode int64) bool {
	return mode&0o100 != 0
}

// decompress transparently unwraps gzip streams, detected by their magic bytes.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading media content archive: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("reading media content archive: %w", err)
		}
		return gz, nil
	}
	return br, nil
}
