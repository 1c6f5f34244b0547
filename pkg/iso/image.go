package iso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kdomanski/iso9660"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/twpayne/go-vfs/v4"
)

// IsoFile is an installer image being modified. Its content is staged as a
// plain directory tree and only mastered back into an ISO by WriteISO.
type IsoFile struct {
	fs    vfs.FS
	root  string
	label string
}

type Option func(*IsoFile)

// WithLabel sets the volume label, otherwise taken from the extracted image.
func WithLabel(label string) Option {
	return func(i *IsoFile) {
		i.label = label
	}
}

// NewIsoFile stages an image under root, creating it when missing.
func NewIsoFile(fs vfs.FS, root string, opts ...Option) (*IsoFile, error) {
	i := &IsoFile{fs: fs, root: root}
	for _, o := range opts {
		o(i)
	}
	if err := utils.CreateIfNotExists(fs, root); err != nil {
		return nil, fmt.Errorf("%w: creating staging dir %s: %w", constants.ErrImageWrite, root, err)
	}
	return i, nil
}

// path maps an absolute image path to the staging tree.
func (i *IsoFile) path(p string) string {
	return filepath.Join(i.root, filepath.FromSlash(path.Clean("/"+p)))
}

func (i *IsoFile) Label() string {
	return i.label
}

// StagingDir is the host path of the staged tree, as seen by external tools.
func (i *IsoFile) StagingDir() (string, error) {
	return i.fs.RawPath(i.root)
}

// Extract unpacks an ISO9660 image into the staging tree.
func (i *IsoFile) Extract(ra io.ReaderAt) error {
	img, err := iso9660.OpenImage(ra)
	if err != nil {
		return fmt.Errorf("opening installer image: %w", err)
	}
	if i.label == "" {
		if label, err := img.Label(); err == nil {
			i.label = strings.TrimSpace(label)
		}
	}
	root, err := img.RootDir()
	if err != nil {
		return fmt.Errorf("reading installer image root: %w", err)
	}
	utils.Log.Debug().Str("label", i.label).Str("where", i.root).Msg("Extracting installer image")
	return i.extract(root, "/")
}

func (i *IsoFile) extract(dir *iso9660.File, dest string) error {
	if err := i.CreateDirectory(dest); err != nil {
		return err
	}
	children, err := dir.GetChildren()
	if err != nil {
		return fmt.Errorf("listing %s: %w", dest, err)
	}
	for _, c := range children {
		name := c.Name()
		if name == "" || name == "." || name == ".." {
			continue
		}
		p := path.Join(dest, name)
		if c.IsDir() {
			if err := i.extract(c, p); err != nil {
				return err
			}
			continue
		}
		if err := i.WriteFile(p, c.Reader(), c.Size(), nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateDirectory creates a directory on the image, parents included. It
// succeeds when the directory already exists.
func (i *IsoFile) CreateDirectory(p string) error {
	if err := vfs.MkdirAll(i.fs, i.path(p), constants.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: creating %s: %w", constants.ErrImageWrite, p, err)
	}
	return nil
}

// WriteFile writes exactly length bytes read from r to the image, failing on
// short streams. A nil mode writes the file with the default mode.
func (i *IsoFile) WriteFile(p string, r io.Reader, length int64, mode *os.FileMode) error {
	perm := constants.DefaultFileMode
	if mode != nil {
		perm = *mode
	}
	if err := i.CreateDirectory(path.Dir(path.Clean("/" + p))); err != nil {
		return err
	}
	f, err := i.fs.OpenFile(i.path(p), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.DefaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", constants.ErrImageWrite, p, err)
	}
	n, err := io.CopyN(f, r, length)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: short stream, got %d of %d bytes", constants.ErrImageWrite, p, n, length)
	}
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", constants.ErrImageWrite, p, err)
	}
	// Chmod after the write, the open mode is subject to the umask
	if err := i.fs.Chmod(i.path(p), perm); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", constants.ErrImageWrite, p, err)
	}
	return nil
}

// ReadFile reads a file from the image.
func (i *IsoFile) ReadFile(p string) ([]byte, error) {
	return i.fs.ReadFile(i.path(p))
}

// Resolve finds the image path matching p, comparing names case
// insensitively when there is no exact match. Plain ISO9660 images without
// Rock Ridge names only carry uppercase file names.
func (i *IsoFile) Resolve(p string) (string, error) {
	resolved := "/"
	for _, name := range strings.Split(strings.Trim(path.Clean("/"+p), "/"), "/") {
		if name == "" {
			continue
		}
		exact := path.Join(resolved, name)
		if i.Exists(exact) {
			resolved = exact
			continue
		}
		entries, err := i.fs.ReadDir(i.path(resolved))
		if err != nil {
			return "", err
		}
		found := false
		for _, e := range entries {
			if strings.EqualFold(e.Name(), name) {
				resolved = path.Join(resolved, e.Name())
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%s: %w", p, fs.ErrNotExist)
		}
	}
	return resolved, nil
}

// Exists reports whether a path is present on the image.
func (i *IsoFile) Exists(p string) bool {
	_, err := i.fs.Stat(i.path(p))
	return err == nil
}

// CopyDirectory copies the src tree of the same filesystem into dest on the
// image. Permission bits are kept, anything but files and directories is skipped.
func (i *IsoFile) CopyDirectory(src, dest string) error {
	if err := i.CreateDirectory(dest); err != nil {
		return err
	}
	entries, err := i.fs.ReadDir(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := path.Join(dest, e.Name())
		switch {
		case e.IsDir():
			if err := i.CopyDirectory(from, to); err != nil {
				return err
			}
		case e.Type().IsRegular():
			if err := i.copyFile(from, to); err != nil {
				return err
			}
		default:
			utils.Log.Warn().Str("what", from).Msg("Skipping non regular file")
		}
	}
	return nil
}

func (i *IsoFile) copyFile(from, to string) error {
	info, err := i.fs.Stat(from)
	if err != nil {
		return err
	}
	f, err := i.fs.Open(from)
	if err != nil {
		return err
	}
	defer f.Close()
	mode := info.Mode().Perm()
	return i.WriteFile(to, f, info.Size(), &mode)
}

// WriteISO masters the staged tree into target, replacing any previous image.
func (i *IsoFile) WriteISO(ctx context.Context, target string, w Writer, opts WriteOptions) error {
	if _, err := i.fs.Stat(target); err == nil {
		utils.Log.Debug().Str("what", target).Msg("Removing previous image")
		if err := i.fs.Remove(target); err != nil {
			return fmt.Errorf("%w: removing %s: %w", constants.ErrImageWrite, target, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", constants.ErrImageWrite, err)
	}
	if err := utils.CreateIfNotExists(i.fs, filepath.Dir(target)); err != nil {
		return fmt.Errorf("%w: %w", constants.ErrImageWrite, err)
	}
	staging, err := i.StagingDir()
	if err != nil {
		return err
	}
	out, err := i.fs.RawPath(target)
	if err != nil {
		return err
	}
	if opts.Label == "" {
		opts.Label = i.label
	}
	utils.Log.Info().Str("what", out).Str("label", opts.Label).Msg("Writing installer image")
	return w.Write(ctx, staging, out, opts)
}
