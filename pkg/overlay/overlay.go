package overlay

import (
	"fmt"
	"io"
	"os"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
)

// Image is the virtual filesystem of the target installer image.
type Image interface {
	// CreateDirectory creates a directory, succeeding if it already exists.
	CreateDirectory(path string) error
	// WriteFile writes exactly length bytes from r. A nil mode keeps the image default.
	WriteFile(path string, r io.Reader, length int64, mode *os.FileMode) error
	// CopyDirectory copies a host directory tree into the image.
	CopyDirectory(src, dest string) error
}

// Source is media content that can be replicated onto an image.
type Source interface {
	Apply(img Image, root string) error
}

// Overlay resolves the content source from the given providers and places it
// under the media mount root of the image.
func Overlay(img Image, providers ...Provider) error {
	src, err := Resolve(providers...)
	if err != nil {
		return err
	}
	return src.Apply(img, constants.MediaMountRoot)
}

// DirectorySource is a live directory tree on the host.
type DirectorySource struct {
	Path string
}

// Apply hands the whole tree to the image copy primitive, the host filesystem
// already carries structure and permissions.
func (d DirectorySource) Apply(img Image, root string) error {
	utils.Log.Debug().Str("what", d.Path).Str("where", root).Msg("Copying media content directory")
	if err := img.CopyDirectory(d.Path, root); err != nil {
		return fmt.Errorf("%w: copying %s to %s: %w", constants.ErrImageWrite, d.Path, root, err)
	}
	return nil
}
