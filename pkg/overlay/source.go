package overlay

import (
	"bytes"
	"fmt"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/twpayne/go-vfs/v4"
)

// Provider is a candidate location of the media content.
type Provider interface {
	Name() string
	// Available reports whether the provider can supply content, without reading it.
	Available() bool
	Source() (Source, error)
}

// Resolve returns the source of the first available provider, in order.
// Later providers are not consulted once one is available.
func Resolve(providers ...Provider) (Source, error) {
	for _, p := range providers {
		if !p.Available() {
			utils.Log.Debug().Str("what", p.Name()).Msg("Media content provider not available")
			continue
		}
		utils.Log.Debug().Str("what", p.Name()).Msg("Using media content provider")
		return p.Source()
	}
	return nil, constants.ErrPackaging
}

// DefaultProviders is the usual resolution order: a local directory, for
// development trees, then the archive bundled in the binary.
func DefaultProviders(fs vfs.FS, dir string, strict bool) []Provider {
	return []Provider{
		LocalDirectory(fs, dir),
		BundledArchive(Bundled(), strict),
	}
}

type localDirectory struct {
	fs   vfs.FS
	path string
}

// LocalDirectory provides the content of a directory on the given filesystem.
func LocalDirectory(fs vfs.FS, path string) Provider {
	return localDirectory{fs: fs, path: path}
}

func (l localDirectory) Name() string {
	return fmt.Sprintf("local directory %s", l.path)
}

func (l localDirectory) Available() bool {
	if l.path == "" {
		return false
	}
	info, err := l.fs.Stat(l.path)
	return err == nil && info.IsDir()
}

func (l localDirectory) Source() (Source, error) {
	return DirectorySource{Path: l.path}, nil
}

type bundledArchive struct {
	data   []byte
	strict bool
}

// BundledArchive provides content from an in memory archive, unavailable when empty.
func BundledArchive(data []byte, strict bool) Provider {
	return bundledArchive{data: data, strict: strict}
}

func (b bundledArchive) Name() string {
	return "bundled media_content archive"
}

func (b bundledArchive) Available() bool {
	return len(b.data) > 0
}

func (b bundledArchive) Source() (Source, error) {
	return ArchiveSource{Reader: bytes.NewReader(b.data), Strict: b.strict}, nil
}
