package state

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/paranoidnas/media/pkg/autoinstall"
	"github.com/paranoidnas/media/pkg/iso"
	"github.com/paranoidnas/media/pkg/overlay"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// State carries the inputs of an installer build and the results passed
// between its DAG steps.
type State struct {
	FS         vfs.FS
	WorkingDir string // downloads and the staged image live here e.g. build
	Output     string // final image e.g. build/paranoidNAS.iso
	Label      string // volume label, the base image one when empty

	BootMode autoinstall.BootMode
	Params   autoinstall.Params
	Template []byte // autoinstall template, the bundled one when nil
	Prompt   bool   // keep the installer confirmation prompt

	Providers []overlay.Provider // media content, first available wins
	Fetcher   iso.Fetcher
	Writer    iso.Writer
	Progress  iso.Progress

	isoPath     string
	autoinstall string
	image       *iso.IsoFile
}

func (s *State) path(p ...string) string {
	return filepath.Join(append([]string{s.WorkingDir}, p...)...)
}

// Autoinstall returns the rendered autoinstall document, once rendered.
func (s *State) Autoinstall() string {
	return s.autoinstall
}

// Image returns the staged installer image, once extracted.
func (s *State) Image() *iso.IsoFile {
	return s.image
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// Errors collects the errors of every step of an already run dag.
func (s *State) Errors(g *herd.Graph) error {
	var err *multierror.Error
	for _, layer := range g.Analyze() {
		for _, op := range layer {
			if op.Error != nil {
				err = multierror.Append(err, fmt.Errorf("%s: %w", op.Name, op.Error))
			}
		}
	}
	return err.ErrorOrNil()
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		utils.Log.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		utils.Log.Err(e).Msg(msgContext)
	}
	return e
}
