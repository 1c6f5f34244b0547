package dag

import (
	"github.com/hashicorp/go-multierror"
	cnst "github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterBuild registers the dag building an autoinstall installer image.
// Fetching the base image and rendering the autoinstall document don't depend
// on each other. Media content goes on the image before the boot entries are
// added, and the image is only mastered once both are in place.
func RegisterBuild(s *state.State, g *herd.Graph) error {
	var err *multierror.Error

	err = multierror.Append(err, s.LogIfErrorAndReturn(s.FetchISODagStep(g), "fetch installer image"))
	err = multierror.Append(err, s.LogIfErrorAndReturn(s.RenderAutoinstallDagStep(g), "render autoinstall"))

	// Needs the downloaded image
	err = multierror.Append(err, s.LogIfErrorAndReturn(s.ExtractISODagStep(g, herd.WithDeps(cnst.OpFetchISO)), "extract installer image"))

	err = multierror.Append(err, s.LogIfErrorAndReturn(s.OverlayContentDagStep(g, herd.WithDeps(cnst.OpExtractISO)), "overlay media content"))
	err = multierror.Append(err, s.LogIfErrorAndReturn(s.BuildAutoinstallDagStep(g,
		herd.WithDeps(cnst.OpRenderAutoinstall, cnst.OpOverlayContent)), "build autoinstall"))
	err = multierror.Append(err, s.LogIfErrorAndReturn(s.WriteISODagStep(g, herd.WithDeps(cnst.OpBuildAutoinstall)), "write installer image"))
	return err.ErrorOrNil()
}
