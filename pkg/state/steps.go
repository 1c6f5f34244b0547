package state

import (
	"context"
	"errors"
	"fmt"
	"os"

	cnst "github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/paranoidnas/media/pkg/autoinstall"
	"github.com/paranoidnas/media/pkg/iso"
	"github.com/paranoidnas/media/pkg/overlay"
	"github.com/spectrocloud-labs/herd"
)

var errMissingInput = errors.New("missing input from a previous step")

// FetchISODagStep adds the step downloading the base installer image.
func (s *State) FetchISODagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpFetchISO, append(opts, herd.WithCallback(func(ctx context.Context) error {
		if s.Fetcher == nil {
			return fmt.Errorf("%w: no installer image fetcher", errMissingInput)
		}
		p, err := s.Fetcher.Fetch(ctx, s.Progress)
		if err != nil {
			return err
		}
		utils.Log.Info().Str("what", p).Msg("Installer image ready")
		s.isoPath = p
		return nil
	}))...)
}

// RenderAutoinstallDagStep adds the step rendering the autoinstall document.
func (s *State) RenderAutoinstallDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpRenderAutoinstall, append(opts, herd.WithCallback(func(_ context.Context) error {
		tmpl := s.Template
		if tmpl == nil {
			tmpl = autoinstall.Template()
		}
		out, err := autoinstall.Transform(tmpl, s.BootMode, s.Params)
		if err != nil {
			return err
		}
		s.autoinstall = out
		plan, err := autoinstall.StoragePlan(out)
		if err != nil {
			return err
		}
		for _, a := range plan {
			utils.Log.Debug().Str("type", a.Type).Str("id", a.ID).Str("size", a.Size).Str("flag", a.Flag).Msg("Storage action")
		}
		return nil
	}))...)
}

// ExtractISODagStep adds the step staging the base image content for modification.
// Any previous staging tree is removed first.
func (s *State) ExtractISODagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpExtractISO, append(opts, herd.WithCallback(func(_ context.Context) error {
		if s.isoPath == "" {
			return fmt.Errorf("%w: installer image", errMissingInput)
		}
		staging := s.path("staging")
		if err := s.FS.RemoveAll(staging); err != nil {
			return err
		}
		var isoOpts []iso.Option
		if s.Label != "" {
			isoOpts = append(isoOpts, iso.WithLabel(s.Label))
		}
		img, err := iso.NewIsoFile(s.FS, staging, isoOpts...)
		if err != nil {
			return err
		}

		f, err := s.FS.OpenFile(s.isoPath, os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := img.Extract(f); err != nil {
			return err
		}
		s.image = img
		return nil
	}))...)
}

// OverlayContentDagStep adds the step placing the media content on the image.
func (s *State) OverlayContentDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpOverlayContent, append(opts, herd.WithCallback(func(_ context.Context) error {
		if s.image == nil {
			return fmt.Errorf("%w: staged image", errMissingInput)
		}
		return overlay.Overlay(s.image, s.Providers...)
	}))...)
}

// BuildAutoinstallDagStep adds the step seeding the autoinstall document and boot entries.
func (s *State) BuildAutoinstallDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBuildAutoinstall, append(opts, herd.WithCallback(func(_ context.Context) error {
		if s.image == nil || s.autoinstall == "" {
			return fmt.Errorf("%w: staged image and autoinstall document", errMissingInput)
		}
		b := &iso.AutoInstallBuilder{
			Source:            s.image,
			AutoinstallYAML:   s.autoinstall,
			GrubEntryStamp:    cnst.GrubEntryStamp,
			AutoinstallPrompt: s.Prompt,
			SupportsEFI:       s.BootMode == autoinstall.EFI,
			SupportsMBR:       s.BootMode == autoinstall.MBR,
		}
		return b.Build()
	}))...)
}

// WriteISODagStep adds the step mastering the final image.
func (s *State) WriteISODagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpWriteISO, append(opts, herd.WithCallback(func(ctx context.Context) error {
		if s.image == nil {
			return fmt.Errorf("%w: staged image", errMissingInput)
		}
		if s.Writer == nil {
			return fmt.Errorf("%w: no image writer", errMissingInput)
		}
		return s.image.WriteISO(ctx, s.Output, s.Writer, iso.WriteOptions{
			EFI: s.BootMode == autoinstall.EFI,
			MBR: s.BootMode == autoinstall.MBR,
		})
	}))...)
}
