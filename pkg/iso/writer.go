package iso

import (
	"context"
	"fmt"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
)

// WriteOptions select the boot records of a mastered image.
type WriteOptions struct {
	Label string
	MBR   bool
	EFI   bool
}

// Writer masters a staged directory tree into an ISO image.
type Writer interface {
	Write(ctx context.Context, stagingDir, target string, opts WriteOptions) error
}

// XorrisoWriter masters images with xorriso in mkisofs emulation mode.
type XorrisoWriter struct {
	Console utils.Console
	Binary  string
}

func NewXorrisoWriter() *XorrisoWriter {
	return &XorrisoWriter{Console: utils.ExecConsole{}, Binary: "xorriso"}
}

// Args returns the xorriso arguments for the given options.
func (x *XorrisoWriter) Args(stagingDir, target string, opts WriteOptions) []string {
	args := []string{"-as", "mkisofs", "-r", "-J", "-joliet-long"}
	if opts.Label != "" {
		args = append(args, "-V", opts.Label)
	}
	if opts.MBR {
		args = append(args,
			"-b", "isolinux/isolinux.bin",
			"-c", "isolinux/boot.cat",
			"-no-emul-boot", "-boot-load-size", "4", "-boot-info-table",
		)
	}
	if opts.EFI {
		if opts.MBR {
			args = append(args, "-eltorito-alt-boot")
		}
		args = append(args, "-e", "boot/grub/efi.img", "-no-emul-boot")
	}
	return append(args, "-o", target, stagingDir)
}

func (x *XorrisoWriter) Write(ctx context.Context, stagingDir, target string, opts WriteOptions) error {
	bin := x.Binary
	if bin == "" {
		bin = "xorriso"
	}
	out, err := x.Console.Run(ctx, bin, x.Args(stagingDir, target, opts)...)
	if err != nil {
		utils.Log.Err(err).Str("output", out).Msg("xorriso")
		return fmt.Errorf("%w: %w", constants.ErrImageWrite, err)
	}
	utils.Log.Debug().Str("output", out).Msg("xorriso")
	return nil
}
