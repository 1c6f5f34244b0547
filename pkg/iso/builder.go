package iso

import (
	"fmt"
	"path"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
)

const (
	GrubConfig     = "/boot/grub/grub.cfg"
	IsolinuxConfig = "/isolinux/txt.cfg"
	isolinuxLabel  = "paranoid-autoinstall"
)

// AutoInstallBuilder turns a staged Ubuntu live server image into an
// unattended installer carrying the autoinstall document as a NoCloud seed.
type AutoInstallBuilder struct {
	Source          *IsoFile
	AutoinstallYAML string
	GrubEntryStamp  string
	// AutoinstallPrompt keeps the installer confirmation prompt, the boot entry
	// then omits the autoinstall kernel argument.
	AutoinstallPrompt bool
	SupportsEFI       bool
	SupportsMBR       bool
}

func (b *AutoInstallBuilder) Build() error {
	if !b.SupportsEFI && !b.SupportsMBR {
		return fmt.Errorf("%w: no boot mode enabled", constants.ErrInvalidParameter)
	}
	stamp := b.GrubEntryStamp
	if stamp == "" {
		stamp = constants.GrubEntryStamp
	}

	meta, err := MetaData()
	if err != nil {
		return err
	}
	if err := b.Source.CreateDirectory(constants.NoCloudDir); err != nil {
		return err
	}
	for name, content := range map[string]string{"user-data": b.AutoinstallYAML, "meta-data": meta} {
		if err := b.Source.WriteFile(path.Join(constants.NoCloudDir, name), strings.NewReader(content), int64(len(content)), nil); err != nil {
			return err
		}
	}

	if b.SupportsEFI {
		if err := b.patch(GrubConfig, func(cfg string) string { return GrubEntry(cfg, stamp, b.kernelArgs()) }); err != nil {
			return err
		}
	}
	if b.SupportsMBR {
		if err := b.patch(IsolinuxConfig, func(cfg string) string { return IsolinuxEntry(cfg, stamp, b.kernelArgs()) }); err != nil {
			return err
		}
	}
	utils.Log.Info().Str("entry", stamp).Bool("efi", b.SupportsEFI).Bool("mbr", b.SupportsMBR).Bool("prompt", b.AutoinstallPrompt).Msg("Added autoinstall boot entry")
	return nil
}

func (b *AutoInstallBuilder) kernelArgs() []string {
	args := []string{"quiet"}
	if !b.AutoinstallPrompt {
		args = append(args, "autoinstall")
	}
	return args
}

func (b *AutoInstallBuilder) patch(p string, fn func(string) string) error {
	resolved, err := b.Source.Resolve(p)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrBootConfig, err)
	}
	cfg, err := b.Source.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", constants.ErrBootConfig, resolved, err)
	}
	out := fn(string(cfg))
	utils.Log.Debug().Str("what", resolved).Msg("Patching boot menu")
	return b.Source.WriteFile(resolved, strings.NewReader(out), int64(len(out)), nil)
}

// MetaData returns a NoCloud meta-data document with a fresh instance id.
func MetaData() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("instance-id: paranoidnas-%s\n", id), nil
}

// GrubEntry adds a menu entry named stamp in front of the existing ones, so it
// is the default.
func GrubEntry(cfg, stamp string, args []string) string {
	entry := fmt.Sprintf("menuentry \"%s\" {\n\tset gfxpayload=keep\n\tlinux\t/casper/vmlinuz %s \"%s\" ---\n\tinitrd\t/casper/initrd\n}\n",
		stamp, strings.Join(args, " "), constants.NoCloudSource)
	lines := strings.SplitAfter(cfg, "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "menuentry ") {
			return strings.Join(lines[:i], "") + entry + "\n" + strings.Join(lines[i:], "")
		}
	}
	if cfg != "" && !strings.HasSuffix(cfg, "\n") {
		cfg += "\n"
	}
	return cfg + entry
}

// IsolinuxEntry adds a label named stamp and makes it the default one.
func IsolinuxEntry(cfg, stamp string, args []string) string {
	entry := fmt.Sprintf("label %s\n  menu label ^%s\n  kernel /casper/vmlinuz\n  append initrd=/casper/initrd %s %s ---\n",
		isolinuxLabel, stamp, strings.Join(args, " "), constants.NoCloudSource)
	var out []string
	replaced := false
	for _, l := range strings.Split(strings.TrimSuffix(cfg, "\n"), "\n") {
		if !replaced && strings.HasPrefix(strings.TrimSpace(l), "default ") {
			out = append(out, "default "+isolinuxLabel, strings.TrimSuffix(entry, "\n"))
			replaced = true
			continue
		}
		out = append(out, l)
	}
	if !replaced {
		out = append([]string{"default " + isolinuxLabel, strings.TrimSuffix(entry, "\n")}, out...)
	}
	return strings.Join(out, "\n") + "\n"
}
