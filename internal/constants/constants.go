package constants

import (
	"errors"
	"os"
)

var (
	// ErrDocumentShape means the template is missing a key, section or action a transformation needs.
	ErrDocumentShape = errors.New("unexpected autoinstall document shape")
	// ErrPackaging means there is no media content to overlay, neither a directory nor a bundled archive.
	ErrPackaging = errors.New("broken packaging, missing media_content directory or archive")
	// ErrUnsupportedEntry means a content archive entry can not be placed on the image.
	ErrUnsupportedEntry = errors.New("unsupported media content entry")
	// ErrImageWrite wraps any failure writing to the target image.
	ErrImageWrite = errors.New("failed writing to target image")
	// ErrInvalidParameter is a user supplied value the autoinstall document can't carry.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrBootConfig means the installer image lacks the boot menu of an enabled boot mode.
	ErrBootConfig = errors.New("boot configuration not found on installer image")
	// ErrFetch is a failed download of the base installer image.
	ErrFetch = errors.New("failed fetching installer image")
)

const (
	OpFetchISO          = "fetch-iso"
	OpRenderAutoinstall = "render-autoinstall"
	OpExtractISO        = "extract-iso"
	OpOverlayContent    = "overlay-content"
	OpBuildAutoinstall  = "build-autoinstall"
	OpWriteISO          = "write-iso"

	// MediaMountRoot is where media content lives on the installer image, mounted as /cdrom/paranoid at install time.
	MediaMountRoot = "/paranoid"

	// EFIPrefix marks storage actions that only make sense with an EFI system partition.
	EFIPrefix         = "efi"
	RootPartitionID   = "root_partition"
	GrubPartitionID   = "grub_partition"
	GrubPartitionSize = "1MB"

	GrubEntryStamp = "paranoidNAS AutoInstall"
	NoCloudDir     = "/nocloud"
	NoCloudSource  = "ds=nocloud;s=/cdrom/nocloud/"
	SeedLabel      = "cidata"

	DefaultUsername       = "paranoid"
	DefaultHostname       = "paranoid"
	DefaultLocale         = "en_US.UTF-8"
	DefaultKeyboardLayout = "us"
	DefaultBootMode       = "EFI"
	DefaultWorkingDir     = "build"
	DefaultMediaContent   = "media_content"
	DefaultOutput         = "paranoidNAS.iso"
	DefaultRelease        = "20.04"
	DefaultEnvFile        = "paranoidnas.env"
	EnvPrefix             = "PARANOIDNAS_"
)

const (
	// ExecutableFileMode is forced on owner-executable content, r-xr--r--.
	ExecutableFileMode os.FileMode = 0o544
	DefaultFileMode    os.FileMode = 0o644
	DefaultDirMode     os.FileMode = 0o755
)

// InteractiveSections lists the autoinstall sections that may be left to the user.
func InteractiveSections() []string {
	return []string{"storage", "network"}
}
