package iso

import (
	"fmt"
	"io"
	"strings"

	"github.com/kdomanski/iso9660"
	"github.com/paranoidnas/media/internal/constants"
)

// CreateSeedISO writes a standalone NoCloud seed volume carrying the
// autoinstall document, for booting an unmodified installer next to it.
func CreateSeedISO(w io.Writer, userData string) error {
	meta, err := MetaData()
	if err != nil {
		return err
	}
	iw, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("failed to create iso9660 writer: %w", err)
	}
	defer iw.Cleanup() //nolint:errcheck

	if err := iw.AddFile(strings.NewReader(userData), "user-data"); err != nil {
		return fmt.Errorf("failed to add user-data to seed: %w", err)
	}
	if err := iw.AddFile(strings.NewReader(meta), "meta-data"); err != nil {
		return fmt.Errorf("failed to add meta-data to seed: %w", err)
	}
	if err := iw.WriteTo(w, constants.SeedLabel); err != nil {
		return fmt.Errorf("%w: %w", constants.ErrImageWrite, err)
	}
	return nil
}
