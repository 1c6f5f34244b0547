package autoinstall

import (
	"fmt"
	"strings"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/paranoidnas/media/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ConvertToMBRStorage rewrites the EFI storage plan under the given autoinstall
// mapping into a legacy BIOS layout:
//  1. the first partition action becomes the 1MB bios_grub partition
//  2. root_partition gets the boot flag
//  3. every action with an efi prefixed id is dropped
//
// The template always lists the ESP first, that's the partition recycled in step 1.
// Nothing is changed when an error is returned.
func ConvertToMBRStorage(autoinstall *yaml.Node) error {
	config, err := lookupKind(autoinstall, yaml.SequenceNode, "storage", "config")
	if err != nil {
		return err
	}

	var grubPart, rootPart *yaml.Node
	for i, action := range config.Content {
		if action.Kind != yaml.MappingNode {
			return fmt.Errorf("%w: storage action %d is not a mapping", constants.ErrDocumentShape, i)
		}
		if _, ok := scalarValue(action, "id"); !ok {
			return fmt.Errorf("%w: storage action %d has no id", constants.ErrDocumentShape, i)
		}
		if t, _ := scalarValue(action, "type"); t == "partition" && grubPart == nil {
			grubPart = action
		}
		if id, _ := scalarValue(action, "id"); id == constants.RootPartitionID && rootPart == nil {
			rootPart = action
		}
	}
	if grubPart == nil {
		return fmt.Errorf("%w: no partition action in storage.config", constants.ErrDocumentShape)
	}
	if keyIndex(grubPart, "grub_device") < 0 {
		return fmt.Errorf("%w: first partition action has no grub_device", constants.ErrDocumentShape)
	}
	if rootPart == nil {
		return fmt.Errorf("%w: no %s action in storage.config", constants.ErrDocumentShape, constants.RootPartitionID)
	}

	oldID, _ := scalarValue(grubPart, "id")
	setScalar(grubPart, "id", constants.GrubPartitionID)
	setScalar(grubPart, "size", constants.GrubPartitionSize)
	setScalar(grubPart, "flag", "bios_grub")
	deleteKey(grubPart, "grub_device")
	utils.Log.Debug().Str("what", oldID).Str("to", constants.GrubPartitionID).Msg("Converted partition to bios_grub")

	setScalar(rootPart, "flag", "boot")

	kept := config.Content[:0]
	for _, action := range config.Content {
		id, _ := scalarValue(action, "id")
		if strings.HasPrefix(id, constants.EFIPrefix) {
			utils.Log.Debug().Str("what", id).Msg("Dropping EFI storage action")
			continue
		}
		kept = append(kept, action)
	}
	config.Content = kept
	return nil
}

// StoragePlan decodes the storage actions of a rendered autoinstall document.
func StoragePlan(document string) (schema.StoragePlan, error) {
	var doc struct {
		Autoinstall struct {
			Storage struct {
				Config schema.StoragePlan `yaml:"config"`
			} `yaml:"storage"`
		} `yaml:"autoinstall"`
	}
	if err := yaml.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrDocumentShape, err)
	}
	return doc.Autoinstall.Storage.Config, nil
}
