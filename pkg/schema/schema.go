package schema

// StorageAction is one curtin storage action of the autoinstall storage plan.
// Only the fields the media builder reads or rewrites are decoded.
type StorageAction struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
	Size string `yaml:"size,omitempty"`
	Flag string `yaml:"flag,omitempty"`
	// GrubDevice is nil when the action has no grub_device key at all.
	GrubDevice *bool  `yaml:"grub_device,omitempty"`
	Device     string `yaml:"device,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

// StoragePlan is the autoinstall storage.config sequence.
type StoragePlan []StorageAction

// ByID returns the first action with the given id.
func (p StoragePlan) ByID(id string) (StorageAction, bool) {
	for _, a := range p {
		if a.ID == id {
			return a, true
		}
	}
	return StorageAction{}, false
}

// WithFlag returns all the actions carrying the given flag.
func (p StoragePlan) WithFlag(flag string) StoragePlan {
	var out StoragePlan
	for _, a := range p {
		if a.Flag == flag {
			out = append(out, a)
		}
	}
	return out
}
