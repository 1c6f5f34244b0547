package autoinstall

import (
	"bytes"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"gopkg.in/yaml.v3"
)

//go:embed user-data.yaml
var template []byte

// Template returns a copy of the bundled autoinstall template.
func Template() []byte {
	return bytes.Clone(template)
}

type BootMode int

const (
	MBR BootMode = iota + 1
	EFI
)

func (b BootMode) String() string {
	switch b {
	case MBR:
		return "MBR"
	case EFI:
		return "EFI"
	default:
		return "unknown"
	}
}

// ParseBootMode parses a boot mode name, case insensitive.
func ParseBootMode(mode string) (BootMode, error) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "MBR":
		return MBR, nil
	case "EFI":
		return EFI, nil
	default:
		return 0, fmt.Errorf("%w: unsupported boot mode %q, expected MBR or EFI", constants.ErrInvalidParameter, mode)
	}
}

// Params are the user values substituted into the template.
type Params struct {
	Username       string
	Hostname       string
	Locale         string
	KeyboardLayout string
	// AuthorizedKeys are written in order, duplicates included. No keys removes
	// ssh.authorized-keys entirely, which the installer reads differently than an empty list.
	AuthorizedKeys []string
	// Timezone is set as the installed system timezone, empty lets the installer autodetect it.
	Timezone string
	// InteractiveSections are left for the user to answer during the install.
	InteractiveSections []string
}

// Validate checks the params can be carried by the autoinstall document.
func (p Params) Validate() error {
	var err *multierror.Error
	required := []struct{ name, value string }{
		{"username", p.Username},
		{"hostname", p.Hostname},
		{"locale", p.Locale},
		{"keyboard layout", p.KeyboardLayout},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			err = multierror.Append(err, fmt.Errorf("%w: %s can't be empty", constants.ErrInvalidParameter, r.name))
		}
	}
	if strings.ContainsAny(p.Hostname, " \t\n") {
		err = multierror.Append(err, fmt.Errorf("%w: hostname %q contains whitespace", constants.ErrInvalidParameter, p.Hostname))
	}
	for _, s := range p.InteractiveSections {
		if !slices.Contains(constants.InteractiveSections(), s) {
			err = multierror.Append(err, fmt.Errorf("%w: unknown interactive section %q", constants.ErrInvalidParameter, s))
		}
	}
	return err.ErrorOrNil()
}

// Render transforms the bundled template.
func Render(mode BootMode, p Params) (string, error) {
	return Transform(template, mode, p)
}

// Transform turns a boot mode agnostic autoinstall template into the final
// document for the given boot mode and params. Nodes that are not substituted
// keep their comments and quoting. No output is produced on error.
func Transform(tmpl []byte, mode BootMode, p Params) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(tmpl, &doc); err != nil {
		return "", fmt.Errorf("%w: parsing template: %w", constants.ErrDocumentShape, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return "", fmt.Errorf("%w: empty template", constants.ErrDocumentShape)
	}
	data, err := lookupKind(doc.Content[0], yaml.MappingNode, "autoinstall")
	if err != nil {
		return "", err
	}

	switch mode {
	case MBR:
		if err := ConvertToMBRStorage(data); err != nil {
			return "", err
		}
	case EFI:
	default:
		return "", fmt.Errorf("%w: unsupported boot mode %d", constants.ErrInvalidParameter, mode)
	}

	identity, err := lookupKind(data, yaml.MappingNode, "identity")
	if err != nil {
		return "", err
	}
	keyboard, err := lookupKind(data, yaml.MappingNode, "keyboard")
	if err != nil {
		return "", err
	}
	ssh, err := lookupKind(data, yaml.MappingNode, "ssh")
	if err != nil {
		return "", err
	}
	keys, err := lookupKind(ssh, yaml.SequenceNode, "authorized-keys")
	if err != nil {
		return "", err
	}

	setScalar(identity, "username", p.Username)
	setScalar(identity, "hostname", p.Hostname)
	setScalar(data, "locale", p.Locale)
	setScalar(keyboard, "layout", p.KeyboardLayout)

	if len(p.AuthorizedKeys) > 0 {
		replaceItems(keys, p.AuthorizedKeys)
	} else {
		deleteKey(ssh, "authorized-keys")
	}

	if p.Timezone != "" {
		userData, err := ensureMapping(data, "user-data")
		if err != nil {
			return "", err
		}
		setScalar(userData, "timezone", p.Timezone)
	}
	if len(p.InteractiveSections) > 0 {
		setNode(data, "interactive-sections", seqNode(p.InteractiveSections))
	}

	utils.Log.Debug().Str("mode", mode.String()).Str("username", p.Username).Str("hostname", p.Hostname).Int("keys", len(p.AuthorizedKeys)).Msg("Rendered autoinstall")
	return encode(&doc)
}

func encode(doc *yaml.Node) (string, error) {
	var buf bytes.Buffer
	// yaml.v3 emits with an unbounded line width, long keys are never folded
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encoding autoinstall: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding autoinstall: %w", err)
	}
	return buf.String(), nil
}
