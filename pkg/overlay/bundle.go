package overlay

import _ "embed"

//go:generate tar --owner=0 --group=0 --numeric-owner -cf media_content.tar -C ../../media_content .

//go:embed media_content.tar
var bundled []byte

// Bundled returns the media content archive embedded in the binary.
func Bundled() []byte {
	return bundled
}
