package overlay_test

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/pkg/overlay"
	"github.com/twpayne/go-vfs/v4/vfst"
)

type call struct {
	Op     string
	Path   string
	Src    string
	Length int64
	Mode   *os.FileMode
	Data   string
}

// fakeImage records every call made by the overlay engine.
type fakeImage struct {
	calls  []call
	failOn string
}

func (f *fakeImage) CreateDirectory(path string) error {
	f.calls = append(f.calls, call{Op: "mkdir", Path: path})
	if path == f.failOn {
		return errors.New("disk full")
	}
	return nil
}

func (f *fakeImage) WriteFile(path string, r io.Reader, length int64, mode *os.FileMode) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.calls = append(f.calls, call{Op: "write", Path: path, Length: length, Mode: mode, Data: string(data)})
	if path == f.failOn {
		return errors.New("disk full")
	}
	return nil
}

func (f *fakeImage) CopyDirectory(src, dest string) error {
	f.calls = append(f.calls, call{Op: "copy", Src: src, Path: dest})
	return nil
}

type entry struct {
	name     string
	typeflag byte
	mode     int64
	body     string
	linkname string
}

func archive(entries ...entry) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typeflag, Mode: e.mode, Size: int64(len(e.body)), Linkname: e.linkname}
		if e.typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		Expect(tw.WriteHeader(hdr)).To(Succeed())
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			Expect(err).ToNot(HaveOccurred())
		}
	}
	Expect(tw.Close()).To(Succeed())
	return buf.Bytes()
}

// spyProvider records whether it was consulted.
type spyProvider struct {
	available bool
	consulted bool
	source    overlay.Source
}

func (s *spyProvider) Name() string { return "spy" }

func (s *spyProvider) Available() bool {
	s.consulted = true
	return s.available
}

func (s *spyProvider) Source() (overlay.Source, error) { return s.source, nil }

var _ = Describe("archive overlay", func() {
	var img *fakeImage
	var content []byte

	BeforeEach(func() {
		img = &fakeImage{}
		content = archive(
			entry{name: "./", typeflag: tar.TypeDir, mode: 0o755},
			entry{name: "./dir/", typeflag: tar.TypeDir, mode: 0o755},
			entry{name: "./dir/file.txt", typeflag: tar.TypeReg, mode: 0o644, body: "plain text\n"},
			entry{name: "./dir/run.sh", typeflag: tar.TypeReg, mode: 0o755, body: "#!/bin/sh\necho run\n"},
		)
	})

	It("replicates directories, files and executable bits under the mount root", func() {
		src := overlay.ArchiveSource{Reader: bytes.NewReader(content)}
		Expect(src.Apply(img, constants.MediaMountRoot)).To(Succeed())

		Expect(img.calls).To(HaveLen(4))
		Expect(img.calls[0]).To(Equal(call{Op: "mkdir", Path: "/paranoid"}))
		Expect(img.calls[1]).To(Equal(call{Op: "mkdir", Path: "/paranoid/dir"}))

		Expect(img.calls[2].Path).To(Equal("/paranoid/dir/file.txt"))
		Expect(img.calls[2].Length).To(BeEquivalentTo(len("plain text\n")))
		Expect(img.calls[2].Data).To(Equal("plain text\n"))
		Expect(img.calls[2].Mode).To(BeNil())

		Expect(img.calls[3].Path).To(Equal("/paranoid/dir/run.sh"))
		Expect(img.calls[3].Length).To(BeEquivalentTo(len("#!/bin/sh\necho run\n")))
		Expect(img.calls[3].Mode).ToNot(BeNil())
		Expect(*img.calls[3].Mode).To(Equal(os.FileMode(0o544)))
	})

	It("only looks at the owner execute bit", func() {
		content = archive(entry{name: "group-exec", typeflag: tar.TypeReg, mode: 0o654, body: "x"})
		Expect(overlay.ArchiveSource{Reader: bytes.NewReader(content)}.Apply(img, "/paranoid")).To(Succeed())
		Expect(img.calls[1].Mode).To(BeNil())
		Expect(overlay.IsExecutable(0o100)).To(BeTrue())
		Expect(overlay.IsExecutable(0o011)).To(BeFalse())
	})

	It("reads gzipped archives", func() {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write(content)
		Expect(err).ToNot(HaveOccurred())
		Expect(gz.Close()).To(Succeed())

		Expect(overlay.ArchiveSource{Reader: &buf}.Apply(img, "/paranoid")).To(Succeed())
		Expect(img.calls).To(HaveLen(4))
		Expect(img.calls[3].Data).To(Equal("#!/bin/sh\necho run\n"))
	})

	It("skips unsupported entries unless strict", func() {
		content = archive(
			entry{name: "link", typeflag: tar.TypeSymlink, mode: 0o777, linkname: "README.md"},
			entry{name: "README.md", typeflag: tar.TypeReg, mode: 0o644, body: "hi"},
		)
		Expect(overlay.ArchiveSource{Reader: bytes.NewReader(content)}.Apply(img, "/paranoid")).To(Succeed())
		Expect(img.calls).To(HaveLen(2))
		Expect(img.calls[1].Path).To(Equal("/paranoid/README.md"))

		img = &fakeImage{}
		err := overlay.ArchiveSource{Reader: bytes.NewReader(content), Strict: true}.Apply(img, "/paranoid")
		Expect(err).To(MatchError(constants.ErrUnsupportedEntry))
		Expect(img.calls).To(HaveLen(1))
	})

	It("refuses entries escaping the mount root", func() {
		content = archive(entry{name: "../etc/passwd", typeflag: tar.TypeReg, mode: 0o644, body: "root"})
		err := overlay.ArchiveSource{Reader: bytes.NewReader(content)}.Apply(img, "/paranoid")
		Expect(err).To(MatchError(constants.ErrUnsupportedEntry))
	})

	It("aborts on the first image write failure", func() {
		img.failOn = "/paranoid/dir/file.txt"
		err := overlay.ArchiveSource{Reader: bytes.NewReader(content)}.Apply(img, "/paranoid")
		Expect(err).To(MatchError(constants.ErrImageWrite))
		Expect(img.calls).To(HaveLen(3))
	})

	It("aborts when the mount root can't be created", func() {
		img.failOn = "/paranoid"
		err := overlay.ArchiveSource{Reader: bytes.NewReader(content)}.Apply(img, "/paranoid")
		Expect(err).To(MatchError(constants.ErrImageWrite))
		Expect(img.calls).To(HaveLen(1))
	})

	It("fails on corrupted archives", func() {
		err := overlay.ArchiveSource{Reader: bytes.NewReader(content[:700])}.Apply(img, "/paranoid")
		Expect(err).To(HaveOccurred())
	})

	It("ships a bundled archive with an executable setup script", func() {
		Expect(overlay.Bundled()).ToNot(BeEmpty())
		Expect(overlay.ArchiveSource{Reader: bytes.NewReader(overlay.Bundled())}.Apply(img, "/paranoid")).To(Succeed())

		var setup *call
		for i := range img.calls {
			if img.calls[i].Path == "/paranoid/bin/paranoid-setup" {
				setup = &img.calls[i]
			}
		}
		Expect(setup).ToNot(BeNil())
		Expect(setup.Mode).ToNot(BeNil())
		Expect(setup.Data).To(HavePrefix("#!/bin/sh"))
	})
})

var _ = Describe("content source resolution", func() {
	var img *fakeImage

	BeforeEach(func() {
		img = &fakeImage{}
	})

	It("uses a local directory without consulting the archive", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
			"/src/media_content/README.md": "hi",
		})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		archive := &spyProvider{available: true}
		Expect(overlay.Overlay(img, overlay.LocalDirectory(fs, "/src/media_content"), archive)).To(Succeed())
		Expect(archive.consulted).To(BeFalse())
		Expect(img.calls).To(Equal([]call{{Op: "copy", Src: "/src/media_content", Path: "/paranoid"}}))
	})

	It("falls back to the bundled archive", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
			"/src/media_content": "not a directory",
		})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		data := archive(entry{name: "a.txt", typeflag: tar.TypeReg, mode: 0o644, body: "a"})
		Expect(overlay.Overlay(img, overlay.LocalDirectory(fs, "/src/media_content"), overlay.BundledArchive(data, false))).To(Succeed())
		Expect(img.calls).To(HaveLen(2))
		Expect(img.calls[1].Path).To(Equal("/paranoid/a.txt"))
	})

	It("fails with a packaging error when nothing is available", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		err = overlay.Overlay(img, overlay.LocalDirectory(fs, "/missing"), overlay.BundledArchive(nil, false))
		Expect(err).To(MatchError(constants.ErrPackaging))
		Expect(img.calls).To(BeEmpty())
	})

	It("resolves the default providers to the bundled archive", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		src, err := overlay.Resolve(overlay.DefaultProviders(fs, "media_content", true)...)
		Expect(err).ToNot(HaveOccurred())
		Expect(src).To(BeAssignableToTypeOf(overlay.ArchiveSource{}))
		Expect(src.(overlay.ArchiveSource).Strict).To(BeTrue())
	})
})
