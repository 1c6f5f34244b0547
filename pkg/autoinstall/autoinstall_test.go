package autoinstall_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/pkg/autoinstall"
	"gopkg.in/yaml.v3"
)

func decode(text string) map[string]interface{} {
	var doc map[string]interface{}
	ExpectWithOffset(1, yaml.Unmarshal([]byte(text), &doc)).To(Succeed())
	data, ok := doc["autoinstall"].(map[string]interface{})
	ExpectWithOffset(1, ok).To(BeTrue())
	return data
}

var _ = Describe("autoinstall rendering", func() {
	var params autoinstall.Params

	BeforeEach(func() {
		params = autoinstall.Params{
			Username:       "alice",
			Hostname:       "vault",
			Locale:         "de_DE.UTF-8",
			KeyboardLayout: "de",
			AuthorizedKeys: []string{"ssh-ed25519 AAAAkey1 alice@laptop", "ssh-rsa AAAAkey2 alice@desktop"},
		}
	})

	Context("EFI boot mode", func() {
		It("keeps the storage plan untouched", func() {
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())

			want := decode(string(autoinstall.Template()))["storage"]
			Expect(decode(out)["storage"]).To(Equal(want))

			plan, err := autoinstall.StoragePlan(out)
			Expect(err).ToNot(HaveOccurred())
			efi, ok := plan.ByID("efi_partition")
			Expect(ok).To(BeTrue())
			Expect(efi.Size).To(Equal("512MB"))
			Expect(plan.WithFlag("bios_grub")).To(BeEmpty())
		})

		It("substitutes the identity, locale and keyboard", func() {
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())

			data := decode(out)
			Expect(data["identity"]).To(HaveKeyWithValue("username", "alice"))
			Expect(data["identity"]).To(HaveKeyWithValue("hostname", "vault"))
			Expect(data["locale"]).To(Equal("de_DE.UTF-8"))
			Expect(data["keyboard"]).To(HaveKeyWithValue("layout", "de"))
		})
	})

	Context("MBR boot mode", func() {
		It("converts the storage plan to a bios_grub layout", func() {
			out, err := autoinstall.Render(autoinstall.MBR, params)
			Expect(err).ToNot(HaveOccurred())

			plan, err := autoinstall.StoragePlan(out)
			Expect(err).ToNot(HaveOccurred())

			grub := plan.WithFlag("bios_grub")
			Expect(grub).To(HaveLen(1))
			Expect(grub[0].ID).To(Equal("grub_partition"))
			Expect(grub[0].Size).To(Equal("1MB"))
			Expect(grub[0].Type).To(Equal("partition"))
			Expect(grub[0].GrubDevice).To(BeNil())

			root, ok := plan.ByID("root_partition")
			Expect(ok).To(BeTrue())
			Expect(root.Flag).To(Equal("boot"))

			for _, a := range plan {
				Expect(a.ID).ToNot(HavePrefix("efi"))
			}
			// disk, grub, root, root_format, root_mount
			Expect(plan).To(HaveLen(5))
			Expect(plan[0].ID).To(Equal("boot_disk"))
			Expect(plan[1].ID).To(Equal("grub_partition"))
		})

		It("fails without a root_partition action", func() {
			tmpl := strings.ReplaceAll(string(autoinstall.Template()), "root_partition", "data_partition")
			out, err := autoinstall.Transform([]byte(tmpl), autoinstall.MBR, params)
			Expect(err).To(MatchError(constants.ErrDocumentShape))
			Expect(out).To(BeEmpty())
		})

		It("fails without any partition action", func() {
			tmpl := strings.ReplaceAll(string(autoinstall.Template()), "type: partition", "type: lvm_partition")
			_, err := autoinstall.Transform([]byte(tmpl), autoinstall.MBR, params)
			Expect(err).To(MatchError(constants.ErrDocumentShape))
		})

		It("does not need a root_partition in EFI mode", func() {
			tmpl := strings.ReplaceAll(string(autoinstall.Template()), "root_partition", "data_partition")
			_, err := autoinstall.Transform([]byte(tmpl), autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Context("authorized keys", func() {
		It("removes the key entirely when there are no keys", func() {
			params.AuthorizedKeys = nil
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).ToNot(ContainSubstring("authorized-keys"))

			ssh := decode(out)["ssh"]
			Expect(ssh).ToNot(HaveKey("authorized-keys"))
			Expect(ssh).To(HaveKeyWithValue("install-server", true))
		})

		It("writes the keys in order, duplicates included", func() {
			params.AuthorizedKeys = []string{"k2", "k1", "k2"}
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())

			ssh := decode(out)["ssh"].(map[string]interface{})
			Expect(ssh["authorized-keys"]).To(Equal([]interface{}{"k2", "k1", "k2"}))
			Expect(out).ToNot(ContainSubstring("Placeholder"))
		})

		It("never wraps long keys", func() {
			long := "ssh-rsa " + strings.Repeat("A", 700) + " someone with a very long comment"
			params.AuthorizedKeys = []string{long}
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(ContainSubstring(long))
		})
	})

	Context("formatting", func() {
		It("keeps the cloud-config header, comments and quoting of untouched nodes", func() {
			out, err := autoinstall.Render(autoinstall.MBR, params)
			Expect(err).ToNot(HaveOccurred())

			Expect(out).To(HavePrefix("#cloud-config\n"))
			Expect(out).To(ContainSubstring("# Password login is disabled over ssh"))
			Expect(out).To(ContainSubstring(`password: "$6$paranoidnas$`))
			Expect(out).To(ContainSubstring(`name: "en*"`))
			Expect(out).To(ContainSubstring("install-server: true"))
			Expect(out).To(ContainSubstring("curtin in-target --target=/target -- /opt/paranoid/bin/paranoid-setup"))
		})

		It("keeps the quoting style of substituted scalars", func() {
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(ContainSubstring(`locale: "de_DE.UTF-8"`))
			Expect(out).To(ContainSubstring(`layout: "de"`))
			Expect(out).To(ContainSubstring("username: alice\n"))
		})

		It("quotes values that would otherwise change type", func() {
			params.Hostname = "true"
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			Expect(decode(out)["identity"]).To(HaveKeyWithValue("hostname", "true"))
		})
	})

	Context("optional settings", func() {
		It("leaves timezone and interactive sections out by default", func() {
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			data := decode(out)
			Expect(data).ToNot(HaveKey("user-data"))
			Expect(data).ToNot(HaveKey("interactive-sections"))
		})

		It("sets the timezone and interactive sections", func() {
			params.Timezone = "Europe/Berlin"
			params.InteractiveSections = []string{"storage", "network"}
			out, err := autoinstall.Render(autoinstall.EFI, params)
			Expect(err).ToNot(HaveOccurred())
			data := decode(out)
			Expect(data["user-data"]).To(HaveKeyWithValue("timezone", "Europe/Berlin"))
			Expect(data["interactive-sections"]).To(Equal([]interface{}{"storage", "network"}))
		})
	})

	Context("malformed templates", func() {
		It("fails when a section is missing", func() {
			tmpl := strings.Replace(string(autoinstall.Template()), "  keyboard:\n    layout: \"us\"\n", "", 1)
			_, err := autoinstall.Transform([]byte(tmpl), autoinstall.EFI, params)
			Expect(err).To(MatchError(constants.ErrDocumentShape))
		})

		It("fails without an autoinstall section", func() {
			_, err := autoinstall.Transform([]byte("#cloud-config\nusers: []\n"), autoinstall.EFI, params)
			Expect(err).To(MatchError(constants.ErrDocumentShape))
		})

		It("fails on invalid yaml", func() {
			_, err := autoinstall.Transform([]byte("autoinstall: [\n"), autoinstall.EFI, params)
			Expect(err).To(MatchError(constants.ErrDocumentShape))
		})
	})
})

var _ = Describe("boot mode", func() {
	It("parses names case insensitive", func() {
		m, err := autoinstall.ParseBootMode("mbr")
		Expect(err).ToNot(HaveOccurred())
		Expect(m).To(Equal(autoinstall.MBR))
		m, err = autoinstall.ParseBootMode("EFI")
		Expect(err).ToNot(HaveOccurred())
		Expect(m).To(Equal(autoinstall.EFI))
		Expect(m.String()).To(Equal("EFI"))
	})

	It("rejects unknown names", func() {
		_, err := autoinstall.ParseBootMode("uefi")
		Expect(err).To(MatchError(constants.ErrInvalidParameter))
	})
})

var _ = Describe("params validation", func() {
	It("accepts complete params", func() {
		p := autoinstall.Params{Username: "u", Hostname: "h", Locale: "C.UTF-8", KeyboardLayout: "us"}
		Expect(p.Validate()).To(Succeed())
	})

	It("reports every invalid field", func() {
		p := autoinstall.Params{Hostname: "my host", InteractiveSections: []string{"identity"}}
		err := p.Validate()
		Expect(err).To(MatchError(constants.ErrInvalidParameter))
		Expect(err.Error()).To(ContainSubstring("username"))
		Expect(err.Error()).To(ContainSubstring("locale"))
		Expect(err.Error()).To(ContainSubstring("whitespace"))
		Expect(err.Error()).To(ContainSubstring("identity"))
	})
})
