package apitarget_test

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumrendra/memory-api/cmd/memoryapi/apitarget"
)

var _ = Describe("apitarget", func() {
	var (
		cmd       *cobra.Command
		target    string
		configDir string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		Expect(os.WriteFile(
			filepath.Join(configDir, "config.toml"),
			[]byte("version = 0\n[client]\napi_target = \"http://memory.internal:9000\"\n"),
			0o600,
		)).To(Succeed())

		cmd = &cobra.Command{Use: "test"}
		cmd.Flags().String("config-dir", "", "")
		apitarget.AddFlag(cmd, &target)
		Expect(cmd.Flags().Set("config-dir", configDir)).To(Succeed())
	})

	It("defaults to the local server", func() {
		Expect(target).To(Equal("http://localhost:8081"))
	})

	It("reads client.api_target from config.toml", func() {
		Expect(apitarget.Resolve(cmd, &target)).To(Succeed())
		Expect(target).To(Equal("http://memory.internal:9000"))
	})

	It("keeps an explicit --api-target", func() {
		Expect(cmd.Flags().Set("api-target", "http://other:1")).To(Succeed())
		Expect(apitarget.Resolve(cmd, &target)).To(Succeed())
		Expect(target).To(Equal("http://other:1"))
	})

	It("rejects malformed targets", func() {
		_, err := apitarget.NewClient("not a url")
		Expect(err).To(HaveOccurred())
	})
})
