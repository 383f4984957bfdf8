package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/sumrendra/memory-api/cmd/memoryapi/init"
	"github.com/sumrendra/memory-api/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "memoryapi-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates the local directory", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".memoryapi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("Initialized"))
	})

	It("is idempotent", func() {
		Expect(run()).To(Succeed())
		out.Reset()
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes a preset config", func() {
		Expect(run("--preset", "openai")).To(Succeed())

		data, err := os.ReadFile(filepath.Join(tmpDir, ".memoryapi", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Embedding.Provider).To(Equal("openai"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(1536)))
	})

	It("refuses to overwrite a config without --force", func() {
		Expect(run("--preset", "ollama")).To(Succeed())
		Expect(run("--preset", "openai")).NotTo(Succeed())
		Expect(run("--preset", "openai", "--force")).To(Succeed())
	})

	It("rejects unknown presets before touching the filesystem", func() {
		Expect(run("--preset", "bogus")).NotTo(Succeed())

		_, err := os.Stat(filepath.Join(tmpDir, ".memoryapi"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
