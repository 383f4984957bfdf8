package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/sumrendra/memory-api/cmd/memoryapi/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "memoryapi-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .memoryapi dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".memoryapi"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "embedding.provider", "ollama")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, ".memoryapi", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(ContainSubstring("embedding.provider"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "embedding.provider")).NotTo(Succeed())
		})

		It("rejects invalid uint values", func() {
			Expect(run("set", "chunking.size", "not-a-number")).NotTo(Succeed())
		})

		It("rejects unsupported providers", func() {
			Expect(run("set", "storage.provider", "cassandra")).NotTo(Succeed())
		})

		It("masks the api key in its output", func() {
			Expect(run("set", "embedding.api_key", "sk-secret")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("sk-secret"))
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "chunking.size", "512")).To(Succeed())

			out.Reset()
			Expect(run("get", "chunking.size")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("512"))
		})

		It("masks the password of the storage url", func() {
			Expect(run("set", "storage.url", "postgres://rag:hunter2@db:5432/rag")).To(Succeed())

			out.Reset()
			Expect(run("get", "storage.url")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("rag:xxxxx@db"))
			Expect(out.String()).NotTo(ContainSubstring("hunter2"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("chunking.size"))
			Expect(out.String()).To(ContainSubstring(`"800"`))
		})

		It("lists set values", func() {
			Expect(run("set", "events.topic", "docs")).To(Succeed())

			out.Reset()
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"docs"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
