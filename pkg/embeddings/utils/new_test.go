package embeddingutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	embeddingutils "github.com/sumrendra/memory-api/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	DescribeTable("builds each provider",
		func(provider, apiKey string) {
			e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
				ProviderType: provider,
				APIKey:       apiKey,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Provider()).To(Equal(provider))
		},
		Entry("ollama", "ollama", ""),
		Entry("openai", "openai", "sk-test"),
		Entry("huggingface", "huggingface", ""),
	)

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "cohere"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
