package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumrendra/memory-api/pkg/embeddings/ollama"
	"github.com/sumrendra/memory-api/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		received map[string]any
		status   int
		reply    any
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		reply = map[string]any{"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}}}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(reply)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("applies defaults", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Model()).To(Equal(ollama.DefaultEmbeddingModel))
		Expect(e.Provider()).To(Equal("ollama"))
	})

	It("embeds a batch in one call", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "m"})
		Expect(err).NotTo(HaveOccurred())

		vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(Equal([][]float32{{0.1, 0.2}, {0.3, 0.4}}))
		Expect(received["model"]).To(Equal("m"))
		Expect(received["input"]).To(Equal([]any{"a", "b"}))
	})

	It("embeds a single text", func() {
		reply = map[string]any{"embeddings": [][]float32{{1, 2, 3}}}
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		vec, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{1, 2, 3}))
	})

	It("wraps non-200 responses as embedding errors", func() {
		status = http.StatusInternalServerError
		reply = map[string]string{"error": "boom"}
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("500"))
	})

	It("fails when the count does not match the inputs", func() {
		reply = map[string]any{"embeddings": [][]float32{{1}}}
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
	})

	It("returns an empty batch without calling the server", func() {
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: "http://127.0.0.1:1"})
		vecs, err := e.EmbedBatch(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(BeEmpty())
	})
})
