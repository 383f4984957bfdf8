package memory_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumrendra/memory-api/pkg/memory"
	"github.com/sumrendra/memory-api/pkg/vector"
)

var _ = Describe("Errors", func() {
	Describe("DimensionMismatchError", func() {
		It("unwraps to ErrDimensionMismatch", func() {
			db := 768
			err := fmt.Errorf("wrapped: %w", &memory.DimensionMismatchError{Configured: 768, Embedding: 384, Storage: &db})
			Expect(errors.Is(err, memory.ErrDimensionMismatch)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("configured=768 embedding=384 db=768"))
		})

		It("renders an unknown storage width", func() {
			err := &memory.DimensionMismatchError{Configured: 768, Embedding: 384}
			Expect(err.Error()).To(ContainSubstring("db=unknown"))
		})
	})

	DescribeTable("IsRetryable",
		func(err error, want bool) {
			Expect(memory.IsRetryable(err)).To(Equal(want))
		},
		Entry("nil", nil, false),
		Entry("invalid input", fmt.Errorf("%w: text is empty", memory.ErrInvalidInput), false),
		Entry("dimension mismatch", &memory.DimensionMismatchError{}, false),
		Entry("embedding failed", fmt.Errorf("%w: boom", memory.ErrEmbeddingFailed), true),
		Entry("storage unavailable", fmt.Errorf("%w: refused", vector.ErrStorageUnavailable), true),
		Entry("search failed", fmt.Errorf("%w: bad sql", vector.ErrSearchFailed), true),
		Entry("write failed", fmt.Errorf("%w: constraint", vector.ErrWriteFailed), false),
		Entry("write timed out", fmt.Errorf("%w: %w", vector.ErrWriteFailed, context.DeadlineExceeded), true),
		Entry("unclassified", errors.New("other"), false),
	)
})
