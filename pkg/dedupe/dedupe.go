// Package dedupe drops near-duplicate chunks within a single batch.
package dedupe

import "github.com/sumrendra/memory-api/pkg/vector"

// DefaultThreshold is the cosine similarity at or above which a chunk is
// treated as a duplicate of an earlier one.
const DefaultThreshold = 0.95

// Dedupe keeps each text whose embedding has cosine similarity below
// threshold with every previously kept embedding. Order is preserved and the
// returned embeddings are the original, unnormalized vectors. Zero vectors
// are never duplicates.
func Dedupe(texts []string, embeddings [][]float32, threshold float64) ([]string, [][]float32) {
	if len(texts) == 0 || len(texts) != len(embeddings) {
		return texts, embeddings
	}

	keptTexts := make([]string, 0, len(texts))
	keptEmbeddings := make([][]float32, 0, len(embeddings))
	keptNorms := make([][]float32, 0, len(embeddings))

	for i, emb := range embeddings {
		norm := vector.Normalize(emb)
		if !isZero(norm) && isDuplicate(norm, keptNorms, threshold) {
			continue
		}
		keptTexts = append(keptTexts, texts[i])
		keptEmbeddings = append(keptEmbeddings, emb)
		keptNorms = append(keptNorms, norm)
	}

	return keptTexts, keptEmbeddings
}

func isDuplicate(candidate []float32, kept [][]float32, threshold float64) bool {
	for _, k := range kept {
		if vector.Dot(candidate, k) >= threshold {
			return true
		}
	}
	return false
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
