package usecase

import (
	"fmt"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

// ReconcileDimensions reduces vec to targetDim by block-averaging. Document
// vectors at ingestion time and query vectors at serving time both pass
// through this function, so it must stay a pure function of its inputs or the
// two sides land in different coordinate spaces.
//
// When targetDim is zero/negative or at least len(vec), an independent copy is
// returned unchanged: under-dimension queries are not padded, the length
// mismatch surfaces at the vector-store boundary instead.
func ReconcileDimensions(vec []float32, targetDim int) []float32 {
	if targetDim <= 0 || targetDim >= len(vec) {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}

	orig := len(vec)
	out := make([]float32, targetDim)
	for i := 0; i < targetDim; i++ {
		start := i * orig / targetDim
		end := (i + 1) * orig / targetDim
		if end <= start {
			// Zero-width block at degenerate target sizes: take the nearest
			// original element instead of averaging nothing.
			idx := start
			if idx >= orig {
				idx = orig - 1
			}
			out[i] = vec[idx]
			continue
		}
		var sum float64
		for j := start; j < end; j++ {
			sum += float64(vec[j])
		}
		out[i] = float32(sum / float64(end-start))
	}
	return out
}

// EnsureDimension reconciles a query vector to the store's declared dimension.
// With downsampling disallowed, any mismatch is an ErrDimensionMismatch rather
// than a silent comparison of incompatible vectors.
func EnsureDimension(vec []float32, storeDim int, allowDownsample bool) ([]float32, error) {
	if storeDim > 0 && len(vec) != storeDim && !allowDownsample {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "reconcile query vector",
			fmt.Errorf("query dimension %d, store dimension %d, downsampling disabled", len(vec), storeDim))
	}
	return ReconcileDimensions(vec, storeDim), nil
}
