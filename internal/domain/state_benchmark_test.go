package domain

import (
	"fmt"
	"testing"
	"time"
)

func sampleReviews(n int) []ExamReview {
	reviews := make([]ExamReview, n)
	for i := range reviews {
		reviews[i] = ExamReview{
			ExamID:        fmt.Sprintf("E%d", i),
			ProviderID:    fmt.Sprintf("P%d", i%7),
			ReviewerID:    fmt.Sprintf("R%d", i%3),
			TruePositive:  i % 5,
			TrueNegative:  i % 11,
			FalsePositive: i % 2,
			FalseNegative: i % 3,
		}
	}
	return reviews
}

// BenchmarkState_Get benchmarks value retrieval, which deep copies on read.
func BenchmarkState_Get(b *testing.B) {
	state := With(
		With(NewState(), KeyReviews, sampleReviews(50)),
		KeyPipelineID, "bench")

	b.Run("Get_String", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = Get(state, KeyPipelineID)
		}
	})

	b.Run("Get_Slice", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = Get(state, KeyReviews)
		}
	})

	b.Run("Get_NonExistent", func(b *testing.B) {
		missing := Key[string]{"nonexistent"}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = Get(state, missing)
		}
	})
}

// BenchmarkState_With benchmarks copy-on-write updates across value sizes.
func BenchmarkState_With(b *testing.B) {
	baseState := NewState()

	b.Run("With_String", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = With(baseState, KeyPipelineID, "bench")
		}
	})

	b.Run("With_SmallSlice", func(b *testing.B) {
		reviews := sampleReviews(5)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = With(baseState, KeyReviews, reviews)
		}
	})

	b.Run("With_LargeSlice", func(b *testing.B) {
		reviews := sampleReviews(1000)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = With(baseState, KeyReviews, reviews)
		}
	})
}

// BenchmarkState_DeepCopy benchmarks the deep copy across the value shapes
// the pipeline actually stores, including Rate's pass-through fast path.
func BenchmarkState_DeepCopy(b *testing.B) {
	b.Run("DeepCopy_Rate", func(b *testing.B) {
		value := DefinedRate(0.125)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = deepCopyValue(value)
		}
	})

	b.Run("DeepCopy_Time", func(b *testing.B) {
		value := time.Now()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = deepCopyValue(value)
		}
	})

	b.Run("DeepCopy_Review", func(b *testing.B) {
		value := sampleReviews(1)[0]
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = deepCopyValue(value)
		}
	})

	b.Run("DeepCopy_Summary", func(b *testing.B) {
		value := ProviderSummary{
			ProviderID:        "P1",
			ExamCount:         12,
			ErrorRate:         DefinedRate(0.04),
			FalsePositiveRate: UndefinedRate(),
			Scaled:            &ScaledFeatures{ErrorRate: -0.3},
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = deepCopyValue(value)
		}
	})

	b.Run("DeepCopy_SummarySlice", func(b *testing.B) {
		value := make([]ProviderSummary, 100)
		for i := range value {
			value[i] = ProviderSummary{ProviderID: fmt.Sprintf("P%d", i), ErrorRate: DefinedRate(float64(i) / 100)}
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = deepCopyValue(value)
		}
	})
}

// BenchmarkState_ConcurrentRead simulates multiple goroutines reading the
// same state, which must be safe without locks.
func BenchmarkState_ConcurrentRead(b *testing.B) {
	state := With(
		With(NewState(), KeyReviews, sampleReviews(50)),
		KeyPipelineID, "bench")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = Get(state, KeyPipelineID)
			_, _ = Get(state, KeyReviews)
		}
	})
}
