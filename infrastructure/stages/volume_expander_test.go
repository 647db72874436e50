package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-radqc/internal/domain"
)

// normalizationFor builds fitted parameters for the given feature order with
// identity scaling, enough for stages that only need the feature layout.
func normalizationFor(features ...string) domain.NormalizationParameters {
	scales := make([]domain.FeatureScale, len(features))
	for i, f := range features {
		scales[i] = domain.FeatureScale{Feature: f, Mean: 0, StdDev: 1}
	}
	return domain.NormalizationParameters{Scales: scales}
}

func newExpander(t *testing.T, config VolumeExpanderConfig) *VolumeExpanderStage {
	t.Helper()
	stage, err := NewVolumeExpanderStage("test_volume_expander", config)
	require.NoError(t, err)
	return stage
}

// TestVolumeExpanderStage_Execute verifies the row replication: a provider
// with examCount exams occupies examCount identical rows, excluded providers
// occupy none, and the vector layout follows the fitted feature order.
func TestVolumeExpanderStage_Execute(t *testing.T) {
	summaries := []domain.ProviderSummary{
		{
			ProviderID: "P1",
			ExamCount:  3,
			Scaled:     &domain.ScaledFeatures{ErrorRate: 1.5, RadPeerScore: -0.5},
		},
		{
			ProviderID: "P2",
			ExamCount:  5,
			Scaled:     nil, // excluded by the normalizer
		},
		{
			ProviderID: "P3",
			ExamCount:  1,
			Scaled:     &domain.ScaledFeatures{ErrorRate: -1.0, RadPeerScore: 0.25},
		},
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, normalizationFor(domain.FeatureErrorRate, domain.FeatureRadPeerScore))

	result, err := newExpander(t, DefaultVolumeExpanderConfig()).Execute(context.Background(), state)
	require.NoError(t, err)

	rows, ok := domain.Get(result, domain.KeyExpandedRows)
	require.True(t, ok, "Expanded rows should be present in state.")
	require.Len(t, rows, 4, "3 rows for P1 plus 1 for P3; the excluded P2 contributes none.")

	for i := 0; i < 3; i++ {
		assert.Equal(t, "P1", rows[i].ProviderID)
		assert.Equal(t, []float64{1.5, -0.5}, rows[i].Features,
			"Vector layout must follow the fitted feature order.")
	}
	assert.Equal(t, "P3", rows[3].ProviderID)
	assert.Equal(t, []float64{-1.0, 0.25}, rows[3].Features)
}

// TestVolumeExpanderStage_RowCap verifies that the optional row cap rejects
// an expansion that would exceed it.
func TestVolumeExpanderStage_RowCap(t *testing.T) {
	summaries := []domain.ProviderSummary{
		{ProviderID: "P1", ExamCount: 40, Scaled: &domain.ScaledFeatures{}},
		{ProviderID: "P2", ExamCount: 2, Scaled: &domain.ScaledFeatures{}},
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, normalizationFor(domain.FeatureErrorRate))

	_, err := newExpander(t, VolumeExpanderConfig{MaxRows: 41}).Execute(context.Background(), state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42 rows, exceeding the cap of 41")

	_, err = newExpander(t, VolumeExpanderConfig{MaxRows: 42}).Execute(context.Background(), state)
	assert.NoError(t, err, "An expansion exactly at the cap must pass.")
}

// TestVolumeExpanderStage_ExecuteErrors tests the failure modes for missing
// input keys.
func TestVolumeExpanderStage_ExecuteErrors(t *testing.T) {
	tests := []struct {
		name          string
		setupState    func() domain.State
		expectedError string
	}{
		{
			name:          "fails when summaries missing from state",
			setupState:    domain.NewState,
			expectedError: "provider summaries not found in state",
		},
		{
			name: "fails when normalization parameters missing from state",
			setupState: func() domain.State {
				return domain.With(domain.NewState(), domain.KeySummaries, []domain.ProviderSummary{{ProviderID: "P1"}})
			},
			expectedError: "normalization parameters not found in state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExpander(t, DefaultVolumeExpanderConfig()).Execute(context.Background(), tt.setupState())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

// TestNewVolumeExpanderFromConfig tests the factory function used by the
// stage registry.
func TestNewVolumeExpanderFromConfig(t *testing.T) {
	t.Run("creates stage with default config", func(t *testing.T) {
		stagePort, err := NewVolumeExpanderFromConfig("test_id", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "test_id", stagePort.Name())

		stage, ok := stagePort.(*VolumeExpanderStage)
		require.True(t, ok, "stage should be *VolumeExpanderStage")
		assert.Equal(t, 0, stage.config.MaxRows)
	})

	t.Run("creates stage with custom cap", func(t *testing.T) {
		stagePort, err := NewVolumeExpanderFromConfig("test_id", map[string]any{"max_rows": 100000})
		require.NoError(t, err)

		stage, ok := stagePort.(*VolumeExpanderStage)
		require.True(t, ok, "stage should be *VolumeExpanderStage")
		assert.Equal(t, 100000, stage.config.MaxRows)
	})

	t.Run("fails with negative cap", func(t *testing.T) {
		stage, err := NewVolumeExpanderFromConfig("test_id", map[string]any{"max_rows": -1})
		require.Error(t, err)
		assert.Nil(t, stage)
		assert.Contains(t, err.Error(), "configuration validation failed")
	})
}
