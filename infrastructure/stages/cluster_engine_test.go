package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-radqc/internal/domain"
)

// engineFeatures is the two-dimensional layout used by the engine tests:
// one score feature and one rate feature, so labeling reads position 1.
func engineFeatures() domain.NormalizationParameters {
	return normalizationFor(domain.FeatureRadPeerScore, domain.FeatureErrorRate)
}

// clusterable builds a summary already carrying a scaled vector.
func clusterable(providerID string, examCount int, scaledErrorRate float64) domain.ProviderSummary {
	return domain.ProviderSummary{
		ProviderID: providerID,
		ExamCount:  examCount,
		Scaled:     &domain.ScaledFeatures{ErrorRate: scaledErrorRate},
	}
}

func newEngine(t *testing.T, config ClusterEngineConfig) *ClusterEngineStage {
	t.Helper()
	stage, err := NewClusterEngineStage("test_cluster_engine", config)
	require.NoError(t, err)
	return stage
}

// TestClusterEngineStage_Execute verifies the end-to-end partition: well
// separated providers split into two clusters, the cluster with the lower
// rate signal is labeled good, and the diagnostics describe the winning
// restart.
func TestClusterEngineStage_Execute(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("G1", 10, -1.0),
		clusterable("G2", 5, -0.9),
		clusterable("B1", 8, 1.0),
		clusterable("B2", 2, 0.9),
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, engineFeatures())

	result, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
	require.NoError(t, err)

	clustered, ok := domain.Get(result, domain.KeySummaries)
	require.True(t, ok)
	require.Len(t, clustered, 4)

	labels := make(map[string]domain.ClusterLabel, 4)
	for _, summary := range clustered {
		require.NotNil(t, summary.Cluster, "Every clusterable provider must receive an assignment.")
		labels[summary.ProviderID] = summary.Cluster.Label
	}
	assert.Equal(t, domain.LabelGood, labels["G1"])
	assert.Equal(t, domain.LabelGood, labels["G2"])
	assert.Equal(t, domain.LabelBad, labels["B1"])
	assert.Equal(t, domain.LabelBad, labels["B2"])

	diagnostics, ok := domain.Get(result, domain.KeyDiagnostics)
	require.True(t, ok, "Diagnostics should be present in state.")
	require.NotNil(t, diagnostics)

	assert.Equal(t, int64(42), diagnostics.Seed)
	assert.Equal(t, 20, diagnostics.Restarts)
	assert.Len(t, diagnostics.Centroids, 2)
	assert.Equal(t, []string{domain.FeatureRadPeerScore, domain.FeatureErrorRate}, diagnostics.FeatureNames)
	assert.Equal(t, 4, diagnostics.ClusterSizes[0]+diagnostics.ClusterSizes[1])
	assert.InDelta(t, 25.0, diagnostics.ClusterWeights[0]+diagnostics.ClusterWeights[1], 1e-9,
		"Sample weights must total the clusterable exam volume.")
	assert.Greater(t, diagnostics.VarianceRatio, 0.9, "Separated groups explain most variance between clusters.")
	assert.LessOrEqual(t, diagnostics.VarianceRatio, 1.0)

	good := diagnostics.Centroids[diagnostics.GoodCluster]
	bad := diagnostics.Centroids[1-diagnostics.GoodCluster]
	assert.Less(t, good[1], bad[1], "The good centroid must carry the lower rate coordinate.")
}

// TestClusterEngineStage_Deterministic verifies that the same input and seed
// reproduce the identical partition and diagnostics.
func TestClusterEngineStage_Deterministic(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("P1", 3, -1.2),
		clusterable("P2", 4, -0.8),
		clusterable("P3", 2, 0.7),
		clusterable("P4", 6, 1.3),
		clusterable("P5", 1, 0.1),
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, engineFeatures())

	engine := newEngine(t, DefaultClusterEngineConfig())

	first, err := engine.Execute(context.Background(), state)
	require.NoError(t, err)
	second, err := engine.Execute(context.Background(), state)
	require.NoError(t, err)

	firstSummaries, _ := domain.Get(first, domain.KeySummaries)
	secondSummaries, _ := domain.Get(second, domain.KeySummaries)
	assert.Equal(t, firstSummaries, secondSummaries)

	firstDiag, _ := domain.Get(first, domain.KeyDiagnostics)
	secondDiag, _ := domain.Get(second, domain.KeyDiagnostics)
	assert.Equal(t, *firstDiag, *secondDiag)
}

// TestClusterEngineStage_LabelPolicies verifies that the two policies can
// disagree on mixed-sign centroids: signed sum prefers the more negative
// centroid, magnitude prefers the one closer to the population mean.
func TestClusterEngineStage_LabelPolicies(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("LOW1", 1, -2.0),
		clusterable("LOW2", 1, -2.0),
		clusterable("MID1", 1, 1.0),
		clusterable("MID2", 1, 1.0),
	}

	makeState := func() domain.State {
		return domain.NewState().
			With(domain.KeySummaries, summaries).
			With(domain.KeyNormalization, engineFeatures())
	}

	t.Run("signed sum labels the more negative centroid good", func(t *testing.T) {
		result, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), makeState())
		require.NoError(t, err)

		clustered, _ := domain.Get(result, domain.KeySummaries)
		assert.Equal(t, domain.LabelGood, clustered[0].Cluster.Label)
		assert.Equal(t, domain.LabelBad, clustered[2].Cluster.Label)
	})

	t.Run("magnitude labels the smaller deviation good", func(t *testing.T) {
		config := DefaultClusterEngineConfig()
		config.LabelPolicy = LabelByMagnitude

		result, err := newEngine(t, config).Execute(context.Background(), makeState())
		require.NoError(t, err)

		clustered, _ := domain.Get(result, domain.KeySummaries)
		assert.Equal(t, domain.LabelBad, clustered[0].Cluster.Label, "|-2| exceeds |1| under the magnitude policy.")
		assert.Equal(t, domain.LabelGood, clustered[2].Cluster.Label)
	})
}

// TestClusterEngineStage_ExpandedWeighting verifies that the engine can
// consume volume-expanded rows, reproduce the sample-weighted labels, and
// fold per-row assignments back to one label per provider.
func TestClusterEngineStage_ExpandedWeighting(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("G1", 3, -1.0),
		clusterable("G2", 2, -0.9),
		clusterable("B1", 4, 1.1),
	}
	base := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, engineFeatures())

	expanded, err := newExpander(t, DefaultVolumeExpanderConfig()).Execute(context.Background(), base)
	require.NoError(t, err)

	config := DefaultClusterEngineConfig()
	config.Weighting = WeightingExpanded

	result, err := newEngine(t, config).Execute(context.Background(), expanded)
	require.NoError(t, err)

	clustered, _ := domain.Get(result, domain.KeySummaries)
	assert.Equal(t, domain.LabelGood, clustered[0].Cluster.Label)
	assert.Equal(t, domain.LabelGood, clustered[1].Cluster.Label)
	assert.Equal(t, domain.LabelBad, clustered[2].Cluster.Label)

	assert.Empty(t, result.Warnings(), "Exact replication must never split a provider across clusters.")

	diagnostics, _ := domain.Get(result, domain.KeyDiagnostics)
	assert.InDelta(t, 9.0, diagnostics.ClusterWeights[0]+diagnostics.ClusterWeights[1], 1e-9,
		"Expanded rows weigh one exam each.")
}

// TestClusterEngineStage_LabelMismatch verifies that a provider whose
// expanded rows land in different clusters is reported and resolved by
// majority with ties kept on the lower cluster index.
func TestClusterEngineStage_LabelMismatch(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("SPLIT", 2, 0),
		clusterable("LOW", 3, -1.0),
		clusterable("HIGH", 3, 1.0),
	}
	rows := []domain.ExpandedRow{
		// SPLIT straddles the two anchored clusters exactly.
		{ProviderID: "SPLIT", Features: []float64{0, -1.0}},
		{ProviderID: "SPLIT", Features: []float64{0, 1.0}},
		{ProviderID: "LOW", Features: []float64{0, -1.0}},
		{ProviderID: "LOW", Features: []float64{0, -1.0}},
		{ProviderID: "LOW", Features: []float64{0, -1.0}},
		{ProviderID: "HIGH", Features: []float64{0, 1.0}},
		{ProviderID: "HIGH", Features: []float64{0, 1.0}},
		{ProviderID: "HIGH", Features: []float64{0, 1.0}},
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, engineFeatures()).
		With(domain.KeyExpandedRows, rows)

	config := DefaultClusterEngineConfig()
	config.Weighting = WeightingExpanded

	result, err := newEngine(t, config).Execute(context.Background(), state)
	require.NoError(t, err)

	warnings := result.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.ViolationLabelMismatch, warnings[0].Kind)
	assert.Equal(t, "provider SPLIT", warnings[0].Key)
	assert.NotEqual(t, warnings[0].FirstSeen, warnings[0].Conflict)

	clustered, _ := domain.Get(result, domain.KeySummaries)
	require.NotNil(t, clustered[0].Cluster)
	assert.Equal(t, 0, clustered[0].Cluster.ClusterIndex, "A tied vote must keep the lower cluster index.")
}

// TestClusterEngineStage_ExecuteErrors tests the failure modes: missing
// state keys, too few providers, and a feature list without rate features.
func TestClusterEngineStage_ExecuteErrors(t *testing.T) {
	t.Run("fails when summaries missing from state", func(t *testing.T) {
		_, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), domain.NewState())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider summaries not found in state")
	})

	t.Run("fails when normalization parameters missing from state", func(t *testing.T) {
		state := domain.With(domain.NewState(), domain.KeySummaries, []domain.ProviderSummary{clusterable("P1", 1, 0)})
		_, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "normalization parameters not found in state")
	})

	t.Run("fails when no provider is clusterable", func(t *testing.T) {
		summaries := []domain.ProviderSummary{{ProviderID: "P1", ExamCount: 2, Scaled: nil}}
		state := domain.NewState().
			With(domain.KeySummaries, summaries).
			With(domain.KeyNormalization, engineFeatures())

		_, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoScaledFeatures)
	})

	t.Run("fails with fewer providers than clusters", func(t *testing.T) {
		summaries := []domain.ProviderSummary{clusterable("P1", 2, 0.5)}
		state := domain.NewState().
			With(domain.KeySummaries, summaries).
			With(domain.KeyNormalization, engineFeatures())

		_, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientProviders)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration, "A batch too small to split is a fatal setup problem.")
	})

	t.Run("fails under expanded weighting without expanded rows", func(t *testing.T) {
		summaries := []domain.ProviderSummary{clusterable("P1", 1, -1), clusterable("P2", 1, 1)}
		state := domain.NewState().
			With(domain.KeySummaries, summaries).
			With(domain.KeyNormalization, engineFeatures())

		config := DefaultClusterEngineConfig()
		config.Weighting = WeightingExpanded

		_, err := newEngine(t, config).Execute(context.Background(), state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expanded rows not found in state")
	})

	t.Run("fails when the fitted features carry no rate feature", func(t *testing.T) {
		summaries := []domain.ProviderSummary{clusterable("P1", 1, -1), clusterable("P2", 1, 1)}
		state := domain.NewState().
			With(domain.KeySummaries, summaries).
			With(domain.KeyNormalization, normalizationFor(domain.FeatureRadPeerScore))

		_, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), "labeling requires at least one rate-derived feature")
	})
}

// TestClusterEngineStage_PreservesExclusions verifies that excluded
// providers pass through unclustered while the rest are assigned.
func TestClusterEngineStage_PreservesExclusions(t *testing.T) {
	summaries := []domain.ProviderSummary{
		clusterable("P1", 1, -1.0),
		{ProviderID: "EXCLUDED", ExamCount: 7, Scaled: nil},
		clusterable("P2", 1, 1.0),
	}
	state := domain.NewState().
		With(domain.KeySummaries, summaries).
		With(domain.KeyNormalization, engineFeatures())

	result, err := newEngine(t, DefaultClusterEngineConfig()).Execute(context.Background(), state)
	require.NoError(t, err)

	clustered, _ := domain.Get(result, domain.KeySummaries)
	require.Len(t, clustered, 3)
	assert.NotNil(t, clustered[0].Cluster)
	assert.Nil(t, clustered[1].Cluster, "An excluded provider must stay unclustered.")
	assert.NotNil(t, clustered[2].Cluster)

	diagnostics, _ := domain.Get(result, domain.KeyDiagnostics)
	assert.Equal(t, 2, diagnostics.ClusterSizes[0]+diagnostics.ClusterSizes[1],
		"Cluster sizes count clusterable providers only.")
}

// TestClusterEngineStage_Validate tests the configuration validation.
func TestClusterEngineStage_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*ClusterEngineConfig)
		expectedError string
	}{
		{
			name:   "default configuration passes",
			mutate: func(c *ClusterEngineConfig) {},
		},
		{
			name:          "zero restarts fails",
			mutate:        func(c *ClusterEngineConfig) { c.Restarts = 0 },
			expectedError: "configuration validation failed",
		},
		{
			name:          "unknown weighting fails",
			mutate:        func(c *ClusterEngineConfig) { c.Weighting = "volume" },
			expectedError: "configuration validation failed",
		},
		{
			name:          "unknown label policy fails",
			mutate:        func(c *ClusterEngineConfig) { c.LabelPolicy = "optimistic" },
			expectedError: "configuration validation failed",
		},
		{
			name:          "zero max iterations fails",
			mutate:        func(c *ClusterEngineConfig) { c.MaxIterations = 0 },
			expectedError: "configuration validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultClusterEngineConfig()
			tt.mutate(&config)

			stage, err := NewClusterEngineStage("test_cluster_engine", config)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.NoError(t, stage.Validate())
			}
		})
	}
}

// TestNewClusterEngineFromConfig tests the factory function used by the
// stage registry.
func TestNewClusterEngineFromConfig(t *testing.T) {
	t.Run("creates stage with default config", func(t *testing.T) {
		stagePort, err := NewClusterEngineFromConfig("test_id", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "test_id", stagePort.Name())

		stage, ok := stagePort.(*ClusterEngineStage)
		require.True(t, ok, "stage should be *ClusterEngineStage")
		assert.Equal(t, 20, stage.config.Restarts)
		assert.Equal(t, 100, stage.config.MaxIterations)
		assert.Equal(t, int64(42), stage.config.Seed)
		assert.Equal(t, WeightingSamples, stage.config.Weighting)
		assert.Equal(t, LabelBySignedSum, stage.config.LabelPolicy)
	})

	t.Run("creates stage with custom config", func(t *testing.T) {
		config := map[string]any{
			"restarts":     5,
			"seed":         7,
			"weighting":    "expanded",
			"label_policy": "magnitude",
		}

		stagePort, err := NewClusterEngineFromConfig("test_id", config)
		require.NoError(t, err)

		stage, ok := stagePort.(*ClusterEngineStage)
		require.True(t, ok, "stage should be *ClusterEngineStage")
		assert.Equal(t, 5, stage.config.Restarts)
		assert.Equal(t, int64(7), stage.config.Seed)
		assert.Equal(t, WeightingExpanded, stage.config.Weighting)
		assert.Equal(t, LabelByMagnitude, stage.config.LabelPolicy)
		assert.Equal(t, 100, stage.config.MaxIterations, "Unset fields keep their defaults.")
	})

	t.Run("fails with invalid weighting", func(t *testing.T) {
		stage, err := NewClusterEngineFromConfig("test_id", map[string]any{"weighting": "volume"})
		require.Error(t, err)
		assert.Nil(t, stage)
		assert.Contains(t, err.Error(), "configuration validation failed")
	})
}
