package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// paramsNode parses a YAML snippet into the flexible parameter node the
// loader hands to ValidateStageParameters. An empty snippet yields the
// zero node produced when a stage omits its parameters block.
func paramsNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var node yaml.Node
	if src != "" {
		require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	}
	return node
}

// TestValidateStageParameters exercises the per-type parameter rules the
// loader applies before stage construction.
func TestValidateStageParameters(t *testing.T) {
	tests := []struct {
		name          string
		stageType     string
		params        string
		expectedError string
	}{
		{
			name:      "metric deriver accepts no parameters",
			stageType: StageTypeMetricDeriver,
		},
		{
			name:      "provider aggregator accepts no parameters",
			stageType: StageTypeProviderAggregator,
		},
		{
			name:      "exam collapser accepts valid threshold",
			stageType: StageTypeExamCollapser,
			params:    "near_match_threshold: 0.9\ncase_fold: false",
		},
		{
			name:          "exam collapser rejects non-numeric threshold",
			stageType:     StageTypeExamCollapser,
			params:        "near_match_threshold: high",
			expectedError: "near_match_threshold must be a number",
		},
		{
			name:          "exam collapser rejects out-of-range threshold",
			stageType:     StageTypeExamCollapser,
			params:        "near_match_threshold: 2",
			expectedError: "near_match_threshold must be between 0 and 1",
		},
		{
			name:          "exam collapser rejects non-boolean case fold",
			stageType:     StageTypeExamCollapser,
			params:        "case_fold: always",
			expectedError: "case_fold must be a boolean",
		},
		{
			name:      "normalizer accepts known features",
			stageType: StageTypeNormalizer,
			params:    "features:\n  - radpeer_score\n  - error_rate\nscore_policy: exclude",
		},
		{
			name:          "normalizer rejects non-list features",
			stageType:     StageTypeNormalizer,
			params:        "features: radpeer_score",
			expectedError: "features must be a list of feature names",
		},
		{
			name:          "normalizer rejects empty feature list",
			stageType:     StageTypeNormalizer,
			params:        "features: []",
			expectedError: "features cannot be empty",
		},
		{
			name:          "normalizer rejects unknown feature",
			stageType:     StageTypeNormalizer,
			params:        "features:\n  - sharpness",
			expectedError: "unknown feature: sharpness",
		},
		{
			name:          "normalizer rejects duplicate feature",
			stageType:     StageTypeNormalizer,
			params:        "features:\n  - error_rate\n  - error_rate",
			expectedError: "duplicate feature: error_rate",
		},
		{
			name:          "normalizer rejects unknown score policy",
			stageType:     StageTypeNormalizer,
			params:        "score_policy: lenient",
			expectedError: "invalid score_policy: lenient",
		},
		{
			name:      "volume expander accepts row cap",
			stageType: StageTypeVolumeExpander,
			params:    "max_rows: 100000",
		},
		{
			name:          "volume expander rejects negative cap",
			stageType:     StageTypeVolumeExpander,
			params:        "max_rows: -1",
			expectedError: "max_rows must be non-negative",
		},
		{
			name:      "cluster engine accepts full parameter set",
			stageType: StageTypeClusterEngine,
			params:    "restarts: 20\nmax_iterations: 50\nseed: 42\nweighting: expanded\nlabel_policy: magnitude",
		},
		{
			name:          "cluster engine rejects zero restarts",
			stageType:     StageTypeClusterEngine,
			params:        "restarts: 0",
			expectedError: "restarts must be at least 1",
		},
		{
			name:          "cluster engine rejects zero iterations",
			stageType:     StageTypeClusterEngine,
			params:        "max_iterations: 0",
			expectedError: "max_iterations must be at least 1",
		},
		{
			name:          "cluster engine rejects non-numeric seed",
			stageType:     StageTypeClusterEngine,
			params:        "seed: lucky",
			expectedError: "seed must be a number",
		},
		{
			name:          "cluster engine rejects unknown weighting",
			stageType:     StageTypeClusterEngine,
			params:        "weighting: volume",
			expectedError: "invalid weighting mode: volume",
		},
		{
			name:          "cluster engine rejects unknown label policy",
			stageType:     StageTypeClusterEngine,
			params:        "label_policy: optimistic",
			expectedError: "invalid label_policy: optimistic",
		},
		{
			name:          "unknown stage type is rejected",
			stageType:     "answer_scorer",
			expectedError: "unknown stage type: answer_scorer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStageParameters(tt.stageType, paramsNode(t, tt.params))

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}
