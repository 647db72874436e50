package application

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
)

// ValidateStageParameters validates the parameters for a specific stage
// type, ensuring values meet domain constraints before stage construction.
// ValidateStageParameters supports every built-in stage type with
// type-specific validation rules; stages created from custom factories
// validate their own parameters.
// ValidateStageParameters returns an error if parameter decoding fails
// or if any validation rule is violated.
func ValidateStageParameters(stageType string, params yaml.Node) error {
	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	switch stageType {
	case StageTypeMetricDeriver, StageTypeProviderAggregator:
		// Derivation and aggregation are parameterless transformations.
		return nil
	case StageTypeExamCollapser:
		return validateExamCollapserParams(paramMap)
	case StageTypeNormalizer:
		return validateNormalizerParams(paramMap)
	case StageTypeVolumeExpander:
		return validateVolumeExpanderParams(paramMap)
	case StageTypeClusterEngine:
		return validateClusterEngineParams(paramMap)
	default:
		return fmt.Errorf("unknown stage type: %s", stageType)
	}
}

// validateExamCollapserParams validates parameters for the exam collapser,
// checking the optional near-match threshold and case folding flag.
// validateExamCollapserParams returns an error if the threshold falls
// outside [0, 1] or either parameter has the wrong type.
func validateExamCollapserParams(params map[string]any) error {
	if threshold, ok := params["near_match_threshold"]; ok {
		v, err := numericParam("near_match_threshold", threshold)
		if err != nil {
			return err
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("near_match_threshold must be between 0 and 1")
		}
	}

	if caseFold, ok := params["case_fold"]; ok {
		if _, ok := caseFold.(bool); !ok {
			return fmt.Errorf("case_fold must be a boolean")
		}
	}

	return nil
}

// validateNormalizerParams validates parameters for the normalizer,
// ensuring the feature list names known features without duplicates and
// the score policy is one of the supported modes.
// validateNormalizerParams returns an error if any validation rule fails.
func validateNormalizerParams(params map[string]any) error {
	if features, ok := params["features"]; ok {
		list, ok := features.([]any)
		if !ok {
			return fmt.Errorf("features must be a list of feature names")
		}
		if len(list) == 0 {
			return fmt.Errorf("features cannot be empty")
		}

		seen := make(map[string]struct{}, len(list))
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return fmt.Errorf("features must be a list of feature names")
			}
			if _, known := domain.FeatureByName(name); !known {
				return fmt.Errorf("unknown feature: %s", name)
			}
			if _, dup := seen[name]; dup {
				return fmt.Errorf("duplicate feature: %s", name)
			}
			seen[name] = struct{}{}
		}
	}

	if policy, ok := params["score_policy"]; ok {
		policyStr, ok := policy.(string)
		if !ok {
			return fmt.Errorf("score_policy must be a string")
		}
		validPolicies := []string{"strict", "exclude"}
		if !slices.Contains(validPolicies, strings.ToLower(policyStr)) {
			return fmt.Errorf("invalid score_policy: %s", policyStr)
		}
	}

	return nil
}

// validateVolumeExpanderParams validates parameters for the volume
// expander, checking that the optional row cap is a non-negative integer.
func validateVolumeExpanderParams(params map[string]any) error {
	if maxRows, ok := params["max_rows"]; ok {
		v, err := numericParam("max_rows", maxRows)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("max_rows must be non-negative")
		}
	}
	return nil
}

// validateClusterEngineParams validates parameters for the cluster engine,
// checking restart and iteration counts, the weighting mode, and the
// label policy.
// validateClusterEngineParams returns an error if any validation rule fails.
func validateClusterEngineParams(params map[string]any) error {
	if restarts, ok := params["restarts"]; ok {
		v, err := numericParam("restarts", restarts)
		if err != nil {
			return err
		}
		if v < 1 {
			return fmt.Errorf("restarts must be at least 1")
		}
	}

	if maxIterations, ok := params["max_iterations"]; ok {
		v, err := numericParam("max_iterations", maxIterations)
		if err != nil {
			return err
		}
		if v < 1 {
			return fmt.Errorf("max_iterations must be at least 1")
		}
	}

	if seed, ok := params["seed"]; ok {
		if _, err := numericParam("seed", seed); err != nil {
			return err
		}
	}

	if weighting, ok := params["weighting"]; ok {
		weightingStr, ok := weighting.(string)
		if !ok {
			return fmt.Errorf("weighting must be a string")
		}
		validModes := []string{"none", "samples", "expanded"}
		if !slices.Contains(validModes, strings.ToLower(weightingStr)) {
			return fmt.Errorf("invalid weighting mode: %s", weightingStr)
		}
	}

	if policy, ok := params["label_policy"]; ok {
		policyStr, ok := policy.(string)
		if !ok {
			return fmt.Errorf("label_policy must be a string")
		}
		validPolicies := []string{"signed_sum", "magnitude"}
		if !slices.Contains(validPolicies, strings.ToLower(policyStr)) {
			return fmt.Errorf("invalid label_policy: %s", policyStr)
		}
	}

	return nil
}

// numericParam coerces a decoded YAML parameter to float64, accepting the
// int and float64 representations the YAML decoder produces.
// numericParam returns an error naming the parameter when the value is
// not a number.
func numericParam(name string, value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
