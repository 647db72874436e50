package stages

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// clusterCount is fixed at two: every provider lands in the good or the bad
// cluster. Tuning the cluster count is out of scope for the batch classifier.
const clusterCount = 2

// ClusterEngineStage partitions providers into a good and a bad cluster by
// weighted k-means over the scaled feature vectors. The engine runs a fixed
// number of independently seeded restarts in parallel and keeps the restart
// with the lowest within-cluster sum of squares, breaking ties on the lower
// restart index, so a given seed always reproduces the same partition.
//
// Weighting selects the clustering input. "samples" clusters one row per
// provider with the exam count as a native sample weight and is the default.
// "expanded" consumes the rows materialized by a volume expander stage and
// collapses per-row assignments back to one label per provider, reporting an
// integrity violation if a provider's rows ever split across clusters.
// "none" ignores volume entirely.
//
// The cluster whose centroid carries the lower error signal across the
// rate-derived features is labeled good; the label policy chooses between
// the signed sum and the absolute magnitude of those coordinates. Ties keep
// the lower cluster index. Clustering quality diagnostics, including the
// between-cluster share of variance and the winning centroids, are published
// alongside the assignments.
type ClusterEngineStage struct {
	name   string
	config ClusterEngineConfig
}

var _ ports.Stage = (*ClusterEngineStage)(nil)

// ClusterEngineConfig holds the configuration for a ClusterEngineStage.
type ClusterEngineConfig struct {
	// Restarts is the number of independently seeded k-means restarts.
	Restarts int `yaml:"restarts" json:"restarts" validate:"required,min=1,max=1000"`

	// MaxIterations caps the Lloyd iterations within a single restart.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" validate:"required,min=1,max=10000"`

	// Seed is the base random seed. Restart r draws its generator from
	// Seed+r, which makes the whole engine reproducible from this one value.
	Seed int64 `yaml:"seed" json:"seed"`

	// Weighting selects how provider exam volume enters the clustering:
	// "none", "samples", or "expanded".
	Weighting WeightingMode `yaml:"weighting" json:"weighting" validate:"required,oneof=none samples expanded"`

	// LabelPolicy selects how the good cluster is identified from the
	// centroids: "signed_sum" or "magnitude".
	LabelPolicy LabelPolicy `yaml:"label_policy" json:"label_policy" validate:"required,oneof=signed_sum magnitude"`
}

// DefaultClusterEngineConfig returns a ClusterEngineConfig with sensible
// defaults: twenty restarts, native sample weights, signed-sum labeling.
func DefaultClusterEngineConfig() ClusterEngineConfig {
	return ClusterEngineConfig{
		Restarts:      20,
		MaxIterations: 100,
		Seed:          42,
		Weighting:     WeightingSamples,
		LabelPolicy:   LabelBySignedSum,
	}
}

// NewClusterEngineStage creates a new ClusterEngineStage with the given
// name and configuration.
// Returns an error if the name is empty or the configuration is invalid.
func NewClusterEngineStage(name string, config ClusterEngineConfig) (*ClusterEngineStage, error) {
	if name == "" {
		return nil, ErrEmptyStageName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ClusterEngineStage{name: name, config: config}, nil
}

// Name returns the unique identifier of this stage.
func (s *ClusterEngineStage) Name() string { return s.name }

// clusterInput is the clustering problem assembled from the state: the
// weighted observations plus the mapping from each observation back to the
// clusterable provider that owns it.
type clusterInput struct {
	obs       []observation
	rowOwner  []int    // observation index to providers ordinal
	providers []string // clusterable provider IDs in summary order
}

// Execute clusters the providers and attaches an assignment to each
// clusterable summary. It reads domain.KeySummaries, domain.KeyNormalization
// and, under expanded weighting, domain.KeyExpandedRows; it writes the
// updated summaries and domain.KeyDiagnostics.
func (s *ClusterEngineStage) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	summaries, ok := domain.Get(state, domain.KeySummaries)
	if !ok {
		return state, fmt.Errorf("provider summaries not found in state")
	}
	params, ok := domain.Get(state, domain.KeyNormalization)
	if !ok {
		return state, fmt.Errorf("normalization parameters not found in state")
	}

	ratePositions, err := rateFeaturePositions(params)
	if err != nil {
		return state, err
	}

	input, err := s.buildInput(state, summaries, params)
	if err != nil {
		return state, err
	}
	if len(input.obs) == 0 {
		return state, ErrNoScaledFeatures
	}
	if len(input.providers) < clusterCount {
		return state, fmt.Errorf("%w: %d providers, %d clusters",
			ErrInsufficientProviders, len(input.providers), clusterCount)
	}

	results, err := s.runRestarts(ctx, input.obs)
	if err != nil {
		return state, err
	}

	bestRestart := 0
	for r := 1; r < len(results); r++ {
		if results[r].wcss < results[bestRestart].wcss {
			bestRestart = r
		}
	}
	best := results[bestRestart]

	goodCluster := goodClusterIndex(best.centroids, ratePositions, s.config.LabelPolicy)

	assignments, violations := collapseAssignments(input, best.assignments, goodCluster)

	clustered := make([]domain.ProviderSummary, len(summaries))
	next := 0
	for i, summary := range summaries {
		if summary.Scaled != nil {
			assignment := assignments[next]
			summary.Cluster = &assignment
			next++
		}
		clustered[i] = summary
	}

	diagnostics := s.buildDiagnostics(input, best, bestRestart, goodCluster, assignments, params)

	state = domain.With(state, domain.KeySummaries, clustered)
	state = domain.With(state, domain.KeyDiagnostics, diagnostics)
	return state.AddWarnings(violations...), nil
}

// buildInput assembles the weighted observations for the configured
// weighting mode.
func (s *ClusterEngineStage) buildInput(state domain.State, summaries []domain.ProviderSummary, params domain.NormalizationParameters) (clusterInput, error) {
	var input clusterInput
	ordinals := make(map[string]int)

	for _, summary := range summaries {
		if summary.Scaled == nil {
			continue
		}
		ordinals[summary.ProviderID] = len(input.providers)
		input.providers = append(input.providers, summary.ProviderID)

		if s.config.Weighting == WeightingExpanded {
			continue
		}

		vector, err := featureVector(params, *summary.Scaled)
		if err != nil {
			return clusterInput{}, err
		}
		weight := 1.0
		if s.config.Weighting == WeightingSamples {
			weight = float64(summary.ExamCount)
		}
		input.obs = append(input.obs, observation{vector: vector, weight: weight})
		input.rowOwner = append(input.rowOwner, ordinals[summary.ProviderID])
	}

	if s.config.Weighting != WeightingExpanded {
		return input, nil
	}

	rows, ok := domain.Get(state, domain.KeyExpandedRows)
	if !ok {
		return clusterInput{}, fmt.Errorf("expanded rows not found in state; run a volume expander stage before the cluster engine")
	}
	for _, row := range rows {
		ordinal, known := ordinals[row.ProviderID]
		if !known {
			return clusterInput{}, fmt.Errorf("expanded row references unknown provider %s", row.ProviderID)
		}
		input.obs = append(input.obs, observation{vector: row.Features, weight: 1})
		input.rowOwner = append(input.rowOwner, ordinal)
	}
	return input, nil
}

// runRestarts executes the configured number of k-means restarts in
// parallel. Restart r seeds its own generator with Seed+r and writes into
// its own result slot, so concurrency never perturbs the outcome.
func (s *ClusterEngineStage) runRestarts(ctx context.Context, obs []observation) ([]kmeansResult, error) {
	results := make([]kmeansResult, s.config.Restarts)

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < s.config.Restarts; r++ {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rng := rand.New(rand.NewSource(s.config.Seed + int64(r)))
			results[r] = runKMeans(rng, obs, clusterCount, s.config.MaxIterations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// rateFeaturePositions returns the vector positions of the rate-derived
// features in the fitted feature order. Labeling needs at least one rate
// feature to tell error-heavy centroids from clean ones.
func rateFeaturePositions(params domain.NormalizationParameters) ([]int, error) {
	var positions []int
	for i, scale := range params.Scales {
		spec, ok := domain.FeatureByName(scale.Feature)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, scale.Feature)
		}
		if spec.Kind == domain.FeatureKindRate {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: labeling requires at least one rate-derived feature", domain.ErrInvalidConfiguration)
	}
	return positions, nil
}

// goodClusterIndex picks the cluster whose centroid shows the lower error
// signal across the rate-derived coordinates. Ties keep the lower index.
func goodClusterIndex(centroids [][]float64, ratePositions []int, policy LabelPolicy) int {
	best := 0
	bestScore := labelScore(centroids[0], ratePositions, policy)
	for c := 1; c < len(centroids); c++ {
		if score := labelScore(centroids[c], ratePositions, policy); score < bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// labelScore aggregates a centroid's rate coordinates under the policy.
func labelScore(centroid []float64, ratePositions []int, policy LabelPolicy) float64 {
	var sum float64
	for _, j := range ratePositions {
		v := centroid[j]
		if policy == LabelByMagnitude {
			v = math.Abs(v)
		}
		sum += v
	}
	return sum
}

// collapseAssignments folds per-observation assignments back to one
// assignment per provider. Under expanded weighting a provider's replicated
// rows are expected to land in one cluster; if they ever split, the majority
// cluster wins (ties to the lower index) and the split is reported as an
// integrity violation.
func collapseAssignments(input clusterInput, assignments []int, goodCluster int) ([]domain.ClusterAssignment, []domain.IntegrityViolation) {
	votes := make([][clusterCount]int, len(input.providers))
	for i, cluster := range assignments {
		votes[input.rowOwner[i]][cluster]++
	}

	label := func(cluster int) domain.ClusterLabel {
		if cluster == goodCluster {
			return domain.LabelGood
		}
		return domain.LabelBad
	}

	result := make([]domain.ClusterAssignment, len(input.providers))
	var violations []domain.IntegrityViolation
	for p, tally := range votes {
		majority, minority := 0, 1
		if tally[1] > tally[0] {
			majority, minority = 1, 0
		}
		result[p] = domain.ClusterAssignment{
			ClusterIndex: majority,
			Label:        label(majority),
		}
		if tally[majority] > 0 && tally[minority] > 0 {
			violations = append(violations, domain.IntegrityViolation{
				Kind:      domain.ViolationLabelMismatch,
				Key:       fmt.Sprintf("provider %s", input.providers[p]),
				FirstSeen: string(label(majority)),
				Conflict:  string(label(minority)),
			})
		}
	}
	return result, violations
}

// buildDiagnostics assembles the clustering quality report for the winning
// restart.
func (s *ClusterEngineStage) buildDiagnostics(input clusterInput, best kmeansResult, bestRestart, goodCluster int, assignments []domain.ClusterAssignment, params domain.NormalizationParameters) *domain.ClusteringDiagnostics {
	totalSS := totalSumOfSquares(input.obs)
	betweenSS := totalSS - best.wcss
	if betweenSS < 0 {
		// Floating error can push the difference fractionally negative.
		betweenSS = 0
	}
	ratio := 0.0
	if totalSS > 0 {
		ratio = betweenSS / totalSS
	}

	weights := make([]float64, clusterCount)
	for i, cluster := range best.assignments {
		weights[cluster] += input.obs[i].weight
	}
	sizes := make([]int, clusterCount)
	for _, assignment := range assignments {
		sizes[assignment.ClusterIndex]++
	}

	centroids := make([][]float64, len(best.centroids))
	for c, centroid := range best.centroids {
		centroids[c] = cloneVector(centroid)
	}

	features := make([]string, len(params.Scales))
	for i, scale := range params.Scales {
		features[i] = scale.Feature
	}

	return &domain.ClusteringDiagnostics{
		Seed:           s.config.Seed,
		Restarts:       s.config.Restarts,
		BestRestart:    bestRestart,
		WCSS:           best.wcss,
		TotalSS:        totalSS,
		BetweenSS:      betweenSS,
		VarianceRatio:  ratio,
		Centroids:      centroids,
		ClusterWeights: weights,
		ClusterSizes:   sizes,
		GoodCluster:    goodCluster,
		LabelPolicy:    string(s.config.LabelPolicy),
		FeatureNames:   features,
	}
}

// Validate checks if the stage is properly configured.
func (s *ClusterEngineStage) Validate() error {
	if s.name == "" {
		return ErrEmptyStageName
	}
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters updates the stage's configuration from YAML parameters.
func (s *ClusterEngineStage) UnmarshalParameters(params yaml.Node) error {
	config := DefaultClusterEngineConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// NewClusterEngineFromConfig creates a ClusterEngineStage from a configuration map.
// This constructor is used by the stage registry for dynamic stage creation.
func NewClusterEngineFromConfig(id string, config map[string]any) (ports.Stage, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultClusterEngineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewClusterEngineStage(id, cfg)
}
