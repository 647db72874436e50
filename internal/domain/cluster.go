package domain

// ClusterLabel is the quality label assigned to a cluster of providers.
type ClusterLabel string

const (
	// LabelGood marks the cluster with the lower aggregate error signal.
	LabelGood ClusterLabel = "good"

	// LabelBad marks the cluster with the higher aggregate error signal.
	LabelBad ClusterLabel = "bad"
)

// ClusterAssignment maps a provider to its cluster and quality label.
// It is derived data, carried on the provider summary rather than stored
// independently.
type ClusterAssignment struct {
	// ClusterIndex is the index of the assigned cluster.
	ClusterIndex int `json:"cluster_index"`

	// Label is the quality label of the assigned cluster.
	Label ClusterLabel `json:"label"`
}

// ClusteringDiagnostics describes the quality of a clustering result. The
// variance ratio is reported for interpretation only; the pipeline always
// returns a two-cluster result regardless of separation quality.
type ClusteringDiagnostics struct {
	// Seed is the top-level seed that made the run reproducible.
	Seed int64 `json:"seed"`

	// Restarts is the number of independent random initializations.
	Restarts int `json:"restarts"`

	// BestRestart is the index of the restart that won on inertia.
	BestRestart int `json:"best_restart"`

	// WCSS is the total within-cluster sum of squares of the best restart.
	WCSS float64 `json:"wcss"`

	// TotalSS is the total sum of squares around the global centroid.
	TotalSS float64 `json:"total_ss"`

	// BetweenSS is TotalSS minus WCSS.
	BetweenSS float64 `json:"between_ss"`

	// VarianceRatio is the fraction of total variance explained by the
	// clustering, BetweenSS over TotalSS.
	VarianceRatio float64 `json:"variance_ratio"`

	// Centroids holds each cluster's centroid in scaled feature space,
	// indexed by cluster, in canonical feature order.
	Centroids [][]float64 `json:"centroids"`

	// ClusterWeights holds the total sample weight assigned to each cluster.
	ClusterWeights []float64 `json:"cluster_weights"`

	// ClusterSizes holds the number of providers assigned to each cluster.
	ClusterSizes []int `json:"cluster_sizes"`

	// GoodCluster is the index of the cluster labeled good.
	GoodCluster int `json:"good_cluster"`

	// LabelPolicy names the rule that chose the good cluster.
	LabelPolicy string `json:"label_policy"`

	// FeatureNames lists the features of the clustering vector in order.
	FeatureNames []string `json:"feature_names"`
}
