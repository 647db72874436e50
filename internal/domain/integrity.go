package domain

import "fmt"

// ViolationKind discriminates the kinds of data quality findings a run can
// surface.
type ViolationKind string

// Known violation kinds.
const (
	// ViolationAttributeConflict reports duplicate reviews disagreeing on
	// an exam attribute. The first-seen value was kept.
	ViolationAttributeConflict ViolationKind = "attribute_conflict"

	// ViolationUndefinedScore reports a provider excluded from clustering
	// because a score feature was undefined under the exclude policy.
	ViolationUndefinedScore ViolationKind = "undefined_score"

	// ViolationLabelMismatch reports a provider whose volume-expanded rows
	// were assigned to different clusters. The majority label was kept.
	ViolationLabelMismatch ViolationKind = "label_mismatch"

	// ViolationUnmatchedProfile reports an equipment or subspecialty row
	// referencing a provider with no summary in the run.
	ViolationUnmatchedProfile ViolationKind = "unmatched_profile"
)

// IntegrityViolation records a data quality finding observed during a run.
// Violations are warnings, never errors: the pipeline applies its documented
// fallback and continues, and the violation is kept for audit.
type IntegrityViolation struct {
	// Kind classifies the finding. An empty kind is treated as an
	// attribute conflict, the original violation shape.
	Kind ViolationKind `json:"kind,omitempty"`

	// Key identifies the offending entity, for example "exam E12 provider P3".
	Key string `json:"key"`

	// Field names the attribute or feature that triggered the finding.
	Field string `json:"field,omitempty"`

	// FirstSeen is the value the pipeline kept.
	FirstSeen string `json:"first_seen,omitempty"`

	// Conflict is the diverging value the pipeline ignored.
	Conflict string `json:"conflict,omitempty"`

	// NearMatch reports that the two values are close enough under fuzzy
	// comparison that the divergence is probably a transcription error
	// rather than a genuinely different record.
	NearMatch bool `json:"near_match,omitempty"`
}

// EffectiveKind returns the violation kind, treating an empty kind as an
// attribute conflict.
func (v IntegrityViolation) EffectiveKind() ViolationKind {
	if v.Kind == "" {
		return ViolationAttributeConflict
	}
	return v.Kind
}

// String renders the violation for logs and reports.
func (v IntegrityViolation) String() string {
	switch v.Kind {
	case ViolationUndefinedScore:
		return fmt.Sprintf("integrity violation on %s: feature %s is undefined; provider excluded from clustering",
			v.Key, v.Field)
	case ViolationLabelMismatch:
		return fmt.Sprintf("integrity violation on %s: expanded rows split across clusters, kept majority label %q over %q",
			v.Key, v.FirstSeen, v.Conflict)
	case ViolationUnmatchedProfile:
		return fmt.Sprintf("integrity violation on %s: profile references a provider with no summary", v.Key)
	default:
		msg := fmt.Sprintf("integrity violation on %s: field %s kept %q, ignored conflicting %q",
			v.Key, v.Field, v.FirstSeen, v.Conflict)
		if v.NearMatch {
			msg += " (values are near matches; likely a transcription error)"
		}
		return msg
	}
}
