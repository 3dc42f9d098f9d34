package model

// Member is one clustered record with the match score that joined it to the
// cluster (100 for the seed member of a singleton).
type Member struct {
	Provenance Provenance `json:"provenance"`
	Score      float64    `json:"score"`
}

// FacilityCluster groups source records judged to represent one physical
// facility, with a merged canonical record. The terminal artifact of a run.
type FacilityCluster struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Members      []Member         `json:"members"`
	Merged       *CanonicalRecord `json:"-"`
	NeedsReview  bool             `json:"needs_review"`
	ReviewReason string           `json:"review_reason,omitempty"`
}

// Size returns the member count.
func (c *FacilityCluster) Size() int { return len(c.Members) }

// Singleton reports whether the cluster holds exactly one record.
func (c *FacilityCluster) Singleton() bool { return len(c.Members) == 1 }
