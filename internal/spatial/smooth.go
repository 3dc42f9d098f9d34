package spatial

import (
	"sort"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
)

// Coverage is one (facility, cell) row of a smoothed spatial footprint.
type Coverage struct {
	ClusterID string `json:"cluster_id"`
	Cell      uint64 `json:"cell"`
	Ring      int    `json:"ring"`
}

// Smooth expands each cluster's cell at the given resolution to its k-ring,
// producing coverage rows for storage and export. Ring records the grid
// distance from the cluster's own cell. Unlocated clusters contribute no
// rows. Output is ordered by cluster then cell for deterministic loads.
func Smooth(clusters []model.FacilityCluster, res, k int) []Coverage {
	var out []Coverage
	for i := range clusters {
		c := &clusters[i]
		if c.Merged == nil {
			continue
		}
		cell, ok := c.Merged.Cell(res)
		if !ok {
			continue
		}
		for _, n := range Neighborhood(cell, k) {
			ring := GridDistance(cell, n)
			if ring < 0 {
				continue
			}
			out = append(out, Coverage{ClusterID: c.ID, Cell: n, Ring: ring})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ClusterID != out[j].ClusterID {
			return out[i].ClusterID < out[j].ClusterID
		}
		return out[i].Cell < out[j].Cell
	})
	return out
}
