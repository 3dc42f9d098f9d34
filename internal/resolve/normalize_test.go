package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Safaniya Field", "SAFANIYA"},
		{"SAFANIYA OIL FIELD", "SAFANIYA"},
		{"Marlim Complex", "MARLIM"},
		{"Statfjord Unit", "STATFJORD"},
		{"Exxon Mobil Corp.", "EXXON MOBIL"},
		{"Smith & Jones LLC", "SMITH AND JONES"},
		{"Tupi/Lula", "TUPI LULA"},
		{"Clair  Ridge", "CLAIR RIDGE"},
		{"  padded  ", "PADDED"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeName(tc.in))
		})
	}
}

func TestNormalizeNameStripsOneSuffix(t *testing.T) {
	// One trailing designator goes, not a cascade.
	assert.Equal(t, "SAFANIYA OIL FIELD", NormalizeName("Safaniya Oil Field Field"))
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)
	uf.union(0, 2) // already joined, no-op

	assert.Equal(t, uf.find(0), uf.find(2))
	assert.NotEqual(t, uf.find(0), uf.find(3))

	comps := uf.components()
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4}}, comps)
}

func TestUnionFindSingletons(t *testing.T) {
	uf := newUnionFind(3)
	assert.Equal(t, [][]int{{0}, {1}, {2}}, uf.components())
}
