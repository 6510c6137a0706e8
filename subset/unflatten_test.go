package subset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/relkit/query"
)

func TestUnflatten(t *testing.T) {
	t.Parallel()
	tree := aliasTree([]Join{
		{As: "department"},
		{As: "department__company"},
		{As: "manager"},
	})
	assert.Equal(t, aliasNode{
		"department": {"company": {}},
		"manager":    {},
	}, tree)

	tests := []struct {
		name string
		in   query.Row
		want query.Row
	}{
		{
			name: "nested",
			in: query.Row{
				"id":                        1,
				"department__name":          "Eng",
				"department__company__name": "Acme",
				"department__company__id":   7,
				"manager__name":             "zoe",
			},
			want: query.Row{
				"id": 1,
				"department": query.Row{
					"name":    "Eng",
					"company": query.Row{"name": "Acme", "id": 7},
				},
				"manager": query.Row{"name": "zoe"},
			},
		},
		{
			name: "undeclared prefix is kept",
			in:   query.Row{"created__at": "x", "department__": "y", "team__name": "z"},
			want: query.Row{"created__at": "x", "department__": "y", "team__name": "z"},
		},
		{
			name: "all null group",
			in: query.Row{
				"id":                        2,
				"department__name":          nil,
				"department__company__name": nil,
				"manager__name":             "zoe",
			},
			want: query.Row{
				"id":         2,
				"department": nil,
				"manager":    query.Row{"name": "zoe"},
			},
		},
		{
			name: "partially null group",
			in:   query.Row{"department__name": "Eng", "department__company__name": nil},
			want: query.Row{"department": query.Row{"name": "Eng", "company": nil}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, unflatten(tt.in, tree))
		})
	}

	row := query.Row{"a__b": 1}
	assert.Equal(t, row, unflatten(row, aliasTree(nil)))
}

func TestParseOrder(t *testing.T) {
	t.Parallel()
	field, dir, err := parseOrder("created_at-desc")
	assert.NoError(t, err)
	assert.Equal(t, "created_at", field)
	assert.Equal(t, query.Desc, dir)

	field, dir, err = parseOrder("name")
	assert.NoError(t, err)
	assert.Equal(t, "name", field)
	assert.Equal(t, query.Asc, dir)

	_, _, err = parseOrder("name-asc-extra")
	assert.Error(t, err)
	_, _, err = parseOrder("-asc")
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(3), normalizeKey(int32(3)))
	assert.Equal(t, int64(3), normalizeKey(3))
	assert.Equal(t, "ab", normalizeKey([]byte("ab")))
	assert.Equal(t, "ab", normalizeKey("ab"))
	assert.Nil(t, normalizeKey(nil))
}
