package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/infraviz/internal/ir"
)

func TestEstimate(t *testing.T) {
	table := DefaultTable()

	v, ok := table.Estimate("aws:rds/instance:Instance")
	require.True(t, ok)
	assert.Equal(t, 15.33, v)

	v, ok = table.Estimate("AWS:RDS/INSTANCE:INSTANCE")
	require.True(t, ok)
	assert.Equal(t, 15.33, v)

	v, ok = table.Estimate("aws:ec2/vpc:Vpc")
	assert.True(t, ok, "free resources are known")
	assert.Equal(t, 0.0, v)

	_, ok = table.Estimate("aws:quantum/computer:Computer")
	assert.False(t, ok)
}

func TestAnnotateAndTotal(t *testing.T) {
	nodes := []ir.GraphNode{
		{ID: "db", ResourceType: "aws:rds/instance:Instance"},
		{ID: "bucket", ResourceType: "aws:s3/bucket:Bucket"},
		{ID: "nat", ResourceType: "aws:ec2/natgateway:NatGateway"},
		{ID: "mystery", ResourceType: "aws:quantum/computer:Computer"},
	}

	DefaultTable().Annotate(nodes)
	require.NotNil(t, nodes[0].EstimatedCost)
	assert.Nil(t, nodes[3].EstimatedCost)

	var expected float64
	for _, n := range nodes {
		if n.EstimatedCost != nil {
			expected += *n.EstimatedCost
		}
	}
	assert.InDelta(t, expected, Total(nodes), 0.005)
	assert.Equal(t, 50.48, Total(nodes))
}

func TestTotal_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Total(nil))
}

func TestTotal_RoundsToCents(t *testing.T) {
	a, b := 0.1, 0.2
	nodes := []ir.GraphNode{{EstimatedCost: &a}, {EstimatedCost: &b}}
	assert.Equal(t, 0.3, Total(nodes))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[costs]
"aws:s3/bucket:Bucket" = 5.0
"aws:custom/widget:Widget" = 1.5
`), 0644))

	table := DefaultTable()
	require.NoError(t, table.LoadOverrides(path))

	v, ok := table.Estimate("aws:s3/bucket:Bucket")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	v, ok = table.Estimate("aws:custom/widget:Widget")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestLoadOverrides_Errors(t *testing.T) {
	dir := t.TempDir()

	err := DefaultTable().LoadOverrides(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "negative.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[costs]\n\"aws:s3/bucket:Bucket\" = -1.0\n"), 0644))
	err = DefaultTable().LoadOverrides(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative cost")
}
