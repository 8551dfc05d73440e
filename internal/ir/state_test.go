package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackRecordClone(t *testing.T) {
	price := 15.33
	rec := &StackRecord{
		StackID: "abc",
		Nodes:   []GraphNode{{ID: "urn:a", EstimatedCost: &price}},
		Edges:   []GraphEdge{{ID: "e-urn:a-urn:b", Source: "urn:a", Target: "urn:b"}},
	}

	c := rec.Clone()
	require.Equal(t, rec, c)

	c.Nodes[0].ID = "changed"
	*c.Nodes[0].EstimatedCost = 1
	c.Edges[0].Target = "changed"

	assert.Equal(t, "urn:a", rec.Nodes[0].ID)
	assert.Equal(t, 15.33, *rec.Nodes[0].EstimatedCost)
	assert.Equal(t, "urn:b", rec.Edges[0].Target)
}

func TestStackRecordClone_Nil(t *testing.T) {
	var rec *StackRecord
	assert.Nil(t, rec.Clone())
}
