package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	events := []PreviewEvent{
		{URN: "a", Op: OpCreate},
		{URN: "b", Op: OpCreate},
		{URN: "c", Op: OpUpdate},
		{URN: "d", Op: OpDelete},
		{URN: "e", Op: OpNoOp},
		{URN: "f", Op: "refresh"},
	}
	assert.Equal(t, PlanSummary{Create: 2, Update: 1, Delete: 1, NoOp: 2}, Summarize(events))
	assert.Equal(t, PlanSummary{}, Summarize(nil))
}
