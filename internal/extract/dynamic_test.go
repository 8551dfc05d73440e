package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/ir"
)

type fakePreviewer struct {
	steps []*engine.StepMetadata
	err   error
	calls int
}

func (f *fakePreviewer) Preview(context.Context, string, string) ([]*engine.StepMetadata, error) {
	f.calls++
	return f.steps, f.err
}

type fakeExtractor struct {
	events []ir.PreviewEvent
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(context.Context, Target) ([]ir.PreviewEvent, error) {
	f.calls++
	return f.events, f.err
}

const (
	vpcURN    = "urn:pulumi:dev::infra-stack::aws:ec2/vpc:Vpc::v"
	subnetURN = "urn:pulumi:dev::infra-stack::aws:ec2/subnet:Subnet::s"
	stackURN  = "urn:pulumi:dev::infra-stack::pulumi:pulumi:Stack::infra-stack-dev"
)

func TestNormalize(t *testing.T) {
	steps := []*engine.StepMetadata{
		{Op: "create", URN: stackURN, Type: "pulumi:pulumi:Stack"},
		{Op: "create", URN: vpcURN, Type: "aws:ec2/vpc:Vpc", Dependencies: []string{vpcURN}},
		{Op: "create", URN: subnetURN, Type: "aws:ec2/subnet:Subnet",
			New: &engine.StepStateMeta{Dependencies: []string{vpcURN, vpcURN, "urn:pulumi:dev::infra-stack::aws:x:Y::missing"}}},
		{Op: "update", URN: vpcURN, Type: "aws:ec2/vpc:Vpc"},
		nil,
	}

	events := Normalize(steps)
	require.Len(t, events, 3)
	assert.Equal(t, stackURN, events[0].URN)
	assert.Equal(t, vpcURN, events[1].URN)
	assert.Equal(t, ir.OpCreate, events[1].Op)
	assert.Empty(t, events[1].Dependencies)
	assert.Equal(t, []string{vpcURN}, events[2].Dependencies)
}

func TestNormalize_Ops(t *testing.T) {
	tests := []struct {
		op       string
		expected string
	}{
		{"create", ir.OpCreate},
		{"replace", ir.OpUpdate},
		{"update", ir.OpUpdate},
		{"delete", ir.OpDelete},
		{"same", ir.OpNoOp},
		{"refresh", ir.OpNoOp},
		{"read", ir.OpNoOp},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			events := Normalize([]*engine.StepMetadata{{Op: tt.op, URN: vpcURN}})
			require.Len(t, events, 1)
			assert.Equal(t, tt.expected, events[0].Op)
		})
	}
}

func TestDynamic_Extract(t *testing.T) {
	prev := &fakePreviewer{steps: []*engine.StepMetadata{{Op: "create", URN: vpcURN, Type: "aws:ec2/vpc:Vpc"}}}
	events, err := Dynamic{Previewer: prev}.Extract(context.Background(), Target{StackID: "abc", WorkDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "aws:ec2/vpc:Vpc", events[0].Type)
}

func TestDynamic_ExtractError(t *testing.T) {
	prev := &fakePreviewer{err: errors.New("pulumi: command not found")}
	_, err := Dynamic{Previewer: prev}.Extract(context.Background(), Target{StackID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
}

func TestFallback(t *testing.T) {
	primaryEvents := []ir.PreviewEvent{{URN: vpcURN, Type: "aws:ec2/vpc:Vpc", Op: ir.OpCreate}}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &fakeExtractor{events: primaryEvents}
		secondary := &fakeExtractor{}
		events, err := Fallback{Primary: primary, Secondary: secondary}.Extract(context.Background(), Target{})
		require.NoError(t, err)
		assert.Equal(t, primaryEvents, events)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("primary fails", func(t *testing.T) {
		f := Fallback{
			Primary:   Dynamic{Previewer: &fakePreviewer{err: errors.New("sandbox denied")}},
			Secondary: Static{},
		}
		events, err := f.Extract(context.Background(), Target{Program: vpcProgram})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("primary empty", func(t *testing.T) {
		secondary := &fakeExtractor{events: primaryEvents}
		events, err := Fallback{Primary: &fakeExtractor{}, Secondary: secondary}.Extract(context.Background(), Target{})
		require.NoError(t, err)
		assert.Equal(t, primaryEvents, events)
		assert.Equal(t, 1, secondary.calls)
	})

	t.Run("no primary", func(t *testing.T) {
		events, err := Fallback{Secondary: Static{}}.Extract(context.Background(), Target{Program: vpcProgram})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}
