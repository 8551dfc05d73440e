package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/ir"
)

type fakeDeployer struct {
	lines []string
	err   error
	req   engine.DeployRequest
	seen  []ir.DeployStatus
	store *fakeStatusStore
}

func (f *fakeDeployer) Deploy(_ context.Context, req engine.DeployRequest, sink func(string)) error {
	f.req = req
	f.seen = append(f.seen, f.store.current())
	for _, l := range f.lines {
		sink(l)
	}
	return f.err
}

type fakeStatusStore struct {
	mu          sync.Mutex
	transitions []ir.DeployStatus
}

func (s *fakeStatusStore) SetStatus(_ string, status ir.DeployStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, status)
	return true
}

func (s *fakeStatusStore) current() ir.DeployStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transitions) == 0 {
		return ""
	}
	return s.transitions[len(s.transitions)-1]
}

var testRecord = &ir.StackRecord{StackID: "abc", WorkDir: "/tmp/infra-abc"}

func TestOrchestrator_Success(t *testing.T) {
	store := &fakeStatusStore{}
	dep := &fakeDeployer{
		store: store,
		lines: []string{
			"  Updating (acme/infra-abc/dev)  ",
			" +  aws:s3:Bucket b creating",
			" +  aws:s3:Bucket b Created",
			"[debug] noise",
			"Resources:",
		},
	}
	o := NewOrchestrator(dep, store)

	res := o.Run(context.Background(), testRecord, ir.Session{AccessToken: "tok", Org: "acme", Environment: "proj/creds"})

	assert.Equal(t, StatusDeployed, res.Status)
	assert.Equal(t, "Deployed successfully. ~2 resources created.", res.Message)
	assert.Equal(t, []string{"Updating (acme/infra-abc/dev)", "+  aws:s3:Bucket b creating", "+  aws:s3:Bucket b Created", "Resources:"}, res.Logs)
	assert.Equal(t, []ir.DeployStatus{ir.StatusDeploying, ir.StatusDeployed}, store.transitions)
	assert.Equal(t, []ir.DeployStatus{ir.StatusDeploying}, dep.seen)

	assert.Equal(t, engine.DeployRequest{
		WorkDir:     "/tmp/infra-abc",
		StackID:     "abc",
		Token:       "tok",
		Org:         "acme",
		Environment: "proj/creds",
	}, dep.req)
}

func TestOrchestrator_Failure(t *testing.T) {
	store := &fakeStatusStore{}
	dep := &fakeDeployer{store: store, lines: []string{"Updating"}, err: errors.New("pulumi up exited with code 255")}
	o := NewOrchestrator(dep, store)

	res := o.Run(context.Background(), testRecord, ir.Session{AccessToken: "tok"})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "Deploy failed: pulumi up exited with code 255", res.Message)
	assert.Equal(t, []string{"Updating", "[error] pulumi up exited with code 255"}, res.Logs)
	assert.Equal(t, []ir.DeployStatus{ir.StatusDeploying, ir.StatusFailed}, store.transitions)
}

func TestTrimLogs(t *testing.T) {
	var raw []string
	for i := 0; i < 100; i++ {
		switch {
		case i%10 == 0:
			raw = append(raw, fmt.Sprintf("[debug] step %d", i))
		case i == 95:
			raw = append(raw, strings.Repeat("x", 250))
		default:
			raw = append(raw, fmt.Sprintf("[info] line %d", i))
		}
	}

	trimmed := TrimLogs(raw)
	assert.LessOrEqual(t, len(trimmed), MaxLogLines)
	assert.Len(t, trimmed, 80)

	var long []string
	for _, l := range trimmed {
		assert.False(t, strings.HasPrefix(l, "[debug]"))
		assert.LessOrEqual(t, len(l), MaxLineLength)
		if strings.HasPrefix(l, "xxx") {
			long = append(long, l)
		}
	}
	require.Len(t, long, 1)
	assert.Len(t, long[0], 200)
	assert.True(t, strings.HasSuffix(long[0], "..."))
	assert.Equal(t, "[info] line 99", trimmed[len(trimmed)-1])
}

func TestTrimLogs_Short(t *testing.T) {
	assert.Empty(t, TrimLogs(nil))
	exact := strings.Repeat("y", MaxLineLength)
	assert.Equal(t, []string{exact}, TrimLogs([]string{exact}))
}

func TestTrimLogs_MultiByte(t *testing.T) {
	box := strings.Repeat("─", 150)
	accents := strings.Repeat("é", 250)
	tree := " ├─ aws:s3/bucket:Bucket assets ✓ created"

	trimmed := TrimLogs([]string{box, accents, tree})
	require.Len(t, trimmed, 3)

	assert.Equal(t, box, trimmed[0])
	assert.Equal(t, tree, trimmed[2])

	assert.Equal(t, MaxLineLength, utf8.RuneCountInString(trimmed[1]))
	assert.Equal(t, strings.Repeat("é", MaxLineLength-3)+"...", trimmed[1])
	for _, l := range trimmed {
		assert.True(t, utf8.ValidString(l))
	}
}

func TestCountCreated(t *testing.T) {
	lines := []string{
		"+ aws:s3:Bucket b",
		"aws:ec2:Vpc v CREATED",
		"Resources: 2 created",
		"Duration: 12s",
		"~ update",
	}
	assert.Equal(t, 3, CountCreated(lines))
}

func TestLogBuffer_ConcurrentAdds(t *testing.T) {
	b := &logBuffer{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.add(fmt.Sprintf(" line %d ", i))
		}(i)
	}
	wg.Wait()
	lines := b.snapshot()
	assert.Len(t, lines, 20)
	for _, l := range lines {
		assert.Equal(t, strings.TrimSpace(l), l)
	}
}
