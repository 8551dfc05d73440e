package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), TopicStackGenerated, StackChanged{}))
	assert.NoError(t, pub.Close())
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATS_PublishSubscribe(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	require.NoError(t, err)
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	require.NoError(t, err)
	defer cancel()

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	event := StackChanged{StackID: "abc", Resources: 2, Edges: 1, TotalCost: 17.63}
	require.NoError(t, pub.Publish(context.Background(), TopicStackGenerated, event))
	require.NoError(t, pub.Publish(context.Background(), TopicStackDeploy, DeployFinished{StackID: "abc", Status: "deployed"}))
	require.NoError(t, pub.Flush())

	select {
	case msg := <-ch:
		assert.Equal(t, TopicStackGenerated, msg.Topic)
		var got StackChanged
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "abc", got.StackID)
		assert.Equal(t, 2, got.Resources)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for generated event")
	}

	select {
	case msg := <-ch:
		assert.Equal(t, TopicStackDeploy, msg.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deploy event")
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	require.NoError(t, err)
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	require.NoError(t, err)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1")
	assert.ErrorContains(t, err, "connecting to NATS")
}
