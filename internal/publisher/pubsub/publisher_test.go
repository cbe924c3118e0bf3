package pubsub_test

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/legislature-crawler/internal/crawler"
	gcppublisher "github.com/JakeFAU/legislature-crawler/internal/publisher/pubsub"
)

func TestPublisherPublish(t *testing.T) {
	ctx := context.Background()

	// Create a fake Pub/Sub server.
	srv := pstest.NewServer()
	defer func() { _ = srv.Close() }()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "legislature-archived")
	require.NoError(t, err)

	pub := gcppublisher.New(topic)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "legislature-archived", crawler.ArchivedEvent{
		RunID:    "run-1",
		Kind:     "bill",
		EntityID: 7,
		Key:      "bills/sd-legislature-bill-7.json",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0].Data), `"key":"bills/sd-legislature-bill-7.json"`)
	assert.Equal(t, "bill", msgs[0].Attributes["kind"])
	assert.Equal(t, "legislature-archived", msgs[0].Attributes["topic"])
}

func TestPublisherWithoutTopic(t *testing.T) {
	pub := gcppublisher.New(nil)
	_, err := pub.Publish(context.Background(), "t", map[string]string{})
	assert.Error(t, err)
}
