//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/soundwatch/noise-monitor-service/internal/adapter/mongo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("soundwatch-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startMongo runs MongoDB and returns a connected store on a fresh collection.
func startMongo(ctx context.Context, t *testing.T) *mongo.Store {
	t.Helper()
	store, _ := startMongoWithCollection(ctx, t)
	return store
}

// startMongoWithCollection also returns a driver handle on the store's
// collection, for seeding documents the store itself would never write.
func startMongoWithCollection(ctx context.Context, t *testing.T) (*mongo.Store, *mongodrv.Collection) {
	t.Helper()
	container, err := tcmongo.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start mongodb container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	const database = "noise_monitor_test"
	collection := fmt.Sprintf("readings_%d", time.Now().UnixNano())
	store, err := mongo.Connect(ctx, uri, database, collection, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	require.NoError(t, store.EnsureIndexes(ctx))

	client, err := mongodrv.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return store, client.Database(database).Collection(collection)
}
