//go:build integration

package stream_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"signet/internal/platform/logger"
	"signet/internal/webhook/models"
	"signet/internal/webhook/stream"
	id "signet/pkg/domain"
	"signet/pkg/testutil/containers"
)

const testTopic = "signet.deliveries.test"

func TestPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t).Broker

	adminClient, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer adminClient.Close()

	admin := kadm.NewClient(adminClient)
	_, err = admin.CreateTopics(ctx, 1, 1, nil, testTopic)
	require.NoError(t, err)

	publisher, err := stream.New([]string{broker}, testTopic, logger.New())
	require.NoError(t, err)
	require.NotNil(t, publisher)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go func() { _ = publisher.Run(runCtx) }()

	attempt := &models.DeliveryAttempt{
		ID:             id.NewAttemptID(),
		SubscriptionID: id.NewSubscriptionID(),
		Event:          models.EventDocumentSigned,
		DocumentID:     "doc-1",
		Status:         models.AttemptSuccess,
		Attempt:        1,
		Response:       "HTTP 200",
		CreatedAt:      time.Now().UTC(),
	}
	publisher.Publish(ctx, attempt)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	require.Equal(t, attempt.SubscriptionID.String(), string(records[0].Key),
		"records are keyed by subscription for partition ordering")

	var got models.DeliveryAttempt
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, attempt.ID, got.ID)
	require.Equal(t, models.AttemptSuccess, got.Status)
	require.Equal(t, "HTTP 200", got.Response)

	publisher.Close(ctx)
}

func TestNewWithoutBrokersIsDisabled(t *testing.T) {
	publisher, err := stream.New(nil, testTopic, logger.New())
	require.NoError(t, err)
	require.Nil(t, publisher)
}
