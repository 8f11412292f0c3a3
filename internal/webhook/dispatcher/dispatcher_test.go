package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/webhook/models"
	"signet/internal/webhook/store/attempt"
	"signet/internal/webhook/store/subscription"
	id "signet/pkg/domain"
)

// recordingSleeper captures backoff durations instead of waiting them out.
type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func (r *recordingSleeper) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration{}, r.slept...)
}

type capturedRequest struct {
	body        []byte
	signature   string
	contentType string
}

func newDispatcherTest(t *testing.T) (*subscription.InMemory, *attempt.InMemory, *recordingSleeper, *Dispatcher) {
	t.Helper()
	subs := subscription.NewInMemory()
	attempts := attempt.NewInMemory()
	sleeper := &recordingSleeper{}
	d := New(subs, attempts, WithSleeper(sleeper.sleep))
	return subs, attempts, sleeper, d
}

func addSubscription(t *testing.T, subs *subscription.InMemory, tenantID id.TenantID, url, secret string, events ...models.EventType) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:        id.NewSubscriptionID(),
		TenantID:  tenantID,
		URL:       url,
		Events:    events,
		Secret:    secret,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, subs.Create(context.Background(), sub))
	return sub
}

func TestSendEventDeliversSignedPayload(t *testing.T) {
	var captured capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = capturedRequest{
			body:        body,
			signature:   r.Header.Get(SignatureHeader),
			contentType: r.Header.Get("Content-Type"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subs, attempts, _, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	sub := addSubscription(t, subs, tenantID, server.URL, "abc123", models.EventDocumentSigned)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentSigned, "doc-1", "signed", "alice@example.com")

	require.NotEmpty(t, captured.body)
	assert.Equal(t, "application/json", captured.contentType)
	assert.True(t, VerifySignature("abc123", captured.body, captured.signature),
		"signature must verify against the raw body bytes")

	var payload Payload
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	assert.Equal(t, "document.signed", payload.Event)
	assert.Equal(t, "doc-1", payload.DocumentID)
	assert.Equal(t, "signed", payload.Status)
	require.NotNil(t, payload.SignedBy)
	assert.Equal(t, "alice@example.com", *payload.SignedBy)
	assert.Contains(t, string(captured.body), `"signed_by":"alice@example.com"`)
	_, err := time.Parse(time.RFC3339, payload.Timestamp)
	assert.NoError(t, err, "timestamp must be RFC3339")

	records, err := attempts.ListBySubscription(context.Background(), sub.ID, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttemptSuccess, records[0].Status)
	assert.Equal(t, 1, records[0].Attempt)
	assert.Equal(t, "HTTP 200", records[0].Response)
}

func TestFailingSubscriptionDoesNotDelayOthers(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	// The failing subscription's cycle parks in the sleeper after its first
	// attempt; parked closes once it has. The healthy cycle never sleeps.
	var (
		parkedOnce sync.Once
		parked     = make(chan struct{})
		release    = make(chan struct{})
	)
	blockingSleep := func(ctx context.Context, d time.Duration) error {
		parkedOnce.Do(func() { close(parked) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// The healthy endpoint only answers while the failing cycle is mid-backoff,
	// so a serialized fan-out cannot pass regardless of which cycle runs first.
	healthyHit := make(chan struct{}, 1)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-parked:
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(http.StatusOK)
		healthyHit <- struct{}{}
	}))
	defer healthy.Close()

	subs := subscription.NewInMemory()
	attempts := attempt.NewInMemory()
	d := New(subs, attempts, WithSleeper(blockingSleep))

	tenantID := id.NewTenantID()
	failingSub := addSubscription(t, subs, tenantID, failing.URL, "s1", models.EventDocumentSigned)
	healthySub := addSubscription(t, subs, tenantID, healthy.URL, "s2", models.EventDocumentSigned)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.SendEvent(context.Background(), tenantID, models.EventDocumentSigned, "doc-1", "signed", "alice@example.com")
	}()

	select {
	case <-healthyHit:
	case <-time.After(3 * time.Second):
		t.Fatal("healthy endpoint not served while the failing cycle was in backoff")
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery cycles did not finish after backoff release")
	}

	healthyRecords, err := attempts.ListBySubscription(context.Background(), healthySub.ID, 100)
	require.NoError(t, err)
	require.Len(t, healthyRecords, 1)
	assert.Equal(t, models.AttemptSuccess, healthyRecords[0].Status)

	failingRecords, err := attempts.ListBySubscription(context.Background(), failingSub.ID, 100)
	require.NoError(t, err)
	require.Len(t, failingRecords, 3)
	for _, rec := range failingRecords {
		assert.Equal(t, models.AttemptFailed, rec.Status)
	}
}

func TestSendEventWithoutActorCarriesNull(t *testing.T) {
	var captured capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = capturedRequest{body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subs, _, _, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	addSubscription(t, subs, tenantID, server.URL, "abc123", models.EventDocumentCreated)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentCreated, "doc-1", "created", "")

	require.NotEmpty(t, captured.body)
	assert.Contains(t, string(captured.body), `"signed_by":null`)
}

func TestSendEventRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subs, attempts, sleeper, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	sub := addSubscription(t, subs, tenantID, server.URL, "s", models.EventDocumentSent)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentSent, "doc-1", "sent", "")

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeper.durations())

	records, err := attempts.ListBySubscription(context.Background(), sub.ID, 100)
	require.NoError(t, err)
	require.Len(t, records, 2, "one log row per HTTP try")
	assert.Equal(t, models.AttemptSuccess, records[0].Status)
	assert.Equal(t, 2, records[0].Attempt)
	assert.Equal(t, models.AttemptFailed, records[1].Status)
	assert.Equal(t, 1, records[1].Attempt)
	assert.Contains(t, records[1].Response, "503")
}

func TestSendEventExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	subs, attempts, sleeper, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	sub := addSubscription(t, subs, tenantID, server.URL, "s", models.EventDocumentCreated)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentCreated, "doc-1", "created", "")

	assert.Equal(t, int32(3), calls.Load(), "exactly three tries, then give up")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.durations())

	records, err := attempts.ListBySubscription(context.Background(), sub.ID, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, models.AttemptFailed, rec.Status)
	}
}

func TestSendEventUnreachableEndpoint(t *testing.T) {
	subs, attempts, _, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	// Nothing listens here; every try fails at the transport layer.
	sub := addSubscription(t, subs, tenantID, "http://127.0.0.1:1", "s", models.EventDocumentCreated)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentCreated, "doc-1", "created", "")

	records, err := attempts.ListBySubscription(context.Background(), sub.ID, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Contains(t, records[0].Response, "N/A:")
}

func TestSendEventFansOutWithIdenticalBody(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string][]byte{}
	sigs := map[string]string{}

	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies[name] = body
			sigs[name] = r.Header.Get(SignatureHeader)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}
	serverA := httptest.NewServer(handler("a"))
	defer serverA.Close()
	serverB := httptest.NewServer(handler("b"))
	defer serverB.Close()

	subs, _, _, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()
	addSubscription(t, subs, tenantID, serverA.URL, "secret-a", models.EventDocumentCompleted)
	addSubscription(t, subs, tenantID, serverB.URL, "secret-b", models.EventDocumentCompleted)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentCompleted, "doc-1", "completed", "")

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies["a"], bodies["b"], "every subscriber sees the same canonical bytes")
	assert.True(t, VerifySignature("secret-a", bodies["a"], sigs["a"]))
	assert.True(t, VerifySignature("secret-b", bodies["b"], sigs["b"]))
	assert.NotEqual(t, sigs["a"], sigs["b"], "signatures differ per secret")
}

func TestSendEventScopedToTenantAndEvent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subs, _, _, d := newDispatcherTest(t)
	tenantID := id.NewTenantID()

	// Same event, different tenant.
	addSubscription(t, subs, id.NewTenantID(), server.URL, "s", models.EventDocumentSigned)
	// Same tenant, different event.
	addSubscription(t, subs, tenantID, server.URL, "s", models.EventDocumentViewed)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentSigned, "doc-1", "signed", "")

	assert.Equal(t, int32(0), calls.Load())
}

func TestSendEventZeroMatchesIsNoOp(t *testing.T) {
	_, attempts, sleeper, d := newDispatcherTest(t)

	d.SendEvent(context.Background(), id.NewTenantID(), models.EventDocumentSigned, "doc-1", "signed", "")

	assert.Empty(t, sleeper.durations())
	records, err := attempts.ListBySubscription(context.Background(), id.NewSubscriptionID(), 100)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// failingAttemptStore rejects every write.
type failingAttemptStore struct{}

func (failingAttemptStore) Create(context.Context, *models.DeliveryAttempt) error {
	return assert.AnError
}

func (failingAttemptStore) ListBySubscription(context.Context, id.SubscriptionID, int) ([]*models.DeliveryAttempt, error) {
	return nil, nil
}

func TestLogWriteFailureDoesNotInterruptDelivery(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	subs := subscription.NewInMemory()
	sleeper := &recordingSleeper{}
	d := New(subs, failingAttemptStore{}, WithSleeper(sleeper.sleep))

	tenantID := id.NewTenantID()
	addSubscription(t, subs, tenantID, server.URL, "s", models.EventDocumentSigned)

	d.SendEvent(context.Background(), tenantID, models.EventDocumentSigned, "doc-1", "signed", "")

	assert.Equal(t, int32(1), calls.Load(), "delivery succeeded despite the log write failing")
}

// failingSubscriptionStore fails every lookup.
type failingSubscriptionStore struct {
	subscription.InMemory
}

func (*failingSubscriptionStore) ListByTenantAndEvent(context.Context, id.TenantID, models.EventType) ([]*models.Subscription, error) {
	return nil, assert.AnError
}

func TestLookupFailureIsSwallowed(t *testing.T) {
	attempts := attempt.NewInMemory()
	d := New(&failingSubscriptionStore{}, attempts)

	// Must not panic or propagate.
	d.SendEvent(context.Background(), id.NewTenantID(), models.EventDocumentSigned, "doc-1", "signed", "")
}
