package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/domain"
	"github.com/spec-kit/entitlement-service/internal/events"
)

func TestNotificationServiceDeliversWebhook(t *testing.T) {
	received := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	pushes := &fakePushes{rows: map[string]domain.PushEndpoint{
		"prod/acct": {Partition: "prod", Entitlement: "acct", PushToken: "device-token"},
	}}
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, pushes, nil, config.NotificationConfig{WebhookURL: server.URL, Message: "time to practice"})
	svc.RegisterHandlers()

	scheduleID := uuid.New()
	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventNotificationDue, "prod", "acct",
		events.NotificationDuePayload{ScheduleID: scheduleID, Slot: 42}))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	body := <-received
	want := webhookPayload{PushToken: "device-token", Message: "time to practice", Entitlement: "acct", ScheduleID: scheduleID.String(), Slot: 42}
	if body != want {
		t.Fatalf("body = %+v, want %+v", body, want)
	}
}

func TestNotificationServiceWebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	pushes := &fakePushes{rows: map[string]domain.PushEndpoint{"prod/acct": {PushToken: "t"}}}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, pushes, nil, config.NotificationConfig{WebhookURL: server.URL}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventNotificationDue, "prod", "acct",
		events.NotificationDuePayload{ScheduleID: uuid.New()}))
	if err == nil {
		t.Fatal("expected webhook status error")
	}
}

func TestNotificationServiceStopsWhenContextDone(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	pushes := &fakePushes{rows: map[string]domain.PushEndpoint{"prod/acct": {PushToken: "t"}}}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, pushes, nil, config.NotificationConfig{WebhookURL: server.URL}).RegisterHandlers()
	due := events.NewEvent(events.EventNotificationDue, "prod", "acct", events.NotificationDuePayload{ScheduleID: uuid.New()})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dispatcher.Publish(cancelled, due); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	if err := dispatcher.Publish(expired, due); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expired err = %v", err)
	}

	if n := hits.Load(); n != 0 {
		t.Fatalf("webhook called %d times after shutdown", n)
	}
}

func TestNotificationServiceSkipsWithoutEndpointOrWebhook(t *testing.T) {
	pushes := &fakePushes{rows: map[string]domain.PushEndpoint{"prod/known": {PushToken: "t"}}}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, pushes, nil, config.NotificationConfig{}).RegisterHandlers()

	for _, entitlement := range []string{"unknown", "known"} {
		err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventNotificationDue, "prod", entitlement,
			events.NotificationDuePayload{ScheduleID: uuid.New()}))
		if err != nil {
			t.Fatalf("%s: %v", entitlement, err)
		}
	}

	if err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventNotificationDue, "prod", "known", "bogus")); err == nil {
		t.Fatal("expected error for unexpected payload")
	}
}
