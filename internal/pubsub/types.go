package pubsub

import (
	"errors"

	"cloud.google.com/go/pubsub"
)

// ErrDisabled is returned by the no-op client when no GCP project is configured.
var ErrDisabled = errors.New("pubsub disabled")

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub. Each
// event type is published to the topic of the same name.
type EventType string

const (
	EventBattleResolved EventType = "battle-resolved"
	EventReportFiled    EventType = "report-filed"
)
