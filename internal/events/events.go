package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/osmaa/takahe/internal/rabbitmq"
)

// Event kinds emitted after an inbox message changes local state. Routing
// keys on the fanout-bound exchange follow "inbox.<kind>".
const (
	KindPostCreated     = "post.created"
	KindPostUpdated     = "post.updated"
	KindPostDeleted     = "post.deleted"
	KindFollowRequested = "follow.requested"
	KindFollowAccepted  = "follow.accepted"
	KindFollowRejected  = "follow.rejected"
	KindFollowUndone    = "follow.undone"
	KindIdentityUpdated = "identity.updated"
	KindIdentityDeleted = "identity.deleted"
	KindInteraction     = "interaction"
	KindReportFiled     = "report.filed"
)

// Event is the wire shape pushed to downstream consumers (timeline fan-out,
// notifications) whenever the inbox applies a remote activity.
type Event struct {
	Kind       string    `json:"kind"`
	ActorURI   string    `json:"actor_uri,omitempty"`
	SubjectURI string    `json:"subject_uri,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher fans events out to the activity exchange. A nil Publisher is
// valid and drops everything, so the pipeline runs without a broker.
type Publisher struct {
	client   *rabbitmq.Client
	exchange string
}

// MustNewPublisher creates a publisher and declares its exchange.
func MustNewPublisher(client *rabbitmq.Client) *Publisher {
	exchange := viper.GetString("rabbitmq.exchange")
	if exchange == "" {
		exchange = "takahe.activity"
	}

	if err := client.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    exchange,
		Kind:    "fanout",
		Durable: true,
	}); err != nil {
		panic("Failed to declare activity exchange: " + err.Error())
	}

	return &Publisher{client: client, exchange: exchange}
}

// Publish emits one event. Broker failures are logged, not returned: the
// state transition already committed and must not be retried for the sake
// of a notification.
func (p *Publisher) Publish(ctx context.Context, kind, actorURI, subjectURI string) {
	if p == nil {
		return
	}

	body, err := json.Marshal(Event{
		Kind:       kind,
		ActorURI:   actorURI,
		SubjectURI: subjectURI,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to marshal event", "kind", kind, "error", err)

		return
	}

	if err := p.client.Publish(p.exchange, "inbox."+kind, body); err != nil {
		slog.Error("Failed to publish event", "kind", kind, "error", err)
	}
}
