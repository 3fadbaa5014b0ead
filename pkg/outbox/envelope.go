package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/pkg/enums"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

// EnvelopeVersion is the envelope layout written by Emit.
const EnvelopeVersion = 1

// ActorRef identifies who caused a settlement event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// ActorFrom converts a domain actor; the system actor keeps only its role.
func ActorFrom(actor types.Actor) *ActorRef {
	return &ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

// BuyerActor attributes an event to the order's buyer.
func BuyerActor(buyerID uuid.UUID) *ActorRef {
	return &ActorRef{UserID: buyerID, Role: string(enums.UserRoleBuyer)}
}

// Envelope wraps every payload stored in outbox_events and published to the
// event streams. EventID equals the outbox row id.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload. Envelopes newer than this build
// understands are rejected rather than half-read.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode outbox envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return Envelope{}, fmt.Errorf("outbox envelope version %d not supported", env.Version)
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into out.
func (e Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("outbox envelope %s has no data", e.EventID)
	}
	return json.Unmarshal(e.Data, out)
}
