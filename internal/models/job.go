package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueName identifies one of the fixed set of named queues.
type QueueName string

const (
	QueueDiscovery       QueueName = "discovery"
	QueueVerification    QueueName = "email-verification"
	QueueEnrichment      QueueName = "contact-enrichment"
	QueueDraftGeneration QueueName = "draft-generation"
)

// AllQueues lists every queue the pipeline drains. Workers are started for
// each entry at composition time.
func AllQueues() []QueueName {
	return []QueueName{QueueDiscovery, QueueVerification, QueueEnrichment, QueueDraftGeneration}
}

// JobKind discriminates the payload union carried by a JobMessage.
type JobKind string

const (
	KindDiscovery    JobKind = "discovery"
	KindVerification JobKind = "email-verification"
	KindEnrichment   JobKind = "contact-enrichment"
	KindDraft        JobKind = "draft-generation"
)

// JobPayload is the tagged union of queue-specific job data. Adding a new job
// type means adding a variant here and a case to UnmarshalPayload; worker
// dispatch switches exhaustively over Kind().
type JobPayload interface {
	Kind() JobKind
}

// DiscoveryPayload asks for a full contact discovery run against a domain.
type DiscoveryPayload struct {
	Domain    string   `json:"domain"`
	Roles     []string `json:"roles,omitempty"`
	Threshold int      `json:"threshold,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Brief     string   `json:"brief,omitempty"`
}

func (DiscoveryPayload) Kind() JobKind { return KindDiscovery }

// VerificationPayload verifies an explicit list of email addresses.
type VerificationPayload struct {
	Domain string   `json:"domain,omitempty"`
	Emails []string `json:"emails"`
}

func (VerificationPayload) Kind() JobKind { return KindVerification }

// EnrichmentPayload re-runs discovery for a domain and merges the fresh
// contacts into an existing result record.
type EnrichmentPayload struct {
	Domain      string   `json:"domain"`
	SourceJobID string   `json:"source_job_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

func (EnrichmentPayload) Kind() JobKind { return KindEnrichment }

// DraftPayload generates an outreach draft for a single contact.
type DraftPayload struct {
	Domain  string  `json:"domain"`
	Contact Contact `json:"contact"`
	Brief   string  `json:"brief,omitempty"`
}

func (DraftPayload) Kind() JobKind { return KindDraft }

// JobMessage is the envelope stored in the queue transport.
type JobMessage struct {
	ID       string     `json:"id"`
	Queue    QueueName  `json:"queue"`
	Priority int        `json:"priority"` // Higher dispatched first within a queue
	Attempt  int        `json:"attempt"`  // 1-based, set by the queue on delivery
	Payload  JobPayload `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// jobMessageJSON is the wire form of JobMessage with the payload tagged by kind.
type jobMessageJSON struct {
	ID        string          `json:"id"`
	Queue     QueueName       `json:"queue"`
	Priority  int             `json:"priority"`
	Attempt   int             `json:"attempt"`
	Type      JobKind         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON encodes the envelope with a "type" tag so the payload union
// survives the queue transport.
func (m JobMessage) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("job message %s has no payload", m.ID)
	}
	raw, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", m.Payload.Kind(), err)
	}
	return json.Marshal(jobMessageJSON{
		ID:        m.ID,
		Queue:     m.Queue,
		Priority:  m.Priority,
		Attempt:   m.Attempt,
		Type:      m.Payload.Kind(),
		Payload:   raw,
		CreatedAt: m.CreatedAt,
	})
}

// UnmarshalJSON decodes the envelope and reconstructs the payload variant.
func (m *JobMessage) UnmarshalJSON(data []byte) error {
	var wire jobMessageJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	payload, err := UnmarshalPayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}

	m.ID = wire.ID
	m.Queue = wire.Queue
	m.Priority = wire.Priority
	m.Attempt = wire.Attempt
	m.Payload = payload
	m.CreatedAt = wire.CreatedAt
	return nil
}

// UnmarshalPayload reconstructs a payload variant from its kind tag. Unknown
// kinds are an error, never silently dropped.
func UnmarshalPayload(kind JobKind, raw json.RawMessage) (JobPayload, error) {
	switch kind {
	case KindDiscovery:
		var p DiscoveryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discovery payload: %w", err)
		}
		return p, nil
	case KindVerification:
		var p VerificationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verification payload: %w", err)
		}
		return p, nil
	case KindEnrichment:
		var p EnrichmentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal enrichment payload: %w", err)
		}
		return p, nil
	case KindDraft:
		var p DraftPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown job kind: %q", kind)
	}
}

// QueueFor maps a payload kind to the queue that carries it.
func QueueFor(kind JobKind) QueueName {
	switch kind {
	case KindDiscovery:
		return QueueDiscovery
	case KindVerification:
		return QueueVerification
	case KindEnrichment:
		return QueueEnrichment
	case KindDraft:
		return QueueDraftGeneration
	default:
		return QueueDiscovery
	}
}
