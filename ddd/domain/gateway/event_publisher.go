package gateway

import (
	"context"
	"time"
)

// ArtifactsStoredEvent is emitted after every artifact of an upload is stored.
type ArtifactsStoredEvent struct {
	Kind        string    `json:"kind"`
	Scope       string    `json:"scope"`
	SourceURL   string    `json:"sourceUrl"`
	ImageKey    string    `json:"imageKey,omitempty"`
	PlaylistKey string    `json:"playlistKey,omitempty"`
	SegmentKeys []string  `json:"segmentKeys,omitempty"`
	StoredAt    time.Time `json:"storedAt"`
}

// EventPublisher notifies downstream services about stored artifacts.
type EventPublisher interface {
	PublishArtifactsStored(ctx context.Context, event ArtifactsStoredEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishArtifactsStored(context.Context, ArtifactsStoredEvent) error { return nil }
