package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/news"
)

// wireEvent is the firehose wire format for a single interaction.
type wireEvent struct {
	ID        string   `json:"id"`
	ArticleID string   `json:"article_id"`
	UserID    string   `json:"user_id"`
	Kind      string   `json:"interaction_type"`
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// EventHandler decodes firehose messages and appends them to an
// interaction store. Malformed or unknown events are counted and skipped;
// only store failures propagate, which disconnects the client.
type EventHandler struct {
	store   news.InteractionStore
	stats   *Stats
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewEventHandler creates an EventHandler. stats and metrics may be nil.
func NewEventHandler(store news.InteractionStore, stats *Stats, metrics *Metrics, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		store:   store,
		stats:   stats,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes a single firehose message. It satisfies MessageHandler.
func (h *EventHandler) Handle(messageType int, payload []byte) error {
	start := h.now()

	var we wireEvent
	if err := json.Unmarshal(payload, &we); err != nil {
		h.reject("malformed payload", err)
		return nil
	}

	ev, err := h.toEvent(we)
	if err != nil {
		h.reject("invalid event", err)
		return nil
	}

	if err := h.store.Append(context.Background(), ev); err != nil {
		if h.metrics != nil {
			h.metrics.IncAppendErrors()
		}
		return err
	}

	if h.stats != nil {
		h.stats.RecordAccepted()
	}
	if h.metrics != nil {
		h.metrics.IncEventsProcessed()
		h.metrics.ObserveIngestLatency(h.now().Sub(start).Seconds())
	}
	return nil
}

// toEvent validates a wire event and converts it to the domain type.
// Missing IDs are generated; a missing timestamp defaults to now.
func (h *EventHandler) toEvent(we wireEvent) (news.InteractionEvent, error) {
	kind, err := news.ParseKind(we.Kind)
	if err != nil {
		return news.InteractionEvent{}, err
	}
	if we.ArticleID == "" {
		return news.InteractionEvent{}, errMissingArticleID
	}

	ev := news.InteractionEvent{
		ID:        we.ID,
		ArticleID: we.ArticleID,
		UserID:    we.UserID,
		Kind:      kind,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	if we.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, we.Timestamp)
		if err != nil {
			return news.InteractionEvent{}, err
		}
		ev.OccurredAt = ts
	} else {
		ev.OccurredAt = h.now()
	}

	if we.Latitude != nil && we.Longitude != nil {
		ev.Location = &geo.Point{Lat: *we.Latitude, Lon: *we.Longitude}
	}
	return ev, nil
}

func (h *EventHandler) reject(reason string, err error) {
	if h.stats != nil {
		h.stats.RecordRejected()
	}
	if h.metrics != nil {
		h.metrics.IncEventsRejected()
	}
	h.logger.Warn("skipping firehose event",
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}

var errMissingArticleID = errors.New("event has no article_id")
