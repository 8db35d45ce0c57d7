package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
)

// Message is the topic-addressed notification handed to the push gateway.
type Message struct {
	Topic string `json:"topic"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Compose derives title and body deterministically from the event.
func Compose(ev models.Event, topic string, g config.Granularity) Message {
	msg := Message{Topic: topic}
	docs := ev.NewDocuments

	if g == config.GranularityMeeting && ev.Meeting != nil {
		date := ev.Meeting.DateRaw
		if len(date) > 10 {
			date = date[:10]
		}
		msg.Title = "Nieuwe agenda: " + ev.Meeting.Type
		msg.Body = fmt.Sprintf("Datum: %s met %d documenten beschikbaar.", date, len(docs))
		return msg
	}

	msg.Title = "Nieuw raadstuk"
	if ev.Meeting != nil {
		msg.Title = "Nieuwe stukken: " + ev.Meeting.Type
	}
	switch len(docs) {
	case 0:
	case 1:
		msg.Body = docs[0].Filename
	default:
		msg.Body = fmt.Sprintf("Er zijn %d nieuwe stukken. Laatste: %s", len(docs), newest(docs).Filename)
	}
	return msg
}

// newest returns the most recently published document. Upstream identifiers
// are assigned in increasing order, so the highest one wins regardless of the
// order the batch was listed in.
func newest(docs []models.Document) models.Document {
	best := docs[0]
	for _, doc := range docs[1:] {
		if idLess(best.ID, doc.ID) {
			best = doc
		}
	}
	return best
}

func idLess(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Sender publishes one message per event to a fixed Kafka topic; every
// subscriber of the topic receives it.
type Sender struct {
	writer      messageWriter
	topic       string
	granularity config.Granularity
	log         *slog.Logger
}

// NewKafkaWriter creates the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 1,
	})
}

// New creates a sender around writer.
func New(writer messageWriter, topic string, g config.Granularity, log *slog.Logger) *Sender {
	if log == nil {
		log = logger.Discard()
	}
	return &Sender{writer: writer, topic: topic, granularity: g, log: log}
}

// Name identifies the channel in dispatch reports.
func (s *Sender) Name() string { return "push" }

// Notify publishes the event's message keyed by its entity id.
func (s *Sender) Notify(ctx context.Context, ev models.Event) error {
	msg := Compose(ev, s.topic, s.granularity)
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_kind", Value: []byte(ev.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish push message: %w", err)
	}

	s.log.Info("push sent", slog.String("topic", s.topic), slog.String("title", msg.Title))
	return nil
}
