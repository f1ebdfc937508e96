package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Type identifies a pipeline event on the wire
type Type string

const (
	TypeAnalysisCompleted   Type = "analysis_completed"
	TypeSuggestionGenerated Type = "suggestion_generated"
	TypeFixApplied          Type = "fix_applied"
	TypeRulesReloaded       Type = "rules_reloaded"
	TypeAdvisoryUpdated     Type = "advisory_updated"
	TypeError               Type = "error"
)

// Event is the JSON payload published for each pipeline milestone
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}

// ProducerConfig configures the Kafka event producer
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Producer publishes pipeline events to Kafka. With no brokers configured
// it runs disabled and every publish is a silent no-op, so callers never
// need to care whether eventing is on.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer builds a producer for the configured brokers
func NewProducer(config ProducerConfig) *Producer {
	if len(config.Brokers) == 0 {
		log.Printf("📣 Event producer disabled: no brokers configured")
		return &Producer{}
	}

	if config.Topic == "" {
		config.Topic = "codeguardian-events"
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = 1 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: config.BatchTimeout,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("⚠️  Event delivery failed for %d message(s): %v", len(messages), err)
			}
		},
	}

	log.Printf("📣 Event producer connected to %v, topic %s", config.Brokers, config.Topic)
	return &Producer{writer: writer, topic: config.Topic}
}

// Enabled reports whether events actually leave the process
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Publish sends one event. Timestamps default to now.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	if p.writer == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	message := kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// AnalysisCompleted reports a finished file analysis
func (p *Producer) AnalysisCompleted(ctx context.Context, fileName string, issueCount, criticalCount int) error {
	return p.Publish(ctx, Event{
		Type:   TypeAnalysisCompleted,
		Source: "analyzer",
		Data: map[string]interface{}{
			"file_name":      fileName,
			"issue_count":    issueCount,
			"critical_count": criticalCount,
		},
	})
}

// SuggestionGenerated reports a newly synthesized remediation
func (p *Producer) SuggestionGenerated(ctx context.Context, suggestionID, fileName string, lineNumber int) error {
	return p.Publish(ctx, Event{
		Type:   TypeSuggestionGenerated,
		Source: "suggester",
		Data: map[string]interface{}{
			"suggestion_id": suggestionID,
			"file_name":     fileName,
			"line_number":   lineNumber,
		},
	})
}

// FixApplied reports a suggestion written back to disk
func (p *Producer) FixApplied(ctx context.Context, suggestionID, fileName string, lineNumber int) error {
	return p.Publish(ctx, Event{
		Type:   TypeFixApplied,
		Source: "applicator",
		Data: map[string]interface{}{
			"suggestion_id": suggestionID,
			"file_name":     fileName,
			"line_number":   lineNumber,
		},
	})
}

// RulesReloaded reports a rule set swap
func (p *Producer) RulesReloaded(ctx context.Context, version string, ruleCount int) error {
	return p.Publish(ctx, Event{
		Type:   TypeRulesReloaded,
		Source: "rules",
		Data: map[string]interface{}{
			"version":    version,
			"rule_count": ruleCount,
		},
	})
}

// AdvisoryUpdated reports a refreshed advisory keyword feed
func (p *Producer) AdvisoryUpdated(ctx context.Context, source string, keywordCount int) error {
	return p.Publish(ctx, Event{
		Type:   TypeAdvisoryUpdated,
		Source: "advisory",
		Data: map[string]interface{}{
			"feed":          source,
			"keyword_count": keywordCount,
		},
	})
}

// Error reports a pipeline failure worth alerting on
func (p *Producer) Error(ctx context.Context, source string, cause error) error {
	return p.Publish(ctx, Event{
		Type:   TypeError,
		Source: source,
		Data: map[string]interface{}{
			"source":  source,
			"message": cause.Error(),
		},
	})
}

// Close flushes and releases the Kafka writer
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
