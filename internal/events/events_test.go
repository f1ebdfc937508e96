package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_DisabledWithoutBrokers(t *testing.T) {
	producer := NewProducer(ProducerConfig{})

	assert.False(t, producer.Enabled())
	assert.NoError(t, producer.Publish(context.Background(), Event{Type: TypeError}))
	assert.NoError(t, producer.AnalysisCompleted(context.Background(), "a.java", 3, 1))
	assert.NoError(t, producer.FixApplied(context.Background(), "sug-1", "a.java", 7))
	assert.NoError(t, producer.Close())
}

func TestAlertLevel_String(t *testing.T) {
	assert.Equal(t, "INFO", InfoAlert.String())
	assert.Equal(t, "WARNING", WarningAlert.String())
	assert.Equal(t, "ERROR", ErrorAlert.String())
	assert.Equal(t, "CRITICAL", CriticalAlert.String())
	assert.Equal(t, "UNKNOWN", AlertLevel(42).String())
}

func analysisEvent(issueCount, criticalCount int) Event {
	return Event{
		Type:      TypeAnalysisCompleted,
		Timestamp: time.Now(),
		Source:    "analyzer",
		Data: map[string]interface{}{
			"issue_count":    issueCount,
			"critical_count": criticalCount,
		},
	}
}

func TestMonitor_TriggersOnThreshold(t *testing.T) {
	monitor := NewMonitor(10)
	monitor.RegisterRule(Rule{
		ID:        "critical-findings",
		Name:      "Critical findings detected",
		EventType: TypeAnalysisCompleted,
		Condition: ThresholdCondition("critical_count", 1),
		Level:     CriticalAlert,
		Cooldown:  time.Hour,
	})

	monitor.Observe(analysisEvent(4, 2))

	alerts := monitor.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, CriticalAlert, alerts[0].Level)
	assert.Equal(t, "Critical findings detected", alerts[0].Title)
	assert.Equal(t, string(TypeAnalysisCompleted), alerts[0].Source)
}

func TestMonitor_CooldownSuppressesRepeats(t *testing.T) {
	monitor := NewMonitor(10)
	monitor.RegisterRule(Rule{
		ID:        "critical-findings",
		Name:      "Critical findings detected",
		EventType: TypeAnalysisCompleted,
		Condition: ThresholdCondition("critical_count", 1),
		Level:     CriticalAlert,
		Cooldown:  time.Hour,
	})

	monitor.Observe(analysisEvent(4, 2))
	monitor.Observe(analysisEvent(9, 5))

	assert.Len(t, monitor.Alerts(), 1)
}

func TestMonitor_EventTypeFilterSkipsOtherEvents(t *testing.T) {
	monitor := NewMonitor(10)
	monitor.RegisterRule(Rule{
		ID:        "critical-findings",
		EventType: TypeAnalysisCompleted,
		Condition: func(Event, *MonitorState) bool { return true },
		Level:     CriticalAlert,
	})

	monitor.Observe(Event{Type: TypeRulesReloaded, Timestamp: time.Now()})

	assert.Empty(t, monitor.Alerts())
}

func TestMonitor_HistoryIsBounded(t *testing.T) {
	monitor := NewMonitor(3)
	monitor.RegisterRule(Rule{
		ID:        "always",
		EventType: TypeAnalysisCompleted,
		Condition: func(Event, *MonitorState) bool { return true },
		Level:     InfoAlert,
	})

	for i := 1; i <= 5; i++ {
		event := analysisEvent(i, 0)
		event.Data["seq"] = i
		monitor.Observe(event)
	}

	alerts := monitor.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, 3, alerts[0].Data["seq"])
	assert.Equal(t, 5, alerts[2].Data["seq"])
}

func TestMonitor_ErrorBurstFiresAtThreshold(t *testing.T) {
	monitor := NewMonitor(10)
	for _, rule := range DefaultRules() {
		if rule.ID == "error-burst" {
			monitor.RegisterRule(rule)
		}
	}

	for i := 0; i < 5; i++ {
		monitor.Observe(Event{
			Type:      TypeError,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"source": "analyzer", "message": "boom"},
		})
	}

	alerts := monitor.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, ErrorAlert, alerts[0].Level)
	assert.EqualValues(t, 5, monitor.state.EventCount(TypeError))
	assert.EqualValues(t, 5, monitor.state.ErrorsFrom("analyzer"))
}

func TestMonitor_ResolveAlert(t *testing.T) {
	monitor := NewMonitor(10)
	monitor.RegisterRule(Rule{
		ID:        "always",
		EventType: TypeAnalysisCompleted,
		Condition: func(Event, *MonitorState) bool { return true },
		Level:     WarningAlert,
	})
	monitor.Observe(analysisEvent(1, 0))

	alerts := monitor.Alerts()
	require.Len(t, alerts, 1)
	require.Len(t, monitor.ActiveAlerts(), 1)

	assert.True(t, monitor.Resolve(alerts[0].ID))
	assert.Empty(t, monitor.ActiveAlerts())
	assert.False(t, monitor.Resolve("alert-unknown"))
}

func TestMonitor_HandlersReceiveAlerts(t *testing.T) {
	monitor := NewMonitor(10)
	received := make(chan Alert, 1)
	monitor.RegisterHandler(func(alert Alert) { received <- alert })
	monitor.RegisterRule(Rule{
		ID:        "always",
		EventType: TypeAnalysisCompleted,
		Condition: func(Event, *MonitorState) bool { return true },
		Level:     InfoAlert,
	})

	monitor.Observe(analysisEvent(1, 0))

	select {
	case alert := <-received:
		assert.Equal(t, InfoAlert, alert.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestThresholdCondition(t *testing.T) {
	condition := ThresholdCondition("issue_count", 10)
	state := newMonitorState()

	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"float above", float64(12), true},
		{"float at threshold", float64(10), true},
		{"int above", 11, true},
		{"int64 below", int64(9), false},
		{"non numeric", "many", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Event{Type: TypeAnalysisCompleted, Data: map[string]interface{}{"issue_count": tt.value}}
			assert.Equal(t, tt.want, condition(event, state))
		})
	}

	t.Run("missing key", func(t *testing.T) {
		event := Event{Type: TypeAnalysisCompleted, Data: map[string]interface{}{}}
		assert.False(t, condition(event, state))
	})
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 3)

	ids := make([]string, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
		assert.NotNil(t, rule.Condition, fmt.Sprintf("rule %s has no condition", rule.ID))
	}
	assert.Contains(t, ids, "critical-findings")
	assert.Contains(t, ids, "noisy-file")
	assert.Contains(t, ids, "error-burst")
}
