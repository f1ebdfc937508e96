package events

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// AlertLevel represents the severity level of an alert
type AlertLevel int

const (
	InfoAlert AlertLevel = iota
	WarningAlert
	ErrorAlert
	CriticalAlert
)

// String returns the string representation of AlertLevel
func (l AlertLevel) String() string {
	switch l {
	case InfoAlert:
		return "INFO"
	case WarningAlert:
		return "WARNING"
	case ErrorAlert:
		return "ERROR"
	case CriticalAlert:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert records a triggered rule
type Alert struct {
	ID          string                 `json:"id"`
	Level       AlertLevel             `json:"level"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  time.Time              `json:"resolved_at,omitempty"`
}

// Condition evaluates whether an event should trigger an alert
type Condition func(event Event, state *MonitorState) bool

// Handler receives triggered alerts
type Handler func(alert Alert)

// Rule binds a condition to an event type with a cooldown
type Rule struct {
	ID            string
	Name          string
	Description   string
	EventType     Type
	Condition     Condition
	Level         AlertLevel
	Cooldown      time.Duration
	lastTriggered time.Time
}

// MonitorState accumulates per-type counters for conditions to read
type MonitorState struct {
	mutex          sync.RWMutex
	eventCounts    map[Type]int64
	lastSeen       map[Type]time.Time
	errorsBySource map[string]int64
}

func newMonitorState() *MonitorState {
	return &MonitorState{
		eventCounts:    make(map[Type]int64),
		lastSeen:       make(map[Type]time.Time),
		errorsBySource: make(map[string]int64),
	}
}

// EventCount returns how many events of one type have been observed
func (s *MonitorState) EventCount(eventType Type) int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.eventCounts[eventType]
}

// ErrorsFrom returns how many error events one source has emitted
func (s *MonitorState) ErrorsFrom(source string) int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.errorsBySource[source]
}

// Monitor watches the event stream and raises alerts when rules fire.
// History is bounded; the oldest alerts are dropped first.
type Monitor struct {
	mutex     sync.RWMutex
	rules     map[string]Rule
	alerts    []Alert
	handlers  []Handler
	state     *MonitorState
	maxAlerts int
}

// NewMonitor creates a monitor that keeps at most maxAlerts alerts
func NewMonitor(maxAlerts int) *Monitor {
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}
	return &Monitor{
		rules:     make(map[string]Rule),
		alerts:    make([]Alert, 0, maxAlerts),
		handlers:  make([]Handler, 0),
		state:     newMonitorState(),
		maxAlerts: maxAlerts,
	}
}

// RegisterRule adds or replaces a rule
func (m *Monitor) RegisterRule(rule Rule) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rules[rule.ID] = rule
}

// RegisterHandler adds an alert handler
func (m *Monitor) RegisterHandler(handler Handler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Observe feeds one event through the registered rules
func (m *Monitor) Observe(event Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.updateState(event)

	for id, rule := range m.rules {
		if !rule.lastTriggered.IsZero() && time.Since(rule.lastTriggered) < rule.Cooldown {
			continue
		}
		if rule.EventType != "" && rule.EventType != event.Type {
			continue
		}
		if !rule.Condition(event, m.state) {
			continue
		}

		alert := Alert{
			ID:          fmt.Sprintf("alert-%d", time.Now().UnixNano()),
			Level:       rule.Level,
			Title:       rule.Name,
			Description: rule.Description,
			Source:      string(event.Type),
			Timestamp:   time.Now(),
			Data:        event.Data,
		}
		m.alerts = append(m.alerts, alert)
		if len(m.alerts) > m.maxAlerts {
			m.alerts = m.alerts[len(m.alerts)-m.maxAlerts:]
		}

		rule.lastTriggered = time.Now()
		m.rules[id] = rule

		for _, handler := range m.handlers {
			go handler(alert)
		}
	}
}

func (m *Monitor) updateState(event Event) {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	m.state.eventCounts[event.Type]++
	m.state.lastSeen[event.Type] = event.Timestamp

	if event.Type == TypeError {
		if source, ok := event.Data["source"].(string); ok {
			m.state.errorsBySource[source]++
		}
	}
}

// Alerts returns a copy of the alert history
func (m *Monitor) Alerts() []Alert {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)
	return alerts
}

// ActiveAlerts returns the unresolved alerts
func (m *Monitor) ActiveAlerts() []Alert {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var active []Alert
	for _, alert := range m.alerts {
		if !alert.Resolved {
			active = append(active, alert)
		}
	}
	return active
}

// Resolve marks one alert resolved
func (m *Monitor) Resolve(alertID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, alert := range m.alerts {
		if alert.ID == alertID {
			alert.Resolved = true
			alert.ResolvedAt = time.Now()
			m.alerts[i] = alert
			return true
		}
	}
	return false
}

// ThresholdCondition triggers when a numeric data field reaches threshold
func ThresholdCondition(dataKey string, threshold float64) Condition {
	return func(event Event, state *MonitorState) bool {
		value, ok := event.Data[dataKey]
		if !ok {
			return false
		}

		var floatValue float64
		switch v := value.(type) {
		case float64:
			floatValue = v
		case int:
			floatValue = float64(v)
		case int64:
			floatValue = float64(v)
		default:
			return false
		}
		return floatValue >= threshold
	}
}

// TotalCountCondition triggers once an event type has been seen n times
func TotalCountCondition(eventType Type, n int64) Condition {
	return func(event Event, state *MonitorState) bool {
		return state.EventCount(eventType) >= n
	}
}

// LogHandler writes alerts to the process log
func LogHandler() Handler {
	return func(alert Alert) {
		log.Printf("🚨 ALERT [%s] %s: %s", alert.Level.String(), alert.Title, alert.Description)
	}
}

// DefaultRules returns the rules the pipeline registers on startup
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "critical-findings",
			Name:        "Critical findings detected",
			Description: "An analyzed file contains critical severity issues",
			EventType:   TypeAnalysisCompleted,
			Condition:   ThresholdCondition("critical_count", 1),
			Level:       CriticalAlert,
			Cooldown:    1 * time.Minute,
		},
		{
			ID:          "noisy-file",
			Name:        "High issue volume",
			Description: "A single file produced an unusually large number of issues",
			EventType:   TypeAnalysisCompleted,
			Condition:   ThresholdCondition("issue_count", 25),
			Level:       WarningAlert,
			Cooldown:    1 * time.Minute,
		},
		{
			ID:          "error-burst",
			Name:        "Pipeline error burst",
			Description: "The pipeline is emitting repeated errors",
			EventType:   TypeError,
			Condition:   TotalCountCondition(TypeError, 5),
			Level:       ErrorAlert,
			Cooldown:    5 * time.Minute,
		},
	}
}
