package messages

import (
	"time"

	"codeguardian/types"
)

// Package messages defines the typed payloads the pipeline broadcasts to
// websocket clients and hands to alert handlers. Every message carries its
// own timestamp so consumers can order them without trusting arrival order.

// AnalysisCompleteMsg is sent when a single document analysis finishes.
type AnalysisCompleteMsg struct {
	FileName   string        `json:"fileName"`
	IssueCount int           `json:"issueCount"`
	Issues     []types.Issue `json:"issues"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewAnalysisComplete builds the broadcast payload for a finished analysis
func NewAnalysisComplete(result *types.AnalysisResult, duration time.Duration) AnalysisCompleteMsg {
	return AnalysisCompleteMsg{
		FileName:   result.FileName,
		IssueCount: len(result.Issues),
		Issues:     result.Issues,
		Duration:   duration,
		Timestamp:  time.Now(),
	}
}

// SuggestionsReadyMsg is sent when suggestion generation for a file finishes.
type SuggestionsReadyMsg struct {
	FileName    string              `json:"fileName"`
	Suggestions []*types.Suggestion `json:"suggestions"`
	Timestamp   time.Time           `json:"timestamp"`
}

// NewSuggestionsReady builds the broadcast payload for generated suggestions
func NewSuggestionsReady(fileName string, suggestions []*types.Suggestion) SuggestionsReadyMsg {
	return SuggestionsReadyMsg{
		FileName:    fileName,
		Suggestions: suggestions,
		Timestamp:   time.Now(),
	}
}

// FixAppliedMsg is sent after a suggestion has been written back to disk.
type FixAppliedMsg struct {
	SuggestionID string    `json:"suggestionId"`
	FileName     string    `json:"fileName"`
	LineNumber   int       `json:"lineNumber"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewFixApplied builds the broadcast payload for an applied fix
func NewFixApplied(s *types.Suggestion) FixAppliedMsg {
	return FixAppliedMsg{
		SuggestionID: s.ID,
		FileName:     s.FileName,
		LineNumber:   s.LineNumber,
		Timestamp:    time.Now(),
	}
}

// RulesReloadedMsg is sent after the rule store swaps in a new rule set.
type RulesReloadedMsg struct {
	Version     string    `json:"version"`
	RuleCount   int       `json:"ruleCount"`
	Quarantined []string  `json:"quarantined,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRulesReloaded builds the broadcast payload for a rule reload
func NewRulesReloaded(ruleSet *types.RuleSet, quarantined []string) RulesReloadedMsg {
	return RulesReloadedMsg{
		Version:     ruleSet.Version,
		RuleCount:   len(ruleSet.Rules),
		Quarantined: quarantined,
		Timestamp:   time.Now(),
	}
}

// AdvisoryUpdatedMsg is sent after the advisory feed refreshes.
type AdvisoryUpdatedMsg struct {
	Source       string    `json:"source"`
	KeywordCount int       `json:"keywordCount"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatusUpdateMsg reports a component state change.
type StatusUpdateMsg struct {
	Component string    `json:"component"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusUpdate builds a component status payload
func NewStatusUpdate(component, status, message string) StatusUpdateMsg {
	return StatusUpdateMsg{
		Component: component,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ErrorMsg reports a recovered pipeline error to observers.
type ErrorMsg struct {
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewError builds an error payload from a component and its failure
func NewError(component string, err error) ErrorMsg {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorMsg{
		Component: component,
		Message:   msg,
		Timestamp: time.Now(),
	}
}

// ShutdownMsg announces a graceful shutdown to connected clients.
type ShutdownMsg struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
