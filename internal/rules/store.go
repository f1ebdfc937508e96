package rules

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"codeguardian/internal/utils"
	"codeguardian/types"
)

// builtinVersion marks rule sets installed from the hardcoded defaults.
const builtinVersion = "builtin-1"

// ReloadListener is notified after a rule set swap
type ReloadListener func(*types.RuleSet)

// Store manages the detection rule set. The rule file is loaded wholesale;
// a reload replaces the entire set. Loading never fails hard: any problem
// with the file falls back to the hardcoded defaults.
type Store struct {
	path string

	mutex       sync.RWMutex
	ruleSet     *types.RuleSet
	byID        map[string]types.Rule
	quarantined []string
	listeners   []ReloadListener
}

// NewStore creates a rule store backed by the given file path
func NewStore(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]types.Rule),
	}
}

// Load reads the rule file and installs it as the active rule set. On any
// failure the hardcoded defaults are installed instead; the condition is
// logged and recovered, never fatal. If the file does not exist yet the
// defaults are also written to it so there is a file to edit.
func (s *Store) Load() {
	ruleSet, err := s.readFile()
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("🔍 No rule file at %s, installing defaults", s.path)
			if werr := s.persistDefaults(); werr != nil {
				log.Printf("⚠️  Could not write default rules to %s: %v", s.path, werr)
			}
		} else {
			log.Printf("⚠️  Failed to load rules from %s (%v), falling back to defaults", s.path, err)
		}
		ruleSet = DefaultRuleSet()
	}

	s.install(ruleSet)
}

// Reload re-reads the rule file and swaps the active set. Same failover
// behavior as Load.
func (s *Store) Reload() {
	s.Load()

	s.mutex.RLock()
	current := s.ruleSet
	listeners := make([]ReloadListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mutex.RUnlock()

	for _, listener := range listeners {
		listener(current)
	}

	log.Printf("✅ Rules reloaded: version %s, %d rules active", current.Version, len(current.Rules))
}

// GetRule returns the rule with the given ID
func (s *Store) GetRule(id string) (types.Rule, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rule, ok := s.byID[id]
	return rule, ok
}

// RuleSet returns the current rule set snapshot. The snapshot is replaced
// wholesale on reload; callers must not modify it.
func (s *Store) RuleSet() *types.RuleSet {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ruleSet
}

// Quarantined returns the IDs of rules skipped at the last load because
// their patterns failed to compile
func (s *Store) Quarantined() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]string, len(s.quarantined))
	copy(out, s.quarantined)
	return out
}

// OnReload registers a listener invoked after every reload
func (s *Store) OnReload(listener ReloadListener) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listeners = append(s.listeners, listener)
}

// readFile parses the rule file without installing it
func (s *Store) readFile() (*types.RuleSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var ruleSet types.RuleSet
	if err := json.Unmarshal(data, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if len(ruleSet.Rules) == 0 {
		return nil, fmt.Errorf("rule file contains no rules")
	}

	return &ruleSet, nil
}

// install validates the set, quarantines rules with uncompilable patterns,
// and swaps the active set
func (s *Store) install(ruleSet *types.RuleSet) {
	valid := make([]types.Rule, 0, len(ruleSet.Rules))
	var quarantined []string

	for _, rule := range ruleSet.Rules {
		if rule.ID == "" {
			log.Printf("⚠️  Skipping rule with empty ID (%q)", rule.Name)
			continue
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				log.Printf("⚠️  Quarantined rule %s: invalid pattern: %v", rule.ID, err)
				quarantined = append(quarantined, rule.ID)
				continue
			}
		}
		if !rule.Severity.Valid() {
			rule.Severity = types.ParseSeverity(string(rule.Severity))
		}
		valid = append(valid, rule)
	}

	installed := &types.RuleSet{
		Version: ruleSet.Version,
		Rules:   valid,
	}

	byID := make(map[string]types.Rule, len(valid))
	for _, rule := range valid {
		byID[rule.ID] = rule
	}

	s.mutex.Lock()
	s.ruleSet = installed
	s.byID = byID
	s.quarantined = quarantined
	s.mutex.Unlock()
}

// persistDefaults writes the default rule set to the rule file path
func (s *Store) persistDefaults() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultRuleSet(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default rules: %w", err)
	}

	return utils.WriteFileAtomic(s.path, data, 0644)
}

// DefaultRuleSet returns the hardcoded failover rules
func DefaultRuleSet() *types.RuleSet {
	return &types.RuleSet{
		Version: builtinVersion,
		Rules: []types.Rule{
			{
				ID:          "constant-naming",
				Name:        "Constant Naming",
				Description: "Constant names should use UPPER_SNAKE_CASE",
				Severity:    types.SeverityMedium,
				Pattern:     `static\s+final\s+\w+\s+([a-z]\w*)`,
				Enabled:     true,
			},
			{
				ID:          "excessive-nesting",
				Name:        "Excessive Nesting",
				Description: "Deeply nested control flow should be flattened",
				Severity:    types.SeverityHigh,
				Enabled:     true,
			},
			{
				ID:          "hardcoded-secret",
				Name:        "Hardcoded Secret",
				Description: "Credentials must not be hardcoded in source",
				Severity:    types.SeverityCritical,
				Pattern:     `(?i)(?:password|passwd|secret|api[_-]?key|token)\s*=\s*"([^"]+)"`,
				Enabled:     true,
			},
			{
				ID:          "sql-concat",
				Name:        "SQL String Concatenation",
				Description: "SQL injection risk from string-concatenated query",
				Severity:    types.SeverityHigh,
				Pattern:     `"\s*(?:SELECT|INSERT INTO|UPDATE|DELETE FROM)\b[^"]*"\s*\+`,
				Enabled:     true,
			},
			{
				ID:          "debug-print",
				Name:        "Debug Print Statement",
				Description: "Debug print statements should not ship",
				Severity:    types.SeverityLow,
				Pattern:     `(?:System\.out\.println|console\.log|fmt\.Println)\s*\(`,
				Enabled:     true,
			},
		},
	}
}
