package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// Rule maps a category, and optionally topics and a condition, to agents.
type Rule struct {
	Category string   `json:"category" yaml:"category"`
	Topics   []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	When     string   `json:"when,omitempty" yaml:"when,omitempty"`
	Agents   []string `json:"agents" yaml:"agents"`
}

// RulesDocument is the on-disk routing rules format.
type RulesDocument struct {
	DefaultAgents []string `json:"default_agents,omitempty" yaml:"default_agents,omitempty"`
	Rules         []Rule   `json:"rules" yaml:"rules"`
}

type compiledRule struct {
	Rule
	program *vm.Program
}

type ruleSet struct {
	defaults []string
	rules    []compiledRule
}

// Rules supplies default targets for insights that name no agents. A zero
// path yields an empty rule set.
type Rules struct {
	path string

	mu  sync.RWMutex
	set ruleSet
}

// NewRules builds an in-memory rule set.
func NewRules(doc RulesDocument) (*Rules, error) {
	set, err := compile(doc)
	if err != nil {
		return nil, err
	}
	return &Rules{set: set}, nil
}

// LoadRules reads a JSON or YAML rules document from path.
func LoadRules(path string) (*Rules, error) {
	r := &Rules{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the rules file. The previous rules stay active on error.
func (r *Rules) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return domain.Wrap(domain.ErrRulesUnavailable, err)
	}

	var doc RulesDocument
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = fmt.Errorf("unsupported rules format %q", filepath.Ext(r.path))
	}
	if err != nil {
		return domain.Wrap(domain.ErrRulesUnavailable, err)
	}

	set, err := compile(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

// Path returns the backing file, if any.
func (r *Rules) Path() string {
	return r.path
}

// Targets returns the agents for the first rule matching in, falling back to
// the document's default agents.
func (r *Rules) Targets(in *domain.Insight) ([]string, error) {
	if r == nil || in == nil {
		return nil, nil
	}

	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()

	env := ruleEnv(in)
	for _, rule := range set.rules {
		ok, err := rule.matches(in, env)
		if err != nil {
			return nil, fmt.Errorf("rule for category %q: %w", rule.Category, err)
		}
		if ok {
			return append([]string(nil), rule.Agents...), nil
		}
	}
	return append([]string(nil), set.defaults...), nil
}

func (c compiledRule) matches(in *domain.Insight, env map[string]any) (bool, error) {
	if c.Category != "" && c.Category != "*" && Slug(c.Category) != Slug(in.KnowledgeCategory) {
		return false, nil
	}

	if len(c.Topics) > 0 {
		topic := strings.ToLower(in.PrimaryTopic)
		hit := false
		for _, t := range c.Topics {
			if t != "" && strings.Contains(topic, strings.ToLower(t)) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}

	if c.program == nil {
		return true, nil
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func ruleEnv(in *domain.Insight) map[string]any {
	tools := in.ToolsMentioned
	if tools == nil {
		tools = []string{}
	}
	return map[string]any{
		"category": in.KnowledgeCategory,
		"topic":    in.PrimaryTopic,
		"tools":    tools,
		"score":    in.Score(),
	}
}

func compile(doc RulesDocument) (ruleSet, error) {
	set := ruleSet{defaults: doc.DefaultAgents}
	envShape := map[string]any{
		"category": "",
		"topic":    "",
		"tools":    []string{},
		"score":    0,
	}

	for i, rule := range doc.Rules {
		if len(rule.Agents) == 0 {
			return ruleSet{}, domain.Wrap(domain.ErrRulesUnavailable, fmt.Errorf("rule %d has no agents", i))
		}
		for _, agent := range rule.Agents {
			if _, err := domain.ParseAgentAddress(agent); err != nil {
				return ruleSet{}, domain.Wrap(domain.ErrRulesUnavailable, fmt.Errorf("rule %d: %w", i, err))
			}
		}

		compiled := compiledRule{Rule: rule}
		if strings.TrimSpace(rule.When) != "" {
			program, err := expr.Compile(rule.When, expr.Env(envShape), expr.AsBool())
			if err != nil {
				return ruleSet{}, domain.Wrap(domain.ErrRulesUnavailable, fmt.Errorf("rule %d when: %w", i, err))
			}
			compiled.program = program
		}
		set.rules = append(set.rules, compiled)
	}

	for _, agent := range doc.DefaultAgents {
		if _, err := domain.ParseAgentAddress(agent); err != nil {
			return ruleSet{}, domain.Wrap(domain.ErrRulesUnavailable, fmt.Errorf("default_agents: %w", err))
		}
	}
	return set, nil
}
