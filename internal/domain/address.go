package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAgentLevel is the depth of the agent tree
const MaxAgentLevel = 3

// AgentAddress identifies an agent in the L1 → L2 → L3 tree. Level equals
// len(Path); L2.4.2 is {Level: 2, Path: [4 2]} and lives under L1.4.
type AgentAddress struct {
	Level int
	Path  []int
}

// ParseAgentAddress parses identifiers of the form L1.n, L2.n.m and L3.n.m.k.
func ParseAgentAddress(value string) (AgentAddress, error) {
	raw := strings.TrimSpace(value)
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q", value))
	}

	head := parts[0]
	if len(head) != 2 || (head[0] != 'L' && head[0] != 'l') {
		return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q: expected L<level> prefix", value))
	}
	level := int(head[1] - '0')
	if level < 1 || level > MaxAgentLevel {
		return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q: level must be 1-%d", value, MaxAgentLevel))
	}
	if len(parts)-1 != level {
		return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q: level %d needs %d segments", value, level, level))
	}

	path := make([]int, 0, level)
	for _, part := range parts[1:] {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q: segment %q is not a number", value, part))
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return AgentAddress{}, Wrap(ErrInvalidAgentAddress, fmt.Errorf("%q: %w", value, err))
		}
		path = append(path, n)
	}

	return AgentAddress{Level: level, Path: path}, nil
}

// String renders the canonical identifier, e.g. "L3.4.2.7".
func (a AgentAddress) String() string {
	var b strings.Builder
	b.WriteString("L")
	b.WriteString(strconv.Itoa(a.Level))
	for _, n := range a.Path {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Parent returns the address one level up. L1 addresses have no parent.
func (a AgentAddress) Parent() (AgentAddress, bool) {
	if a.Level <= 1 || len(a.Path) < 2 {
		return AgentAddress{}, false
	}
	path := make([]int, a.Level-1)
	copy(path, a.Path[:a.Level-1])
	return AgentAddress{Level: a.Level - 1, Path: path}, true
}
