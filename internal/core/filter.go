// Package core provides filtering of focus transition history.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/callfocus/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Newer than (time only)
	FilterOpLess      FilterOp = "<"  // Older than (time only)
	FilterOpGreaterEq FilterOp = ">="
	FilterOpLessEq    FilterOp = "<="
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Field name: command, from, to, caller, request, time
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex  *regexp.Regexp // Compiled regex for ~=
	mode   model.Mode     // Parsed mode for from/to
	cutoff time.Time      // Parsed relative time for time
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering transitions.
type FilterOptions struct {
	Since   time.Duration // Only transitions newer than now-since (0=all)
	Command string        // Exact command identifier
	Caller  string        // Exact caller id
	Limit   int           // Keep only the last N matches (0=unlimited)
}

// Filter filters transitions based on the provided options, keeping order.
func Filter(transitions []model.Transition, opts FilterOptions) []model.Transition {
	now := time.Now()
	result := make([]model.Transition, 0, len(transitions))

	for _, t := range transitions {
		if opts.Since > 0 && t.TimestampTime().Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.Command != "" && !strings.EqualFold(t.Command, opts.Command) {
			continue
		}
		if opts.Caller != "" && t.CallerID != opts.Caller {
			continue
		}
		result = append(result, t)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Supported fields: command, from, to, caller, request, time
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), and
// >, <, >=, <= for time, where "time>1h" means within the last hour.
//
// Examples:
//   - "command=playIncomingRing"
//   - "to=ringtone,caller~alice"
//   - "from!=none,time>30m"
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	if expr == "" {
		return filter, nil
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "to=ringtone" or "caller~ali".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}

		cond := FilterCondition{
			Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
			Operator: op,
			Value:    strings.TrimSpace(s[idx+len(op):]),
		}
		if err := cond.init(); err != nil {
			return FilterCondition{}, err
		}
		return cond, nil
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init pre-parses and validates the condition value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "command", "cmd":
		c.Field = "command"
	case "caller", "caller_id":
		c.Field = "caller"
	case "request", "request_id", "id":
		c.Field = "request"
	case "from", "to":
		if c.Operator != FilterOpEqual && c.Operator != FilterOpNotEqual {
			return fmt.Errorf("field %s only supports = and !=", c.Field)
		}
		var m model.Mode
		if err := m.UnmarshalText([]byte(c.Value)); err != nil {
			return err
		}
		c.mode = m
	case "time", "timestamp", "at":
		c.Field = "time"
		switch c.Operator {
		case FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq:
		default:
			return fmt.Errorf("field time only supports >, <, >= and <=")
		}
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid time value: %w", err)
		}
		c.cutoff = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

// Match tests if a transition matches the filter expression.
func (f *FilterExpr) Match(t model.Transition) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(t) {
			return false
		}
	}
	return true
}

// Match tests if a transition matches this single condition.
func (c *FilterCondition) Match(t model.Transition) bool {
	switch c.Field {
	case "command":
		return c.matchString(t.Command)
	case "caller":
		return c.matchString(t.CallerID)
	case "request":
		return c.matchString(t.RequestID)
	case "from":
		return c.matchMode(t.From)
	case "to":
		return c.matchMode(t.To)
	case "time":
		return c.matchTime(t.TimestampTime())
	default:
		return false
	}
}

func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

func (c *FilterCondition) matchMode(fieldValue model.Mode) bool {
	if c.Operator == FilterOpNotEqual {
		return fieldValue != c.mode
	}
	return fieldValue == c.mode
}

func (c *FilterCondition) matchTime(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.cutoff)
	case FilterOpLess:
		return fieldValue.Before(c.cutoff)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.cutoff)
	case FilterOpLessEq:
		return !fieldValue.After(c.cutoff)
	default:
		return false
	}
}

// FilterWithExpr filters transitions using a filter expression.
func FilterWithExpr(transitions []model.Transition, expr *FilterExpr) []model.Transition {
	if expr == nil || len(expr.Conditions) == 0 {
		return transitions
	}

	result := make([]model.Transition, 0, len(transitions))
	for _, t := range transitions {
		if expr.Match(t) {
			result = append(result, t)
		}
	}
	return result
}
