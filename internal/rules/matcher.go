package rules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches reports whether rule fires for event: the trigger (or one of its
// any[] alternatives) must match the event's type and path glob, and every
// condition in the rule's AND-ed list must hold.
func Matches(rule Rule, event Event) bool {
	if !matchesTrigger(rule.Trigger, rule.PathGlob, event) {
		return false
	}
	for _, cond := range rule.Conditions {
		if !evalCondition(cond, event) {
			return false
		}
	}
	return true
}

func matchesTrigger(t Trigger, pathGlob string, event Event) bool {
	if len(t.Any) > 0 {
		for _, alt := range t.Any {
			if alt.Event != event.Type {
				continue
			}
			if alt.PathGlob == "" || globMatch(alt.PathGlob, event.Path) {
				return true
			}
		}
		return false
	}
	if t.Type != event.Type {
		return false
	}
	if pathGlob != "" && !globMatch(pathGlob, event.Path) {
		return false
	}
	return true
}

func globMatch(pattern, path string) bool {
	ok, err := filepath.Match(pattern, path)
	if err == nil && ok {
		return true
	}
	// filepath.Match never lets "*" cross a "/" and gives "**" no special
	// meaning, so when the full-path match fails, fall back to matching the
	// pattern against the basename: a directory-free pattern such as
	// "*.mkv" then matches a file at any depth.
	ok, err = filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

func evalCondition(cond Condition, event Event) bool {
	actual, ok := event.field(cond.Field)
	switch cond.Op {
	case OpEq:
		if !ok {
			return false
		}
		return compareEqual(actual, cond.Value)
	case OpNe:
		if !ok {
			return true
		}
		return !compareEqual(actual, cond.Value)
	case OpGt, OpGte, OpLt, OpLte:
		if !ok {
			return false
		}
		return compareOrdered(cond.Op, actual, cond.Value)
	case OpIn:
		if !ok {
			return false
		}
		return compareIn(actual, cond.Value)
	case OpRegex:
		if !ok {
			return false
		}
		return compareRegex(actual, cond.Value)
	default:
		return false
	}
}

// compareEqual does a case-insensitive comparison for strings and a
// type-tolerant numeric comparison otherwise, per the matcher's "=" op.
func compareEqual(a, b any) bool {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.EqualFold(as, bs)
	}
	af, aOk := toFloat(a)
	bf, bOk := toFloat(b)
	if aOk && bOk {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(op Operator, a, b any) bool {
	af, aOk := toFloat(a)
	bf, bOk := toFloat(b)
	if !aOk || !bOk {
		return false
	}
	switch op {
	case OpGt:
		return af > bf
	case OpGte:
		return af >= bf
	case OpLt:
		return af < bf
	case OpLte:
		return af <= bf
	}
	return false
}

func compareIn(a, b any) bool {
	list, ok := b.([]any)
	if !ok {
		if strs, ok := b.([]string); ok {
			for _, s := range strs {
				if compareEqual(a, s) {
					return true
				}
			}
		}
		return false
	}
	for _, v := range list {
		if compareEqual(a, v) {
			return true
		}
	}
	return false
}

func compareRegex(a, b any) bool {
	pattern, ok := b.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(fmt.Sprintf("%v", a))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
