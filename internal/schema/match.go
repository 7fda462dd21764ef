package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/jinzhu/inflection"
)

// maxSuggestions caps the number of near-matches carried by a
// ColumnMatchError.
const maxSuggestions = 3

// suggestionDistance is the largest edit distance still offered as a
// suggestion.
const suggestionDistance = 3

// ColumnMatchError is returned when a requested column name cannot be
// resolved to any real column. It carries the available columns and a ranked
// list of near-matches so the message can tell the caller what they probably
// meant.
type ColumnMatchError struct {
	Column      string
	Schema      string
	Table       string
	Available   []string
	Suggestions []string
}

// Error implements the error interface.
func (e *ColumnMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column %q not found", e.Column)
	switch {
	case e.Schema != "" && e.Table != "":
		fmt.Fprintf(&b, " in table %q", e.Schema+"."+e.Table)
	case e.Table != "":
		fmt.Fprintf(&b, " in table %q", e.Table)
	}
	fmt.Fprintf(&b, ". Available columns: %s", strings.Join(e.Available, ", "))
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, ". Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// NewColumnMatchError builds a ColumnMatchError with ranked suggestions.
func NewColumnMatchError(column, schemaName, tableName string, available []string) *ColumnMatchError {
	return &ColumnMatchError{
		Column:      column,
		Schema:      schemaName,
		Table:       tableName,
		Available:   available,
		Suggestions: ClosestMatches(column, available, maxSuggestions),
	}
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// toSnake converts camelCase to snake_case and lowercases the result;
// already-snake names pass through unchanged.
func toSnake(name string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(name, "${1}_${2}"))
}

// MatchColumn resolves candidate against available column names: exact match
// first, then case-insensitive, then singular/plural normalization, then
// snake_case/camelCase normalization. strict restricts matching to exact
// names. Returns the canonical column name or a ColumnMatchError.
func MatchColumn(candidate string, available []string, strict bool) (string, error) {
	for _, col := range available {
		if col == candidate {
			return col, nil
		}
	}
	if strict {
		return "", NewColumnMatchError(candidate, "", "", available)
	}

	lower := strings.ToLower(candidate)
	for _, col := range available {
		if strings.ToLower(col) == lower {
			return col, nil
		}
	}

	singular := strings.ToLower(inflection.Singular(candidate))
	plural := strings.ToLower(inflection.Plural(candidate))
	for _, col := range available {
		colLower := strings.ToLower(col)
		if strings.ToLower(inflection.Singular(col)) == singular || colLower == plural {
			return col, nil
		}
	}

	snake := toSnake(candidate)
	for _, col := range available {
		if toSnake(col) == snake {
			return col, nil
		}
	}

	return "", NewColumnMatchError(candidate, "", "", available)
}

// ClosestMatches returns up to limit column names that nearly match name:
// case-insensitive equality first, then singular/plural equivalence, then
// snake/camel equivalence, then small edit distance ranked ascending.
func ClosestMatches(name string, available []string, limit int) []string {
	if limit <= 0 {
		limit = maxSuggestions
	}

	var matches []string
	seen := make(map[string]bool)
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			matches = append(matches, col)
		}
	}

	lower := strings.ToLower(name)
	for _, col := range available {
		if strings.ToLower(col) == lower {
			add(col)
		}
	}

	singular := strings.ToLower(inflection.Singular(name))
	plural := strings.ToLower(inflection.Plural(name))
	for _, col := range available {
		colLower := strings.ToLower(col)
		if strings.ToLower(inflection.Singular(col)) == singular || colLower == plural {
			add(col)
		}
	}

	snake := toSnake(name)
	for _, col := range available {
		if toSnake(col) == snake {
			add(col)
		}
	}

	// Edit-distance candidates, nearest first.
	type ranked struct {
		col  string
		dist int
	}
	var byDistance []ranked
	for _, col := range available {
		if seen[col] {
			continue
		}
		d := levenshtein.Distance(lower, strings.ToLower(col), nil)
		if d <= suggestionDistance {
			byDistance = append(byDistance, ranked{col, d})
		}
	}
	for d := 1; d <= suggestionDistance; d++ {
		for _, r := range byDistance {
			if r.dist == d {
				add(r.col)
			}
		}
	}

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
