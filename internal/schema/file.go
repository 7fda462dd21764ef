package schema

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// FileSource loads table descriptors from a SQL DDL dump instead of a live
// catalog, for offline schema analysis and mock generation without a
// database. The parser is deliberately best-effort: it handles the CREATE
// TABLE output of pg_dump-style files, not arbitrary SQL.
type FileSource struct {
	tables map[string]*Table
}

var _ Source = (*FileSource)(nil)

var (
	createTablePattern = regexp.MustCompile(`(?is)CREATE TABLE (?:IF NOT EXISTS )?([a-zA-Z0-9_."]+)\s*\(((?:[^()]|\([^()]*\))*)\);`)
	tablePKPattern     = regexp.MustCompile(`(?i)^\s*(?:CONSTRAINT\s+\S+\s+)?PRIMARY KEY\s*\(([^)]+)\)`)
	tableFKPattern     = regexp.MustCompile(`(?i)^\s*(?:CONSTRAINT\s+\S+\s+)?FOREIGN KEY\s*\(([^)]+)\)\s*REFERENCES\s*([a-zA-Z0-9_."]+)\s*\(([^)]+)\)`)
	columnDefPattern   = regexp.MustCompile(`(?i)^\s*"?([a-zA-Z0-9_]+)"?\s+([a-zA-Z0-9_]+(?:\s+varying|\s+precision|\s+with(?:out)?\s+time\s+zone)?(?:\(\d+(?:,\s*\d+)?\))?(?:\[\])?)\s*(.*)$`)
	lengthPattern      = regexp.MustCompile(`\((\d+)\)`)
	defaultPattern     = regexp.MustCompile(`(?i)DEFAULT\s+(\S+(?:\([^)]*\))?)`)
)

// NewFileSource parses the DDL dump at path. Parsing happens once up front
// so LoadTable is a pure lookup.
func NewFileSource(path string) (*FileSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema file not found: %s: %w", path, err)
	}
	return ParseDDL(string(content))
}

// ParseDDL parses CREATE TABLE statements out of raw DDL text.
func ParseDDL(ddl string) (*FileSource, error) {
	src := &FileSource{tables: make(map[string]*Table)}

	for _, match := range createTablePattern.FindAllStringSubmatch(ddl, -1) {
		fullName := strings.ReplaceAll(match[1], `"`, "")
		body := match[2]

		schemaName := "public"
		tableName := fullName
		if i := strings.Index(fullName, "."); i >= 0 {
			schemaName, tableName = fullName[:i], fullName[i+1:]
		}

		table, err := parseTableBody(schemaName, tableName, body)
		if err != nil {
			return nil, err
		}
		src.tables[cacheKey(schemaName, tableName)] = table
	}

	if len(src.tables) == 0 {
		return nil, fmt.Errorf("no CREATE TABLE statements found in schema source")
	}
	return src, nil
}

func parseTableBody(schemaName, tableName, body string) (*Table, error) {
	var columns []Column
	var primaryKeys []string
	foreignKeys := make(map[string]ForeignKey)

	for _, line := range splitDefinitions(body) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if m := tablePKPattern.FindStringSubmatch(line); m != nil {
			for _, col := range strings.Split(m[1], ",") {
				primaryKeys = append(primaryKeys, strings.Trim(strings.TrimSpace(col), `"`))
			}
			continue
		}

		if m := tableFKPattern.FindStringSubmatch(line); m != nil {
			col := strings.Trim(strings.TrimSpace(m[1]), `"`)
			ref := strings.ReplaceAll(m[2], `"`, "")
			refSchema, refTable := "public", ref
			if i := strings.Index(ref, "."); i >= 0 {
				refSchema, refTable = ref[:i], ref[i+1:]
			}
			foreignKeys[col] = ForeignKey{
				Column:    col,
				RefSchema: refSchema,
				RefTable:  refTable,
				RefColumn: strings.Trim(strings.TrimSpace(m[3]), `"`),
			}
			continue
		}

		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "CONSTRAINT") || strings.HasPrefix(upper, "UNIQUE") ||
			strings.HasPrefix(upper, "CHECK") || strings.HasPrefix(upper, "EXCLUDE") {
			continue
		}

		m := columnDefPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := m[1]
		declared := strings.TrimSpace(m[2])
		constraints := m[3]

		col := Column{
			Name:     name,
			DataType: baseType(declared),
			Nullable: !strings.Contains(strings.ToUpper(constraints), "NOT NULL"),
		}
		col.Type = CategoryOf(col.DataType)

		if lm := lengthPattern.FindStringSubmatch(declared); lm != nil && col.Type == Text {
			if n, err := strconv.Atoi(lm[1]); err == nil {
				col.MaxLength = n
			}
		}
		if dm := defaultPattern.FindStringSubmatch(constraints); dm != nil {
			col.Default = dm[1]
			col.HasDefault = true
		}
		if strings.Contains(strings.ToUpper(constraints), "PRIMARY KEY") {
			primaryKeys = append(primaryKeys, name)
		}
		if fm := regexp.MustCompile(`(?i)REFERENCES\s+([a-zA-Z0-9_."]+)\s*\(([^)]+)\)`).FindStringSubmatch(constraints); fm != nil {
			ref := strings.ReplaceAll(fm[1], `"`, "")
			refSchema, refTable := "public", ref
			if i := strings.Index(ref, "."); i >= 0 {
				refSchema, refTable = ref[:i], ref[i+1:]
			}
			foreignKeys[name] = ForeignKey{
				Column:    name,
				RefSchema: refSchema,
				RefTable:  refTable,
				RefColumn: strings.Trim(strings.TrimSpace(fm[2]), `"`),
			}
		}

		// Serial pseudo-types imply a sequence default.
		lower := strings.ToLower(declared)
		if strings.HasPrefix(lower, "serial") || strings.HasPrefix(lower, "bigserial") || strings.HasPrefix(lower, "smallserial") {
			col.Default = "nextval"
			col.HasDefault = true
			col.Nullable = false
		}

		columns = append(columns, col)
	}

	table := NewTable(schemaName, tableName, columns)
	table.PrimaryKeys = primaryKeys
	table.ForeignKeys = foreignKeys
	return table, nil
}

// splitDefinitions splits a CREATE TABLE body on commas that sit outside
// parentheses, so numeric(10, 2) and composite keys stay intact.
func splitDefinitions(body string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])
	return parts
}

// baseType strips a length suffix from a declared type.
func baseType(declared string) string {
	if i := strings.Index(declared, "("); i >= 0 {
		return strings.TrimSpace(declared[:i]) + suffixAfterParen(declared)
	}
	return declared
}

func suffixAfterParen(declared string) string {
	if strings.HasSuffix(declared, "[]") {
		return "[]"
	}
	return ""
}

// LoadTable implements Source as a lookup into the parsed dump.
func (s *FileSource) LoadTable(_ context.Context, schemaName, tableName string) (*Table, error) {
	table, ok := s.tables[cacheKey(schemaName, tableName)]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schemaName, tableName)
	}
	return table, nil
}

// Tables lists the parsed qualified table names.
func (s *FileSource) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for key := range s.tables {
		names = append(names, key)
	}
	return names
}
