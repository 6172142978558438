// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlcheck validates and sanitizes LLM-generated SQL before it can
// reach the database. The contract is strict: a statement executes only if
// it is provably a single read-only SELECT (or WITH ... SELECT), carries no
// write or DDL keyword once string literals and comments are stripped, uses
// out-of-band parameter binding for every literal, and respects the row
// cap. Anything ambiguous is rejected.
package sqlcheck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sqlagent/cli/internal/errors"
)

// GeneratedQuery is a validated, parameterized statement ready for
// execution. SQL uses positional $n placeholders; Args carries the values
// in matching order. Params preserves the original named mapping for
// display and logging.
type GeneratedQuery struct {
	SQL        string
	ParamNames []string
	Args       []any
	Params     map[string]any
}

// Validator checks generated SQL and rewrites named parameters.
type Validator struct {
	// MaxRows caps result size; a missing LIMIT is appended and an
	// oversized numeric LIMIT is clamped to this value.
	MaxRows int
}

// New creates a Validator with the given row cap.
func New(maxRows int) *Validator {
	if maxRows <= 0 {
		maxRows = 500
	}
	return &Validator{MaxRows: maxRows}
}

// forbidden lists keywords that disqualify a statement outright. The scan
// runs over text with strings and comments removed, so a literal like
// 'delete me' cannot trip it.
var forbidden = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "GRANT", "REVOKE", "COPY", "MERGE", "CALL", "DO",
	"VACUUM", "REINDEX", "LOCK", "LISTEN", "NOTIFY", "SET", "RESET",
	"PREPARE", "EXECUTE", "DEALLOCATE", "DECLARE", "FETCH",
}

var (
	sqlFenceRe  = regexp.MustCompile("(?s)```sql\\s*(.*?)\\s*```")
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	paramRe     = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)
	limitRe     = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)
	limitKwRe   = regexp.MustCompile(`(?i)\bLIMIT\b`)
	keywordRe   = regexp.MustCompile(`[A-Za-z_]+`)
)

// ExtractSQL pulls the SQL statement out of a model response enclosed in
// ```sql markers.
func ExtractSQL(response string) (string, error) {
	m := sqlFenceRe.FindStringSubmatch(response)
	if m == nil {
		return "", errors.New(errors.QueryValidation, "no ```sql block found in model response")
	}
	sql := strings.TrimSpace(m[1])
	if sql == "" {
		return "", errors.New(errors.QueryValidation, "empty SQL in model response")
	}
	return sql, nil
}

// ExtractJSON pulls a fenced ```json block out of a model response. Used
// for the parameter-extraction round trip.
func ExtractJSON(response string) (string, error) {
	m := jsonFenceRe.FindStringSubmatch(response)
	if m == nil {
		// Some models skip the fences for short objects; accept a bare
		// object as a fallback.
		trimmed := strings.TrimSpace(response)
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			return trimmed, nil
		}
		return "", errors.New(errors.QueryValidation, "no ```json block found in model response")
	}
	return strings.TrimSpace(m[1]), nil
}

// Placeholders returns the named parameters referenced by sql in order of
// first appearance. Cast expressions (::type) are not parameters.
func Placeholders(sql string) []string {
	masked := maskStrings(stripComments(sql))
	var names []string
	seen := make(map[string]bool)
	for _, loc := range paramRe.FindAllStringIndex(masked, -1) {
		if loc[0] > 0 && (masked[loc[0]-1] == ':' || masked[loc[0]-1] == '$') {
			continue // ::type cast, not a parameter
		}
		name := masked[loc[0]+1 : loc[1]]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Validate checks raw SQL and produces an executable GeneratedQuery.
// params maps placeholder names to bound values; every placeholder in the
// statement must have a value.
func (v *Validator) Validate(raw string, params map[string]any) (*GeneratedQuery, error) {
	sql := strings.TrimSpace(stripComments(raw))
	sql = strings.TrimRight(sql, "; \t\n")
	if sql == "" {
		return nil, errors.New(errors.QueryValidation, "empty statement")
	}

	masked := maskStrings(sql)

	if strings.ContainsRune(masked, ';') {
		return nil, errors.New(errors.QueryValidation, "multiple statements are not allowed")
	}

	first := strings.ToUpper(firstKeyword(masked))
	if first != "SELECT" && first != "WITH" {
		return nil, errors.New(errors.QueryValidation,
			fmt.Sprintf("only SELECT statements are allowed, got %q", first))
	}

	for _, word := range keywordRe.FindAllString(strings.ToUpper(masked), -1) {
		for _, bad := range forbidden {
			if word == bad {
				return nil, errors.New(errors.QueryValidation,
					fmt.Sprintf("forbidden keyword %s in generated SQL", bad))
			}
		}
	}

	sql, masked = v.enforceLimit(sql, masked)

	rewritten, names, err := rewriteParams(sql, masked)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(names))
	bound := make(map[string]any, len(names))
	for i, name := range names {
		val, ok := params[name]
		if !ok {
			return nil, errors.New(errors.QueryValidation,
				fmt.Sprintf("no value extracted for parameter :%s", name))
		}
		args[i] = val
		bound[name] = val
	}

	return &GeneratedQuery{
		SQL:        rewritten,
		ParamNames: names,
		Args:       args,
		Params:     bound,
	}, nil
}

// enforceLimit appends a LIMIT when the statement has none and clamps
// numeric LIMITs above the cap. The executor additionally stops scanning
// at the cap, so non-numeric forms (LIMIT ALL, LIMIT :n) cannot overrun.
func (v *Validator) enforceLimit(sql, masked string) (string, string) {
	if !limitKwRe.MatchString(masked) {
		suffix := fmt.Sprintf("\nLIMIT %d", v.MaxRows)
		return sql + suffix, masked + suffix
	}

	out := []byte(sql)
	maskedOut := []byte(masked)
	// Replace right-to-left so earlier offsets stay valid.
	matches := limitRe.FindAllSubmatchIndex(maskedOut, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		n, err := strconv.Atoi(string(maskedOut[m[2]:m[3]]))
		if err != nil || n <= v.MaxRows {
			continue
		}
		repl := strconv.Itoa(v.MaxRows)
		out = append(out[:m[2]], append([]byte(repl), out[m[3]:]...)...)
		maskedOut = append(maskedOut[:m[2]], append([]byte(repl), maskedOut[m[3]:]...)...)
	}
	return string(out), string(maskedOut)
}

// rewriteParams converts :name placeholders to $1..$n positional form,
// reusing the same index for repeated names. Occurrences inside string
// literals are untouched.
func rewriteParams(sql, masked string) (string, []string, error) {
	var names []string
	index := make(map[string]int)

	var sb strings.Builder
	last := 0
	for _, loc := range paramRe.FindAllStringIndex(masked, -1) {
		if loc[0] > 0 && (masked[loc[0]-1] == ':' || masked[loc[0]-1] == '$') {
			continue // ::type cast, not a parameter
		}
		name := masked[loc[0]+1 : loc[1]]
		n, ok := index[name]
		if !ok {
			names = append(names, name)
			n = len(names)
			index[name] = n
		}
		sb.WriteString(sql[last:loc[0]])
		sb.WriteString("$" + strconv.Itoa(n))
		last = loc[1]
	}
	sb.WriteString(sql[last:])
	return sb.String(), names, nil
}

// firstKeyword returns the first bare word of the statement.
func firstKeyword(masked string) string {
	m := keywordRe.FindString(masked)
	return m
}

// stripComments removes -- line comments and /* */ block comments while
// leaving string literals intact.
func stripComments(sql string) string {
	var sb strings.Builder
	inSingle, inDouble, inDollar := false, false, false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inSingle:
			sb.WriteByte(c)
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					sb.WriteByte(sql[i+1])
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			sb.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
		case inDollar:
			sb.WriteByte(c)
			if c == '$' && i+1 < len(sql) && sql[i+1] == '$' {
				sb.WriteByte(sql[i+1])
				i++
				inDollar = false
			}
		case c == '\'':
			inSingle = true
			sb.WriteByte(c)
		case c == '"':
			inDouble = true
			sb.WriteByte(c)
		case c == '$' && i+1 < len(sql) && sql[i+1] == '$':
			inDollar = true
			sb.WriteString("$$")
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			if i < len(sql) {
				sb.WriteByte('\n')
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// maskStrings replaces the contents of string literals and quoted
// identifiers with spaces, preserving length and positions so offsets into
// the masked text map directly onto the original.
func maskStrings(sql string) string {
	out := []byte(sql)
	inSingle, inDouble, inDollar := false, false, false
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(out) && out[i+1] == '\'' {
					out[i], out[i+1] = ' ', ' '
					i++
				} else {
					inSingle = false
				}
			} else {
				out[i] = ' '
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			} else {
				out[i] = ' '
			}
		case inDollar:
			if c == '$' && i+1 < len(out) && out[i+1] == '$' {
				i++
				inDollar = false
			} else {
				out[i] = ' '
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '$' && i+1 < len(out) && out[i+1] == '$':
			i++
			inDollar = true
		}
	}
	return string(out)
}
