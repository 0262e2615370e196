package schema

import (
	"fmt"
	"strings"
)

// ParseError reports that a model definition could not be interpreted.
// It is recoverable: extraction returns an empty inventory alongside it and
// the caller downgrades it to a diagnostic.
type ParseError struct {
	Model   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("parse failure: %s", e.Message)
	}
	return fmt.Sprintf("parse failure in %s: %s", e.Model, e.Message)
}

// ExtractOptions configures static extraction from SQL text.
type ExtractOptions struct {
	// Policy is the process-wide name normalization policy.
	Policy NamePolicy
	// Sources maps normalized source column names to their types, when known.
	// Pass-through columns inherit their source column's type from here;
	// unresolvable references become TypeUnknown.
	Sources map[string]string
}

// aggregateFuncs are function heads whose result is inferred as numeric.
var aggregateFuncs = map[string]bool{
	"sum":    true,
	"avg":    true,
	"count":  true,
	"min":    true,
	"max":    true,
	"median": true,
	"stddev": true,
	"var":    true,
}

// Extract statically parses the output column list of a model's defining SQL
// and infers a type for each projected expression.
//
// The ruleset is deliberately small: aggregate function calls infer numeric,
// explicit casts take the cast's target type, bare (possibly aliased) column
// references inherit the source column's type when resolvable, and everything
// else is unknown. If the text cannot be interpreted the returned inventory
// is empty and the error is a *ParseError.
func Extract(model, sqlText string, opts ExtractOptions) (*Inventory, error) {
	inv := &Inventory{Model: model}

	cleaned := stripTemplates(stripComments(sqlText))
	selectList, err := selectListOf(cleaned)
	if err != nil {
		return inv, &ParseError{Model: model, Message: err.Error()}
	}

	items := splitTopLevel(selectList, ',')
	if len(items) == 0 {
		return inv, &ParseError{Model: model, Message: "empty select list"}
	}

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return &Inventory{Model: model}, &ParseError{Model: model, Message: "empty projection in select list"}
		}
		if item == "*" || strings.HasSuffix(item, ".*") {
			// Star projections cannot be enumerated without catalog access.
			return &Inventory{Model: model}, &ParseError{Model: model, Message: "select * cannot be expanded statically"}
		}

		col, perr := parseProjection(item, opts)
		if perr != nil {
			perr.Model = model
			return &Inventory{Model: model}, perr
		}
		inv.Columns = append(inv.Columns, col)
	}

	return inv, nil
}

// parseProjection turns one select-list item into a Column.
func parseProjection(item string, opts ExtractOptions) (Column, *ParseError) {
	expr, alias := splitAlias(item)

	name := alias
	if name == "" {
		// Unaliased: only a bare (possibly qualified) column reference has a
		// derivable name.
		if !isColumnRef(expr) {
			return Column{}, &ParseError{Message: fmt.Sprintf("cannot name projection %q", truncate(item, 40))}
		}
		name = lastPathSegment(expr)
	}

	return Column{
		Name:       strings.Trim(name, `"`),
		Type:       inferType(expr, opts),
		Expression: expr,
	}, nil
}

// inferType applies the inference ruleset to a projected expression.
func inferType(expr string, opts ExtractOptions) string {
	expr = strings.TrimSpace(expr)

	// Explicit :: cast at top level takes the cast target.
	if target, ok := doubleColonCast(expr); ok {
		return target
	}

	// CAST(x AS type)
	lower := strings.ToLower(expr)
	if strings.HasPrefix(lower, "cast") {
		rest := strings.TrimSpace(expr[4:])
		if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
			inner := rest[1 : len(rest)-1]
			if idx := lastTopLevelKeyword(inner, "as"); idx >= 0 {
				return normalizeType(inner[idx+2:])
			}
		}
	}

	// Aggregate function call.
	if fn, ok := functionHead(expr); ok && aggregateFuncs[fn] {
		return TypeNumeric
	}

	// Bare column reference: inherit the source column's type if resolvable.
	if isColumnRef(expr) {
		if opts.Sources != nil {
			if typ, ok := opts.Sources[opts.Policy.Normalize(lastPathSegment(expr))]; ok {
				return typ
			}
		}
		return TypeUnknown
	}

	return TypeUnknown
}

// selectListOf returns the text between the outermost SELECT and its FROM
// clause (or end of statement). CTE bodies sit inside parentheses, so the
// first depth-zero SELECT is the main one. String literals and quoted
// identifiers are opaque to keyword scanning.
func selectListOf(sqlText string) (string, error) {
	start := -1
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		default:
			if depth == 0 && keywordAt(sqlText, i, "select") {
				start = i + len("select")
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no select statement found")
	}

	end := len(sqlText)
	depth = 0
	inSingle, inDouble = false, false
	for i := start; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		default:
			if depth == 0 && keywordAt(sqlText, i, "from") {
				end = i
			}
		}
		if end != len(sqlText) {
			break
		}
	}

	list := strings.TrimSpace(sqlText[start:end])
	for _, mod := range []string{"distinct", "all"} {
		if len(list) >= len(mod) && strings.EqualFold(list[:len(mod)], mod) &&
			(len(list) == len(mod) || !isIdentChar(list[len(mod)])) {
			list = strings.TrimSpace(list[len(mod):])
		}
	}
	if list == "" {
		return "", fmt.Errorf("empty select list")
	}
	return list, nil
}

// splitAlias separates an expression from its "AS name" (or trailing bare
// identifier) alias. Returns the expression and the alias, alias empty when
// none was written.
func splitAlias(item string) (expr, alias string) {
	if idx := lastTopLevelKeyword(item, "as"); idx >= 0 {
		return strings.TrimSpace(item[:idx]), strings.TrimSpace(item[idx+2:])
	}

	// Implicit alias: "expr name" where name is a bare identifier and expr
	// looks complete (an operator tail like "amount +" means the whole item
	// is one unaliased expression).
	fields := splitTopLevel(item, ' ')
	if len(fields) >= 2 {
		last := strings.TrimSpace(fields[len(fields)-1])
		rest := strings.TrimSpace(strings.Join(fields[:len(fields)-1], " "))
		if isBareIdentifier(last) && exprComplete(rest) && !isReservedTail(rest) {
			return rest, last
		}
	}
	return strings.TrimSpace(item), ""
}

// exprComplete reports whether the text can plausibly end an expression:
// a closing paren, quote, identifier, or number. A trailing operator means
// the "alias" token is actually an operand.
func exprComplete(expr string) bool {
	if expr == "" {
		return false
	}
	c := expr[len(expr)-1]
	return c == ')' || c == '\'' || c == '"' || isIdentChar(c)
}

// stripComments removes -- line comments and /* */ block comments.
func stripComments(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "--") {
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				break
			}
		} else if strings.HasPrefix(s[i:], "/*") {
			if end := strings.Index(s[i:], "*/"); end >= 0 {
				i += end + 2
			} else {
				break
			}
		} else {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// stripTemplates replaces {{ ... }} template expressions with a placeholder
// identifier so templated references in FROM clauses do not break scanning.
func stripTemplates(s string) string {
	var b strings.Builder
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			b.WriteString(s)
			break
		}
		close := strings.Index(s[open:], "}}")
		if close < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:open])
		b.WriteString("__ref__")
		s = s[open+close+2:]
	}
	return b.String()
}

// splitTopLevel splits s on sep occurrences outside parentheses and quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inSingle, inDouble := false, false
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			if part := s[last:i]; strings.TrimSpace(part) != "" || sep != ' ' {
				parts = append(parts, part)
			}
			last = i + 1
		}
	}
	if part := s[last:]; strings.TrimSpace(part) != "" || sep != ' ' {
		parts = append(parts, part)
	}
	return parts
}

// lastTopLevelKeyword finds the byte offset of the last occurrence of the
// keyword outside parentheses and quotes, or -1.
func lastTopLevelKeyword(s, kw string) int {
	depth := 0
	inSingle, inDouble := false, false
	found := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		default:
			if depth == 0 && keywordAt(s, i, kw) {
				found = i
			}
		}
	}
	return found
}

// keywordAt reports whether the keyword starts at offset i with word
// boundaries on both sides.
func keywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}
	if i+len(kw) < len(s) && isIdentChar(s[i+len(kw)]) {
		return false
	}
	return true
}

// doubleColonCast extracts the target of a trailing :: cast, if present at
// the top level of the expression.
func doubleColonCast(expr string) (string, bool) {
	depth := 0
	for i := len(expr) - 1; i > 0; i-- {
		switch expr[i] {
		case ')':
			depth++
		case '(':
			depth--
		case ':':
			if depth == 0 && expr[i-1] == ':' {
				target := strings.TrimSpace(expr[i+1:])
				if target != "" {
					return normalizeType(target), true
				}
				return "", false
			}
		}
	}
	return "", false
}

// functionHead returns the lowercased function name when the expression is a
// single function call.
func functionHead(expr string) (string, bool) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(strings.TrimSpace(expr), ")") {
		return "", false
	}
	head := strings.TrimSpace(expr[:open])
	if !isBareIdentifier(head) {
		return "", false
	}
	return strings.ToLower(head), true
}

func isColumnRef(expr string) bool {
	for _, seg := range strings.Split(expr, ".") {
		seg = strings.Trim(seg, `"`)
		if !isBareIdentifier(seg) {
			return false
		}
	}
	return expr != ""
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return s[0] < '0' || s[0] > '9'
}

// isReservedTail guards implicit-alias detection against keywords that can
// legally end an expression (e.g. "count(*) over ..." window tails).
func isReservedTail(expr string) bool {
	fields := strings.Fields(strings.ToLower(expr))
	if len(fields) == 0 {
		return false
	}
	switch fields[len(fields)-1] {
	case "and", "or", "not", "then", "else", "when", "case", "over", "is", "in", "like", "between":
		return true
	}
	return false
}

func lastPathSegment(expr string) string {
	parts := strings.Split(expr, ".")
	return strings.TrimSpace(parts[len(parts)-1])
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
