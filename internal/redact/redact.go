// Package redact strips sensitive material from strings before they are
// logged or surfaced in error responses: credentials, connection strings,
// SQL literals, file paths, email addresses and record identifiers.
package redact

import (
	"regexp"
)

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedSQLValues             = "[SQL_VALUES_REDACTED]"
	RedactedSQLWhere              = "[SQL_WHERE_REDACTED]"
)

// Precompiled patterns, applied in order. SQL statements are redacted
// structurally: the statement shape survives for debugging, the literal
// values do not.
var (
	// Database connection strings
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|mysql|mongodb|db|database|connection)://[^@]+@`)

	// Credentials and tokens
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
	awsKeyRegex = regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`)
	// Three-part base64url bearer tokens
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	// Deletion-request correlation tokens must never appear in logs;
	// they are the exact-match key for inbound confirmations.
	correlationRegex = regexp.MustCompile(`DW-[0-9a-f]{20}`)

	// File paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	// Stack trace fragments
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// SQL statements, by shape. INSERT keeps table and column list but
	// drops the VALUES tuple; UPDATE keeps the table and drops the SET
	// assignments; DELETE keeps the table and drops the WHERE clause;
	// SELECT drops everything after the verb.
	sqlInsertRegex = regexp.MustCompile(`(?i)(INSERT\s+INTO\s+[\w.]+\s*(?:\([\w\s,]*\))?\s*VALUES)\s*[^;]+`)
	sqlUpdateRegex = regexp.MustCompile(`(?i)(UPDATE\s+[\w.]+\s+SET)\s+[^;]+`)
	sqlDeleteRegex = regexp.MustCompile(`(?i)(DELETE\s+FROM\s+[\w.]+)\s+WHERE\s+[^;]+`)
	sqlSelectRegex = regexp.MustCompile(`(?i)SELECT\s+[\w.,*()\s]+\s+FROM\s+[^;]+`)

	// Record identifiers
	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

	// Additional sensitive patterns
	lineNumberRegex  = regexp.MustCompile(`(?:at )?line ?\d+`)
	syntaxErrorRegex = regexp.MustCompile(`(?i)syntax error|syntax problem|parse error`)
	hostPortRegex    = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	)
	fileErrorRegex = regexp.MustCompile(
		`(?i)(?:no such file|file not found|can't open|cannot open|file error)`,
	)

	patterns = []*regexp.Regexp{
		dbConnRegex, passwordRegex, apiKeyRegex, awsKeyRegex, jwtTokenRegex,
		correlationRegex, unixPathRegex, winPathRegex, stackTraceRegex, emailRegex,
		sqlInsertRegex, sqlUpdateRegex, sqlDeleteRegex, sqlSelectRegex, uuidRegex,
		lineNumberRegex, syntaxErrorRegex, hostPortRegex, fileErrorRegex,
	}

	replacements = map[*regexp.Regexp]string{
		dbConnRegex:      RedactedCredentialPlaceholder,
		passwordRegex:    RedactedCredentialPlaceholder,
		apiKeyRegex:      RedactedKeyPlaceholder,
		awsKeyRegex:      RedactedKeyPlaceholder,
		jwtTokenRegex:    "[REDACTED_JWT]",
		correlationRegex: "[REDACTED_TOKEN]",
		unixPathRegex:    RedactedPathPlaceholder,
		winPathRegex:     RedactedPathPlaceholder,
		stackTraceRegex:  "[STACK_TRACE_REDACTED]",
		emailRegex:       "[REDACTED_EMAIL]",
		sqlInsertRegex:   "$1 " + RedactedSQLValues,
		sqlUpdateRegex:   "$1 " + RedactedSQLValues,
		sqlDeleteRegex:   "$1 " + RedactedSQLWhere,
		sqlSelectRegex:   "SELECT FROM... " + RedactedSQLValues,
		uuidRegex:        "[REDACTED_UUID]",
		lineNumberRegex:  "[REDACTED_LINE_NUMBER]",
		syntaxErrorRegex: "[REDACTED_SYNTAX_ERROR]",
		hostPortRegex:    "[REDACTED_HOST]",
		fileErrorRegex:   "[REDACTED_FILE_ERROR]",
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := replacements[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
