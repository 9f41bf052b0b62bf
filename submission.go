package problemcache

import (
	"strings"

	"go.uber.org/zap"
)

// Well known submission types found in crash report metadata.
const (
	SubmissionURL    = "URL"
	SubmissionMsg    = "MSG"
	SubmissionBTHash = "BTHASH"
)

// Submission is a single reported-destination record of a problem.
// It is parsed from one line of the "reported_to" field.
type Submission struct {
	// Title is the name of the destination, e.g. "Bugzilla".
	Title string

	// Type is the kind of reference, usually one of the Submission* constants.
	Type string

	// Data is the reference itself, e.g. a URL or a backtrace hash.
	Data string
}

// parseSubmissions parses the multi-line "reported_to" field.
//
// The most common form of a line is:
//
//	Bugzilla: URL=http://bugzilla.com/?=123456
//
// The title runs up to the first ':', spaces after it are skipped, the type
// runs up to the first '=' and the remainder of the line (including any
// embedded '=') is the data. Empty lines and lines missing either separator
// are skipped; malformed lines are logged as warnings.
func parseSubmissions(reportedTo string, logger *zap.Logger) []Submission {
	submissions := []Submission{}
	if reportedTo == "" {
		return submissions
	}

	for line := range strings.Lines(reportedTo) {
		line = strings.TrimSuffix(line, "\n")
		if len(line) == 0 {
			continue
		}

		title, rest, ok := strings.Cut(line, ":")
		if !ok {
			logger.Warn("malformed reported_to line: missing ':'", zap.String("line", line))
			continue
		}

		rtype, data, ok := strings.Cut(strings.TrimLeft(rest, " "), "=")
		if !ok {
			logger.Warn("malformed reported_to line: missing '='", zap.String("line", line))
			continue
		}

		submissions = append(submissions, Submission{
			Title: title,
			Type:  rtype,
			Data:  data,
		})
	}
	return submissions
}
