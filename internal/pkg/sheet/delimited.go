package sheet

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// Delimiters in detection order.
var Delimiters = []rune{'\t', ';', ','}

// headerScanLines bounds how far down the header row is searched for.
const headerScanLines = 20

// ParseDelimited parses delimited text. The delimiter is the first one that
// splits some line near the top into all required headers.
func ParseDelimited(data []byte) ([]absence.RawRow, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	delim, ok := detectDelimiter(text)
	if !ok {
		return nil, absence.ErrMissingHeaders
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	table, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", absence.ErrUnsupportedFormat, err)
	}

	return rowsFromTable(table)
}

// decodeText converts an export to UTF-8. A byte order mark selects UTF-8 or
// UTF-16; text without one is taken as UTF-8 when valid and as Windows-1252
// otherwise, which is what older school software writes.
func decodeText(data []byte) (string, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if !utf8.Valid(data) {
		fallback = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", absence.ErrUnsupportedFormat, err)
	}
	return string(out), nil
}

func detectDelimiter(text string) (rune, bool) {
	lines := strings.SplitN(text, "\n", headerScanLines+1)
	if len(lines) > headerScanLines {
		lines = lines[:headerScanLines]
	}

	for _, delim := range Delimiters {
		for _, line := range lines {
			fields := strings.Split(strings.TrimRight(line, "\r"), string(delim))
			for i, f := range fields {
				fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
			}
			if hasRequiredHeaders(fields) {
				return delim, true
			}
		}
	}
	return 0, false
}
