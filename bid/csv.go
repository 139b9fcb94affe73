package bid

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

const (
	ColumnID     = "Auction ID"
	ColumnTitle  = "Auction Title"
	ColumnFund   = "Fund"
	ColumnAmount = "Winning Bid"
)

var (
	requiredColumns = [...]string{ColumnID, ColumnTitle, ColumnFund, ColumnAmount}
	// Candidates of the delimiter sniffing, the first one is the default.
	delimiters = [...]rune{',', ';', '\t', '|'}
)

type columnIndex struct {
	id, title, fund, amount int
}

func (ci columnIndex) width() int {
	return max(ci.id, ci.title, ci.fund, ci.amount) + 1
}

type Parser struct {
	delimiter rune
	sniffSize int
}

type ParserOpt func(*Parser)

// WithParserDelimiter disables the delimiter sniffing.
func WithParserDelimiter(delimiter rune) ParserOpt {
	return func(p *Parser) {
		p.delimiter = delimiter
	}
}

func WithParserSniffSize(size int) ParserOpt {
	return func(p *Parser) {
		if size > 0 {
			p.sniffSize = size
		}
	}
}

func NewParser(opts ...ParserOpt) *Parser {
	p := &Parser{
		sniffSize: 1024,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse reads the header first and rejects the input without any record if
// the header or a required column is absent.
// The malformed rows are skipped and their errors are combined into the
// returned error, next to the well-formed bids.
func (p *Parser) Parse(r io.Reader) ([]Bid, error) {
	br := bufio.NewReaderSize(r, max(p.sniffSize, 16))
	delimiter := p.delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(br, p.sniffSize)
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = delimiter != '\t'
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingHeader, err)
	}
	ci, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		bids []Bid
		merr error
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The csv.ParseError carries the line.
			merr = multierr.Append(merr, fmt.Errorf("%w: %w", ErrMalformedRow, err))
			continue
		}
		if isBlankRow(row) {
			continue
		}
		b, err := parseRow(row, ci)
		if err != nil {
			line, _ := reader.FieldPos(0)
			merr = multierr.Append(merr, fmt.Errorf("%w %d: %w", ErrMalformedRow, line, err))
			continue
		}
		bids = append(bids, b)
	}
	return bids, merr
}

func ParseCSV(r io.Reader) ([]Bid, error) {
	return NewParser().Parse(r)
}

func locateColumns(header []string) (columnIndex, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	var (
		positions [len(requiredColumns)]int
		missing   []string
	)
	for i, name := range requiredColumns {
		pos, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		positions[i] = pos
	}
	if len(missing) == len(requiredColumns) {
		// Not even one known column, the first row is data.
		return columnIndex{}, ErrMissingHeader
	} else if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return columnIndex{
		id:     positions[0],
		title:  positions[1],
		fund:   positions[2],
		amount: positions[3],
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, ci columnIndex) (Bid, error) {
	if len(row) < ci.width() {
		return Bid{}, errors.New("expected " + strconv.Itoa(ci.width()) + " fields, got " + strconv.Itoa(len(row)))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(row[ci.id]), 10, 64)
	if err != nil {
		return Bid{}, err
	}
	amount, err := ParseCurrency(row[ci.amount])
	if err != nil {
		return Bid{}, err
	}
	return Bid{
		ID:     id,
		Title:  cleanText(row[ci.title]),
		Fund:   cleanText(row[ci.fund]),
		Amount: amount,
	}, nil
}

// Single quotes are stripped from the text columns.
func cleanText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "'", ""))
}

// sniffDelimiter picks the candidate which shows up most on the first line,
// quoted parts excluded. The reader is only peeked.
func sniffDelimiter(br *bufio.Reader, size int) rune {
	sample, _ := br.Peek(size)
	if i := strings.IndexByte(string(sample), '\n'); i >= 0 {
		sample = sample[:i]
	}

	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, ch := range string(sample) {
		if ch == '"' {
			quoted = !quoted
			continue
		}
		if quoted {
			continue
		}
		for _, d := range delimiters {
			if ch == d {
				counts[d]++
			}
		}
	}

	best, bestCount := delimiters[0], 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
