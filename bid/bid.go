package bid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/benz9527/bidtree/lib/infra"
)

// Bid is one auction record, ordered by ID only.
type Bid struct {
	ID     int64
	Title  string
	Fund   string
	Amount float64
}

func (b Bid) String() string {
	var sb strings.Builder
	sb.Grow(len(b.Title) + len(b.Fund) + 32)
	sb.WriteString(strconv.FormatInt(b.ID, 10))
	sb.WriteString(" | ")
	sb.WriteString(b.Title)
	sb.WriteString(" | ")
	sb.WriteString(b.Fund)
	sb.WriteString(" | ")
	sb.WriteString(FormatAmount(b.Amount))
	return sb.String()
}

// Compare is the tree comparator of bids. Title, fund and amount never take
// part in the order.
func Compare(i, j Bid) int64 {
	return infra.OrderedCompare(i.ID, j.ID)
}

// Probe builds the partial key to search a tree by ID.
func Probe(id int64) Bid {
	return Bid{ID: id}
}

func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

type BidErr string

const (
	ErrMissingHeader     BidErr = "bid csv header not found"
	ErrMissingColumn     BidErr = "bid csv column not found"
	ErrMalformedRow      BidErr = "bid csv malformed row"
	ErrMalformedCurrency BidErr = "bid malformed currency"
)

func (err BidErr) Error() string {
	return string(err)
}

// ParseCurrency accepts the plain number and the formatted amount like
// "$1,234.56".
func ParseCurrency(text string) (float64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")
	text = strings.ReplaceAll(text, ",", "")
	if text == "" {
		return 0, ErrMalformedCurrency
	}
	amount, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedCurrency, err)
	}
	return amount, nil
}
