package bid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/benz9527/bidtree/lib/tree"
)

const sampleCSV = `Auction Title,Auction ID,Department,Close Date,Winning Bid,Inventory ID,Vehicle ID,Receipt Number,Fund
Hoover Steam Vac,98109,General Services,11/1/2016,$27.00,2323,,1230,General Fund
Table,97990,Police,10/25/2016,"$1,500.25",2100,,1227,General Fund
'Chair',97991,Police,10/25/2016,$9.10,2101,,1228,Enterprise
`

func TestBidCompareAndProbe(t *testing.T) {
	a := Bid{ID: 3, Title: "lamp", Fund: "General Fund", Amount: 4.5}
	b := Bid{ID: 7, Title: "desk"}
	require.Equal(t, int64(-1), Compare(a, b))
	require.Equal(t, int64(1), Compare(b, a))
	require.Equal(t, int64(0), Compare(a, Probe(3)))
	require.Equal(t, "3 | lamp | General Fund | 4.50", a.String())

	rbtree := tree.NewRBTree[Bid](Compare)
	require.True(t, rbtree.Insert(a))
	require.True(t, rbtree.Insert(b))
	require.False(t, rbtree.Insert(Bid{ID: 3, Title: "shadow"}))
	found, ok := rbtree.Search(Probe(3))
	require.True(t, ok)
	require.Equal(t, a, found)
}

func TestParseCurrency(t *testing.T) {
	testcases := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{"$27.00", 27, false},
		{"$1,500.25", 1500.25, false},
		{" 12 ", 12, false},
		{"", 0, true},
		{"$", 0, true},
		{"$abc", 0, true},
	}
	for _, tc := range testcases {
		t.Run(tc.text, func(tt *testing.T) {
			amount, err := ParseCurrency(tc.text)
			if tc.wantErr {
				require.ErrorIs(tt, err, ErrMalformedCurrency)
				return
			}
			require.NoError(tt, err)
			require.InDelta(tt, tc.want, amount, 1e-9)
		})
	}
}

func TestParseCSV(t *testing.T) {
	bids, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, []Bid{
		{ID: 98109, Title: "Hoover Steam Vac", Fund: "General Fund", Amount: 27},
		{ID: 97990, Title: "Table", Fund: "General Fund", Amount: 1500.25},
		{ID: 97991, Title: "Chair", Fund: "Enterprise", Amount: 9.10},
	}, bids)
}

func TestParseCSV_Delimiters(t *testing.T) {
	testcases := []struct {
		name      string
		delimiter string
	}{
		{"semicolon", ";"},
		{"tab", "\t"},
		{"pipe", "|"},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			input := strings.Join([]string{"Auction ID", "Auction Title", "Fund", "Winning Bid"}, tc.delimiter) + "\n" +
				strings.Join([]string{"1", "Desk, oak", "General", "$10.50"}, tc.delimiter) + "\n"
			bids, err := ParseCSV(strings.NewReader(input))
			require.NoError(tt, err)
			require.Equal(tt, []Bid{{ID: 1, Title: "Desk, oak", Fund: "General", Amount: 10.5}}, bids)
		})
	}

	// Forced delimiter skips the sniffing.
	bids, err := NewParser(WithParserDelimiter(';')).Parse(strings.NewReader("Auction ID;Auction Title;Fund;Winning Bid\n2;a,b;c;1\n"))
	require.NoError(t, err)
	require.Equal(t, "a,b", bids[0].Title)
}

func TestParseCSV_MissingHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrMissingHeader)

	bids, err := ParseCSV(strings.NewReader("98109,Hoover Steam Vac,General Fund,$27.00\n"))
	require.ErrorIs(t, err, ErrMissingHeader)
	require.Nil(t, bids)

	bids, err = ParseCSV(strings.NewReader("Auction ID,Auction Title,Winning Bid\n1,a,$1\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	require.Contains(t, err.Error(), "Fund")
	require.Nil(t, bids)
}

func TestParseCSV_MalformedRows(t *testing.T) {
	input := "Auction ID,Auction Title,Fund,Winning Bid\n" +
		"1,ok,General,$1.00\n" +
		"x,bad id,General,$1.00\n" +
		"\n" +
		"3,short\n" +
		"4,bad amount,General,$$\n" +
		"5,ok too,General,$5\n"
	bids, err := ParseCSV(strings.NewReader(input))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedRow)
	require.Len(t, multierr.Errors(err), 3)
	require.Len(t, bids, 2)
	require.Equal(t, []int64{1, 5}, []int64{bids[0].ID, bids[1].ID})
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestOpenCSV_Beneath(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))
	writeCSV(t, root, "secret.csv", sampleCSV)
	writeCSV(t, dataDir, "bids.csv", sampleCSV)

	f, err := OpenCSV(dataDir, "bids.csv")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenCSV(dataDir, "../secret.csv")
	require.Error(t, err)
	_, err = OpenCSV(dataDir, "absent.csv")
	require.Error(t, err)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", sampleCSV)
	writeCSV(t, dir, "b.csv", "Auction ID,Auction Title,Fund,Winning Bid\n1,Desk,General,$2\n")
	writeCSV(t, dir, "c.csv", "no,header,here\n")

	pool, err := ants.NewPool(2, ants.WithPreAlloc(true))
	require.NoError(t, err)
	defer pool.Release()

	for _, p := range []*ants.Pool{pool, nil} {
		results := LoadFiles(context.Background(), p, dir, "a.csv", "b.csv", "c.csv", "absent.csv")
		require.Len(t, results, 4)
		require.Equal(t, "a.csv", results[0].Name)
		require.NoError(t, results[0].Err)
		require.Len(t, results[0].Bids, 3)
		require.NoError(t, results[1].Err)
		require.ErrorIs(t, results[2].Err, ErrMissingHeader)
		require.Error(t, results[3].Err)

		bids, err := MergeResults(results)
		require.Len(t, bids, 4)
		require.Equal(t, int64(98109), bids[0].ID)
		require.Equal(t, int64(1), bids[3].ID)
		require.Len(t, multierr.Errors(err), 2)
		require.ErrorIs(t, err, ErrMissingHeader)
	}
}

func TestLoadFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", sampleCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := LoadFiles(ctx, nil, dir, "a.csv")
	require.True(t, errors.Is(results[0].Err, context.Canceled))
	require.Empty(t, results[0].Bids)
}
