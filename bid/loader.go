package bid

import (
	"context"
	"os"
	"sync"

	"github.com/google/safeopen"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"github.com/benz9527/bidtree/lib/infra"
)

// OpenCSV refuses the name which escapes the base dir, "../x.csv" and the
// symlink to outside included.
func OpenCSV(baseDir, name string) (*os.File, error) {
	f, err := safeopen.OpenBeneath(baseDir, name)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "failed to open bid csv "+name)
	}
	return f, nil
}

func ParseFile(baseDir, name string) ([]Bid, error) {
	f, err := OpenCSV(baseDir, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseCSV(f)
}

type FileResult struct {
	Name string
	Bids []Bid
	Err  error
}

// LoadFiles parses the files in parallel on the pool, the results keep the
// order of names. The nil pool parses them one by one on the caller.
func LoadFiles(ctx context.Context, pool *ants.Pool, baseDir string, names ...string) []FileResult {
	results := make([]FileResult, len(names))
	parse := func(i int) {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			return
		}
		results[i].Bids, results[i].Err = ParseFile(baseDir, results[i].Name)
	}

	var wg sync.WaitGroup
	for i, name := range names {
		results[i].Name = name
		if pool == nil {
			parse(i)
			continue
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			parse(i)
		}); err != nil {
			wg.Done()
			results[i].Err = infra.WrapErrorStackWithMessage(err, "failed to submit bid csv "+name)
		}
	}
	wg.Wait()
	return results
}

// MergeResults concatenates the bids in the file order and combines the
// errors. The later duplicated ID is left to the backend's duplicate policy.
func MergeResults(results []FileResult) ([]Bid, error) {
	size := 0
	for _, r := range results {
		size += len(r.Bids)
	}
	bids := make([]Bid, 0, size)
	var merr error
	for _, r := range results {
		bids = append(bids, r.Bids...)
		if r.Err != nil {
			merr = multierr.Append(merr, infra.WrapErrorStackWithMessage(r.Err, r.Name))
		}
	}
	return bids, merr
}
