package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/lib/hrtime"
	"github.com/benz9527/bidtree/store"
	"github.com/benz9527/bidtree/xlog"
)

const (
	choiceLoad    = "1"
	choiceDisplay = "2"
	choiceFind    = "3"
	choiceRemove  = "4"
	choiceExit    = "9"

	loadClear   = "1"
	loadIgnore  = "2"
	loadReplace = "3"
	loadCancel  = "4"
)

var (
	mainMenu = []string{
		"Menu:",
		"  1. Load Bids",
		"  2. Display All Bids",
		"  3. Find Bid",
		"  4. Remove Bid",
		"  9. Exit",
	}
	loadMenu = []string{
		"How would you like to load the bids?",
		"  1. Clear all bids then load the file",
		"  2. Add the file, ignoring the duplicated bids",
		"  3. Add the file, replacing the duplicated bids",
		"  4. Cancel and return to main menu",
	}
)

// Menu is the interactive loop over a bid store. It is driven by lines read
// from the input, one answer per line.
type Menu struct {
	in      *bufio.Reader
	out     io.Writer
	backend store.Backend
	logger  xlog.XLogger
	pool    *ants.Pool
	dataDir string
	clock   hrtime.Clock
	format  OutputFormat
}

type Option func(*Menu)

func WithLogger(logger xlog.XLogger) Option {
	return func(m *Menu) {
		m.logger = logger
	}
}

// WithPool parses the bid files in parallel on the pool.
func WithPool(pool *ants.Pool) Option {
	return func(m *Menu) {
		m.pool = pool
	}
}

func WithDataDir(dir string) Option {
	return func(m *Menu) {
		m.dataDir = dir
	}
}

func WithClock(clock hrtime.Clock) Option {
	return func(m *Menu) {
		m.clock = clock
	}
}

func WithOutputFormat(format OutputFormat) Option {
	return func(m *Menu) {
		m.format = format
	}
}

func New(in io.Reader, out io.Writer, backend store.Backend, opts ...Option) *Menu {
	m := &Menu{
		in:      bufio.NewReader(in),
		out:     out,
		backend: backend,
		dataDir: ".",
		clock:   hrtime.SysClock,
		format:  TableOutput,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Menu) println(lines ...string) {
	for _, line := range lines {
		_, _ = fmt.Fprintln(m.out, line)
	}
}

// readLine returns io.EOF only if nothing is left, the last line without a
// newline is still an answer.
func (m *Menu) readLine() (string, error) {
	line, err := m.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", io.EOF
	}
	return strings.TrimSpace(line), nil
}

func (m *Menu) prompt(question string) (string, error) {
	_, _ = fmt.Fprint(m.out, question)
	return m.readLine()
}

func (m *Menu) choose(menu []string, choices ...string) (string, error) {
	for {
		m.println(menu...)
		answer, err := m.prompt("Enter choice: ")
		if err != nil {
			return "", err
		}
		for _, c := range choices {
			if answer == c {
				return c, nil
			}
		}
		m.println("Invalid choice. Please try again")
	}
}

// Run loops until the exit choice, the end of the input or the cancelled
// context. The failed operation is reported and the loop goes on.
func (m *Menu) Run(ctx context.Context) error {
	defer m.println("Good bye")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := m.choose(mainMenu, choiceLoad, choiceDisplay, choiceFind, choiceRemove, choiceExit)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		switch choice {
		case choiceLoad:
			err = m.load(ctx)
		case choiceDisplay:
			err = m.display(ctx)
		case choiceFind:
			err = m.find(ctx)
		case choiceRemove:
			err = m.remove(ctx)
		case choiceExit:
			return nil
		default:
		}
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			m.report(ctx, choice, err)
		}
	}
}

func (m *Menu) report(ctx context.Context, choice string, err error) {
	_, _ = fmt.Fprintf(m.out, "Error encountered: %v\n", err)
	if m.logger != nil {
		m.logger.ErrorContext(ctx, err, "menu operation failed", zap.String("choice", choice))
	}
}

func (m *Menu) elapsed(label string, sw hrtime.Stopwatch) {
	_, _ = fmt.Fprintf(m.out, "Total %s time: %s\n", label, sw.Elapsed().Round(time.Microsecond))
}

func splitFileNames(answer string) []string {
	names := strings.Split(answer, ",")
	res := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			res = append(res, name)
		}
	}
	return res
}

func (m *Menu) load(ctx context.Context) error {
	choice, err := m.choose(loadMenu, loadClear, loadIgnore, loadReplace, loadCancel)
	if err != nil || choice == loadCancel {
		return err
	}
	answer, err := m.prompt("Enter name of file to load: ")
	if err != nil {
		return err
	}
	names := splitFileNames(answer)
	if len(names) == 0 {
		return errors.New("no file name entered")
	}

	policy := store.IgnoreDuplicates
	if choice == loadReplace {
		policy = store.ReplaceDuplicates
	}
	sw := hrtime.StartStopwatch(m.clock)
	defer m.elapsed("load", sw)
	if choice == loadClear {
		if err = m.backend.Clear(ctx); err != nil {
			return err
		}
	}

	for _, name := range names {
		_, _ = fmt.Fprintf(m.out, "Loading CSV file: %s\n", name)
	}
	results := bid.LoadFiles(ctx, m.pool, m.dataDir, names...)
	bids, parseErr := bid.MergeResults(results)
	stats, err := m.backend.Load(ctx, bids, policy)
	if err != nil {
		return multierr.Append(parseErr, err)
	}
	_, _ = fmt.Fprintf(m.out, "%d bids read: %d inserted, %d replaced, %d ignored\n",
		stats.Total(), stats.Inserted, stats.Replaced, stats.Ignored)
	return parseErr
}

func (m *Menu) display(ctx context.Context) error {
	sw := hrtime.StartStopwatch(m.clock)
	defer m.elapsed("print", sw)
	bids, err := m.backend.List(ctx)
	if err != nil {
		return err
	}
	return RenderBids(m.out, bids, m.format)
}

func (m *Menu) promptID(question string) (int64, error) {
	answer, err := m.prompt(question)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(answer, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bid id %q", answer)
	}
	return id, nil
}

func (m *Menu) find(ctx context.Context) error {
	id, err := m.promptID("Please enter ID to search for: ")
	if err != nil {
		return err
	}
	sw := hrtime.StartStopwatch(m.clock)
	defer m.elapsed("search", sw)
	b, ok, err := m.backend.Find(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintf(m.out, "Bid Id %d not found.\n", id)
		return nil
	}
	m.println(b.String())
	return nil
}

func (m *Menu) remove(ctx context.Context) error {
	id, err := m.promptID("Please enter ID to remove: ")
	if err != nil {
		return err
	}
	sw := hrtime.StartStopwatch(m.clock)
	defer m.elapsed("removal", sw)
	ok, err := m.backend.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintf(m.out, "Bid Id %d not found.\n", id)
		return nil
	}
	_, _ = fmt.Fprintf(m.out, "Bid Id %d removed.\n", id)
	return nil
}
