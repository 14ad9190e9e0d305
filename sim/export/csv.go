package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File names inside an output directory.
const (
	TradesFile    = "trades.csv"
	SnapshotsFile = "market_snapshots.csv"
	PnLFile       = "agent_pnl.csv"
	SummaryFile   = "summary_statistics.txt"
	HeaderFile    = "run.yaml"
)

// WriteCSV writes the three CSV tables, the YAML run header, and the summary
// report into dir, creating it if needed. It returns the written paths keyed
// by file name.
func WriteCSV(dir string, t *Tables) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	paths := make(map[string]string, 5)
	path := func(name string) string {
		p := filepath.Join(dir, name)
		paths[name] = p
		return p
	}

	headerData, err := yaml.Marshal(t.Header)
	if err != nil {
		return nil, fmt.Errorf("marshaling run header: %w", err)
	}
	if err := os.WriteFile(path(HeaderFile), headerData, 0o644); err != nil {
		return nil, fmt.Errorf("writing run header: %w", err)
	}

	tr := &t.Trades
	err = writeTable(path(TradesFile), tradeColumns, tr.Len(), func(i int) []string {
		return []string{
			strconv.FormatInt(tr.Timestamp[i], 10),
			strconv.FormatUint(tr.MakerID[i], 10),
			strconv.FormatUint(tr.TakerID[i], 10),
			strconv.FormatInt(tr.Price[i], 10),
			strconv.FormatInt(tr.Quantity[i], 10),
		}
	})
	if err != nil {
		return nil, err
	}

	sn := &t.Snapshots
	err = writeTable(path(SnapshotsFile), snapshotColumns, sn.Len(), func(i int) []string {
		return []string{
			strconv.FormatInt(sn.Timestamp[i], 10),
			strconv.FormatInt(sn.BestBid[i], 10),
			strconv.FormatInt(sn.BestAsk[i], 10),
			strconv.FormatInt(sn.BestBidQty[i], 10),
			strconv.FormatInt(sn.BestAskQty[i], 10),
			strconv.FormatInt(sn.LastTradePrice[i], 10),
		}
	})
	if err != nil {
		return nil, err
	}

	pn := &t.PnL
	err = writeTable(path(PnLFile), pnlColumns, pn.Len(), func(i int) []string {
		return []string{
			strconv.FormatInt(pn.Timestamp[i], 10),
			strconv.FormatUint(pn.AgentID[i], 10),
			strconv.FormatFloat(pn.PnL[i], 'f', -1, 64),
			strconv.FormatInt(pn.Inventory[i], 10),
		}
	})
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path(SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("creating summary: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := WriteSummary(f, t); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing summary: %w", err)
	}
	return paths, nil
}

// ReadCSV loads the tables written by WriteCSV. The three CSV files are
// required; the run header is optional and left zero when absent.
func ReadCSV(dir string) (*Tables, error) {
	t := &Tables{}

	headerData, err := os.ReadFile(filepath.Join(dir, HeaderFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading run header: %w", err)
	default:
		if err := yaml.Unmarshal(headerData, &t.Header); err != nil {
			return nil, fmt.Errorf("parsing run header: %w", err)
		}
	}

	err = readTable(filepath.Join(dir, TradesFile), tradeColumns, func(row []string) error {
		var p rowParser
		t.Trades.Timestamp = append(t.Trades.Timestamp, p.integer(row[0]))
		t.Trades.MakerID = append(t.Trades.MakerID, p.unsigned(row[1]))
		t.Trades.TakerID = append(t.Trades.TakerID, p.unsigned(row[2]))
		t.Trades.Price = append(t.Trades.Price, p.integer(row[3]))
		t.Trades.Quantity = append(t.Trades.Quantity, p.integer(row[4]))
		return p.err
	})
	if err != nil {
		return nil, err
	}

	err = readTable(filepath.Join(dir, SnapshotsFile), snapshotColumns, func(row []string) error {
		var p rowParser
		t.Snapshots.Timestamp = append(t.Snapshots.Timestamp, p.integer(row[0]))
		t.Snapshots.BestBid = append(t.Snapshots.BestBid, p.integer(row[1]))
		t.Snapshots.BestAsk = append(t.Snapshots.BestAsk, p.integer(row[2]))
		t.Snapshots.BestBidQty = append(t.Snapshots.BestBidQty, p.integer(row[3]))
		t.Snapshots.BestAskQty = append(t.Snapshots.BestAskQty, p.integer(row[4]))
		t.Snapshots.LastTradePrice = append(t.Snapshots.LastTradePrice, p.integer(row[5]))
		return p.err
	})
	if err != nil {
		return nil, err
	}

	err = readTable(filepath.Join(dir, PnLFile), pnlColumns, func(row []string) error {
		var p rowParser
		t.PnL.Timestamp = append(t.PnL.Timestamp, p.integer(row[0]))
		t.PnL.AgentID = append(t.PnL.AgentID, p.unsigned(row[1]))
		t.PnL.PnL = append(t.PnL.PnL, p.float(row[2]))
		t.PnL.Inventory = append(t.PnL.Inventory, p.integer(row[3]))
		return p.err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func writeTable(path string, columns []string, n int, row func(i int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("writing %s header: %w", filepath.Base(path), err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("writing %s row %d: %w", filepath.Base(path), i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}

func readTable(path string, columns []string, parse func(row []string) error) error {
	name := filepath.Base(path)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(columns)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", name, err)
	}
	if !slices.Equal(header, columns) {
		return fmt.Errorf("%s: unexpected columns %v, want %v", name, header, columns)
	}
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := parse(row); err != nil {
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
}

// rowParser keeps the first conversion error so a row can be parsed in one
// pass.
type rowParser struct{ err error }

func (p *rowParser) integer(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	p.keep(err)
	return v
}

func (p *rowParser) unsigned(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	p.keep(err)
	return v
}

func (p *rowParser) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	p.keep(err)
	return v
}

func (p *rowParser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}
