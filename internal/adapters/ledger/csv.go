// Package ledger provides file-backed transaction sources for the
// reconciliation engine. Production deployments plug real ledger exports in
// behind the same interface; the CSV source here covers CLI runs and tests.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
)

// Expected header of a ledger export. Column order is fixed.
var csvHeader = []string{"id", "event_id", "amount", "currency", "date", "vendor", "description"}

const dateLayout = "2006-01-02"

// CSVSource reads normalized transactions from one CSV export per ledger.
type CSVSource struct {
	pathA string
	pathB string
}

// NewCSVSource creates a source backed by one export file per ledger.
func NewCSVSource(ledgerAPath, ledgerBPath string) *CSVSource {
	return &CSVSource{pathA: ledgerAPath, pathB: ledgerBPath}
}

// FetchTransactions loads and validates both ledger exports. Any invalid row
// fails the whole ingestion with an input error naming the file and line;
// partial ledgers are worse than a loud failure.
func (s *CSVSource) FetchTransactions(ctx context.Context) ([]domain.Transaction, []domain.Transaction, error) {
	ledgerA, err := readFile(ctx, s.pathA, domain.LedgerA)
	if err != nil {
		return nil, nil, err
	}
	ledgerB, err := readFile(ctx, s.pathB, domain.LedgerB)
	if err != nil {
		return nil, nil, err
	}
	return ledgerA, ledgerB, nil
}

func readFile(ctx context.Context, path string, system domain.SourceSystem) ([]domain.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("open ledger export %s", path), err)
	}
	defer file.Close()

	return Read(ctx, file, path, system)
}

// Read parses one ledger export from r. The name is used in error messages
// only.
func Read(ctx context.Context, r io.Reader, name string, system domain.SourceSystem) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("read header from %s", name), err)
	}
	if err := checkHeader(header); err != nil {
		return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("bad header in %s", name), err)
	}

	var transactions []domain.Transaction
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("read %s line %d", name, line), err)
		}

		tx, err := parseRow(record, system)
		if err != nil {
			return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("invalid row at %s line %d", name, line), err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func checkHeader(header []string) error {
	if len(header) != len(csvHeader) {
		return fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(header))
	}
	for i, want := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("column %d is %q, want %q", i, header[i], want)
		}
	}
	return nil
}

func parseRow(record []string, system domain.SourceSystem) (domain.Transaction, error) {
	id := strings.TrimSpace(record[0])
	if id == "" {
		return domain.Transaction{}, fmt.Errorf("missing transaction id")
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("could not parse amount %q: %w", record[2], err)
	}

	currency := strings.TrimSpace(record[3])
	if currency == "" {
		return domain.Transaction{}, fmt.Errorf("missing currency")
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(record[4]))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("could not parse date %q: %w", record[4], err)
	}

	return domain.Transaction{
		ID:           id,
		EventID:      strings.TrimSpace(record[1]),
		Amount:       amount,
		Currency:     currency,
		Date:         date,
		Vendor:       strings.TrimSpace(record[5]),
		Description:  strings.TrimSpace(record[6]),
		SourceSystem: system,
	}, nil
}
