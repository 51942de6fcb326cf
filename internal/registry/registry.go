// Package registry reconciles the declarative instrument list against the
// persisted registry: it loads and exports the CSV format, classifies each
// incoming record as new, updated, disabled or unchanged, and upserts
// accordingly. The reconciler never deletes an instrument row.
package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/merval-data/internal/store"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
)

// csvColumns is the declarative format's header, in order.
var csvColumns = []string{"id", "name", "symbol", "category", "settlement_type", "enabled", "description"}

// Record is one row of the declarative instrument list.
type Record struct {
	ID             int64
	Name           string
	Symbol         string
	Category       types.Category
	SettlementType string
	Enabled        bool
	Description    string
}

// Instrument converts the record to its persisted form, deriving the
// settlement convention from the category when the record leaves it blank.
func (r Record) Instrument() types.Instrument {
	settlement := r.SettlementType
	if settlement == "" {
		settlement = r.Category.Settlement()
	}

	return types.Instrument{
		ID:             r.ID,
		Name:           r.Name,
		Symbol:         r.Symbol,
		Category:       r.Category,
		SettlementType: settlement,
		Enabled:        r.Enabled,
		Description:    r.Description,
	}
}

// Maturity extracts the maturity date a bond record's description encodes.
// Non-bond records never carry one.
func (r Record) Maturity() (time.Time, bool) {
	if r.Category != types.CategoryBond {
		return time.Time{}, false
	}

	return MaturityFromDescription(r.Symbol, r.Description)
}

// parseBoolToken accepts the boolean-like tokens of the declarative format.
func parseBoolToken(tok string) bool {
	switch strings.ToLower(strings.TrimSpace(tok)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// LoadCSV reads the declarative instrument list. Symbols are case-normalized
// on load; a duplicate symbol in the file is an error.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRegistryReadFailed, err, "failed to open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRegistryReadFailed, err, "failed to parse %s", path)
	}

	if len(rows) == 0 {
		return nil, errors.Newf(errors.ErrCodeRegistryReadFailed, "%s is empty", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	for _, required := range []string{"name", "symbol", "category"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Newf(errors.ErrCodeRegistryReadFailed, "%s is missing column %q", path, required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[idx])
	}

	records := make([]Record, 0, len(rows)-1)
	seen := make(map[string]bool)

	for i, row := range rows[1:] {
		symbol := types.NormalizeSymbol(field(row, "symbol"))
		if symbol == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidSymbol, "%s row %d has an empty symbol", path, i+2)
		}

		if seen[symbol] {
			return nil, errors.Newf(errors.ErrCodeDuplicateSymbol, "%s lists %s twice", path, symbol)
		}

		seen[symbol] = true

		category, ok := types.ParseCategory(field(row, "category"))
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidCategory, "%s row %d has unknown category %q", path, i+2, field(row, "category"))
		}

		id, _ := strconv.ParseInt(field(row, "id"), 10, 64)

		enabled := true
		if tok := field(row, "enabled"); tok != "" {
			enabled = parseBoolToken(tok)
		}

		records = append(records, Record{
			ID:             id,
			Name:           field(row, "name"),
			Symbol:         symbol,
			Category:       category,
			SettlementType: field(row, "settlement_type"),
			Enabled:        enabled,
			Description:    field(row, "description"),
		})
	}

	return records, nil
}

// ExportCSV writes every persisted instrument to the declarative format,
// ordered by category (stocks, depositary receipts, bonds) then symbol.
// Returns the number of exported rows.
func ExportCSV(st *store.Store, path string) (int, error) {
	instruments, err := st.ListInstruments(false)
	if err != nil {
		return 0, err
	}

	sort.Slice(instruments, func(i, j int) bool {
		ri, rj := instruments[i].Category.SortRank(), instruments[j].Category.SortRank()
		if ri != rj {
			return ri < rj
		}

		return instruments[i].Symbol < instruments[j].Symbol
	})

	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeRegistryWriteFailed, err, "failed to create %s", path)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	if err := writer.Write(csvColumns); err != nil {
		return 0, errors.Wrap(errors.ErrCodeRegistryWriteFailed, "failed to write header", err)
	}

	for _, inst := range instruments {
		enabled := "false"
		if inst.Enabled {
			enabled = "true"
		}

		row := []string{
			fmt.Sprint(inst.ID),
			inst.Name,
			inst.Symbol,
			string(inst.Category),
			inst.SettlementType,
			enabled,
			inst.Description,
		}
		if err := writer.Write(row); err != nil {
			return 0, errors.Wrapf(errors.ErrCodeRegistryWriteFailed, err, "failed to write row for %s", inst.Symbol)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeRegistryWriteFailed, "failed to flush csv", err)
	}

	return len(instruments), nil
}
