package registry

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/store"
	"go.uber.org/zap"
)

// Change classifies one record's fate during reconciliation.
type Change string

const (
	ChangeNew       Change = "NEW"
	ChangeUpdated   Change = "UPDATED"
	ChangeDisabled  Change = "DISABLED"
	ChangeUnchanged Change = "UNCHANGED"
)

// Diff names the record fields that differ from the persisted row.
type Diff struct {
	Symbol string
	Fields []string
}

// Result summarizes one reconciliation pass.
type Result struct {
	New       []string
	Updated   []Diff
	Disabled  []string
	Unchanged int
	Total     int
	// Maturities holds the maturity date of every bond record whose
	// description encodes one, keyed by symbol.
	Maturities map[string]time.Time
}

// Reconcile folds the declarative records into the persisted registry.
// Records without an id are assigned the next free one. A record whose only
// effective change is flipping enabled off is reported as DISABLED and its
// remaining field diffs are not itemized. Nothing is ever deleted.
func Reconcile(st *store.Store, records []Record, log *logger.Logger) (Result, error) {
	var result Result

	result.Total = len(records)
	result.Maturities = make(map[string]time.Time)

	for _, rec := range records {
		if maturity, ok := rec.Maturity(); ok {
			result.Maturities[rec.Symbol] = maturity
		}

		existing, found, err := st.GetInstrument(rec.Symbol)
		if err != nil {
			return result, err
		}

		inst := rec.Instrument()

		if !found {
			if inst.ID == 0 {
				id, err := st.AllocateInstrumentID()
				if err != nil {
					return result, err
				}

				inst.ID = id
			}

			if err := st.UpsertInstrument(inst); err != nil {
				return result, err
			}

			result.New = append(result.New, inst.Symbol)
			log.Info("registered instrument",
				zap.String("symbol", inst.Symbol),
				zap.Int64("id", inst.ID))

			continue
		}

		// Ids are assigned at registration, never reconciled.
		inst.ID = existing.ID

		var fields []string

		if existing.Name != inst.Name {
			fields = append(fields, "name")
		}

		if existing.Category != inst.Category {
			fields = append(fields, "category")
		}

		if existing.SettlementType != inst.SettlementType {
			fields = append(fields, "settlement_type")
		}

		if existing.Description != inst.Description {
			fields = append(fields, "description")
		}

		if existing.Enabled != inst.Enabled {
			fields = append(fields, "enabled")
		}

		if len(fields) == 0 {
			result.Unchanged++
			continue
		}

		if err := st.UpsertInstrument(inst); err != nil {
			return result, err
		}

		if existing.Enabled && !inst.Enabled {
			result.Disabled = append(result.Disabled, inst.Symbol)
			log.Info("disabled instrument", zap.String("symbol", inst.Symbol))

			continue
		}

		result.Updated = append(result.Updated, Diff{Symbol: inst.Symbol, Fields: fields})
		log.Info("updated instrument",
			zap.String("symbol", inst.Symbol),
			zap.Strings("fields", fields))
	}

	return result, nil
}

// PrintReport writes the operator-facing reconciliation report.
func (r Result) PrintReport(w io.Writer) {
	fmt.Fprintf(w, "Reconciled %d records: %d new, %d updated, %d disabled, %d unchanged\n",
		r.Total, len(r.New), len(r.Updated), len(r.Disabled), r.Unchanged)

	for _, symbol := range r.New {
		if maturity, ok := r.Maturities[symbol]; ok {
			fmt.Fprintf(w, "  NEW       %s (matures %s)\n", symbol, maturity.Format("2006-01-02"))
		} else {
			fmt.Fprintf(w, "  NEW       %s\n", symbol)
		}
	}

	for _, diff := range r.Updated {
		fmt.Fprintf(w, "  UPDATED   %s (%s)\n", diff.Symbol, strings.Join(diff.Fields, ", "))
	}

	for _, symbol := range r.Disabled {
		fmt.Fprintf(w, "  DISABLED  %s\n", symbol)
	}
}
