// Command validate checks the consistency of a stored alert database and its
// poll state: ledger bounds, ledger coverage, series linkage, and identifier
// decomposition. It reads the same environment as alertd.
//
// Usage:
//
//	DATABASE_DSN=alerts.db go run ./cmd/validate
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/couchcryptid/nws-alert-ingest/internal/adapter/badgerstate"
	"github.com/couchcryptid/nws-alert-ingest/internal/adapter/store"
	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/ledger"
	"github.com/couchcryptid/nws-alert-ingest/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	// ── Load records and state ──
	fmt.Println("=== Alert Store Consistency Validation ===")
	fmt.Println()

	s, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open record store: %v\n", err)
		return 1
	}
	defer s.Close()

	var state pipeline.StateStore = s
	if cfg.StateBackend == config.StateBackendBadger {
		bs, err := badgerstate.Open(cfg.BadgerPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open state store: %v\n", err)
			return 1
		}
		defer bs.Close()
		state = bs
	}

	ctx := context.Background()
	var records []domain.AlertRecord
	if err := s.EachRecord(ctx, func(rec domain.AlertRecord) error {
		records = append(records, rec)
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load records: %v\n", err)
		return 1
	}

	ids, err := state.Ledger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load ledger: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := validateAll(records, ids)

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d stored, %d ledger entries\n", len(records), len(ids))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateAll(records []domain.AlertRecord, ids []string) []*phase {
	return []*phase{
		validateLedgerBounds(ids),
		validateLedgerCoverage(ids, records),
		validateIdentifiers(records),
		validateSeriesLinkage(records),
	}
}

// ── Phase 1: ledger bounds ──

func validateLedgerBounds(ids []string) *phase {
	p := &phase{name: "Phase 1: Ledger bounds"}

	if len(ids) > ledger.MaxEntries {
		p.errorf("ledger has %d entries, max %d", len(ids), ledger.MaxEntries)
	}
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if first, ok := seen[id]; ok {
			p.errorf("entry %d duplicates entry %d: %s", i, first, id)
			continue
		}
		seen[id] = i
	}
	return p
}

// ── Phase 2: ledger coverage ──

// Every ledgered identifier was either stored by a cycle or found in the
// store, so it must resolve to a record.
func validateLedgerCoverage(ids []string, records []domain.AlertRecord) *phase {
	p := &phase{name: "Phase 2: Ledger coverage"}

	stored := make(map[string]struct{}, len(records))
	for _, r := range records {
		stored[r.FullID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := stored[id]; !ok {
			p.errorf("ledger entry has no stored record: %s", id)
		}
	}
	return p
}

// ── Phase 3: identifier decomposition ──

func validateIdentifiers(records []domain.AlertRecord) *phase {
	p := &phase{name: "Phase 3: Identifier decomposition"}

	for _, r := range records {
		id, err := domain.ParseAlertID(r.FullID)
		if err != nil {
			p.errorf("record %d: %v", r.ID, err)
			continue
		}
		if id.Identifier != r.Identifier || id.Sequence != r.Sequence || id.Version != r.Version {
			p.errorf("record %d: stored (%s, %s, %s) but full id parses to (%s, %s, %s)",
				r.ID, r.Identifier, r.Sequence, r.Version, id.Identifier, id.Sequence, id.Version)
		}
	}
	return p
}

// ── Phase 4: series linkage ──

// Roots have no parent. Follow-ups point at the root of their own series.
func validateSeriesLinkage(records []domain.AlertRecord) *phase {
	p := &phase{name: "Phase 4: Series linkage"}

	byID := make(map[int64]domain.AlertRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	for _, r := range records {
		if r.IsRoot() {
			if r.ParentID != nil {
				p.errorf("root %s has parent %d", r.FullID, *r.ParentID)
			}
			continue
		}
		if r.ParentID == nil {
			p.errorf("follow-up %s has no parent", r.FullID)
			continue
		}
		parent, ok := byID[*r.ParentID]
		switch {
		case !ok:
			p.errorf("follow-up %s points at missing record %d", r.FullID, *r.ParentID)
		case !parent.IsRoot():
			p.errorf("follow-up %s points at non-root %s", r.FullID, parent.FullID)
		case parent.Identifier != r.Identifier:
			p.errorf("follow-up %s points at root of another series %s", r.FullID, parent.FullID)
		}
	}
	return p
}
