package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/stock-ledger/logging"
)

// Reporter serves the read side: stock levels, dashboard, filtered
// listings, reports and the integrity check. It never writes.
type Reporter struct {
	store   Store
	catalog *Catalog
	clock   func() time.Time
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store, catalog: NewCatalog(store), clock: time.Now}
}

// WithClock returns a copy of r that stamps reports with clock.
func (r *Reporter) WithClock(clock func() time.Time) *Reporter {
	cp := *r
	cp.clock = clock
	return &cp
}

// CurrentStock returns every key's level in key order.
func (r *Reporter) CurrentStock(ctx context.Context) ([]StockLevel, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return SortedLevels(CurrentStock(entries)), nil
}

func (r *Reporter) LowStock(ctx context.Context) ([]StockLevel, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return LowStock(CurrentStock(entries)), nil
}

func (r *Reporter) Dashboard(ctx context.Context) (Dashboard, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load entries: %w", err)
	}
	return BuildDashboard(entries, DashboardSize), nil
}

// Movements lists the entries matching q in canonical order, with names
// resolved, and their totals.
func (r *Reporter) Movements(ctx context.Context, q Query) ([]ReportRow, Totals, error) {
	report, err := r.Report(ctx, ReportRequest{Query: q})
	if err != nil {
		return nil, Totals{}, err
	}
	return report.Rows, report.Totals, nil
}

func (r *Reporter) Facets(ctx context.Context) (Facets, error) {
	entries, names, err := r.load(ctx)
	if err != nil {
		return Facets{}, err
	}
	return FacetsOf(entries, names), nil
}

// ReportRequest selects the rows of a report. An empty Title defaults
// from the query's view.
type ReportRequest struct {
	Title string
	Query Query
}

func (r *Reporter) Report(ctx context.Context, req ReportRequest) (Report, error) {
	if err := req.Query.Validate(); err != nil {
		return Report{}, err
	}
	entries, names, err := r.load(ctx)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(entries, req.Query, names, req.Title, r.clock()), nil
}

// Verify checks every running balance against the recomputed history.
// Mismatches are logged at warn level.
func (r *Reporter) Verify(ctx context.Context) (IntegrityReport, error) {
	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("snapshot: %w", err)
	}

	report := CheckIntegrity(snap.Entries, snap.Balances)
	if !report.OK() {
		log := logging.FromContext(ctx).WithComponent("integrity")
		for _, m := range report.Mismatches {
			log.Warnw("balance mismatch",
				"key", m.Key.String(),
				"recomputed", m.Recomputed,
				"running_balance", m.RunningBalance,
				"last_appended", m.LastAppended,
			)
		}
	}
	return report, nil
}

func (r *Reporter) load(ctx context.Context) ([]Entry, *Names, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	names, err := r.catalog.Names(ctx)
	if err != nil {
		return nil, nil, err
	}
	return entries, names, nil
}
