package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ordersync/cmd/internal/appcli"
	"ordersync/cmd/ordersync/internal/inspect"
	"ordersync/purchase"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "init":
		if err := cmdInit(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	case "status":
		statusCmd()
	case "sync":
		syncCmd()
	case "list":
		listCmd()
	case "show":
		showCmd()
	case "new":
		newCmd()
	case "pay":
		payCmd()
	case "set-status":
		setStatusCmd()
	case "delete":
		deleteCmd()
	case "refresh":
		refreshCmd()
	case "suppliers":
		suppliersCmd()
	case "products":
		productsCmd()
	case "summary":
		summaryCmd()
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "ordersync commands: init | status | sync | list | show | new | pay | set-status | delete | refresh | suppliers | products | summary\n")
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite existing config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if ConfigExists() && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", ConfigPath())
	}

	cfg, err := InitConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Config created at %s\n", ConfigPath())
	fmt.Printf("Device ID: %s\n", cfg.DeviceID)
	fmt.Println("\nSet the server URL and API token in the config file,")
	fmt.Println("or via ORDERSYNC_SERVER and ORDERSYNC_TOKEN.")

	return nil
}

// withApp loads the config, opens the sync graph, runs fn, and closes
// everything down. Every command that touches the database goes through
// here.
func withApp(verbose bool, fn func(context.Context, *appcli.App) error) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := appcli.NewApp(ctx, appcli.Options{
		ServerURL: cfg.Server,
		Token:     cfg.Token,
		DeviceID:  cfg.DeviceID,
		DBPath:    cfg.DB,
		LogFile:   cfg.LogFile,
		Verbose:   verbose,
	})
	if err != nil {
		return err
	}
	var closeErr error
	defer func() {
		if cerr := app.Close(); cerr != nil && closeErr == nil {
			closeErr = cerr
		}
	}()
	if err := fn(ctx, app); err != nil {
		return err
	}
	return closeErr
}

func statusCmd() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		st, err := app.Store.SyncStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("device: %s\n", app.DeviceID())
		if app.Conn.Online(ctx) {
			fmt.Println("connectivity: online")
		} else {
			fmt.Println("connectivity: offline")
		}
		fmt.Printf("purchases: %d (%d pending sync)\n", st.TotalPurchases, st.PendingPurchases)
		fmt.Printf("suppliers: %d cached, refreshed %s\n", st.SupplierCount, lastSyncLabel(ctx, app.Store, purchase.RefSuppliers))
		fmt.Printf("products: %d cached, refreshed %s\n", st.ProductCount, lastSyncLabel(ctx, app.Store, purchase.RefProducts))
		fmt.Printf("locations: %d cached, refreshed %s\n", st.LocationCount, lastSyncLabel(ctx, app.Store, purchase.RefLocations))
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func lastSyncLabel(ctx context.Context, store *purchase.Store, entity purchase.RefEntity) string {
	last, err := store.LastSync(ctx, entity)
	if err != nil || last.IsZero() {
		return "never"
	}
	return last.Format(time.RFC3339)
}

func syncCmd() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		events := &purchase.SyncEvents{
			OnStart: func(pending int) {
				if pending == 0 {
					fmt.Println("nothing to sync")
					return
				}
				fmt.Printf("syncing %d purchase(s)\n", pending)
			},
			OnPurchase: func(localID string, err error) {
				if err != nil {
					fmt.Printf("  %s failed: %v\n", localID, err)
					return
				}
				fmt.Printf("  %s ok\n", localID)
			},
		}
		res, err := app.Engine.SyncPending(ctx, events)
		if err != nil {
			if res.NeedsLogin {
				return fmt.Errorf("authentication required: update the token in %s", ConfigPath())
			}
			return err
		}
		if res.NeedsLogin {
			return fmt.Errorf("sync aborted, token rejected: update the token in %s", ConfigPath())
		}
		if res.Synced > 0 || res.Failed > 0 {
			fmt.Printf("synced %d, failed %d\n", res.Synced, res.Failed)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d purchase(s) failed to sync", res.Failed)
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func listCmd() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	supplier := fs.Int64("supplier", 0, "filter by supplier id")
	status := fs.String("status", "", "filter by status (ordered, pending, partial, received, cancelled)")
	refNo := fs.String("ref", "", "filter by reference number")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 25, "rows per page")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	f := purchase.ListFilter{
		SupplierID: *supplier,
		RefNo:      *refNo,
		Page:       *page,
		PerPage:    *perPage,
	}
	if *status != "" {
		st, err := purchase.ParseStatus(*status)
		if err != nil {
			log.Fatal(err)
		}
		f.Status = st
	}

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		pageOut, err := app.Views.List(ctx, f)
		if err != nil {
			return err
		}
		if len(pageOut.Purchases) == 0 {
			fmt.Println("no purchases found")
			return nil
		}
		for _, row := range pageOut.Purchases {
			marker := " "
			if !row.Synced {
				marker = "*"
			}
			supplierLabel := row.SupplierName
			if supplierLabel == "" {
				supplierLabel = "supplier " + strconv.FormatInt(row.SupplierID, 10)
			}
			fmt.Printf("%s %s\t%s\t%s\t%s\t%s\n",
				marker, rowID(row), row.RefNo, supplierLabel, row.Status, row.FinalTotal.StringFixed(2))
		}
		fmt.Printf("page %d/%d, %d total (%s)\n", pageOut.CurrentPage, pageOut.LastPage, pageOut.Total, pageOut.Source)
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

// rowID prefers the local id so the row can feed show/pay/delete; rows known
// only remotely fall back to the service id.
func rowID(row purchase.PurchaseSummary) string {
	if row.LocalID != "" {
		return row.LocalID
	}
	if row.RemoteID != nil {
		return "#" + strconv.FormatInt(*row.RemoteID, 10)
	}
	return "?"
}

func showCmd() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "local purchase id")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	require(*id != "", "-id required")

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		detail, err := app.Views.Detail(ctx, *id)
		if err != nil {
			return err
		}
		p := detail.Purchase
		fmt.Printf("%s  %s\n", p.LocalID, p.RefNo)
		if p.RemoteID != nil {
			fmt.Printf("remote id: %d\n", *p.RemoteID)
		}
		fmt.Printf("status: %s\n", p.Status)
		fmt.Printf("supplier: %s\n", nameOrID(detail.SupplierName, p.SupplierID))
		fmt.Printf("location: %s\n", nameOrID(detail.LocationName, p.LocationID))
		fmt.Printf("date: %s\n", p.TransactionDate.Format("2006-01-02"))
		fmt.Printf("total: %s (before tax %s, tax %s, shipping %s)\n",
			p.FinalTotal.StringFixed(2), p.TotalBeforeTax.StringFixed(2),
			p.TaxAmount.StringFixed(2), p.ShippingCharges.StringFixed(2))
		fmt.Printf("synced: %v\n", p.Synced)
		if p.AdditionalNotes != "" {
			fmt.Printf("notes: %s\n", p.AdditionalNotes)
		}
		if len(detail.Lines) > 0 {
			fmt.Println("lines:")
			for _, ln := range detail.Lines {
				fmt.Printf("  product %d variation %d  qty %s @ %s\n",
					ln.ProductID, ln.VariationID, ln.Quantity.String(), ln.UnitPrice.StringFixed(2))
			}
		}
		if len(detail.Payments) > 0 {
			fmt.Println("payments:")
			for _, pay := range detail.Payments {
				fmt.Printf("  %s %s on %s\n",
					pay.Amount.StringFixed(2), pay.Method, pay.PaidOn.Format("2006-01-02"))
			}
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func nameOrID(name string, id int64) string {
	if name != "" {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func newCmd() {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	supplier := fs.Int64("supplier", 0, "supplier id")
	location := fs.Int64("location", 0, "business location id")
	status := fs.String("status", "ordered", "initial status")
	date := fs.String("date", "", "transaction date (YYYY-MM-DD, default today)")
	refNo := fs.String("ref", "", "reference number")
	note := fs.String("note", "", "additional notes")
	verbose := fs.Bool("v", false, "verbose logging")
	var lines []purchase.PurchaseLine
	fs.Func("line", "line as product:variation:qty:price (repeatable)", func(raw string) error {
		ln, err := parseLineSpec(raw)
		if err != nil {
			return err
		}
		lines = append(lines, ln)
		return nil
	})
	mustParse(fs)

	require(*supplier != 0, "-supplier required")
	require(*location != 0, "-location required")
	require(len(lines) > 0, "at least one -line required")

	st, err := purchase.ParseStatus(*status)
	if err != nil {
		log.Fatal(err)
	}
	txDate := time.Now().UTC()
	if *date != "" {
		txDate, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("parse date: %v", err)
		}
	}

	p := purchase.NewPurchase(*supplier, *location, st, txDate)
	p.RefNo = *refNo
	p.AdditionalNotes = *note
	subtotal := decimal.Zero
	for _, ln := range lines {
		subtotal = subtotal.Add(ln.Quantity.Mul(ln.UnitPrice))
	}
	p.TotalBeforeTax = subtotal
	p.FinalTotal = subtotal

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		if err := app.Store.CreatePurchase(ctx, &p, lines); err != nil {
			return err
		}
		fmt.Printf("created %s (total %s), run 'ordersync sync' to push\n", p.LocalID, p.FinalTotal.StringFixed(2))
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func parseLineSpec(raw string) (purchase.PurchaseLine, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return purchase.PurchaseLine{}, fmt.Errorf("line %q: want product:variation:qty:price", raw)
	}
	productID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return purchase.PurchaseLine{}, fmt.Errorf("line %q: product id: %w", raw, err)
	}
	variationID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return purchase.PurchaseLine{}, fmt.Errorf("line %q: variation id: %w", raw, err)
	}
	qty, err := decimal.NewFromString(parts[2])
	if err != nil {
		return purchase.PurchaseLine{}, fmt.Errorf("line %q: quantity: %w", raw, err)
	}
	price, err := decimal.NewFromString(parts[3])
	if err != nil {
		return purchase.PurchaseLine{}, fmt.Errorf("line %q: price: %w", raw, err)
	}
	return purchase.NewLine(productID, variationID, qty, price), nil
}

func payCmd() {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	id := fs.String("id", "", "local purchase id")
	amount := fs.String("amount", "", "payment amount")
	method := fs.String("method", "cash", "payment method")
	date := fs.String("date", "", "payment date (YYYY-MM-DD, default today)")
	note := fs.String("note", "", "payment note")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	require(*id != "", "-id required")
	require(*amount != "", "-amount required")

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatalf("parse amount: %v", err)
	}
	paidOn := time.Now().UTC()
	if *date != "" {
		paidOn, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("parse date: %v", err)
		}
	}

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		pay := purchase.NewPayment(amt, *method, paidOn)
		pay.PurchaseLocalID = *id
		pay.Note = *note
		if err := app.Store.AddPayment(ctx, &pay); err != nil {
			return err
		}
		fmt.Printf("recorded %s %s, run 'ordersync sync' to push\n", amt.StringFixed(2), *method)
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func setStatusCmd() {
	fs := flag.NewFlagSet("set-status", flag.ExitOnError)
	id := fs.String("id", "", "local purchase id")
	status := fs.String("status", "", "new status")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	require(*id != "", "-id required")
	require(*status != "", "-status required")

	st, err := purchase.ParseStatus(*status)
	if err != nil {
		log.Fatal(err)
	}

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		if err := app.Engine.SetStatus(ctx, *id, st); err != nil {
			return err
		}
		fmt.Printf("status set to %s\n", st)
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func deleteCmd() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "local purchase id")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	require(*id != "", "-id required")

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		if err := app.Engine.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func refreshCmd() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	maxAge := fs.Duration("max-age", purchase.DefaultMaxAge, "refresh caches older than this")
	force := fs.Bool("force", false, "refresh regardless of age")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	age := *maxAge
	if *force {
		age = time.Nanosecond
	}

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		for _, res := range app.Caches.RefreshAll(ctx, age) {
			switch res.Outcome {
			case purchase.Refreshed:
				fmt.Printf("%s: %d record(s)\n", res.Entity, res.Fetched)
			case purchase.SkippedFresh:
				fmt.Printf("%s: fresh, skipped\n", res.Entity)
			case purchase.FailedKeptStale:
				fmt.Printf("%s: refresh failed, kept cached rows (%v)\n", res.Entity, res.Err)
			}
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func suppliersCmd() {
	fs := flag.NewFlagSet("suppliers", flag.ExitOnError)
	term := fs.String("term", "", "search term")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		recs, err := app.Caches.SearchSuppliers(ctx, *term)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no suppliers cached, run 'ordersync refresh'")
			return nil
		}
		for _, rec := range recs {
			fmt.Printf("%d\t%s\t%s\t%s\n", rec.RemoteID, rec.Name, rec.BusinessName, rec.Mobile)
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func productsCmd() {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	term := fs.String("term", "", "search term")
	verbose := fs.Bool("v", false, "verbose logging")
	mustParse(fs)

	if err := withApp(*verbose, func(ctx context.Context, app *appcli.App) error {
		recs, err := app.Caches.SearchProducts(ctx, *term)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no products cached, run 'ordersync refresh'")
			return nil
		}
		for _, rec := range recs {
			fmt.Printf("%d\t%s\t%s\t%s\n", rec.RemoteID, rec.Name, rec.SKU, rec.Type)
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func summaryCmd() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to orders db (defaults to the configured one)")
	pending := fs.Int("pending", 0, "also list up to N unsynced purchases")
	mustParse(fs)

	path := *dbPath
	if path == "" {
		cfg, err := LoadConfig()
		if err != nil {
			log.Fatal(err)
		}
		path = cfg.DB
	}

	if err := withInspector(path, func(ctx context.Context, insp *inspect.Inspector) error {
		rows, err := insp.Summary(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no purchases found")
			return nil
		}
		for _, row := range rows {
			fmt.Printf("%s\t%d\t(%d unsynced)\n", row.Status, row.Count, row.Unsynced)
		}
		if *pending > 0 {
			recs, err := insp.Pending(ctx, *pending)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Printf("%s %s supplier=%d %s %s updated=%s\n",
					rec.LocalID, rec.RefNo, rec.SupplierID, rec.Status, rec.Total,
					time.Unix(rec.Updated, 0).UTC().Format(time.RFC3339))
			}
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func withInspector(path string, fn func(context.Context, *inspect.Inspector) error) error {
	insp, err := inspect.Open(path)
	if err != nil {
		return err
	}
	var closeErr error
	defer func() {
		if cerr := insp.Close(); cerr != nil && closeErr == nil {
			closeErr = cerr
		}
	}()
	if err := fn(context.Background(), insp); err != nil {
		return err
	}
	return closeErr
}

func mustParse(fs *flag.FlagSet) {
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func require(cond bool, msg string) {
	if !cond {
		log.Fatal(msg)
	}
}
