package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"vicitrade/internal/config"
	"vicitrade/internal/indicator"
	"vicitrade/internal/store"
	"vicitrade/internal/util"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: vici-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                   Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  run <request.yaml>...     Run backtests and store the results\n")
	fmt.Fprintf(os.Stderr, "  show <id>                 Show a stored run\n")
	fmt.Fprintf(os.Stderr, "  list                      List stored runs, newest first\n")
	fmt.Fprintf(os.Stderr, "  delete <id>               Delete a stored run\n")
	fmt.Fprintf(os.Stderr, "  strategies                List runnable strategies\n")
	fmt.Fprintf(os.Stderr, "  indicators                List built-in indicators and parameters\n")
	fmt.Fprintf(os.Stderr, "  symbols                   List symbols with stored bars\n")
	fmt.Fprintf(os.Stderr, "\nrun, show, list, delete and strategies accept -server <addr> to\n")
	fmt.Fprintf(os.Stderr, "use a vici-server instead of the local stores.\n\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "version":
		fmt.Printf("vici-cli %s\n", version)
		return
	case "indicators":
		printIndicators()
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	server := fs.String("server", "", "vici-server address (host:port)")
	asJSON := fs.Bool("json", false, "print raw JSON")
	trades := fs.Bool("trades", false, "include the trade log (show)")
	fs.Parse(args)

	cfgPath := "config/vici.yaml"
	if p := os.Getenv("VICI_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Only warnings and errors, so run logs do not interleave with the report.
	util.SetDefault(util.NewLogger("warn", "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cmd == "symbols" {
		symbols, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(ctx)
		if err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
		fmt.Println(strings.Join(symbols, "\n"))
		return
	}

	b, err := openBackend(cfg, *server)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer b.Close()

	switch cmd {
	case "run":
		if fs.NArg() == 0 {
			log.Fatalf("run: at least one request file is required")
		}
		reqs := make([]*config.RunRequest, fs.NArg())
		for i, path := range fs.Args() {
			if reqs[i], err = config.LoadRequest(path, cfg.Backtest); err != nil {
				log.Fatalf("loading %s: %v", path, err)
			}
		}
		recs, err := b.Run(ctx, reqs)
		if err != nil {
			log.Fatalf("run failed: %v", err)
		}
		for _, rec := range recs {
			output(rec, *asJSON, func() { printRun(rec, false) })
		}

	case "show":
		if fs.NArg() != 1 {
			log.Fatalf("show: exactly one run id is required")
		}
		rec, err := b.Get(ctx, fs.Arg(0))
		if err != nil {
			log.Fatalf("show: %v", err)
		}
		output(rec, *asJSON, func() { printRun(rec, *trades) })

	case "list":
		runs, err := b.List(ctx)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		output(runs, *asJSON, func() { printRuns(runs) })

	case "delete":
		if fs.NArg() != 1 {
			log.Fatalf("delete: exactly one run id is required")
		}
		if err := b.Delete(ctx, fs.Arg(0)); err != nil {
			log.Fatalf("delete: %v", err)
		}
		fmt.Printf("deleted %s\n", fs.Arg(0))

	case "strategies":
		names, err := b.Strategies(ctx)
		if err != nil {
			log.Fatalf("strategies: %v", err)
		}
		fmt.Println(strings.Join(names, "\n"))

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func output(v any, asJSON bool, text func()) {
	if !asJSON {
		text()
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encoding output: %v", err)
	}
}

func printRun(rec map[string]any, withTrades bool) {
	fmt.Printf("Run %v  %v (%v)  %v\n", rec["id"], rec["name"], rec["strategy"], rec["status"])
	fmt.Printf("  Symbols: %v  %v .. %v\n", rec["symbols"], rec["start_date"], rec["end_date"])
	fmt.Printf("  Capital: %.2f  Final equity: %.2f  Commission: %v\n",
		num(rec["initial_capital"]), num(rec["final_equity"]), rec["commission_rate"])

	if m, ok := rec["metrics"].(map[string]any); ok {
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintf(w, "  Total return\t%.2f%%\tAnnualized\t%.2f%%\n", num(m["total_return_pct"]), num(m["annualized_return_pct"]))
		fmt.Fprintf(w, "  Max drawdown\t%.2f%%\tSharpe\t%.4f\n", num(m["max_drawdown_pct"]), num(m["sharpe_ratio"]))
		fmt.Fprintf(w, "  Round trips\t%.0f\tWin rate\t%.2f%%\n", num(m["total_trades"]), num(m["win_rate"]))
		fmt.Fprintf(w, "  Profit factor\t%v\tAvg trade\t%.2f%%\n", m["profit_factor"], num(m["avg_trade_return_pct"]))
		w.Flush()
	}

	if !withTrades {
		return
	}
	trades, _ := rec["trades"].([]any)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  DATE\tSIDE\tSYMBOL\tQTY\tPRICE\tCOMMISSION")
	for _, raw := range trades {
		t, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %v\t%v\t%v\t%v\t%.2f\t%.2f\n",
			t["date"], t["side"], t["symbol"], t["quantity"], num(t["price"]), num(t["commission"]))
	}
	w.Flush()
}

func printRuns(runs []map[string]any) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTRATEGY\tSTATUS\tFINAL EQUITY\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%.2f\t%v\n",
			r["id"], r["name"], r["strategy"], r["status"], num(r["final_equity"]), r["created_at"])
	}
	w.Flush()
}

func printIndicators() {
	var reg *indicator.Registry
	for _, name := range reg.Names() {
		params, _ := indicator.Describe(name)
		parts := make([]string, len(params))
		for i, p := range params {
			if p.Required() {
				parts[i] = p.Name + " (required)"
			} else {
				parts[i] = fmt.Sprintf("%s=%v", p.Name, p.Default)
			}
		}
		fmt.Printf("%-24s %s\n", name, strings.Join(parts, ", "))
	}
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}
