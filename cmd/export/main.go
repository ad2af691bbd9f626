// Command export builds one analytics table and writes it as CSV or JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"VolMonitor/internal/di"
	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/export"
	"VolMonitor/internal/services/timeseries"
	"VolMonitor/internal/usecase"
	"VolMonitor/pkg/config"
	applogger "VolMonitor/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "optional dotenv file with VOLMON_* overrides")
	date := flag.String("date", "", "as-of date YYYY-MM-DD (default: latest covered date)")
	format := flag.String("format", "csv", "output format: csv or json")
	out := flag.String("out", "", "output file (default: stdout)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("env file %s: %v", *envFile, err)
	}
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *date, *format, *out); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, date, format, out string) error {
	if format != "csv" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	// logs go to stderr so stdout stays clean for the table
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		return err
	}

	store, err := di.ProvideMarketStore(cfg, l)
	if err != nil {
		return err
	}
	defer store.Close()
	if ld := di.ProvideLoader(cfg, l); ld != nil {
		if _, _, err := ld.Load(ctx, store); err != nil {
			return err
		}
	}

	grid, err := di.ProvideGrid(cfg)
	if err != nil {
		return err
	}
	params, err := di.ProvideAnalyticsParams(cfg)
	if err != nil {
		return err
	}
	b := usecase.NewTableBuilder(store, grid, params)
	b.SetLogger(l)

	var t *models.AnalyticsTable
	if date == "" {
		t, err = b.BuildLatest(ctx)
	} else {
		d, perr := timeseries.ParseDay(date)
		if perr != nil {
			return perr
		}
		t, err = b.BuildTable(ctx, d)
	}
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if format == "json" {
		err = export.WriteJSON(w, t)
	} else {
		err = export.WriteCSV(w, t)
	}
	if err != nil {
		return err
	}
	l.Info("table exported",
		applogger.Date("as_of", t.AsOf),
		applogger.String("version", t.Version),
		applogger.Int("rows", len(t.Rows)),
		applogger.String("format", format),
	)
	return nil
}
