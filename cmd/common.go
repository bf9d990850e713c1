package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/sw33tLie/evscope/internal/server"
	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/ingest"
	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/sources/cityofsydney"
	"github.com/sw33tLie/evscope/pkg/sources/eventbrite"
	"github.com/sw33tLie/evscope/pkg/sources/static"
	"github.com/sw33tLie/evscope/pkg/storage"
	"github.com/sw33tLie/evscope/pkg/whttp"
)

// catalog is what every command needs from either storage engine.
type catalog interface {
	ingest.Catalog
	server.Catalog
	Count(ctx context.Context) (int, error)
	Close() error
}

func openCatalog(ctx context.Context) (catalog, error) {
	switch driver := viper.GetString("db.driver"); driver {
	case "sqlite", "":
		db, err := storage.Open(viper.GetString("db.path"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres", "pg":
		dsn := viper.GetString("db.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("db.dsn is required for the postgres driver")
		}
		pg, err := storage.OpenPG(ctx, dsn, viper.GetUint("db.connect_retries"))
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown db.driver %q (supported: sqlite, postgres)", driver)
	}
}

// durationSetting reads a duration key, accepting bare numbers as hours.
func durationSetting(key string) (time.Duration, error) {
	d, err := utils.ParseDuration(viper.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func newHTTPClient(rate float64) (*whttp.Client, error) {
	timeout, err := durationSetting("http.timeout")
	if err != nil {
		return nil, err
	}
	return whttp.NewClient(whttp.Options{
		Proxy:   viper.GetString("http.proxy"),
		Timeout: timeout,
		Retries: viper.GetInt("http.retries"),
		Rate:    rate,
	})
}

// buildAdapters creates the enabled source adapters in configured order.
// Each adapter gets its own client so rate limits stay per source.
func buildAdapters(dev bool) ([]sources.Adapter, error) {
	if dev {
		return []sources.Adapter{static.Dev(time.Now())}, nil
	}

	var adapters []sources.Adapter

	if viper.GetBool("sources.cityofsydney.enabled") {
		client, err := newHTTPClient(viper.GetFloat64("sources.cityofsydney.rate"))
		if err != nil {
			return nil, err
		}
		a, err := cityofsydney.New(viper.GetString("sources.cityofsydney.base_url"), client, sources.Options{
			MaxRecords: viper.GetInt("sources.cityofsydney.max_records"),
			Log:        utils.Log,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	} else {
		utils.Log.Info("Skipping City of Sydney: disabled in config.")
	}

	if viper.GetBool("sources.eventbrite.enabled") {
		client, err := newHTTPClient(viper.GetFloat64("sources.eventbrite.rate"))
		if err != nil {
			return nil, err
		}
		a, err := eventbrite.New(viper.GetString("sources.eventbrite.list_url"), client, sources.Options{
			MaxRecords: viper.GetInt("sources.eventbrite.max_records"),
			Log:        utils.Log,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	} else {
		utils.Log.Info("Skipping Eventbrite: disabled in config.")
	}

	return adapters, nil
}

// newRunner wires a Runner from config. reg may be nil.
func newRunner(cat catalog, adapters []sources.Adapter, reg prometheus.Registerer) (*ingest.Runner, error) {
	fetchTimeout, err := durationSetting("run.fetch_timeout")
	if err != nil {
		return nil, err
	}
	recordTimeout, err := durationSetting("run.record_timeout")
	if err != nil {
		return nil, err
	}
	staleAfter, err := durationSetting("sweep.stale_after")
	if err != nil {
		return nil, err
	}
	lock, err := utils.NewRunLock(viper.GetString("run.lock_file"), viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}

	var metrics *ingest.Metrics
	if reg != nil {
		metrics = ingest.NewMetrics(reg)
	}

	return ingest.New(ingest.Config{
		Catalog:       cat,
		Sources:       adapters,
		Log:           utils.Log,
		Metrics:       metrics,
		Lock:          lock,
		FetchTimeout:  fetchTimeout,
		RecordTimeout: recordTimeout,
		StaleAfter:    staleAfter,
	}), nil
}
