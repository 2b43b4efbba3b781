// Package scancache caches barcode product lookups for a grocery scanning app.
//
// Each signed-in user has a small local tier (in-process or on-disk) in front
// of a shared remote tier (Postgres, Redis or in-memory). Reads go local
// first and fill the local tier from the remote one; writes go to the remote
// tier first and are mirrored locally. Entry lifetimes follow the confidence,
// source and completeness of the product data, and a periodic maintenance
// pass expires, repairs and trims each user's entries.
//
// # Quick Start
//
//	cache, err := scancache.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
//	rec, err := cache.GetOrFetch(ctx, userID, "7891234567895", lookupCatalog)
//
// # Writes
//
//	_, err := cache.CacheBarcode(ctx, userID, &scancache.BarcodeDraft{
//	    Barcode:         "7891234567895",
//	    ProductData:     scancache.ProductData{Name: "Tio João", Brand: "Tio João"},
//	    Source:          scancache.SourceCosmos,
//	    ConfidenceScore: 0.95,
//	})
//
// # Configuration
//
// Load configuration from a JSON file with SCANCACHE_* environment overrides:
//
//	cache, err := scancache.NewFromFile("scancache.json")
//
// Or start from the defaults:
//
//	cfg := scancache.Config()
//	cfg.Remote.Backend = "postgres"
//	cache, err := scancache.NewFromConfig(cfg, scancache.WithPostgresDSN(dsn))
//
// # Errors
//
// Every operation needs a user; an empty userID fails with
// ErrUnauthenticated. A miss is (nil, nil), not an error. Remote tier
// failures match ErrBackendFailure and, once the circuit breaker trips,
// ErrCircuitOpen.
//
// # Thread Safety
//
// A Cache is safe for concurrent use.
package scancache
