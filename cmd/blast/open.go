package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
)

// loadTuning layers the --tuning-file overrides over the built-in database.
func loadTuning() (*tuning.Database, error) {
	db := tuning.Default()
	path := strings.TrimSpace(tuningFile)
	if path == "" {
		return db, nil
	}
	return tuning.LoadFile(db, path)
}

func openBackend(ctx context.Context) (*backend.Handle, *tuning.Database, error) {
	log := logger.FromContext(ctx)
	db, err := loadTuning()
	if err != nil {
		return nil, nil, err
	}
	h, err := backend.Open(backendName, db, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open backend %q: %w", backendName, err)
	}
	info := h.Queue.Device()
	log.Debug("backend opened", "backend", h.Name, "device", info.Name, "vendor", info.Vendor)
	return h, db, nil
}

// realPrecision parses --precision, rejecting complex types which the CLI
// cannot generate operands for.
func realPrecision() (blas.Precision, error) {
	p, err := blas.ParsePrecision(precision)
	if err != nil {
		return 0, err
	}
	if p.IsComplex() {
		return 0, fmt.Errorf("precision %s is not supported by the CLI", p)
	}
	return p, nil
}
