package main

import (
	"context"

	"github.com/pyxis-energy/pyxis-cli/internal/store"
)

// initStore opens the configured store driver.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
