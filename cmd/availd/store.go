package main

import (
	"fmt"
	"path/filepath"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/config"
	"github.com/viljemd-hub/channel-manager-sub000/internal/storage/badgerstore"
	filestore "github.com/viljemd-hub/channel-manager-sub000/internal/storage/file"
)

// openStore builds the configured backend. The returned close func is a
// no-op for the file store.
func openStore(cfg *config.Config) (app.SegmentStore, func() error, error) {
	switch cfg.Storage {
	case "badger":
		store, err := badgerstore.Open(filepath.Join(cfg.DataDir, "badger"))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, store.Close, nil
	default:
		return filestore.NewStore(cfg.DataDir), func() error { return nil }, nil
	}
}
