package main

import (
	"context"
	"fmt"

	"github.com/cuemby/potato/pkg/config"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/rs/zerolog"
)

// openStore opens the backend selected by cfg
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		s, err := storage.NewBoltStore(cfg.DataDir, cfg.Collection)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", s.Path()).Str("collection", cfg.Collection).Msg("Opened bolt store")
		return s, nil

	case config.BackendMongo:
		s, err := storage.NewMongoStore(ctx, cfg.Mongo())
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("Connected to MongoDB")
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func closeStore(s storage.Store, logger zerolog.Logger) {
	if err := s.Close(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to close store")
	}
}
