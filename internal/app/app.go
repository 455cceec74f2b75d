// Package app wires configuration into the record store and graders shared
// by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/cipher"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/provider"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/repository/sqlite"
	"github.com/stemsi/exstem-grading/internal/service"
)

// OpenStore connects the configured record store. The returned func releases
// it.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// JoinCodeConfig builds the generator settings from configuration.
func JoinCodeConfig(cfg *config.Config) joincode.Config {
	return joincode.Config{
		Alphabet:    cfg.JoinCodeAlphabet,
		Length:      cfg.JoinCodeLength,
		MaxAttempts: cfg.JoinCodeMaxAttempts,
		Keys: cipher.Keys{
			Rounds:   cfg.FeistelRoundKeys,
			Constant: cfg.FeistelConstant,
		},
	}
}

// EssayGrader builds the subjective grader with the configured providers in
// primary, secondary order.
func EssayGrader(cfg *config.Config, log zerolog.Logger) *grading.EssayGrader {
	providers := provider.FromConfig(cfg)
	log.Info().Int("providers", len(providers)).Msg("Score providers configured")

	return grading.NewEssayGrader(log,
		grading.WithProviders(providers...),
		grading.WithTimeouts(cfg.AttemptTimeout, cfg.TotalBudget),
	)
}
