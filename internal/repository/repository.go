// Package repository provides data access interfaces and implementations
// for the Paper Acquisition Service.
//
// # Overview
//
// The acquisition core depends on persisted state it does not own. This
// package stores that state in PostgreSQL:
//
//   - SourceRepository: source definitions and their priorities
//   - PgHealthEventRepository: the append-only health event log (health.EventStore)
//   - CatalogRepository: catalog identity used to resolve releases to requested items
//   - PgBlocklistRepository: releases that must never be submitted again
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Database errors are wrapped with context using fmt.Errorf with %w.
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass a transaction from database.DB.WithTransaction for atomic operations.
//
//	db, _ := database.New(ctx, cfg, logger)
//	sources := repository.NewPgSourceRepository(db)
//	events := repository.NewPgHealthEventRepository(db)
//	catalog := repository.NewPgCatalogRepository(db)
package repository

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/helixir/paper-acquisition-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgSourceRepository(tx)
//	    return txRepo.UpdatePriority(ctx, id, 3)
//	})
type DBTX = database.DBTX

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
