package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or *sql.Tx, so
// services can run several of them inside one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Jobs(db dbx.DBTX) jobs.Repository
}
