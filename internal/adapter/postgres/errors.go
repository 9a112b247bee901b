package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"hypertension/internal/domain"
)

// storeError classifies err into a *domain.StoreError.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := domain.StoreUnknown
	var (
		pqErr  *pq.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind = domain.StoreNotFound
	case errors.As(err, &pqErr):
		switch {
		case pqErr.Code == "42501" || pqErr.Code.Class() == "28":
			kind = domain.StorePermission
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			kind = domain.StoreNetwork
		}
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = domain.StoreNetwork
	}
	return domain.NewStoreError(op, kind, err)
}
