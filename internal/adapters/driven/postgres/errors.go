package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// SQLSTATE values and classes the sync engine cares about
const (
	codeForeignKeyViolation = "23503"
	classIntegrity          = "23"
	classConnection         = "08"
	classOperatorIntervened = "57"
	codeTooManyConnections  = "53300"
)

// classify maps driver and network errors to domain errors:
// connectivity wraps ErrRemoteUnavailable, foreign-key rejections become
// *domain.ForeignKeyError and other integrity failures wrap ErrConstraintViolation.
func classify(err error, table string) error {
	if err == nil {
		return nil
	}
	if domain.IsConnectivity(err) ||
		errors.Is(err, domain.ErrForeignKeyViolation) ||
		errors.Is(err, domain.ErrConstraintViolation) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case code == codeForeignKeyViolation:
			t := pqErr.Table
			if t == "" {
				t = table
			}
			return &domain.ForeignKeyError{
				Table:      t,
				Constraint: pqErr.Constraint,
				Detail:     pqErr.Detail,
			}
		case strings.HasPrefix(code, classIntegrity):
			return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pqErr.Message)
		case strings.HasPrefix(code, classConnection),
			strings.HasPrefix(code, classOperatorIntervened),
			code == codeTooManyConnections:
			return fmt.Errorf("%w: %s", domain.ErrRemoteUnavailable, pqErr.Message)
		}
		return err
	}

	if isConnectivity(err) {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return err
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
