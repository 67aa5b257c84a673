//go:build !sqlite

package store

import (
	"context"
	"errors"
)

func newSQLiteHistory(_ context.Context, _ string) (History, error) {
	return nil, errors.New("sqlite history unavailable in this build; rebuild with -tags sqlite")
}
