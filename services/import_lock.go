package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// localLocks serves databases without advisory locks (SQLite) and only
// serializes imports inside this process.
var localLocks = struct {
	sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

// acquireDatasetLock takes a named, non-blocking lock for the duration of an
// import. The returned release func must be called once.
func acquireDatasetLock(ctx context.Context, db *gorm.DB, name string) (func() error, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return func() error { return nil }, nil
	}
	switch db.Dialector.Name() {
	case "mysql":
		return acquireSessionLock(ctx, db, name,
			"SELECT GET_LOCK(?, 0)", "SELECT RELEASE_LOCK(?)")
	case "postgres":
		return acquireSessionLock(ctx, db, name,
			"SELECT CASE WHEN pg_try_advisory_lock(hashtext(?)) THEN 1 ELSE 0 END",
			"SELECT CASE WHEN pg_advisory_unlock(hashtext(?)) THEN 1 ELSE 0 END")
	}
	return acquireLocalLock(name)
}

// acquireSessionLock pins one pooled connection: advisory locks belong to the
// session that took them, so release must run on the same connection.
func acquireSessionLock(ctx context.Context, db *gorm.DB, name, lockSQL, unlockSQL string) (func() error, error) {
	lockCtx := persistentContext(ctx)
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(lockCtx)
	if err != nil {
		return nil, err
	}
	var ok sql.NullInt64
	if err := conn.QueryRowContext(lockCtx, lockSQL, name).Scan(&ok); err != nil {
		conn.Close()
		return nil, err
	}
	if !ok.Valid || ok.Int64 != 1 {
		conn.Close()
		return nil, ErrImportAlreadyRunning
	}
	return func() error {
		defer conn.Close()
		var released sql.NullInt64
		if err := conn.QueryRowContext(lockCtx, unlockSQL, name).Scan(&released); err != nil {
			return err
		}
		if !released.Valid || released.Int64 != 1 {
			return fmt.Errorf("release lock %q returned %v", name, released.Int64)
		}
		return nil
	}, nil
}

func acquireLocalLock(name string) (func() error, error) {
	localLocks.Lock()
	defer localLocks.Unlock()
	if localLocks.held[name] {
		return nil, ErrImportAlreadyRunning
	}
	localLocks.held[name] = true
	return func() error {
		localLocks.Lock()
		delete(localLocks.held, name)
		localLocks.Unlock()
		return nil
	}, nil
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
