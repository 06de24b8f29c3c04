package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApprovalLockerLockUnlock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS approval_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	locker, err := NewApprovalLocker(context.Background(), db, ApprovalLockerConfig{
		OwnerID:         "node-1",
		TTL:             time.Minute,
		RefreshInterval: time.Hour,
		AcquireTimeout:  time.Second,
		PollInterval:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewApprovalLocker: %v", err)
	}

	mock.ExpectExec("INSERT INTO approval_locks").
		WithArgs("appr-1", "node-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT owner_id FROM approval_locks").
		WithArgs("appr-1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("node-1"))

	if err := locker.Lock(context.Background(), "appr-1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	mock.ExpectExec("DELETE FROM approval_locks").
		WithArgs("appr-1", "node-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	locker.Unlock("appr-1")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApprovalLockerRequiresOwnerID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	if _, err := NewApprovalLocker(context.Background(), db, ApprovalLockerConfig{}); err == nil {
		t.Error("expected error for missing owner id")
	}
}
