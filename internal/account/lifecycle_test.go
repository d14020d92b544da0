package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harmonia-app/auth-service/internal/domain"
)

var testGracePeriod = 7 * 24 * time.Hour

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// checkDeactivationInvariant asserts that deactivationRequestedAt is
// set exactly when the status is DeactivationPending.
func checkDeactivationInvariant(t *testing.T, acct *domain.Account) {
	t.Helper()
	requested := acct.DeactivationRequestedAt != nil
	pending := acct.Status == domain.StatusDeactivationPending
	if requested != pending {
		t.Errorf("invariant violated: deactivationRequestedAt set = %v, status = %s", requested, acct.Status)
	}
}

func TestRequestDeactivation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  domain.AccountStatus
		wantErr error
	}{
		{"from active", domain.StatusActive, nil},
		{"from pending verification", domain.StatusPendingVerification, nil},
		{"re-request while pending", domain.StatusDeactivationPending, nil},
		{"from deactivated", domain.StatusDeactivated, domain.ErrAccountDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := testAccount()
			acct.Status = tt.status
			if tt.status == domain.StatusDeactivationPending {
				earlier := now.Add(-time.Hour)
				acct.DeactivationRequestedAt = &earlier
			}

			err := requestDeactivation(acct, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if acct.Status != domain.StatusDeactivationPending {
				t.Errorf("status = %s, want deactivation_pending", acct.Status)
			}
			if acct.DeactivationRequestedAt == nil || !acct.DeactivationRequestedAt.Equal(now) {
				t.Error("re-requesting must refresh the timestamp")
			}
			checkDeactivationInvariant(t, acct)
		})
	}
}

func TestCancelDeactivation_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		verified   bool
		wantStatus domain.AccountStatus
	}{
		{"previously active", true, domain.StatusActive},
		{"previously pending verification", false, domain.StatusPendingVerification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := testAccount()
			if tt.verified {
				acct.Status = domain.StatusActive
				acct.EmailVerifiedAt = &now
			}
			before := acct.Status

			if err := requestDeactivation(acct, now); err != nil {
				t.Fatalf("requestDeactivation: %v", err)
			}
			checkDeactivationInvariant(t, acct)
			if err := cancelDeactivation(acct); err != nil {
				t.Fatalf("cancelDeactivation: %v", err)
			}
			checkDeactivationInvariant(t, acct)

			if acct.Status != before {
				t.Errorf("round trip gave %s, want %s", acct.Status, before)
			}
			if acct.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", acct.Status, tt.wantStatus)
			}
		})
	}
}

func TestCancelDeactivation_NoRequest(t *testing.T) {
	acct := testAccount()
	if err := cancelDeactivation(acct); !errors.Is(err, domain.ErrNoDeactivationRequest) {
		t.Errorf("err = %v, want ErrNoDeactivationRequest", err)
	}
}

func TestReactivateOnLogin(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		loginAt    time.Time
		wantStatus domain.AccountStatus
	}{
		{"inside grace window", t0.Add(6 * 24 * time.Hour), domain.StatusActive},
		{"exactly at window end", t0.Add(testGracePeriod), domain.StatusDeactivationPending},
		{"after grace window", t0.Add(8 * 24 * time.Hour), domain.StatusDeactivationPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := testAccount()
			acct.Status = domain.StatusActive
			acct.EmailVerifiedAt = &t0
			if err := requestDeactivation(acct, t0); err != nil {
				t.Fatalf("requestDeactivation: %v", err)
			}

			reactivateOnLogin(acct, tt.loginAt, testGracePeriod)
			if acct.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", acct.Status, tt.wantStatus)
			}
			checkDeactivationInvariant(t, acct)
		})
	}
}

func TestReactivateOnLogin_NoRequestIsNoOp(t *testing.T) {
	acct := testAccount()
	acct.Status = domain.StatusActive
	reactivateOnLogin(acct, time.Now(), testGracePeriod)
	if acct.Status != domain.StatusActive {
		t.Errorf("status = %s, want active", acct.Status)
	}
}

func TestFinalizeDeactivation(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"before grace elapsed", t0.Add(6 * 24 * time.Hour), true},
		{"exactly at grace end", t0.Add(testGracePeriod), false},
		{"after grace elapsed", t0.Add(8 * 24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := testAccount()
			acct.Status = domain.StatusActive
			if err := requestDeactivation(acct, t0); err != nil {
				t.Fatalf("requestDeactivation: %v", err)
			}

			err := finalizeDeactivation(acct, tt.at, testGracePeriod)
			if tt.wantErr {
				if err == nil {
					t.Fatal("finalize before grace elapsed must fail")
				}
				if acct.Status != domain.StatusDeactivationPending {
					t.Errorf("status changed on failed finalize: %s", acct.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("finalizeDeactivation: %v", err)
			}
			if acct.Status != domain.StatusDeactivated {
				t.Errorf("status = %s, want deactivated", acct.Status)
			}
			if acct.DeactivatedAt == nil || !acct.DeactivatedAt.Equal(tt.at) {
				t.Error("deactivatedAt must record the finalize time")
			}
			if acct.DeactivationRequestedAt != nil {
				t.Error("deactivationRequestedAt must be cleared on finalize")
			}
			checkDeactivationInvariant(t, acct)
		})
	}
}

func TestFinalizeDeactivation_NotPending(t *testing.T) {
	acct := testAccount()
	acct.Status = domain.StatusActive
	err := finalizeDeactivation(acct, time.Now(), testGracePeriod)
	if err == nil {
		t.Error("finalize on non-pending account must fail")
	}
}

func TestPromoteOnVerification(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	acct := testAccount()
	if err := promoteOnVerification(acct, now); err != nil {
		t.Fatalf("promoteOnVerification: %v", err)
	}
	if acct.Status != domain.StatusActive {
		t.Errorf("status = %s, want active", acct.Status)
	}
	if acct.EmailVerifiedAt == nil {
		t.Error("verification must record emailVerifiedAt")
	}

	if err := promoteOnVerification(acct, now); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Errorf("second promote err = %v, want ErrAlreadyVerified", err)
	}
}

func TestLifecycleService_RequestDeactivation(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewLifecycleService(store, notifier, discardLogger(), testGracePeriod)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	acct := testAccount()
	acct.Status = domain.StatusActive
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.RequestDeactivation(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("RequestDeactivation: %v", err)
	}
	if got.Status != domain.StatusDeactivationPending {
		t.Errorf("status = %s, want deactivation_pending", got.Status)
	}
	checkDeactivationInvariant(t, got)
	if len(notifier.deactivations) != 1 {
		t.Fatalf("deactivation notices = %d, want 1", len(notifier.deactivations))
	}
	if notifier.deactivations[0].email != acct.Email {
		t.Errorf("notice sent to %s, want %s", notifier.deactivations[0].email, acct.Email)
	}
}

func TestLifecycleService_NotifierFailureDoesNotRollBack(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	svc := NewLifecycleService(store, notifier, discardLogger(), testGracePeriod)

	acct := testAccount()
	acct.Status = domain.StatusActive
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.RequestDeactivation(context.Background(), acct.ID); err != nil {
		t.Fatalf("notifier failure must not fail the operation: %v", err)
	}
	stored, err := store.FindByID(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != domain.StatusDeactivationPending {
		t.Error("state change must be durable even when notification fails")
	}
}

func TestLifecycleService_ConflictRetry(t *testing.T) {
	store := newMemStore()
	svc := NewLifecycleService(store, &fakeNotifier{}, discardLogger(), testGracePeriod)

	acct := testAccount()
	acct.Status = domain.StatusActive
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two conflicts fit inside the retry budget.
	store.conflictUpdates = 2
	if _, err := svc.RequestDeactivation(context.Background(), acct.ID); err != nil {
		t.Fatalf("expected retry to absorb two conflicts: %v", err)
	}

	// Three consecutive conflicts exhaust it.
	store.conflictUpdates = 3
	_, err := svc.CancelDeactivation(context.Background(), acct.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict after retry budget", err)
	}
}
