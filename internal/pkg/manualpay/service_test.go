package manualpay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

type fakeRepo struct {
	plans    map[uint]*models.PlanType
	payments map[uint]*models.ManualPayment
	grants   map[[2]interface{}]*models.EntitlementGrant
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:    make(map[uint]*models.PlanType),
		payments: make(map[uint]*models.ManualPayment),
		grants:   make(map[[2]interface{}]*models.EntitlementGrant),
	}
}

func (f *fakeRepo) Transaction(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetPlanType(id uint) (*models.PlanType, error) {
	plan, ok := f.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *plan
	return &copied, nil
}

func (f *fakeRepo) GetManualPayment(id uint) (*models.ManualPayment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepo) HasPendingDuplicate(userID, planTypeID uint, reference string) (bool, error) {
	for _, p := range f.payments {
		if p.UserID == userID && p.PlanTypeID == planTypeID && p.Reference == reference && p.Status == models.ManualPaymentPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateManualPayment(p *models.ManualPayment) error {
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	copied := *p
	f.payments[p.ID] = &copied
	return nil
}

func (f *fakeRepo) TransitionStatus(id uint, from, to string, reviewedBy uint, reviewedAt time.Time) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.ReviewedBy = reviewedBy
	at := reviewedAt
	p.ReviewedAt = &at
	return true, nil
}

func (f *fakeRepo) CreateGrantIfNotExists(g *models.EntitlementGrant) (bool, error) {
	key := [2]interface{}{g.Source, g.SourceID}
	if _, ok := f.grants[key]; ok {
		return false, nil
	}
	f.nextID++
	g.ID = f.nextID
	copied := *g
	f.grants[key] = &copied
	return true, nil
}

func (f *fakeRepo) ListByUser(userID uint, offset, limit int) ([]models.ManualPayment, error) {
	var out []models.ManualPayment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByStatus(status string, offset, limit int) ([]models.ManualPayment, error) {
	var out []models.ManualPayment
	for _, p := range f.payments {
		if p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListApprovedWithoutGrant() ([]models.ManualPayment, error) {
	var out []models.ManualPayment
	for _, p := range f.payments {
		if p.Status != models.ManualPaymentApproved {
			continue
		}
		if _, ok := f.grants[[2]interface{}{models.GrantSourceManual, p.ID}]; !ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newTestService(repo Repository, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func seedMonthPlan(repo *fakeRepo) uint {
	repo.plans[1] = &models.PlanType{ID: 1, Code: "pro_mensual", Name: "Pro Mensual", PriceBs: 36000, Period: models.PlanPeriodMonth, IsActive: true}
	return 1
}

func TestSubmitValidates(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	svc := newTestService(repo, time.Now())

	tests := []struct {
		name string
		in   SubmitInput
		want error
	}{
		{name: "zero amount", in: SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 0, Reference: "REF-1"}, want: ErrInvalidAmount},
		{name: "negative amount", in: SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: -20, Reference: "REF-1"}, want: ErrInvalidAmount},
		{name: "fractional below one", in: SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 0.9, Reference: "REF-1"}, want: ErrInvalidAmount},
		{name: "empty reference", in: SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 100, Reference: "   "}, want: ErrEmptyReference},
		{name: "unknown plan", in: SubmitInput{UserID: 1, PlanTypeID: 99, AmountBs: 100, Reference: "REF-1"}, want: ErrUnknownPlan},
	}

	for _, tt := range tests {
		if _, err := svc.Submit(context.Background(), tt.in); !errors.Is(err, tt.want) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
	if len(repo.payments) != 0 {
		t.Fatal("failed validations must not persist anything")
	}
}

func TestSubmitRejectsInactivePlan(t *testing.T) {
	repo := newFakeRepo()
	repo.plans[2] = &models.PlanType{ID: 2, Code: "legacy", Name: "Legacy", PriceBs: 100, Period: models.PlanPeriodMonth, IsActive: false}
	svc := newTestService(repo, time.Now())

	_, err := svc.Submit(context.Background(), SubmitInput{UserID: 1, PlanTypeID: 2, AmountBs: 100, Reference: "REF-1"})
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err = %v, want %v", err, ErrUnknownPlan)
	}
}

func TestSubmitFloorsAmountAndTrimsReference(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	svc := newTestService(repo, time.Now())

	payment, err := svc.Submit(context.Background(), SubmitInput{
		UserID:     1,
		PlanTypeID: planID,
		AmountBs:   36000.99,
		Reference:  "  REF-42  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.AmountBs != 36000 {
		t.Fatalf("amount = %d, want floor 36000", payment.AmountBs)
	}
	if payment.Reference != "REF-42" {
		t.Fatalf("reference = %q, want trimmed %q", payment.Reference, "REF-42")
	}
	if payment.Status != models.ManualPaymentPending {
		t.Fatalf("status = %q, want PENDING", payment.Status)
	}
	if len(repo.grants) != 0 {
		t.Fatal("submission must not create a grant")
	}
}

func TestSubmitDuplicateGuard(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	svc := newTestService(repo, time.Now())

	in := SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 100, Reference: "REF-7"}
	if _, err := svc.Submit(context.Background(), in); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("second submit err = %v, want %v", err, ErrDuplicateSubmission)
	}

	// A different user may reuse the same reference.
	other := in
	other.UserID = 2
	if _, err := svc.Submit(context.Background(), other); err != nil {
		t.Fatalf("other user submit: %v", err)
	}
}

func TestApproveCreatesMonthWindowGrant(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	reviewedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo, reviewedAt)

	payment, err := svc.Submit(context.Background(), SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 100, Reference: "REF-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	approved, transitioned, err := svc.Approve(context.Background(), payment.ID, 99)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !transitioned {
		t.Fatal("first approve must perform the transition")
	}
	if approved.Status != models.ManualPaymentApproved || approved.ReviewedBy != 99 {
		t.Fatalf("unexpected approved state: %+v", approved)
	}

	grant := repo.grants[[2]interface{}{models.GrantSourceManual, payment.ID}]
	if grant == nil {
		t.Fatal("expected a MANUAL grant tied to the payment")
	}
	wantUntil := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !grant.ValidFrom.Equal(reviewedAt) || !grant.ValidUntil.Equal(wantUntil) {
		t.Fatalf("grant window [%v, %v], want [%v, %v]", grant.ValidFrom, grant.ValidUntil, reviewedAt, wantUntil)
	}
}

func TestApproveIdempotent(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	svc := newTestService(repo, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	payment, err := svc.Submit(context.Background(), SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 100, Reference: "REF-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, _, err := svc.Approve(context.Background(), payment.ID, 99); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	second, transitioned, err := svc.Approve(context.Background(), payment.ID, 100)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if transitioned {
		t.Fatal("second approve must be a no-op")
	}
	if second.Status != models.ManualPaymentApproved || second.ReviewedBy != 99 {
		t.Fatalf("retry must report the original terminal state, got %+v", second)
	}
	if len(repo.grants) != 1 {
		t.Fatalf("got %d grants, want exactly 1", len(repo.grants))
	}
}

func TestRejectNeverGrants(t *testing.T) {
	repo := newFakeRepo()
	planID := seedMonthPlan(repo)
	svc := newTestService(repo, time.Now())

	payment, err := svc.Submit(context.Background(), SubmitInput{UserID: 1, PlanTypeID: planID, AmountBs: 100, Reference: "REF-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, transitioned, err := svc.Reject(context.Background(), payment.ID, 99)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !transitioned || rejected.Status != models.ManualPaymentRejected {
		t.Fatalf("unexpected rejected state: transitioned=%v %+v", transitioned, rejected)
	}
	if len(repo.grants) != 0 {
		t.Fatal("rejection must never create a grant")
	}

	// A later approve attempt observes the terminal state and changes nothing.
	after, transitioned, err := svc.Approve(context.Background(), payment.ID, 100)
	if err != nil {
		t.Fatalf("approve after reject: %v", err)
	}
	if transitioned || after.Status != models.ManualPaymentRejected {
		t.Fatalf("terminal payment mutated: transitioned=%v status=%q", transitioned, after.Status)
	}
	if len(repo.grants) != 0 {
		t.Fatal("approve after reject must not create a grant")
	}
}

func TestApproveUnknownPayment(t *testing.T) {
	svc := newTestService(newFakeRepo(), time.Now())
	if _, _, err := svc.Approve(context.Background(), 42, 99); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrPaymentNotFound)
	}
}

func TestReconcileMissingGrants(t *testing.T) {
	repo := newFakeRepo()
	seedMonthPlan(repo)
	reviewedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// An approved payment whose grant write was lost in a crash.
	repo.payments[5] = &models.ManualPayment{
		ID: 5, UserID: 1, PlanTypeID: 1, AmountBs: 100, Reference: "REF-5",
		Status: models.ManualPaymentApproved, ReviewedBy: 99, ReviewedAt: &reviewedAt,
	}
	// A healthy approved payment that already has its grant.
	repo.payments[6] = &models.ManualPayment{
		ID: 6, UserID: 2, PlanTypeID: 1, AmountBs: 100, Reference: "REF-6",
		Status: models.ManualPaymentApproved, ReviewedBy: 99, ReviewedAt: &reviewedAt,
	}
	repo.grants[[2]interface{}{models.GrantSourceManual, uint(6)}] = &models.EntitlementGrant{
		ID: 1, UserID: 2, Source: models.GrantSourceManual, SourceID: 6,
		ValidFrom: reviewedAt, ValidUntil: reviewedAt.AddDate(0, 1, 0),
	}

	svc := newTestService(repo, time.Now())
	created, healedUsers, err := svc.ReconcileMissingGrants(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	// Only the healed user is reported, so callers invalidate exactly the
	// cached answers that changed.
	if len(healedUsers) != 1 || healedUsers[0] != 1 {
		t.Fatalf("healed users = %v, want [1]", healedUsers)
	}

	grant := repo.grants[[2]interface{}{models.GrantSourceManual, uint(5)}]
	if grant == nil {
		t.Fatal("expected the missing grant to be recreated")
	}
	if !grant.ValidFrom.Equal(reviewedAt) {
		t.Fatalf("recovered grant valid_from = %v, want the original review time %v", grant.ValidFrom, reviewedAt)
	}

	// Running again finds nothing to heal.
	created, healedUsers, err = svc.ReconcileMissingGrants(context.Background())
	if err != nil || created != 0 || len(healedUsers) != 0 {
		t.Fatalf("second reconcile: created=%d healed=%v err=%v", created, healedUsers, err)
	}
}
