package posting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/domain/claims"
)

const testTolerance = 0.011

// -- Mocks --

type mockLedger struct {
	lines map[uuid.UUID]*ServiceLineTotals
}

func newMockLedger() *mockLedger {
	return &mockLedger{lines: make(map[uuid.UUID]*ServiceLineTotals)}
}

func (m *mockLedger) addLine(claimID uuid.UUID, charges float64) uuid.UUID {
	id := uuid.New()
	m.lines[id] = &ServiceLineTotals{
		LineID:      id,
		LineGUID:    uuid.New(),
		ClaimID:     claimID,
		Charges:     charges,
		Adjustments: make(map[AdjustmentGroup]float64),
	}
	return id
}

func (m *mockLedger) GetTotals(_ context.Context, lineID uuid.UUID) (*ServiceLineTotals, error) {
	t, ok := m.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *t
	cp.Adjustments = make(map[AdjustmentGroup]float64, len(t.Adjustments))
	for k, v := range t.Adjustments {
		cp.Adjustments[k] = v
	}
	return &cp, nil
}

func (m *mockLedger) ListTotalsByClaim(_ context.Context, claimID uuid.UUID) ([]*ServiceLineTotals, error) {
	var out []*ServiceLineTotals
	for _, t := range m.lines {
		if t.ClaimID == claimID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockLedger) AddInsPaid(_ context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error) {
	t, ok := m.lines[lineID]
	if !ok {
		return uuid.Nil, fmt.Errorf("not found")
	}
	t.InsPaid += amount
	return t.ClaimID, nil
}

func (m *mockLedger) AddPatPaid(_ context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error) {
	t, ok := m.lines[lineID]
	if !ok {
		return uuid.Nil, fmt.Errorf("not found")
	}
	t.PatPaid += amount
	return t.ClaimID, nil
}

func (m *mockLedger) AddAdjustment(_ context.Context, lineID uuid.UUID, group AdjustmentGroup, amount float64) (uuid.UUID, error) {
	t, ok := m.lines[lineID]
	if !ok {
		return uuid.Nil, fmt.Errorf("not found")
	}
	t.Adjustments[group] += amount
	return t.ClaimID, nil
}

type mockAdjustments struct {
	posted []*Adjustment
}

func (m *mockAdjustments) Post(_ context.Context, a *Adjustment) error {
	a.ID = uuid.New()
	m.posted = append(m.posted, a)
	return nil
}

func (m *mockAdjustments) ListByPayment(_ context.Context, paymentID, claimID uuid.UUID) ([]*Adjustment, error) {
	var out []*Adjustment
	for _, a := range m.posted {
		if a.PaymentID == paymentID && a.ClaimID == claimID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockDisbursements struct {
	recorded []*Disbursement
}

func (m *mockDisbursements) Record(_ context.Context, d *Disbursement) error {
	d.ID = uuid.New()
	m.recorded = append(m.recorded, d)
	return nil
}

func (m *mockDisbursements) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]*Disbursement, error) {
	var out []*Disbursement
	for _, d := range m.recorded {
		if d.PaymentID == paymentID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockPayments struct {
	items map[uuid.UUID]*Payment
}

func newMockPayments() *mockPayments {
	return &mockPayments{items: make(map[uuid.UUID]*Payment)}
}

func (m *mockPayments) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.items[p.ID] = p
	return nil
}

func (m *mockPayments) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPayments) List(_ context.Context, limit, offset int) ([]*Payment, int, error) {
	var out []*Payment
	for _, p := range m.items {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPayments) SetDisbursed(_ context.Context, id uuid.UUID, amount float64) error {
	p, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.Disbursed = amount
	return nil
}

func (m *mockPayments) Exists(_ context.Context, amount float64, reference string) (bool, error) {
	for _, p := range m.items {
		if p.Amount == amount && p.Reference != nil && *p.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

type mockStore struct {
	claims     map[uuid.UUID]*claims.Claim
	totals     map[uuid.UUID]*ClaimTotals
	notes      []string
	dropWrites bool
}

func newMockStore() *mockStore {
	return &mockStore{
		claims: make(map[uuid.UUID]*claims.Claim),
		totals: make(map[uuid.UUID]*ClaimTotals),
	}
}

func (m *mockStore) addClaim(c *claims.Claim) *claims.Claim {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.claims[c.ID] = c
	m.totals[c.ID] = &ClaimTotals{ClaimID: c.ID, TotalCharge: c.TotalCharge}
	return c
}

func (m *mockStore) GetClaim(_ context.Context, id uuid.UUID) (*claims.Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockStore) CreateClaim(_ context.Context, c *claims.Claim) error {
	c.ID = uuid.New()
	m.claims[c.ID] = c
	m.totals[c.ID] = &ClaimTotals{ClaimID: c.ID, TotalCharge: c.TotalCharge}
	return nil
}

func (m *mockStore) HasSecondaryClaim(_ context.Context, primaryID uuid.UUID) (bool, error) {
	for _, c := range m.claims {
		if c.PrimaryClaimID != nil && *c.PrimaryClaimID == primaryID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ReadTotals(_ context.Context, claimID uuid.UUID) (*ClaimTotals, error) {
	t, ok := m.totals[claimID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockStore) WriteTotals(_ context.Context, t *ClaimTotals) error {
	if m.dropWrites {
		return nil
	}
	m.totals[t.ClaimID] = t
	return nil
}

func (m *mockStore) AppendNote(_ context.Context, claimID uuid.UUID, note, author string) error {
	m.notes = append(m.notes, note)
	return nil
}

type mockRules struct {
	forwardable map[string]bool
	lookups     int
}

func (m *mockRules) IsForwardable(_ context.Context, group AdjustmentGroup, reasonCode string) (bool, error) {
	m.lookups++
	return m.forwardable[string(group)+":"+reasonCode], nil
}

// passTx runs the function directly; mock repositories have no transaction
// support, so tests assert on returned errors instead of rollback effects.
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	ledger        *mockLedger
	adjustments   *mockAdjustments
	disbursements *mockDisbursements
	payments      *mockPayments
	store         *mockStore
	rules         *mockRules
	engine        *Engine
}

func newFixture() *fixture {
	f := &fixture{
		ledger:        newMockLedger(),
		adjustments:   &mockAdjustments{},
		disbursements: &mockDisbursements{},
		payments:      newMockPayments(),
		store:         newMockStore(),
		rules:         &mockRules{forwardable: make(map[string]bool)},
	}
	secondary := NewSecondaryEvaluator(f.store, f.adjustments, f.rules, zerolog.Nop(), testTolerance)
	f.engine = NewEngine(EngineConfig{
		Ledger:        f.ledger,
		Adjustments:   f.adjustments,
		Disbursements: f.disbursements,
		Payments:      f.payments,
		Store:         f.store,
		Secondary:     secondary,
		Tx:            passTx{},
		Logger:        zerolog.Nop(),
		Tolerance:     testTolerance,
	})
	return f
}

func strptr(s string) *string { return &s }

// -- Tests --

func TestApplyPaymentSplitsAcrossLines(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID, Status: claims.StatusBilled})
	line1 := f.ledger.addLine(claim.ID, 100)
	line2 := f.ledger.addLine(claim.ID, 50)

	co45 := strptr("45")
	result, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source:    SourcePayer,
		PayerID:   &payerID,
		Amount:    110,
		Date:      time.Now(),
		Reference: strptr("CHK100"),
		Lines: []LineApplication{
			{ServiceLineID: line1, Amount: 80, Adjustments: []AdjustmentEntry{
				{Group: GroupCO, ReasonCode: co45, Amount: 20, ReasonAmount: 20},
			}},
			{ServiceLineID: line2, Amount: 30},
		},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}

	if len(result.ClaimIDs) != 1 || result.ClaimIDs[0] != claim.ID {
		t.Fatalf("claim ids = %v", result.ClaimIDs)
	}

	l1 := f.ledger.lines[line1]
	if l1.InsPaid != 80 || l1.Adjustments[GroupCO] != 20 {
		t.Errorf("line1 ins_paid=%v co=%v, want 80/20", l1.InsPaid, l1.Adjustments[GroupCO])
	}
	l2 := f.ledger.lines[line2]
	if l2.InsPaid != 30 {
		t.Errorf("line2 ins_paid=%v, want 30", l2.InsPaid)
	}

	totals := f.store.totals[claim.ID]
	if totals.TotalCharge != 150 || totals.InsPaid != 110 || totals.AdjCO != 20 {
		t.Errorf("claim totals = %+v", totals)
	}
	if got := totals.Balance(); got != 20 {
		t.Errorf("balance = %v, want 20", got)
	}

	payment := f.payments.items[result.PaymentID]
	if payment.Disbursed != 110 {
		t.Errorf("disbursed = %v, want 110", payment.Disbursed)
	}
	if len(f.disbursements.recorded) != 2 {
		t.Errorf("disbursement rows = %d, want 2", len(f.disbursements.recorded))
	}
	if len(f.store.notes) != 1 || f.store.notes[0] != "Payment Applied" {
		t.Errorf("notes = %v", f.store.notes)
	}
}

func TestApplyPaymentDuplicateRejected(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 100)

	cmd := &ApplyCommand{
		Source:    SourcePayer,
		PayerID:   &payerID,
		Amount:    50,
		Date:      time.Now(),
		Reference: strptr("CHK200"),
		Lines:     []LineApplication{{ServiceLineID: line, Amount: 50}},
	}
	if _, err := f.engine.ApplyPayment(context.Background(), cmd); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	_, err := f.engine.ApplyPayment(context.Background(), cmd)
	if !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("err = %v, want ErrDuplicatePayment", err)
	}
	if f.ledger.lines[line].InsPaid != 50 {
		t.Errorf("duplicate posted: ins_paid = %v, want 50", f.ledger.lines[line].InsPaid)
	}
	if len(f.payments.items) != 1 {
		t.Errorf("payments = %d, want 1", len(f.payments.items))
	}
}

func TestApplyPaymentSameReferenceDifferentAmountAllowed(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 100)

	first := &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 40, Date: time.Now(),
		Reference: strptr("CHK300"),
		Lines:     []LineApplication{{ServiceLineID: line, Amount: 40}},
	}
	if _, err := f.engine.ApplyPayment(context.Background(), first); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	second := &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 35, Date: time.Now(),
		Reference: strptr("CHK300"),
		Lines:     []LineApplication{{ServiceLineID: line, Amount: 35}},
	}
	if _, err := f.engine.ApplyPayment(context.Background(), second); err != nil {
		t.Fatalf("second apply with different amount: %v", err)
	}
}

func TestApplyPaymentOverpaymentRejected(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 100)

	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 120, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 120}},
	})
	var overErr *OverpaymentError
	if !errors.As(err, &overErr) {
		t.Fatalf("err = %v, want OverpaymentError", err)
	}
	if overErr.Attempted != 120 || overErr.Remaining != 100 {
		t.Errorf("attempted/remaining = %v/%v", overErr.Attempted, overErr.Remaining)
	}
	if f.ledger.lines[line].InsPaid != 0 {
		t.Error("overpayment was posted")
	}
	if len(f.payments.items) != 0 {
		t.Error("payment row created for rejected command")
	}
}

func TestApplyPaymentOneCentToleranceAccepted(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 100)

	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 100.01, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 100.01}},
	})
	if err != nil {
		t.Fatalf("one cent over should pass tolerance: %v", err)
	}
}

func TestApplyPaymentAllowOverApply(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 100)

	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 150, Date: time.Now(),
		AllowOverApply: true,
		Lines:          []LineApplication{{ServiceLineID: line, Amount: 150}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment with AllowOverApply: %v", err)
	}
	if f.ledger.lines[line].InsPaid != 150 {
		t.Errorf("ins_paid = %v, want 150", f.ledger.lines[line].InsPaid)
	}
}

func TestApplyPaymentPatientSource(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: patientID})
	line := f.ledger.addLine(claim.ID, 60)

	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePatient, PatientID: &patientID, Amount: 25, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 25}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	l := f.ledger.lines[line]
	if l.PatPaid != 25 || l.InsPaid != 0 {
		t.Errorf("pat_paid=%v ins_paid=%v, want 25/0", l.PatPaid, l.InsPaid)
	}
}

func TestApplyPaymentResolvesBillingPhysician(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	physician := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID, BillingPhysicianID: &physician})
	line := f.ledger.addLine(claim.ID, 100)

	result, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 50, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 50}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	p := f.payments.items[result.PaymentID]
	if p.BillingPhysicianID == nil || *p.BillingPhysicianID != physician {
		t.Errorf("billing physician = %v, want %v from claim", p.BillingPhysicianID, physician)
	}

	override := uuid.New()
	result, err = f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 30, Date: time.Now(),
		BillingPhysicianID: &override,
		Lines:              []LineApplication{{ServiceLineID: line, Amount: 30}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment with explicit physician: %v", err)
	}
	p = f.payments.items[result.PaymentID]
	if p.BillingPhysicianID == nil || *p.BillingPhysicianID != override {
		t.Errorf("billing physician = %v, want command override %v", p.BillingPhysicianID, override)
	}
}

func TestApplyPaymentValidation(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()

	cases := []struct {
		name string
		cmd  *ApplyCommand
	}{
		{"bad source", &ApplyCommand{Source: "insurer", Amount: 10}},
		{"payer without payer_id", &ApplyCommand{Source: SourcePayer, Amount: 10}},
		{"patient without patient_id", &ApplyCommand{Source: SourcePatient, Amount: 10}},
		{"negative amount", &ApplyCommand{Source: SourcePayer, PayerID: &payerID, Amount: -5,
			Lines: []LineApplication{{ServiceLineID: uuid.New()}}}},
		{"no lines", &ApplyCommand{Source: SourcePayer, PayerID: &payerID, Amount: 10}},
		{"bad group", &ApplyCommand{Source: SourcePayer, PayerID: &payerID, Amount: 10,
			Lines: []LineApplication{{ServiceLineID: uuid.New(), Amount: 10,
				Adjustments: []AdjustmentEntry{{Group: "XX", Amount: 5}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.ApplyPayment(context.Background(), tc.cmd); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyPaymentBundlesPRMismatch(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 200)

	// Payer reports PR 100 split across reasons 1 and 2, but each entry
	// carries the full group amount instead of its own share.
	pr1, pr2 := strptr("1"), strptr("2")
	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 100, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 100, Adjustments: []AdjustmentEntry{
			{Group: GroupPR, ReasonCode: pr1, Amount: 70, ReasonAmount: 40},
			{Group: GroupPR, ReasonCode: pr2, Amount: 30, ReasonAmount: 10},
		}}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}

	var prPosted []float64
	for _, a := range f.adjustments.posted {
		if a.Group == GroupPR {
			prPosted = append(prPosted, a.Amount)
		}
	}
	if len(prPosted) != 2 || prPosted[0] != 100 || prPosted[1] != 0 {
		t.Errorf("posted PR amounts = %v, want [100 0]", prPosted)
	}
	if f.ledger.lines[line].Adjustments[GroupPR] != 100 {
		t.Errorf("PR bucket = %v, want 100", f.ledger.lines[line].Adjustments[GroupPR])
	}
}

func TestApplyPaymentPRMatchedEntriesUntouched(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	line := f.ledger.addLine(claim.ID, 200)

	pr1, pr2 := strptr("1"), strptr("2")
	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 100, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 100, Adjustments: []AdjustmentEntry{
			{Group: GroupPR, ReasonCode: pr1, Amount: 60, ReasonAmount: 60},
			{Group: GroupPR, ReasonCode: pr2, Amount: 40, ReasonAmount: 40},
		}}},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}

	var prPosted []float64
	for _, a := range f.adjustments.posted {
		if a.Group == GroupPR {
			prPosted = append(prPosted, a.Amount)
		}
	}
	if len(prPosted) != 2 || prPosted[0] != 60 || prPosted[1] != 40 {
		t.Errorf("posted PR amounts = %v, want [60 40]", prPosted)
	}
}

func TestApplyPaymentReconcileFailureAborts(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID, TotalCharge: 100})
	line := f.ledger.addLine(claim.ID, 100)

	// Totals writes silently vanish, so the stored rollup disagrees with
	// the lines and verification must abort the posting.
	f.store.dropWrites = true

	_, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 80, Date: time.Now(),
		Lines: []LineApplication{{ServiceLineID: line, Amount: 80}},
	})
	var recErr *ReconcileError
	if !errors.As(err, &recErr) {
		t.Fatalf("err = %v, want ReconcileError", err)
	}
	if recErr.ClaimID != claim.ID {
		t.Errorf("claim id = %v, want %v", recErr.ClaimID, claim.ID)
	}
}

func TestApplyPaymentMultipleClaims(t *testing.T) {
	f := newFixture()
	payerID := uuid.New()
	claimA := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	claimB := f.store.addClaim(&claims.Claim{PatientID: uuid.New(), PayerID: &payerID})
	lineA := f.ledger.addLine(claimA.ID, 100)
	lineB := f.ledger.addLine(claimB.ID, 100)

	result, err := f.engine.ApplyPayment(context.Background(), &ApplyCommand{
		Source: SourcePayer, PayerID: &payerID, Amount: 90, Date: time.Now(),
		Lines: []LineApplication{
			{ServiceLineID: lineA, Amount: 50},
			{ServiceLineID: lineB, Amount: 40},
		},
	})
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if len(result.ClaimIDs) != 2 {
		t.Fatalf("claim ids = %v, want 2 claims", result.ClaimIDs)
	}
	if f.store.totals[claimA.ID].InsPaid != 50 || f.store.totals[claimB.ID].InsPaid != 40 {
		t.Error("totals not recomputed per claim")
	}
}

func TestRecomputeClaim(t *testing.T) {
	f := newFixture()
	claim := f.store.addClaim(&claims.Claim{PatientID: uuid.New()})
	f.ledger.addLine(claim.ID, 75)
	f.ledger.addLine(claim.ID, 25)

	if err := f.engine.RecomputeClaim(context.Background(), claim.ID); err != nil {
		t.Fatalf("RecomputeClaim: %v", err)
	}
	if got := f.store.totals[claim.ID].TotalCharge; got != 100 {
		t.Errorf("total charge = %v, want 100", got)
	}
}
