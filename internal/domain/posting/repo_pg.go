package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/domain/claims"
	"github.com/medledger/medledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// adjustment group -> service_line bucket column. Fixed set, never built
// from user input.
var adjColumns = map[AdjustmentGroup]string{
	GroupCO: "adj_co",
	GroupCR: "adj_cr",
	GroupOA: "adj_oa",
	GroupPI: "adj_pi",
	GroupPR: "adj_pr",
}

// =========== Service Line Ledger ===========

type lineLedgerPG struct{ pool *pgxpool.Pool }

func NewLineLedgerPG(pool *pgxpool.Pool) ServiceLineLedger { return &lineLedgerPG{pool: pool} }

const ledgerCols = `id, line_guid, claim_id, charges, total_ins_paid, total_pat_paid,
	adj_co, adj_cr, adj_oa, adj_pi, adj_pr`

func scanTotals(row pgx.Row) (*ServiceLineTotals, error) {
	var t ServiceLineTotals
	var co, cr, oa, pi, pr float64
	err := row.Scan(&t.LineID, &t.LineGUID, &t.ClaimID, &t.Charges, &t.InsPaid, &t.PatPaid,
		&co, &cr, &oa, &pi, &pr)
	if err != nil {
		return nil, err
	}
	t.Adjustments = map[AdjustmentGroup]float64{
		GroupCO: co, GroupCR: cr, GroupOA: oa, GroupPI: pi, GroupPR: pr,
	}
	return &t, nil
}

func (r *lineLedgerPG) GetTotals(ctx context.Context, lineID uuid.UUID) (*ServiceLineTotals, error) {
	return scanTotals(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ledgerCols+` FROM service_line WHERE id = $1`, lineID))
}

func (r *lineLedgerPG) ListTotalsByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceLineTotals, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+ledgerCols+` FROM service_line WHERE claim_id = $1 ORDER BY created_at`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ServiceLineTotals
	for rows.Next() {
		t, err := scanTotals(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *lineLedgerPG) AddInsPaid(ctx context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error) {
	var claimID uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_line SET total_ins_paid = total_ins_paid + $2, updated_at = NOW()
		WHERE id = $1 RETURNING claim_id`, lineID, amount).Scan(&claimID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("service line %s not found", lineID)
	}
	return claimID, err
}

func (r *lineLedgerPG) AddPatPaid(ctx context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error) {
	var claimID uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_line SET total_pat_paid = total_pat_paid + $2, updated_at = NOW()
		WHERE id = $1 RETURNING claim_id`, lineID, amount).Scan(&claimID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("service line %s not found", lineID)
	}
	return claimID, err
}

func (r *lineLedgerPG) AddAdjustment(ctx context.Context, lineID uuid.UUID, group AdjustmentGroup, amount float64) (uuid.UUID, error) {
	col, ok := adjColumns[group]
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid adjustment group: %s", group)
	}
	var claimID uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_line SET `+col+` = `+col+` + $2, updated_at = NOW()
		WHERE id = $1 RETURNING claim_id`, lineID, amount).Scan(&claimID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("service line %s not found", lineID)
	}
	return claimID, err
}

// =========== Adjustment Poster ===========

type adjustmentRepoPG struct{ pool *pgxpool.Pool }

func NewAdjustmentRepoPG(pool *pgxpool.Pool) AdjustmentPoster { return &adjustmentRepoPG{pool: pool} }

func (r *adjustmentRepoPG) Post(ctx context.Context, a *Adjustment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO adjustment (id, payment_id, claim_id, service_line_id, group_code, reason_code, amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.PaymentID, a.ClaimID, a.ServiceLineID, a.Group, a.ReasonCode, a.Amount)
	return err
}

func (r *adjustmentRepoPG) ListByPayment(ctx context.Context, paymentID, claimID uuid.UUID) ([]*Adjustment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, payment_id, claim_id, service_line_id, group_code, reason_code, amount, created_at
		FROM adjustment WHERE payment_id = $1 AND claim_id = $2 ORDER BY created_at`,
		paymentID, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.ClaimID, &a.ServiceLineID,
			&a.Group, &a.ReasonCode, &a.Amount, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// =========== Disbursement Recorder ===========

type disbursementRepoPG struct{ pool *pgxpool.Pool }

func NewDisbursementRepoPG(pool *pgxpool.Pool) DisbursementRecorder {
	return &disbursementRepoPG{pool: pool}
}

func (r *disbursementRepoPG) Record(ctx context.Context, d *Disbursement) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO disbursement (id, payment_id, service_line_id, amount)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.PaymentID, d.ServiceLineID, d.Amount)
	return err
}

func (r *disbursementRepoPG) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Disbursement, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, payment_id, service_line_id, amount, created_at
		FROM disbursement WHERE payment_id = $1 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Disbursement
	for rows.Next() {
		var d Disbursement
		if err := rows.Scan(&d.ID, &d.PaymentID, &d.ServiceLineID, &d.Amount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

const paymentCols = `id, source, payer_id, patient_id, billing_physician_id, amount, disbursed, payment_date, method, reference, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Source, &p.PayerID, &p.PatientID, &p.BillingPhysicianID,
		&p.Amount, &p.Disbursed, &p.Date, &p.Method, &p.Reference, &p.CreatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO payment (id, source, payer_id, patient_id, billing_physician_id, amount, disbursed, payment_date, method, reference)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Source, p.PayerID, p.PatientID, p.BillingPhysicianID,
		p.Amount, p.Disbursed, p.Date, p.Method, p.Reference)
	return err
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
}

func (r *paymentRepoPG) List(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM payment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payment ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *paymentRepoPG) SetDisbursed(ctx context.Context, id uuid.UUID, amount float64) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE payment SET disbursed = $2 WHERE id = $1`, id, amount)
	return err
}

func (r *paymentRepoPG) Exists(ctx context.Context, amount float64, reference string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM payment WHERE amount = $1 AND reference = $2)`,
		amount, reference).Scan(&exists)
	return exists, err
}

// =========== Claim Store ===========

type claimStorePG struct {
	pool   *pgxpool.Pool
	claims claims.ClaimRepository
	notes  claims.ClaimNoteRepository
}

func NewClaimStorePG(pool *pgxpool.Pool) ClaimStore {
	return &claimStorePG{
		pool:   pool,
		claims: claims.NewClaimRepoPG(pool),
		notes:  claims.NewClaimNoteRepoPG(pool),
	}
}

func (s *claimStorePG) GetClaim(ctx context.Context, id uuid.UUID) (*claims.Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *claimStorePG) CreateClaim(ctx context.Context, c *claims.Claim) error {
	return s.claims.Create(ctx, c)
}

func (s *claimStorePG) HasSecondaryClaim(ctx context.Context, primaryID uuid.UUID) (bool, error) {
	return s.claims.HasSecondary(ctx, primaryID)
}

func (s *claimStorePG) ReadTotals(ctx context.Context, claimID uuid.UUID) (*ClaimTotals, error) {
	var t ClaimTotals
	t.ClaimID = claimID
	err := conn(ctx, s.pool).QueryRow(ctx, `
		SELECT total_charge, total_ins_paid, total_pat_paid,
			total_adj_co, total_adj_cr, total_adj_oa, total_adj_pi, total_adj_pr
		FROM claim WHERE id = $1`, claimID).
		Scan(&t.TotalCharge, &t.InsPaid, &t.PatPaid, &t.AdjCO, &t.AdjCR, &t.AdjOA, &t.AdjPI, &t.AdjPR)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *claimStorePG) WriteTotals(ctx context.Context, t *ClaimTotals) error {
	tag, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE claim SET total_charge = $2, total_ins_paid = $3, total_pat_paid = $4,
			total_adj_co = $5, total_adj_cr = $6, total_adj_oa = $7, total_adj_pi = $8, total_adj_pr = $9,
			balance = $2 - $3 - $4 - $5 - $6 - $7 - $8 - $9,
			updated_at = NOW()
		WHERE id = $1`,
		t.ClaimID, t.TotalCharge, t.InsPaid, t.PatPaid,
		t.AdjCO, t.AdjCR, t.AdjOA, t.AdjPI, t.AdjPR)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s not found", t.ClaimID)
	}
	return nil
}

func (s *claimStorePG) AppendNote(ctx context.Context, claimID uuid.UUID, note, author string) error {
	return s.notes.Append(ctx, &claims.ClaimNote{ClaimID: claimID, Note: note, Author: author})
}

// =========== Forward Rule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) IsForwardable(ctx context.Context, group AdjustmentGroup, reasonCode string) (bool, error) {
	var forwardable bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT forwardable FROM adjustment_forward_rule WHERE group_code = $1 AND reason_code = $2`,
		group, reasonCode).Scan(&forwardable)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return forwardable, err
}

func (r *ruleRepoPG) Upsert(ctx context.Context, rule *AdjustmentForwardRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO adjustment_forward_rule (id, group_code, reason_code, forwardable)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (group_code, reason_code)
		DO UPDATE SET forwardable = EXCLUDED.forwardable, updated_at = NOW()`,
		rule.ID, rule.Group, rule.ReasonCode, rule.Forwardable)
	return err
}

func (r *ruleRepoPG) List(ctx context.Context, limit, offset int) ([]*AdjustmentForwardRule, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM adjustment_forward_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, group_code, reason_code, forwardable, created_at, updated_at
		FROM adjustment_forward_rule ORDER BY group_code, reason_code LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*AdjustmentForwardRule
	for rows.Next() {
		var rule AdjustmentForwardRule
		if err := rows.Scan(&rule.ID, &rule.Group, &rule.ReasonCode, &rule.Forwardable,
			&rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &rule)
	}
	return out, total, rows.Err()
}

// =========== Remit Resolver ===========

type remitResolverPG struct {
	pool   *pgxpool.Pool
	claims claims.ClaimRepository
}

func NewRemitResolverPG(pool *pgxpool.Pool) RemitResolver {
	return &remitResolverPG{pool: pool, claims: claims.NewClaimRepoPG(pool)}
}

func (r *remitResolverPG) ResolvePayer(ctx context.Context, payerID *uuid.UUID, name string) (uuid.UUID, error) {
	if payerID != nil {
		var id uuid.UUID
		err := conn(ctx, r.pool).QueryRow(ctx,
			`SELECT id FROM payer WHERE id = $1`, *payerID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNoPayerMatch
		}
		return id, err
	}
	if name == "" {
		return uuid.Nil, ErrNoPayerMatch
	}
	var id uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id FROM payer WHERE lower(name) = lower($1) AND active`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNoPayerMatch
	}
	return id, err
}

func (r *remitResolverPG) ResolveClaim(ctx context.Context, claimID, patientID *uuid.UUID) (*claims.Claim, error) {
	if claimID != nil {
		c, err := r.claims.GetByID(ctx, *claimID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoLineMatch
		}
		return c, err
	}
	if patientID == nil {
		return nil, ErrNoLineMatch
	}
	var id uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id FROM claim WHERE patient_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`,
		*patientID, claims.StatusOpen, claims.StatusBilled).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoLineMatch
	}
	if err != nil {
		return nil, err
	}
	return r.claims.GetByID(ctx, id)
}

func (r *remitResolverPG) ResolveLine(ctx context.Context, claimID uuid.UUID, lineGUID *uuid.UUID, procedureCode string, serviceDate time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	if lineGUID != nil {
		err := conn(ctx, r.pool).QueryRow(ctx,
			`SELECT id FROM service_line WHERE claim_id = $1 AND line_guid = $2`,
			claimID, *lineGUID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNoLineMatch
		}
		return id, err
	}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id FROM service_line
		WHERE claim_id = $1 AND procedure_code = $2 AND service_date = $3
		ORDER BY created_at LIMIT 1`,
		claimID, procedureCode, serviceDate).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNoLineMatch
	}
	return id, err
}
