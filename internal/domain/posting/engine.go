package posting

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/platform/db"
)

// TxRunner runs fn inside a single database transaction. Repositories called
// from fn pick the transaction up from the context.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgTxRunner struct{ pool *pgxpool.Pool }

// NewPgTxRunner returns a TxRunner backed by the connection pool.
func NewPgTxRunner(pool *pgxpool.Pool) TxRunner { return &pgTxRunner{pool: pool} }

func (r *pgTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

// Engine applies payments to service lines and keeps claim totals
// consistent. Every posting runs its writes inside one transaction and is
// verified by the reconciler before commit; a verification failure rolls the
// whole posting back.
type Engine struct {
	ledger        ServiceLineLedger
	adjustments   AdjustmentPoster
	disbursements DisbursementRecorder
	payments      PaymentRepository
	store         ClaimStore
	secondary     *SecondaryEvaluator
	reconciler    *Reconciler
	tx            TxRunner
	log           zerolog.Logger
	tolerance     float64
	allowOver     bool
}

type EngineConfig struct {
	Ledger        ServiceLineLedger
	Adjustments   AdjustmentPoster
	Disbursements DisbursementRecorder
	Payments      PaymentRepository
	Store         ClaimStore
	Secondary     *SecondaryEvaluator
	Tx            TxRunner
	Logger        zerolog.Logger
	Tolerance     float64
	// AllowOverApply makes every posting skip the overpayment pre-check,
	// regardless of the per-command flag.
	AllowOverApply bool
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		ledger:        cfg.Ledger,
		adjustments:   cfg.Adjustments,
		disbursements: cfg.Disbursements,
		payments:      cfg.Payments,
		store:         cfg.Store,
		secondary:     cfg.Secondary,
		reconciler:    NewReconciler(cfg.Ledger, cfg.Store, cfg.Tolerance),
		tx:            cfg.Tx,
		log:           cfg.Logger,
		tolerance:     cfg.Tolerance,
		allowOver:     cfg.AllowOverApply,
	}
}

// ApplyPayment posts one payment across its target service lines. The
// sequence is: duplicate check, validation, overpayment pre-check, PR
// normalization, then a single transaction covering payment creation,
// per-line posting, claim totals recompute and reconciliation. Secondary
// claim evaluation runs after the transaction commits.
func (e *Engine) ApplyPayment(ctx context.Context, cmd *ApplyCommand) (*ApplyResult, error) {
	if cmd.Reference != nil && *cmd.Reference != "" {
		exists, err := e.payments.Exists(ctx, cmd.Amount, *cmd.Reference)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			return nil, ErrDuplicatePayment
		}
	}

	if err := e.validate(cmd); err != nil {
		return nil, err
	}
	if e.allowOver {
		cmd.AllowOverApply = true
	}

	if err := e.precheck(ctx, cmd); err != nil {
		return nil, err
	}

	normalizePRBundles(cmd, e.tolerance, e.log)

	physician, err := e.resolvePhysician(ctx, cmd)
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		Source:             cmd.Source,
		PayerID:            cmd.PayerID,
		PatientID:          cmd.PatientID,
		BillingPhysicianID: physician,
		Amount:             cmd.Amount,
		Date:               cmd.Date,
		Method:             cmd.Method,
		Reference:          cmd.Reference,
	}

	var claimIDs []uuid.UUID
	err = e.tx.InTx(ctx, func(ctx context.Context) error {
		if err := e.payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		touched := make(map[uuid.UUID]bool)
		var disbursed float64
		for _, line := range cmd.Lines {
			claimID, err := e.applyLine(ctx, payment, cmd.Source, line)
			if err != nil {
				return err
			}
			touched[claimID] = true
			disbursed += line.Amount
		}

		for claimID := range touched {
			if err := e.recomputeClaim(ctx, claimID); err != nil {
				return err
			}
			claimIDs = append(claimIDs, claimID)
		}

		for _, claimID := range claimIDs {
			if err := e.reconciler.Verify(ctx, claimID); err != nil {
				return err
			}
		}

		if err := e.payments.SetDisbursed(ctx, payment.ID, disbursed); err != nil {
			return fmt.Errorf("set disbursed: %w", err)
		}

		for _, claimID := range claimIDs {
			if err := e.store.AppendNote(ctx, claimID, "Payment Applied", "posting-engine"); err != nil {
				e.log.Warn().Err(err).Str("claim_id", claimID.String()).Msg("audit note append failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{PaymentID: payment.ID, ClaimIDs: claimIDs}

	if cmd.Source == SourcePayer && e.secondary != nil {
		for _, claimID := range claimIDs {
			res, err := e.secondary.Evaluate(ctx, claimID, payment.ID)
			if err != nil {
				e.log.Error().Err(err).Str("claim_id", claimID.String()).Msg("secondary evaluation failed")
				continue
			}
			e.log.Info().
				Str("claim_id", claimID.String()).
				Str("reason", string(res.Reason)).
				Bool("triggered", res.Triggered).
				Msg("secondary evaluation")
			result.Secondary = append(result.Secondary, res)
		}
	}

	return result, nil
}

func (e *Engine) validate(cmd *ApplyCommand) error {
	switch cmd.Source {
	case SourcePayer:
		if cmd.PayerID == nil {
			return fmt.Errorf("payer_id is required for payer payments")
		}
	case SourcePatient:
		if cmd.PatientID == nil {
			return fmt.Errorf("patient_id is required for patient payments")
		}
	default:
		return fmt.Errorf("invalid payment source: %q", cmd.Source)
	}
	if cmd.Amount < 0 {
		return fmt.Errorf("payment amount must not be negative")
	}
	if len(cmd.Lines) == 0 {
		return fmt.Errorf("at least one line application is required")
	}
	for _, line := range cmd.Lines {
		if line.ServiceLineID == uuid.Nil {
			return fmt.Errorf("service_line_id is required")
		}
		for _, adj := range line.Adjustments {
			if !adj.Group.Valid() {
				return fmt.Errorf("invalid adjustment group: %q", adj.Group)
			}
		}
	}
	return nil
}

// precheck loads each target line's totals and rejects the command when any
// line would be driven past its remaining balance. Nothing has been written
// yet when this fails.
func (e *Engine) precheck(ctx context.Context, cmd *ApplyCommand) error {
	for _, line := range cmd.Lines {
		t, err := e.ledger.GetTotals(ctx, line.ServiceLineID)
		if err != nil {
			return fmt.Errorf("load service line %s: %w", line.ServiceLineID, err)
		}

		if cmd.AllowOverApply {
			continue
		}
		applied := line.Amount
		for _, adj := range line.Adjustments {
			applied += adj.Amount
		}
		remaining := t.Remaining()
		if applied > remaining+e.tolerance {
			return &OverpaymentError{
				ServiceLineID: line.ServiceLineID,
				Attempted:     applied,
				Remaining:     remaining,
			}
		}
	}
	return nil
}

// resolvePhysician takes the billing physician from the command, falling
// back to the first targeted claim's physician.
func (e *Engine) resolvePhysician(ctx context.Context, cmd *ApplyCommand) (*uuid.UUID, error) {
	if cmd.BillingPhysicianID != nil {
		return cmd.BillingPhysicianID, nil
	}
	t, err := e.ledger.GetTotals(ctx, cmd.Lines[0].ServiceLineID)
	if err != nil {
		return nil, fmt.Errorf("load service line %s: %w", cmd.Lines[0].ServiceLineID, err)
	}
	claim, err := e.store.GetClaim(ctx, t.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", t.ClaimID, err)
	}
	return claim.BillingPhysicianID, nil
}

// normalizePRBundles collapses multi-entry patient responsibility groups
// whose per-reason amounts do not sum to the group amount. Payers sometimes
// report a single PR amount alongside several reason codes; posting each
// reason's amount would double count, so the full group amount lands on the
// first PR entry and the rest post as zero.
func normalizePRBundles(cmd *ApplyCommand, tolerance float64, log zerolog.Logger) {
	for i := range cmd.Lines {
		line := &cmd.Lines[i]
		var prIdx []int
		for j, adj := range line.Adjustments {
			if adj.Group == GroupPR {
				prIdx = append(prIdx, j)
			}
		}
		if len(prIdx) < 2 {
			continue
		}

		mismatch := false
		var groupTotal float64
		for _, j := range prIdx {
			adj := line.Adjustments[j]
			groupTotal += adj.Amount
			if math.Abs(adj.Amount-adj.ReasonAmount) > tolerance {
				mismatch = true
			}
		}
		if !mismatch {
			continue
		}

		log.Warn().
			Str("service_line_id", line.ServiceLineID.String()).
			Float64("group_total", groupTotal).
			Int("entries", len(prIdx)).
			Msg("bundled PR adjustment amounts disagree with reason amounts, posting group total on first entry")

		for n, j := range prIdx {
			if n == 0 {
				line.Adjustments[j].Amount = groupTotal
			} else {
				line.Adjustments[j].Amount = 0
			}
		}
	}
}

func (e *Engine) applyLine(ctx context.Context, payment *Payment, source string, line LineApplication) (uuid.UUID, error) {
	var claimID uuid.UUID
	var err error
	switch source {
	case SourcePayer:
		claimID, err = e.ledger.AddInsPaid(ctx, line.ServiceLineID, line.Amount)
	case SourcePatient:
		claimID, err = e.ledger.AddPatPaid(ctx, line.ServiceLineID, line.Amount)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("apply payment to line %s: %w", line.ServiceLineID, err)
	}

	for _, adj := range line.Adjustments {
		if _, err := e.ledger.AddAdjustment(ctx, line.ServiceLineID, adj.Group, adj.Amount); err != nil {
			return uuid.Nil, fmt.Errorf("apply adjustment to line %s: %w", line.ServiceLineID, err)
		}
		if err := e.adjustments.Post(ctx, &Adjustment{
			PaymentID:     payment.ID,
			ClaimID:       claimID,
			ServiceLineID: line.ServiceLineID,
			Group:         adj.Group,
			ReasonCode:    adj.ReasonCode,
			Amount:        adj.Amount,
		}); err != nil {
			return uuid.Nil, fmt.Errorf("post adjustment for line %s: %w", line.ServiceLineID, err)
		}
	}

	if err := e.disbursements.Record(ctx, &Disbursement{
		PaymentID:     payment.ID,
		ServiceLineID: line.ServiceLineID,
		Amount:        line.Amount,
	}); err != nil {
		return uuid.Nil, fmt.Errorf("record disbursement for line %s: %w", line.ServiceLineID, err)
	}

	return claimID, nil
}

func (e *Engine) recomputeClaim(ctx context.Context, claimID uuid.UUID) error {
	lines, err := e.ledger.ListTotalsByClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("list lines for claim %s: %w", claimID, err)
	}
	if err := e.store.WriteTotals(ctx, CalculateClaimTotals(claimID, lines)); err != nil {
		return fmt.Errorf("write totals for claim %s: %w", claimID, err)
	}
	return nil
}

// RecomputeClaim recalculates and persists one claim's totals from its
// service lines. CRUD callers use this after line edits.
func (e *Engine) RecomputeClaim(ctx context.Context, claimID uuid.UUID) error {
	return e.tx.InTx(ctx, func(ctx context.Context) error {
		return e.recomputeClaim(ctx, claimID)
	})
}
