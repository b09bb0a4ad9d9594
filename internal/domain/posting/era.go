package posting

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchProcessor posts an electronic remittance advice. Each claim in the
// file is applied as its own payment so one bad claim never blocks the rest
// of the check from posting.
type BatchProcessor struct {
	engine    *Engine
	resolver  RemitResolver
	log       zerolog.Logger
	tolerance float64
}

func NewBatchProcessor(engine *Engine, resolver RemitResolver, log zerolog.Logger, tolerance float64) *BatchProcessor {
	return &BatchProcessor{engine: engine, resolver: resolver, log: log, tolerance: tolerance}
}

// Process applies every claim in the remittance. Failures are collected per
// claim; the result distinguishes a clean batch, a partial batch and a batch
// where nothing posted.
func (p *BatchProcessor) Process(ctx context.Context, file *EraFile) (*BatchResult, error) {
	payerID, err := p.resolver.ResolvePayer(ctx, file.PayerID, file.PayerName)
	if err != nil {
		return nil, fmt.Errorf("resolve payer %q: %w", file.PayerName, err)
	}

	result := &BatchResult{}
	for i := range file.Claims {
		eraClaim := &file.Claims[i]
		applied, err := p.processClaim(ctx, file, payerID, eraClaim)
		if err != nil {
			p.log.Warn().Err(err).
				Str("patient", eraClaim.PatientName).
				Str("payer_control_number", eraClaim.PayerControlNumber).
				Msg("remittance claim failed to post")
			result.Errors = append(result.Errors, BatchError{
				ClaimID:     eraClaim.ClaimID,
				PatientName: eraClaim.PatientName,
				Error:       err.Error(),
			})
			continue
		}
		result.PaymentsCreated++
		result.ClaimsUpdated++
		result.TotalApplied += applied
	}

	result.Success = len(result.Errors) == 0
	result.PartiallyProcessed = !result.Success && result.PaymentsCreated > 0

	if d := result.TotalApplied - file.CheckAmount; math.Abs(d) > p.tolerance {
		p.log.Warn().
			Str("check_number", file.CheckNumber).
			Float64("check_amount", file.CheckAmount).
			Float64("total_applied", result.TotalApplied).
			Msg("remittance applied total differs from check amount")
	}

	return result, nil
}

// processClaim resolves one remittance claim and posts it through the
// engine as a single payer payment.
func (p *BatchProcessor) processClaim(ctx context.Context, file *EraFile, payerID uuid.UUID, eraClaim *EraClaim) (float64, error) {
	claim, err := p.resolver.ResolveClaim(ctx, eraClaim.ClaimID, eraClaim.PatientID)
	if err != nil {
		return 0, err
	}

	var total float64
	lines := make([]LineApplication, 0, len(eraClaim.Lines))
	for _, eraLine := range eraClaim.Lines {
		lineID, err := p.resolver.ResolveLine(ctx, claim.ID, eraLine.LineGUID, eraLine.ProcedureCode, eraLine.ServiceDate)
		if err != nil {
			return 0, fmt.Errorf("line %s on %s: %w", eraLine.ProcedureCode, eraLine.ServiceDate.Format("2006-01-02"), err)
		}
		app := LineApplication{ServiceLineID: lineID, Amount: eraLine.Paid}
		for _, a := range eraLine.Adjustments {
			app.Adjustments = append(app.Adjustments, AdjustmentEntry{
				Group:        a.Group,
				ReasonCode:   a.ReasonCode,
				Amount:       a.Amount,
				ReasonAmount: a.ReasonAmount,
			})
		}
		lines = append(lines, app)
		total += eraLine.Paid
	}

	// The reference must be unique per claim within one check, or two
	// claims with equal paid totals would collide in the duplicate check.
	suffix := eraClaim.PayerControlNumber
	if suffix == "" {
		suffix = claim.ID.String()
	}
	reference := fmt.Sprintf("%s/%s", file.CheckNumber, suffix)
	method := "era"

	_, err = p.engine.ApplyPayment(ctx, &ApplyCommand{
		Source:    SourcePayer,
		PayerID:   &payerID,
		PatientID: eraClaim.PatientID,
		Amount:    total,
		Date:      file.CheckDate,
		Method:    &method,
		Reference: &reference,
		Lines:     lines,
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
