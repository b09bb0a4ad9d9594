package posting

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/domain/claims"
)

// SecondaryEvaluator decides, after a payer payment posts, whether a claim's
// remaining balance forwards to its secondary insurance. The checks run in a
// fixed order and the first one that applies wins:
//
//  1. no secondary insurance on file
//  2. a secondary claim already exists
//  3. the claim is closed (checked ahead of the balance)
//  4. the claim is fully paid
//  5. no forwardable balance among the posted adjustments
//
// Only when none of these applies is a secondary claim created.
type SecondaryEvaluator struct {
	store       ClaimStore
	adjustments AdjustmentPoster
	rules       ForwardRuleSource
	log         zerolog.Logger
	tolerance   float64
}

func NewSecondaryEvaluator(store ClaimStore, adjustments AdjustmentPoster, rules ForwardRuleSource, log zerolog.Logger, tolerance float64) *SecondaryEvaluator {
	return &SecondaryEvaluator{
		store:       store,
		adjustments: adjustments,
		rules:       rules,
		log:         log,
		tolerance:   tolerance,
	}
}

// Evaluate runs the decision ladder for one claim against the adjustments
// posted by one payment. When the claim forwards, the new secondary claim is
// created and an audit note is appended to the primary.
func (e *SecondaryEvaluator) Evaluate(ctx context.Context, claimID, paymentID uuid.UUID) (*SecondaryTriggerResult, error) {
	claim, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.SecondaryPayerID == nil {
		return &SecondaryTriggerResult{ClaimID: claimID, Reason: ReasonNoSecondaryInsurance}, nil
	}

	exists, err := e.store.HasSecondaryClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if exists {
		return &SecondaryTriggerResult{ClaimID: claimID, Reason: ReasonSecondaryAlreadyExists}, nil
	}

	if claim.Status == claims.StatusClosed {
		return &SecondaryTriggerResult{ClaimID: claimID, Reason: ReasonClaimClosed}, nil
	}

	totals, err := e.store.ReadTotals(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if math.Abs(totals.Balance()) <= e.tolerance {
		return &SecondaryTriggerResult{ClaimID: claimID, Reason: ReasonFullyPaid}, nil
	}

	forwardable, err := e.forwardableAmount(ctx, paymentID, claimID)
	if err != nil {
		return nil, err
	}
	if forwardable <= e.tolerance {
		return &SecondaryTriggerResult{ClaimID: claimID, Reason: ReasonNoForwardableBalance}, nil
	}

	secondary := claims.NewSecondaryClaim(claim, forwardable)
	if err := e.store.CreateClaim(ctx, secondary); err != nil {
		return nil, err
	}
	if err := e.store.AppendNote(ctx, claimID, "Insurance Edited", "posting-engine"); err != nil {
		e.log.Warn().Err(err).Str("claim_id", claimID.String()).Msg("audit note append failed")
	}

	return &SecondaryTriggerResult{
		ClaimID:          claimID,
		Triggered:        true,
		Reason:           ReasonForwardedToSecondary,
		Amount:           forwardable,
		SecondaryClaimID: &secondary.ID,
	}, nil
}

// forwardableAmount sums the payment's posted adjustments on this claim
// whose (group, reason) pair is marked forwardable. Adjustments without a
// reason code and pairs with no rule on file contribute nothing.
func (e *SecondaryEvaluator) forwardableAmount(ctx context.Context, paymentID, claimID uuid.UUID) (float64, error) {
	adjs, err := e.adjustments.ListByPayment(ctx, paymentID, claimID)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, a := range adjs {
		if a.ReasonCode == nil {
			continue
		}
		ok, err := e.rules.IsForwardable(ctx, a.Group, *a.ReasonCode)
		if err != nil {
			return 0, err
		}
		if ok {
			sum += a.Amount
		}
	}
	return sum, nil
}
