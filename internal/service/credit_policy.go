package service

import (
	"fmt"
	"sort"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/pkg/config"
)

// Bucket failure reasons.
const (
	BucketReasonShort    = "SHORT"
	BucketReasonExceeded = "EXCEEDED"
)

// CreditPolicy evaluates a candidate selection against the configured
// per-credit-value bucket targets and the total-credit ceiling. It holds no
// state and trusts nothing from the client: callers pass the credit values of
// the offerings as read from the catalog.
type CreditPolicy struct {
	buckets       map[int]int
	ceiling       int
	ceilingPolicy config.CeilingPolicy
}

// NewCreditPolicy builds a policy from configuration.
func NewCreditPolicy(cfg config.EnrollmentConfig) *CreditPolicy {
	policy := cfg.CeilingPolicy
	if policy != config.CeilingExact && policy != config.CeilingMax {
		policy = config.CeilingMax
	}
	buckets := make(map[int]int, len(cfg.Buckets))
	for credit, count := range cfg.Buckets {
		buckets[credit] = count
	}
	return &CreditPolicy{buckets: buckets, ceiling: cfg.CreditCeiling, ceilingPolicy: policy}
}

// Evaluate checks the selected credit values. Every configured bucket must be
// matched exactly; credit values outside the configuration count toward the
// total only. The ceiling check follows the configured policy: EXACT requires
// the sum to equal the ceiling, MAX requires it to not exceed it.
func (p *CreditPolicy) Evaluate(credits []int) dto.CreditEvaluation {
	selected := make(map[int]int)
	total := 0
	for _, credit := range credits {
		selected[credit]++
		total += credit
	}

	eval := dto.CreditEvaluation{Satisfied: true, TotalCredits: total}

	values := make([]int, 0, len(p.buckets))
	for credit := range p.buckets {
		values = append(values, credit)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	for _, credit := range values {
		required := p.buckets[credit]
		count := selected[credit]
		if count == required {
			continue
		}
		reason := BucketReasonShort
		if count > required {
			reason = BucketReasonExceeded
		}
		eval.Satisfied = false
		eval.Buckets = append(eval.Buckets, dto.BucketIssue{
			Credits:  credit,
			Required: required,
			Selected: count,
			Reason:   reason,
		})
	}

	switch p.ceilingPolicy {
	case config.CeilingExact:
		if total != p.ceiling {
			eval.Satisfied = false
			eval.CeilingIssue = fmt.Sprintf("total credits must equal %d, got %d", p.ceiling, total)
		}
	default:
		if total > p.ceiling {
			eval.Satisfied = false
			eval.CeilingIssue = fmt.Sprintf("total credits must not exceed %d, got %d", p.ceiling, total)
		}
	}

	return eval
}
