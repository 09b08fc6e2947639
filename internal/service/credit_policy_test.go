package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univera/campus-enroll-api/pkg/config"
)

func defaultPolicyConfig() config.EnrollmentConfig {
	return config.EnrollmentConfig{
		Buckets:       map[int]int{5: 1, 4: 2, 3: 3},
		CreditCeiling: 25,
		CeilingPolicy: config.CeilingMax,
	}
}

func TestCreditPolicySatisfied(t *testing.T) {
	policy := NewCreditPolicy(defaultPolicyConfig())

	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3})
	assert.True(t, eval.Satisfied)
	assert.Equal(t, 22, eval.TotalCredits)
	assert.Empty(t, eval.Buckets)
	assert.Empty(t, eval.CeilingIssue)
}

func TestCreditPolicyBucketShort(t *testing.T) {
	policy := NewCreditPolicy(defaultPolicyConfig())

	eval := policy.Evaluate([]int{5, 4, 3, 3, 3})
	assert.False(t, eval.Satisfied)
	require.Len(t, eval.Buckets, 1)
	assert.Equal(t, 4, eval.Buckets[0].Credits)
	assert.Equal(t, 2, eval.Buckets[0].Required)
	assert.Equal(t, 1, eval.Buckets[0].Selected)
	assert.Equal(t, BucketReasonShort, eval.Buckets[0].Reason)
}

func TestCreditPolicyBucketExceeded(t *testing.T) {
	policy := NewCreditPolicy(defaultPolicyConfig())

	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3, 3})
	assert.False(t, eval.Satisfied)
	require.Len(t, eval.Buckets, 1)
	assert.Equal(t, 3, eval.Buckets[0].Credits)
	assert.Equal(t, BucketReasonExceeded, eval.Buckets[0].Reason)
}

func TestCreditPolicyEmptySelection(t *testing.T) {
	policy := NewCreditPolicy(defaultPolicyConfig())

	eval := policy.Evaluate(nil)
	assert.False(t, eval.Satisfied)
	assert.Equal(t, 0, eval.TotalCredits)
	// every configured bucket reports short, highest credit first
	require.Len(t, eval.Buckets, 3)
	assert.Equal(t, 5, eval.Buckets[0].Credits)
	assert.Equal(t, 4, eval.Buckets[1].Credits)
	assert.Equal(t, 3, eval.Buckets[2].Credits)
	for _, issue := range eval.Buckets {
		assert.Equal(t, BucketReasonShort, issue.Reason)
	}
}

func TestCreditPolicyZeroTargetBucket(t *testing.T) {
	cfg := defaultPolicyConfig()
	cfg.Buckets[2] = 0
	policy := NewCreditPolicy(cfg)

	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3, 2})
	assert.False(t, eval.Satisfied)
	require.Len(t, eval.Buckets, 1)
	assert.Equal(t, 2, eval.Buckets[0].Credits)
	assert.Equal(t, 0, eval.Buckets[0].Required)
	assert.Equal(t, BucketReasonExceeded, eval.Buckets[0].Reason)
}

func TestCreditPolicyUnconfiguredCreditCountsTowardTotal(t *testing.T) {
	cfg := defaultPolicyConfig()
	cfg.CreditCeiling = 23
	policy := NewCreditPolicy(cfg)

	// a 2-credit offering has no bucket but still pushes the total over
	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3, 2, 2})
	assert.False(t, eval.Satisfied)
	assert.Empty(t, eval.Buckets)
	assert.Equal(t, 26, eval.TotalCredits)
	assert.NotEmpty(t, eval.CeilingIssue)
}

func TestCreditPolicyCeilingExact(t *testing.T) {
	cfg := config.EnrollmentConfig{
		Buckets:       map[int]int{5: 1, 4: 2, 3: 3},
		CreditCeiling: 22,
		CeilingPolicy: config.CeilingExact,
	}
	policy := NewCreditPolicy(cfg)

	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3})
	assert.True(t, eval.Satisfied)

	cfg.CreditCeiling = 25
	policy = NewCreditPolicy(cfg)
	eval = policy.Evaluate([]int{5, 4, 4, 3, 3, 3})
	assert.False(t, eval.Satisfied)
	assert.NotEmpty(t, eval.CeilingIssue)
}

func TestCreditPolicyDefaultsToMaxPolicy(t *testing.T) {
	cfg := defaultPolicyConfig()
	cfg.CeilingPolicy = config.CeilingPolicy("BOGUS")
	policy := NewCreditPolicy(cfg)

	eval := policy.Evaluate([]int{5, 4, 4, 3, 3, 3})
	assert.True(t, eval.Satisfied)
}
