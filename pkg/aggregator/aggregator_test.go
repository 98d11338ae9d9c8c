package aggregator_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/aggregator"
	"github.com/bl4ck5un/zipnet/pkg/identity"
)

func TestNewAggregatorStartsEmpty(t *testing.T) {
	agg, reg, err := aggregator.NewAggregator()
	require.NoError(t, err)
	assert.Equal(t, aggregator.StateEmpty, agg.State())
	assert.Equal(t, identity.RoleAgg, reg.Role)
	assert.Nil(t, agg.Current())
}

func TestClearTransitionsToAccumulating(t *testing.T) {
	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)

	groupID := identity.GroupID([][]byte{[]byte("committee")})
	agg.Clear(3, groupID)
	assert.Equal(t, aggregator.StateAccumulating, agg.State())

	cur := agg.Current()
	require.NotNil(t, cur)
	assert.Equal(t, uint32(3), cur.Round)
	assert.Equal(t, groupID, cur.AnytrustGroupID)
	assert.True(t, cur.Encoded.IsZero())
}

func TestCombineSubmissionRejectsWrongRound(t *testing.T) {
	groupID := identity.GroupID([][]byte{[]byte("committee")})
	sub := mkSubmission(t, groupID)

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)
	agg.Clear(sub.Round+1, groupID)

	err = agg.CombineSubmission(sub)
	assert.Error(t, err)
}

func TestCombineSubmissionRejectsBeforeClear(t *testing.T) {
	groupID := identity.GroupID([][]byte{[]byte("committee")})
	sub := mkSubmission(t, groupID)

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)

	err = agg.CombineSubmission(sub)
	assert.Error(t, err, "aggregator is still StateEmpty, not accumulating")
}

func TestFinalizeSignsAndTransitions(t *testing.T) {
	groupID := identity.GroupID([][]byte{[]byte("committee")})
	sub := mkSubmission(t, groupID)

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)
	agg.Clear(sub.Round, groupID)
	require.NoError(t, agg.CombineSubmission(sub))

	final, err := agg.Finalize()
	require.NoError(t, err)
	require.NoError(t, final.Verify())
	assert.Equal(t, aggregator.StateFinalized, agg.State())

	_, err = agg.Finalize()
	assert.Error(t, err, "cannot finalize twice")
}

func TestCombineSubmissionRejectsDuplicateUserConcurrently(t *testing.T) {
	groupID := identity.GroupID([][]byte{[]byte("committee")})
	sub := mkSubmission(t, groupID)

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)
	agg.Clear(sub.Round, groupID)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = agg.CombineSubmission(sub)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, e := range errs {
		if e == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "only the first concurrent combine of the same user should succeed")

	final, err := agg.Finalize()
	require.NoError(t, err)
	assert.Len(t, final.UserIDs, 1)
}
