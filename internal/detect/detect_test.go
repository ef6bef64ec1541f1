package detect

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(need, excess string) Reading {
	return Reading{ID: uuid.New(), NeedText: need, ExcessText: excess}
}

func TestEvaluate_FirstEverReading(t *testing.T) {
	out := Evaluate("Pasta\nRice", "", nil, nil)
	assert.Equal(t, Change, out.Kind)
	assert.Contains(t, out.Reasons, ReasonFirstNeed)
}

func TestEvaluate_FirstEverReadingExcessOnly(t *testing.T) {
	out := Evaluate("", "Beans", nil, nil)
	assert.Equal(t, Change, out.Kind)
	assert.Contains(t, out.Reasons, ReasonFirstNeed)
}

func TestEvaluate_FirstEverReadingEmpty(t *testing.T) {
	out := Evaluate("", "", nil, nil)
	assert.Equal(t, NoChange, out.Kind)
	assert.Empty(t, out.Reasons)
}

func TestEvaluate_NoOpWhenMatchesPublished(t *testing.T) {
	pub := reading("Pasta\nRice", "")
	out := Evaluate("Pasta\nRice", "", &pub, nil)
	assert.Equal(t, NoChange, out.Kind)
	assert.Empty(t, out.Reasons)
	assert.Empty(t, out.NonpertinentIDs)
}

func TestEvaluate_FormattingOnlyDifferenceIsNoOp(t *testing.T) {
	pub := reading("Pasta\nRice", "")
	out := Evaluate("pasta rice.", "", &pub, nil)
	assert.Equal(t, NoChange, out.Kind)
}

func TestEvaluate_NeedTextChange(t *testing.T) {
	pub := reading("Pasta\nRice", "")
	out := Evaluate("Pasta\nRice\nBeans", "", &pub, nil)
	assert.Equal(t, Change, out.Kind)
	assert.Equal(t, []string{ReasonNeedChange}, out.Reasons)
}

func TestEvaluate_ExcessTextChange(t *testing.T) {
	pub := reading("Pasta\nRice", "")
	out := Evaluate("Pasta\nRice", "Baked Beans", &pub, nil)
	assert.Equal(t, Change, out.Kind)
	assert.Equal(t, []string{ReasonExcessChange}, out.Reasons)
}

func TestEvaluate_BothTextsChangeReportsBothReasons(t *testing.T) {
	pub := reading("Pasta", "Beans")
	out := Evaluate("Rice", "Soup", &pub, nil)
	assert.Equal(t, Change, out.Kind)
	assert.Equal(t, []string{ReasonNeedChange, ReasonExcessChange}, out.Reasons)
}

func TestEvaluate_NonpertinentRepeatWins(t *testing.T) {
	pub := reading("Pasta", "")
	rejected := reading("Rice\nBeans", "")

	out := Evaluate("rice beans.", "", &pub, []Reading{rejected})
	require.Equal(t, Nonpertinent, out.Kind)
	assert.Equal(t, []uuid.UUID{rejected.ID}, out.NonpertinentIDs)
	assert.Equal(t, []string{ReasonNonpubSame}, out.Reasons)
}

func TestEvaluate_NonpertinentMatchesMultipleRejected(t *testing.T) {
	pub := reading("Pasta", "")
	r1 := reading("Rice", "")
	r2 := reading("rice.", "")

	out := Evaluate("Rice", "", &pub, []Reading{r1, r2})
	require.Equal(t, Nonpertinent, out.Kind)
	assert.Len(t, out.NonpertinentIDs, 2)
}

func TestEvaluate_RejectedScanIsBounded(t *testing.T) {
	pub := reading("Pasta", "")
	var rejected []Reading
	for i := 0; i < RecentRejectedLimit; i++ {
		rejected = append(rejected, reading("Something Else", ""))
	}
	// The matching reading sits past the bound, so it must be ignored.
	rejected = append(rejected, reading("Rice", ""))

	out := Evaluate("Rice", "", &pub, rejected)
	assert.Equal(t, Change, out.Kind)
}

func TestEvaluate_Deterministic(t *testing.T) {
	pub := reading("Pasta", "Beans")
	rejected := []Reading{reading("Rice", ""), reading("Soup", "")}

	first := Evaluate("Lentils", "Beans", &pub, rejected)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate("Lentils", "Beans", &pub, rejected))
	}
}
