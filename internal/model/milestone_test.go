package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Milestones {
	return Milestones{
		{Date: NewDate(2024, time.March, 1), Desc: "A"},
		{Date: NewDate(2024, time.January, 10), Desc: "B"},
		{Date: NewDate(2024, time.January, 10), Desc: "C"},
	}
}

func descs(m Milestones) []string {
	out := make([]string, len(m))
	for i, ms := range m {
		out[i] = ms.Desc
	}
	return out
}

func TestMilestones_Add(t *testing.T) {
	var m Milestones
	require.NoError(t, m.Add(NewDate(2024, time.May, 2), "  Beta launch "))
	require.NoError(t, m.Add(NewDate(2024, time.May, 2), "Beta launch"))

	assert.Equal(t, []string{"Beta launch", "Beta launch"}, descs(m))
}

func TestMilestones_AddRejectsBlank(t *testing.T) {
	tests := []struct {
		name string
		desc string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tabs and newlines", "\t\n "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sample()
			err := m.Add(NewDate(2024, time.June, 1), tt.desc)
			assert.ErrorIs(t, err, ErrEmptyDescription)
			assert.Equal(t, sample(), m)
		})
	}
}

func TestMilestones_SortedIsStable(t *testing.T) {
	m := sample()
	assert.Equal(t, []string{"B", "C", "A"}, descs(m.Sorted()))
	// storage order untouched
	assert.Equal(t, []string{"A", "B", "C"}, descs(m))
}

func TestMilestones_StorageIndex(t *testing.T) {
	m := sample()

	for display, want := range []int{1, 2, 0} {
		got, err := m.StorageIndex(display)
		require.NoError(t, err)
		assert.Equal(t, want, got, "display index %d", display)
	}

	_, err := m.StorageIndex(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = m.StorageIndex(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMilestones_RemoveDisplayedBatch(t *testing.T) {
	m := sample()
	require.NoError(t, m.RemoveDisplayed(0, 2))
	assert.Equal(t, []string{"C"}, descs(m))
}

func TestMilestones_RemoveDisplayedOrderIndependent(t *testing.T) {
	m := sample()
	require.NoError(t, m.RemoveDisplayed(2, 0))
	assert.Equal(t, []string{"C"}, descs(m))
}

func TestMilestones_RemoveDisplayedDuplicateIndex(t *testing.T) {
	m := sample()
	require.NoError(t, m.RemoveDisplayed(1, 1))
	assert.Equal(t, []string{"A", "B"}, descs(m))
}

func TestMilestones_RemoveDisplayedIdenticalEntries(t *testing.T) {
	d := NewDate(2024, time.February, 2)
	m := Milestones{{Date: d, Desc: "same"}, {Date: d, Desc: "same"}}
	require.NoError(t, m.RemoveDisplayed(0, 1))
	assert.Empty(t, m)
}

func TestMilestones_RemoveDisplayedOutOfRangeKeepsList(t *testing.T) {
	m := sample()
	err := m.RemoveDisplayed(0, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, sample(), m)
}

func TestMilestones_JSON(t *testing.T) {
	var m Milestones
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	b, err = json.Marshal(Milestones{{Date: NewDate(2024, time.January, 10), Desc: "B"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"date":"2024-01-10","desc":"B"}]`, string(b))

	var back Milestones
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "2024-01-10", back[0].Date.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-10T00:00:00")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.January, 10), d)

	_, err = ParseDate("10/01/2024")
	assert.Error(t, err)

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`20240110`), &bad))
}

func TestProjectRecord_CloneIsIndependent(t *testing.T) {
	r := NewProjectRecord("vortex")
	require.NoError(t, r.Milestones.Add(NewDate(2024, time.January, 1), "kickoff"))

	c := r.Clone()
	require.NoError(t, c.Milestones.RemoveDisplayed(0))

	assert.Len(t, r.Milestones, 1)
	assert.Empty(t, c.Milestones)
}

func TestParseDateStrict(t *testing.T) {
	d, err := ParseDateStrict("2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.January, 10), d)

	for _, in := range []string{"2024-01-10garbage", "2024-01-10T00:00:00", "2024-1-10", ""} {
		_, err := ParseDateStrict(in)
		assert.Error(t, err, in)
	}
}
