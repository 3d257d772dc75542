package telegram

import (
	"testing"

	"billing_collections/internal/domain/conciliation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReviewCallback(t *testing.T) {
	tests := []struct {
		data   string
		status conciliation.Status
		id     int64
	}{
		{"rev_ok_12", conciliation.StatusApproved, 12},
		{"\frev_no_7", conciliation.StatusRejected, 7},
	}
	for _, tt := range tests {
		status, id, err := parseReviewCallback(tt.data)
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.status, status)
		assert.Equal(t, tt.id, id)
	}

	_, _, err := parseReviewCallback("rev_ok_abc")
	assert.Error(t, err)
	_, _, err = parseReviewCallback("other_1")
	assert.Error(t, err)
}

func TestReviewKeyboard(t *testing.T) {
	markup := reviewKeyboard(42)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "rev_ok_42", row[0].Data)
	assert.Equal(t, "rev_no_42", row[1].Data)
}
