package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/models"
)

func TestVerifyEmailsScoring(t *testing.T) {
	v := NewHeuristicVerifier(arbor.NewLogger())

	tests := []struct {
		email  string
		status string
		score  int
	}{
		{"jane.doe@example.com", models.VerificationValid, 88},
		{"janedoe@example.com", models.VerificationValid, 75},
		{"info@example.com", models.VerificationRisky, 68},
		{"jd@example.com", models.VerificationRisky, 45},
		{"not-an-email", models.VerificationInvalid, 0},
		{"@example.com", models.VerificationInvalid, 0},
	}

	emails := make([]string, len(tests))
	for i, tt := range tests {
		emails[i] = tt.email
	}

	results, err := v.VerifyEmails(context.Background(), emails)
	require.NoError(t, err)
	require.Len(t, results, len(tests), "one verdict per input, in order")

	for i, tt := range tests {
		assert.Equal(t, tt.email, results[i].Email, tt.email)
		assert.Equal(t, tt.status, results[i].Status, tt.email)
		require.NotNil(t, results[i].Score, tt.email)
		assert.Equal(t, tt.score, *results[i].Score, tt.email)
		assert.Equal(t, "heuristic", results[i].Provider)
		assert.NotNil(t, results[i].VerifiedAt)
	}
}

func TestVerifyEmailsRespectsCancellation(t *testing.T) {
	v := NewHeuristicVerifier(arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.VerifyEmails(ctx, []string{"jane@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyEmailsDeterministic(t *testing.T) {
	v := NewHeuristicVerifier(arbor.NewLogger())
	ctx := context.Background()

	first, err := v.VerifyEmails(ctx, []string{"jane.doe@example.com"})
	require.NoError(t, err)
	second, err := v.VerifyEmails(ctx, []string{"jane.doe@example.com"})
	require.NoError(t, err)

	assert.Equal(t, *first[0].Score, *second[0].Score)
	assert.Equal(t, first[0].Status, second[0].Status)
}
