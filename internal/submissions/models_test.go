package submissions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProofPayload_DispatchesByType(t *testing.T) {
	tests := []struct {
		proofType ProofType
		raw       string
		wantType  ProofType
	}{
		{ProofPhoto, `{"image_url":"https://cdn.example.com/p.jpg","has_signage":true}`, ProofPhoto},
		{ProofReceipt, `{"image_url":"https://cdn.example.com/r.jpg","business_name":"Joe's Coffee","purchased_at":"2026-03-01T10:00:00Z"}`, ProofReceipt},
		{ProofGPSCheckin, `{"coordinates":{"latitude":40.7,"longitude":-74.0},"checked_in_at":"2026-03-01T10:00:00Z"}`, ProofGPSCheckin},
		{ProofLocationQuestion, `{"answer":"blue door"}`, ProofLocationQuestion},
	}

	for _, tt := range tests {
		t.Run(string(tt.proofType), func(t *testing.T) {
			proof, err := DecodeProofPayload(tt.proofType, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, proof.Type())
		})
	}
}

func TestDecodeProofPayload_UnknownType(t *testing.T) {
	_, err := DecodeProofPayload("video", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestParseProofType(t *testing.T) {
	pt, err := ParseProofType("  Photo ")
	require.NoError(t, err)
	assert.Equal(t, ProofPhoto, pt)

	_, err = ParseProofType("hologram")
	assert.Error(t, err)
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "u", ImageURL(PhotoProof{ImageURL: "u"}))
	assert.Equal(t, "u", ImageURL(&ReceiptProof{ImageURL: "u"}))
	assert.Empty(t, ImageURL(QuestionProof{Answer: "blue door"}))
	assert.Empty(t, ImageURL(GPSCheckinProof{}))
	assert.Empty(t, ImageURL(nil))
}

func TestChallenge_AllowsProofType(t *testing.T) {
	c := &Challenge{ProofRequirements: ProofRequirements{AllowedTypes: []ProofType{ProofPhoto}}}
	assert.True(t, c.AllowsProofType(ProofPhoto))
	assert.False(t, c.AllowsProofType(ProofReceipt))

	// No restriction means everything is allowed.
	open := &Challenge{}
	assert.True(t, open.AllowsProofType(ProofReceipt))
}

func TestHistory_CountSince(t *testing.T) {
	now := time.Now()
	h := &History{Submissions: []Submission{
		{SubmittedAt: now.Add(-time.Hour)},
		{SubmittedAt: now.Add(-25 * time.Hour)},
		{SubmittedAt: now.Add(-23 * time.Hour)},
	}}

	assert.Equal(t, 2, h.CountSince(now.Add(-24*time.Hour)))
	assert.Equal(t, 3, h.CountSince(now.Add(-48*time.Hour)))
}

func TestHistory_Excluding(t *testing.T) {
	now := time.Now()
	self := Submission{ID: uuid.New(), SubmittedAt: now}
	older := Submission{ID: uuid.New(), SubmittedAt: now.Add(-time.Hour)}
	h := &History{
		Submissions:      []Submission{self, older},
		LastSubmissionAt: &now,
		TotalSubmissions: 2,
	}

	out := h.Excluding(self.ID)

	require.Len(t, out.Submissions, 1)
	assert.Equal(t, older.ID, out.Submissions[0].ID)
	assert.Equal(t, 1, out.TotalSubmissions)
	require.NotNil(t, out.LastSubmissionAt)
	assert.Equal(t, older.SubmittedAt, *out.LastSubmissionAt)

	// Original history is untouched.
	assert.Len(t, h.Submissions, 2)
	assert.Equal(t, 2, h.TotalSubmissions)

	// No-op when the ID is absent.
	untouched := h.Excluding(uuid.New())
	assert.Len(t, untouched.Submissions, 2)
	assert.Equal(t, 2, untouched.TotalSubmissions)

	// Excluding the only submission leaves an empty history.
	solo := &History{Submissions: []Submission{self}, LastSubmissionAt: &now, TotalSubmissions: 1}
	empty := solo.Excluding(self.ID)
	assert.Empty(t, empty.Submissions)
	assert.Zero(t, empty.TotalSubmissions)
	assert.Nil(t, empty.LastSubmissionAt)

	assert.Nil(t, (*History)(nil).Excluding(self.ID))
}

func TestHistory_MostRecent(t *testing.T) {
	assert.Nil(t, (&History{}).MostRecent())

	now := time.Now()
	h := &History{Submissions: []Submission{
		{SubmittedAt: now.Add(-2 * time.Hour)},
		{SubmittedAt: now.Add(-time.Hour)},
	}}

	newest := h.MostRecent()
	require.NotNil(t, newest)
	assert.Equal(t, now.Add(-time.Hour), newest.SubmittedAt)
}
