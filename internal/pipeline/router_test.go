package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualifier/internal/model"
)

func testRouter() Router {
	return NewRouter(model.DefaultRubric(), 0)
}

func TestNewRouter_Defaults(t *testing.T) {
	r := testRouter()
	assert.Equal(t, 70, r.QualificationThreshold)
	assert.Equal(t, 20, r.AutoRejectThreshold)
	assert.InDelta(t, 0.7, r.MinSendConfidence, 1e-9)
}

func TestRouter_AfterScoring(t *testing.T) {
	r := testRouter()
	tests := []struct {
		score int
		want  Stage
	}{
		{0, StageAutoReject},
		{19, StageAutoReject},
		{20, StageDraft},
		{95, StageDraft},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.AfterScoring(&model.Lead{Score: tt.score}), "score %d", tt.score)
	}
}

func TestRouter_AfterDrafting(t *testing.T) {
	r := testRouter()
	tests := []struct {
		name  string
		score int
		conf  float64
		want  Stage
	}{
		{"qualified and confident", 85, 0.8, StageSend},
		{"boundary", 70, 0.7, StageSend},
		{"qualified low confidence", 85, 0.69, StageHumanReview},
		{"borderline", 50, 0.9, StageHumanReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.AfterDrafting(&model.Lead{Score: tt.score, Confidence: tt.conf}))
		})
	}
}

func TestRouter_AfterReview(t *testing.T) {
	r := testRouter()
	tests := []struct {
		name string
		lead model.Lead
		want Stage
	}{
		{"approved with draft", model.Lead{Status: model.StatusApproved, DraftEmailBody: "Hi"}, StageSend},
		{"approved without draft", model.Lead{Status: model.StatusApproved}, StageDraft},
		{"rescore", model.Lead{Status: model.StatusNew}, StageResearch},
		{"rejected", model.Lead{Status: model.StatusRejected}, StageAutoReject},
		{"unexpected status", model.Lead{Status: model.StatusScoring}, StageAutoReject},
		{"empty status", model.Lead{}, StageAutoReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.AfterReview(&tt.lead))
		})
	}
}

func TestRouter_ReviewReason_QualifiedLowConfidence(t *testing.T) {
	r := testRouter()
	got := r.ReviewReason(&model.Lead{Score: 80, Confidence: 0.55})
	assert.Equal(t, "Score is 80 (qualified) but confidence is only 55%. Research data may be incomplete.", got)
}

func TestRouter_ReviewReason_Borderline(t *testing.T) {
	r := testRouter()
	l := &model.Lead{
		Score:      45,
		Confidence: 0.9,
		ScoreBreakdown: model.ScoreBreakdown{
			{Name: "b2b_fit", Score: 20, Max: 20},
			{Name: "company_size", Score: 5, Max: 20},
			{Name: "reachability", Score: 9, Max: 20},
			{Name: "buying_signals", Score: 10, Max: 20},
		},
	}
	assert.Equal(t, "Borderline score of 45/100. Key gaps: company_size (5/20), reachability (9/20)", r.ReviewReason(l))
}

func TestRouter_ReviewReason_BorderlineNoGaps(t *testing.T) {
	r := testRouter()
	l := &model.Lead{Score: 60, ScoreBreakdown: model.ScoreBreakdown{{Name: "b2b_fit", Score: 15, Max: 20}}}
	assert.Equal(t, "Borderline score of 60/100. Key gaps: All criteria scored above 50%", r.ReviewReason(l))

	assert.Equal(t, "Borderline score of 60/100. Key gaps: No scoring data available",
		r.ReviewReason(&model.Lead{Score: 60}))
}

func TestRouter_ReviewReason_Low(t *testing.T) {
	r := testRouter()
	assert.Equal(t, "Low score of 10/100. Likely not a fit.", r.ReviewReason(&model.Lead{Score: 10}))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "0%", percent(0))
	assert.Equal(t, "69%", percent(0.69))
	assert.Equal(t, "100%", percent(1))
}
