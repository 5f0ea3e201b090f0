package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadDelta_Apply(t *testing.T) {
	t.Parallel()

	t.Run("nil fields leave lead untouched", func(t *testing.T) {
		t.Parallel()
		l := &Lead{CompanyName: "Acme", Industry: "SaaS", Score: 40, TechStack: []string{"React"}}
		d := &LeadDelta{Status: Ptr(StatusScoring)}
		d.Apply(l)

		assert.Equal(t, "Acme", l.CompanyName)
		assert.Equal(t, "SaaS", l.Industry)
		assert.Equal(t, 40, l.Score)
		assert.Equal(t, []string{"React"}, l.TechStack)
		assert.Equal(t, StatusScoring, l.Status)
	})

	t.Run("set fields replace values", func(t *testing.T) {
		t.Parallel()
		l := &Lead{TechStack: []string{"React"}, PainPoints: []string{"a"}}
		d := &LeadDelta{
			TechStack:  Ptr([]string{"Vue.js", "AWS"}),
			PainPoints: Ptr([]string{}),
			IsB2B:      Ptr(false),
		}
		d.Apply(l)

		assert.Equal(t, []string{"Vue.js", "AWS"}, l.TechStack)
		assert.Empty(t, l.PainPoints)
		require.NotNil(t, l.IsB2B)
		assert.False(t, *l.IsB2B)
	})

	t.Run("clamps score and confidence", func(t *testing.T) {
		t.Parallel()
		l := &Lead{}
		(&LeadDelta{Score: Ptr(140), Confidence: Ptr(1.7)}).Apply(l)
		assert.Equal(t, 100, l.Score)
		assert.Equal(t, 1.0, l.Confidence)

		(&LeadDelta{Score: Ptr(-5), Confidence: Ptr(-0.2)}).Apply(l)
		assert.Equal(t, 0, l.Score)
		assert.Equal(t, 0.0, l.Confidence)
	})

	t.Run("nil delta is a no-op", func(t *testing.T) {
		t.Parallel()
		l := &Lead{CompanyName: "Acme"}
		var d *LeadDelta
		d.Apply(l)
		assert.Equal(t, "Acme", l.CompanyName)
	})

	t.Run("is_b2b pointer is not shared", func(t *testing.T) {
		t.Parallel()
		d := &LeadDelta{IsB2B: Ptr(true)}
		l := &Lead{}
		d.Apply(l)
		*d.IsB2B = false
		assert.True(t, *l.IsB2B)
	})
}

func TestLead_Clone(t *testing.T) {
	t.Parallel()

	orig := &Lead{
		LeadID:         "l1",
		TechStack:      []string{"React"},
		IsB2B:          Ptr(true),
		ScoreBreakdown: ScoreBreakdown{{Name: "b2b_fit", Score: 20, Max: 20}},
	}
	c := orig.Clone()
	c.TechStack[0] = "Angular"
	*c.IsB2B = false
	c.ScoreBreakdown[0].Score = 0

	assert.Equal(t, "React", orig.TechStack[0])
	assert.True(t, *orig.IsB2B)
	assert.Equal(t, 20, orig.ScoreBreakdown[0].Score)
	assert.Nil(t, (*Lead)(nil).Clone())
}

func TestLeadStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusHumanReview.Valid())
	assert.False(t, LeadStatus("bogus").Valid())
	assert.True(t, StatusSent.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusApproved.Terminal())
}

func TestSnapshotDelta_RestoresEveryField(t *testing.T) {
	b2b := true
	want := &Lead{
		LeadID:            "lead-1",
		CompanyName:       "Acme",
		IsB2B:             &b2b,
		TechStack:         []string{"React"},
		Status:            StatusHumanReview,
		Score:             55,
		Confidence:        0.8,
		DraftEmailSubject: "Hi",
		DraftEmailBody:    "Body",
		SocialProfiles:    SocialProfiles{LinkedIn: "https://linkedin.com/company/acme"},
	}
	drifted := &Lead{
		LeadID:         "lead-1",
		CompanyName:    "Acme Corp",
		TechStack:      []string{"Vue", "Go"},
		Status:         StatusFailed,
		Score:          3,
		DraftEmailBody: "",
		ErrorMessage:   "boom",
		HumanFeedback:  "stale",
	}

	SnapshotDelta(want).Apply(drifted)
	assert.Equal(t, want, drifted)
}

func TestSnapshotDelta_DoesNotAlias(t *testing.T) {
	src := &Lead{TechStack: []string{"React"}}
	d := SnapshotDelta(src)
	src.TechStack[0] = "Vue"
	assert.Equal(t, []string{"React"}, *d.TechStack)
}
