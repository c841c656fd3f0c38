package flow

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"taxportal/internal/wizard/models"
)

type testClaim struct {
	ClaimantType string `json:"claimant_type"`
	Agent        struct {
		Name string `json:"name"`
	} `json:"agent"`
	Reason string `json:"reason"`
	Amount int    `json:"amount"`
}

func testFlow() *Flow[testClaim] {
	return MustNew("test-claim", "CLAIM",
		Step[testClaim]{
			Name:   "claimant",
			Fields: []string{"claimant_type"},
			Validate: func(m *testClaim) models.FieldErrors {
				errs := models.FieldErrors{}
				if m.ClaimantType == "" {
					errs.Add("claimant_type", "is required")
				}
				return errs
			},
		},
		Step[testClaim]{
			Name:   "agent",
			Fields: []string{"agent.name"},
			When:   func(m *testClaim) bool { return m.ClaimantType == "agent" },
		},
		Step[testClaim]{
			Name:   "reason",
			Fields: []string{"reason"},
			Next: func(m *testClaim) string {
				if m.Reason == "amended" {
					return "amount"
				}
				return ""
			},
		},
		Step[testClaim]{Name: "evidence"},
		Step[testClaim]{
			Name:   "amount",
			Fields: []string{"amount"},
			Validate: func(m *testClaim) models.FieldErrors {
				errs := models.FieldErrors{}
				if m.Amount <= 0 {
					errs.Add("amount", "must be positive")
				}
				return errs
			},
		},
	).WithSetup(func(m *testClaim, params models.Document) {
		if v, ok := params["claimant_type"].(string); ok {
			m.ClaimantType = v
		}
	})
}

type FlowSuite struct {
	suite.Suite
	flow *Flow[testClaim]
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.flow = testFlow()
}

func (s *FlowSuite) TestConstruction() {
	s.Run("duplicate step names are rejected", func() {
		_, err := New("dup", "X", Step[testClaim]{Name: "a"}, Step[testClaim]{Name: "a"})
		s.Error(err)
	})

	s.Run("empty tables are rejected", func() {
		_, err := New[testClaim]("empty", "X")
		s.Error(err)
	})

	s.Run("conditional first step is rejected", func() {
		_, err := New("cond", "X", Step[testClaim]{Name: "a", When: func(*testClaim) bool { return true }})
		s.Error(err)
	})

	s.Run("metadata", func() {
		s.Equal("test-claim", s.flow.Name())
		s.Equal("CLAIM", s.flow.Form())
		s.Equal("claimant", s.flow.First())
		s.Equal([]string{"claimant", "agent", "reason", "evidence", "amount"}, s.flow.Steps())
		s.True(s.flow.Has("agent"))
		s.False(s.flow.Has("bank"))
		s.Equal([]string{"agent.name"}, s.flow.Fields("agent"))
		s.Nil(s.flow.Fields("bank"))
	})
}

func (s *FlowSuite) TestNext() {
	s.Run("agent step is skipped for taxpayers", func() {
		next, done, err := s.flow.Next("claimant", models.Document{"claimant_type": "taxpayer"})
		s.Require().NoError(err)
		s.False(done)
		s.Equal("reason", next)
	})

	s.Run("agent step is included for agents", func() {
		next, _, err := s.flow.Next("claimant", models.Document{"claimant_type": "agent"})
		s.Require().NoError(err)
		s.Equal("agent", next)
	})

	s.Run("explicit branch jumps ahead", func() {
		next, _, err := s.flow.Next("reason", models.Document{"reason": "amended"})
		s.Require().NoError(err)
		s.Equal("amount", next)
	})

	s.Run("empty branch falls back to table order", func() {
		next, _, err := s.flow.Next("reason", models.Document{"reason": "overpaid"})
		s.Require().NoError(err)
		s.Equal("evidence", next)
	})

	s.Run("last step is done", func() {
		next, done, err := s.flow.Next("amount", models.Document{})
		s.Require().NoError(err)
		s.True(done)
		s.Empty(next)
	})

	s.Run("unknown step is an error", func() {
		_, _, err := s.flow.Next("bank", models.Document{})
		s.Error(err)
	})
}

func (s *FlowSuite) TestBranchToUnknownStep() {
	f := MustNew("broken", "X",
		Step[testClaim]{Name: "a", Next: func(*testClaim) string { return "nowhere" }},
		Step[testClaim]{Name: "b"},
	)
	_, _, err := f.Next("a", models.Document{})
	s.Error(err)
}

func (s *FlowSuite) TestPath() {
	path, err := s.flow.Path(models.Document{"claimant_type": "agent", "reason": "amended"})
	s.Require().NoError(err)
	s.Equal([]string{"claimant", "agent", "reason", "amount"}, path)

	path, err = s.flow.Path(models.Document{"claimant_type": "taxpayer"})
	s.Require().NoError(err)
	s.Equal([]string{"claimant", "reason", "evidence", "amount"}, path)
}

func (s *FlowSuite) TestPathDetectsLoops() {
	f := MustNew("loop", "X",
		Step[testClaim]{Name: "a"},
		Step[testClaim]{Name: "b", Next: func(*testClaim) string { return "a" }},
	)
	_, err := f.Path(models.Document{})
	s.Error(err)
}

func (s *FlowSuite) TestNormalize() {
	s.Run("form strings are coerced and unknown keys dropped", func() {
		doc, errs, err := s.flow.Normalize("amount", models.Document{"amount": "1200", "stray": "x"})
		s.Require().NoError(err)
		s.Empty(errs)
		s.Equal(float64(1200), doc["amount"])
		s.NotContains(doc, "stray")
	})

	s.Run("step validation runs", func() {
		_, errs, err := s.flow.Normalize("amount", models.Document{"amount": "0"})
		s.Require().NoError(err)
		s.Equal("must be positive", errs["amount"])
	})

	s.Run("undecodable input is a form error", func() {
		_, errs, err := s.flow.Normalize("amount", models.Document{"agent": "not-an-object"})
		s.Require().NoError(err)
		s.Contains(errs, "_form")
	})
}

func (s *FlowSuite) TestValidatePath() {
	step, errs, err := ValidatePath(s.flow, models.Document{"claimant_type": "taxpayer", "amount": 10})
	s.Require().NoError(err)
	s.Empty(step)
	s.Empty(errs)

	step, errs, err = ValidatePath(s.flow, models.Document{"claimant_type": "taxpayer"})
	s.Require().NoError(err)
	s.Equal("amount", step)
	s.Contains(errs, "amount")
}

func (s *FlowSuite) TestSetup() {
	doc, err := s.flow.Setup(models.Document{"claimant_type": "agent"})
	s.Require().NoError(err)
	s.Equal("agent", doc["claimant_type"])
	s.Contains(doc, "agent")
}

func (s *FlowSuite) TestRegistry() {
	r := NewRegistry()
	s.Require().NoError(r.Register(s.flow))
	s.Error(r.Register(testFlow()))

	got, err := r.Get("test-claim")
	s.Require().NoError(err)
	s.Equal("CLAIM", got.Form())

	_, err = r.Get("missing")
	s.Error(err)
	s.Equal([]string{"test-claim"}, r.Names())
}
