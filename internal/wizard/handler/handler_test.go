package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"taxportal/internal/backoffice"
	"taxportal/internal/claims"
	"taxportal/internal/ratelimit"
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/service"
	"taxportal/internal/wizard/store"
	"taxportal/pkg/platform/middleware/admin"
	"taxportal/pkg/testutil"
)

const session = "browser-session-1"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	office *backoffice.InMemory
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := flow.NewRegistry()
	s.Require().NoError(registry.Register(claims.Flow()))
	s.office = backoffice.NewInMemory()
	svc := service.New(registry, store.NewInMemory(), s.office, service.WithLogger(logger))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken("secret", logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

type response struct {
	code     int
	location string
	body     string
	rr       *httptest.ResponseRecorder
}

func (s *HandlerSuite) do(req *http.Request) *response {
	rr := testutil.DoRequest(s.router, testutil.WithSession(req, session))
	return &response{code: rr.Code, location: rr.Header().Get("Location"), body: rr.Body.String(), rr: rr}
}

func (s *HandlerSuite) start() {
	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/start?return_reference=LBTT-1A2B3C4D"))
	s.Require().Equal(http.StatusSeeOther, res.code)
	s.Require().Equal("/wizards/repayment-claim/steps/claimant_type", res.location)
}

func (s *HandlerSuite) postJSON(step string, body any) *response {
	return s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/wizards/repayment-claim/steps/"+step, body))
}

func (s *HandlerSuite) TestGuardRedirects() {
	s.Run("no session redirects to start", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/steps/bank"))
		s.Equal(http.StatusSeeOther, res.code)
		s.Equal("/wizards/repayment-claim/start", res.location)
	})

	s.start()

	s.Run("unreached step redirects to the cursor", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/steps/bank"))
		s.Equal(http.StatusSeeOther, res.code)
		s.Equal("/wizards/repayment-claim/steps/claimant_type", res.location)
	})

	s.Run("posting to an unreached step redirects too", func() {
		res := s.postJSON("declaration", map[string]string{"declaration": "yes"})
		s.Equal(http.StatusSeeOther, res.code)
		s.Equal("/wizards/repayment-claim/steps/claimant_type", res.location)
	})
}

func (s *HandlerSuite) TestShowStep() {
	s.start()

	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/steps/claimant_type"))
	s.Equal(http.StatusOK, res.code)
	s.Contains(res.body, `"step":"claimant_type"`)
	s.Contains(res.body, `"return_reference":"LBTT-1A2B3C4D"`)
}

func (s *HandlerSuite) TestFormSubmissionAdvances() {
	s.start()

	res := s.do(testutil.NewFormRequest(s.T(), "/wizards/repayment-claim/steps/claimant_type", map[string]string{
		"claimant_type": "agent",
	}))
	s.Equal(http.StatusSeeOther, res.code)
	s.Equal("/wizards/repayment-claim/steps/agent", res.location)

	res = s.do(testutil.NewFormRequest(s.T(), "/wizards/repayment-claim/steps/agent", map[string]string{
		"agent.name":  "Agent LLP",
		"agent.email": "claims@agent.example.com",
	}))
	s.Equal(http.StatusSeeOther, res.code)
	s.Equal("/wizards/repayment-claim/steps/taxpayer", res.location)
}

func (s *HandlerSuite) TestValidationErrors() {
	s.start()

	res := s.postJSON("claimant_type", map[string]string{"claimant_type": "landlord"})
	s.Equal(http.StatusUnprocessableEntity, res.code)
	s.Contains(res.body, `"error":"validation_error"`)
	s.Contains(res.body, `"claimant_type":"is not an allowed option"`)
	s.Contains(res.body, `"model"`)
}

// walkToDeclaration answers every claim step before the declaration.
func (s *HandlerSuite) walkToDeclaration(amount any) {
	s.start()

	steps := []struct {
		step string
		body map[string]any
		next string
	}{
		{"claimant_type", map[string]any{"claimant_type": "taxpayer"}, "taxpayer"},
		{"taxpayer", map[string]any{"taxpayer": map[string]any{"name": "A Taxpayer", "address": "1 Street", "postcode": "EH1 1AA"}}, "reason"},
		{"reason", map[string]any{"reason": "amended_return"}, "amount"},
		{"amount", map[string]any{"amount": amount}, "bank"},
		{"bank", map[string]any{"bank": map[string]any{"account_name": "A Taxpayer", "sort_code": "12-34-56", "account_number": "12345678"}}, "declaration"},
	}
	for _, st := range steps {
		res := s.postJSON(st.step, st.body)
		s.Require().Equal(http.StatusSeeOther, res.code, st.step+": "+res.body)
		s.Require().Equal("/wizards/repayment-claim/steps/"+st.next, res.location)
	}
}

func (s *HandlerSuite) TestFullWalkReturnsReceipt() {
	s.walkToDeclaration("1204.50")

	res := s.postJSON("declaration", map[string]any{"declaration": "yes"})
	s.Require().Equal(http.StatusCreated, res.code, res.body)
	receipt := testutil.UnmarshalResponse[backoffice.Receipt](s.T(), res.rr)
	s.True(strings.HasPrefix(receipt.Reference, "CLAIM-"))

	sub, ok := s.office.Submission(receipt.Reference)
	s.Require().True(ok)
	s.Equal("1204.50", sub.Model["amount"])

	after := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/steps/declaration"))
	s.Equal(http.StatusSeeOther, after.code)
	s.Equal("/wizards/repayment-claim/start", after.location)
}

func (s *HandlerSuite) TestJSONTypedAnswers() {
	s.walkToDeclaration(1250.5)

	res := s.postJSON("declaration", map[string]any{"declaration": true})
	s.Require().Equal(http.StatusCreated, res.code, res.body)
	receipt := testutil.UnmarshalResponse[backoffice.Receipt](s.T(), res.rr)

	sub, ok := s.office.Submission(receipt.Reference)
	s.Require().True(ok)
	s.Equal("1250.5", sub.Model["amount"])
	s.Equal("true", sub.Model["declaration"])
}

func (s *HandlerSuite) TestUntickedDeclarationIsRejected() {
	s.walkToDeclaration("10.00")

	res := s.postJSON("declaration", map[string]any{"declaration": false})
	s.Equal(http.StatusUnprocessableEntity, res.code)
	s.Contains(res.body, `"declaration":"must be accepted"`)
}

func (s *HandlerSuite) TestDraftAndResume() {
	s.start()
	res := s.postJSON("claimant_type", map[string]any{"claimant_type": "taxpayer"})
	s.Require().Equal(http.StatusSeeOther, res.code)

	res = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/wizards/repayment-claim/draft"))
	s.Require().Equal(http.StatusOK, res.code)
	draft := testutil.UnmarshalResponse[draftResponse](s.T(), res.rr)
	s.True(strings.HasPrefix(draft.Reference, "CLAIM-"))

	res = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/wizards/repayment-claim/cancel"))
	s.Require().Equal(http.StatusNoContent, res.code)

	res = s.do(testutil.NewFormRequest(s.T(), "/wizards/repayment-claim/resume", map[string]string{"reference": draft.Reference}))
	s.Require().Equal(http.StatusSeeOther, res.code)
	s.Equal("/wizards/repayment-claim/steps/claimant_type", res.location)

	res = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/steps/taxpayer"))
	s.Equal(http.StatusOK, res.code)
}

func (s *HandlerSuite) TestErrors() {
	s.Run("unknown wizard", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/wizards/nope/start"))
		s.Equal(http.StatusNotFound, res.code)
		s.Contains(res.body, `"error":"not_found"`)
	})

	s.Run("unknown draft", func() {
		res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/wizards/repayment-claim/resume", map[string]string{"reference": "CLAIM-00000000"}))
		s.Equal(http.StatusNotFound, res.code)
	})

	s.Run("malformed json", func() {
		s.start()
		res := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/wizards/repayment-claim/steps/claimant_type", `["not","an","object"]`))
		s.Equal(http.StatusBadRequest, res.code)
	})

	s.Run("missing session", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/wizards/repayment-claim/start"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *HandlerSuite) TestAdminRoutes() {
	s.start()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/wizards/repayment-claim/sessions/"+session)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	req = testutil.NewRequest(s.T(), http.MethodGet, "/admin/wizards/repayment-claim/sessions/"+session)
	req.Header.Set("X-Admin-Token", "secret")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "step", "claimant_type")

	req = testutil.NewRequest(s.T(), http.MethodDelete, "/admin/wizards/repayment-claim/sessions/"+session)
	req.Header.Set("X-Admin-Token", "secret")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	req = testutil.NewRequest(s.T(), http.MethodGet, "/admin/wizards/repayment-claim/sessions/"+session)
	req.Header.Set("X-Admin-Token", "secret")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func TestReferenceRoutesAreLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := flow.NewRegistry()
	require.NoError(t, registry.Register(claims.Flow()))
	svc := service.New(registry, store.NewInMemory(), backoffice.NewInMemory(), service.WithLogger(logger))

	limits := ratelimit.New(ratelimit.NewInMemory(), logger)
	h := New(svc, logger, WithReferenceLimit(limits.Limit(ratelimit.Policy{Class: "reference", Limit: 2, Window: time.Minute})))
	r := chi.NewRouter()
	h.Register(r)

	resume := func() int {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/wizards/repayment-claim/resume", map[string]string{"reference": "CLAIM-DEADBEEF"})
		return testutil.DoRequest(r, testutil.WithSession(req, session)).Code
	}
	assert.Equal(t, http.StatusNotFound, resume())
	assert.Equal(t, http.StatusNotFound, resume())
	assert.Equal(t, http.StatusTooManyRequests, resume())

	rr := testutil.DoRequest(r, testutil.WithSession(testutil.NewRequest(t, http.MethodGet, "/wizards/repayment-claim/start"), session))
	assert.Equal(t, http.StatusSeeOther, rr.Code, "step routes are not limited")
}
