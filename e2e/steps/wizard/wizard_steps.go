package wizard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	DELETE(path string, headers map[string]string) error
	POST(path string, body any) error
	PostForm(path string, form url.Values) error
	GetResponseField(field string) (any, error)
	GetAdminToken() string
	Remember(name, value string)
	Recall(name string) string
	Reset()
}

// RegisterSteps registers wizard navigation steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &wizardSteps{tc: tc}

	ctx.Step(`^I start the "([^"]*)" wizard$`, steps.start)
	ctx.Step(`^I start the "([^"]*)" wizard with "([^"]*)"$`, steps.startWithQuery)
	ctx.Step(`^I open step "([^"]*)" of "([^"]*)"$`, steps.openStep)
	ctx.Step(`^I submit step "([^"]*)" of "([^"]*)" with:$`, steps.submitStep)
	ctx.Step(`^I save a draft of "([^"]*)"$`, steps.saveDraft)
	ctx.Step(`^I remember the draft reference$`, steps.rememberReference)
	ctx.Step(`^I cancel "([^"]*)"$`, steps.cancel)
	ctx.Step(`^I switch to a new browser$`, steps.newBrowser)
	ctx.Step(`^I resume "([^"]*)" with the remembered reference$`, steps.resume)
	ctx.Step(`^I resume "([^"]*)" with reference "([^"]*)"$`, steps.resumeWith)
	ctx.Step(`^an administrator inspects session "([^"]*)" of "([^"]*)"$`, steps.inspect)
}

type wizardSteps struct {
	tc TestContext
}

func base(wizard string) string {
	return "/wizards/" + url.PathEscape(wizard)
}

func (s *wizardSteps) start(_ context.Context, wizard string) error {
	return s.tc.GET(base(wizard)+"/start", nil)
}

func (s *wizardSteps) startWithQuery(_ context.Context, wizard, query string) error {
	return s.tc.GET(base(wizard)+"/start?"+query, nil)
}

func (s *wizardSteps) openStep(_ context.Context, step, wizard string) error {
	return s.tc.GET(base(wizard)+"/steps/"+url.PathEscape(step), nil)
}

// submitStep posts a two-column field/value table as a form.
func (s *wizardSteps) submitStep(_ context.Context, step, wizard string, table *godog.Table) error {
	form := url.Values{}
	for i, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("row %d: expected field and value", i+1)
		}
		field, value := row.Cells[0].Value, row.Cells[1].Value
		if i == 0 && field == "field" {
			continue
		}
		form.Set(field, value)
	}
	return s.tc.PostForm(base(wizard)+"/steps/"+url.PathEscape(step), form)
}

func (s *wizardSteps) saveDraft(_ context.Context, wizard string) error {
	return s.tc.POST(base(wizard)+"/draft", nil)
}

func (s *wizardSteps) rememberReference(context.Context) error {
	v, err := s.tc.GetResponseField("reference")
	if err != nil {
		return err
	}
	ref, ok := v.(string)
	if !ok || strings.TrimSpace(ref) == "" {
		return fmt.Errorf("no draft reference in response")
	}
	s.tc.Remember("reference", ref)
	return nil
}

func (s *wizardSteps) cancel(_ context.Context, wizard string) error {
	return s.tc.POST(base(wizard)+"/cancel", nil)
}

func (s *wizardSteps) newBrowser(context.Context) error {
	ref := s.tc.Recall("reference")
	s.tc.Reset()
	s.tc.Remember("reference", ref)
	return nil
}

func (s *wizardSteps) resume(ctx context.Context, wizard string) error {
	return s.resumeWith(ctx, wizard, s.tc.Recall("reference"))
}

func (s *wizardSteps) resumeWith(_ context.Context, wizard, reference string) error {
	return s.tc.PostForm(base(wizard)+"/resume", url.Values{"reference": {reference}})
}

func (s *wizardSteps) inspect(_ context.Context, session, wizard string) error {
	return s.tc.GET("/admin"+base(wizard)+"/sessions/"+url.PathEscape(session), map[string]string{
		"X-Admin-Token": s.tc.GetAdminToken(),
	})
}
