package e2e

import (
	"github.com/cucumber/godog"

	"taxportal/e2e/steps/common"
	"taxportal/e2e/steps/wizard"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	wizard.RegisterSteps(ctx, tc)
}
