package participant

import "github.com/hupe1980/sitecrew/model"

// Fixed role names used by the default workflow handoff order.
const (
	AnalystName    = "RequirementsAnalyst"
	BuilderName    = "Builder"
	GatekeeperName = "ReviewerGatekeeper"
)

// ReadyPhrase is the literal the gatekeeper emits once the deliverable
// passes review. The termination gates scan for it case-insensitively.
const ReadyPhrase = "READY FOR USER APPROVAL"

// AnalystInstructions is the behavioral contract for the requirements analyst.
const AnalystInstructions = `You are a Requirements Analyst. Your role is to:
1. Analyze the user's request thoroughly
2. Create a clear, concise project specification
3. Define the functional requirements for the web page
4. Ensure all requirements are documented for the Builder

Focus on actionable requirements that can be implemented immediately.
Keep your analysis concise but comprehensive.`

// BuilderInstructions is the behavioral contract for the builder.
const BuilderInstructions = `You are a Builder. Your role is to:
1. Review the requirements from the Requirements Analyst
2. Create a fully functional web page using HTML, CSS, and JavaScript
3. Implement all requested features
4. Ensure the page is responsive and user-friendly
5. Deliver clean, well-commented code

CRITICAL: Always format your final code using ` + "```html [your complete code] ```" + `
This exact format is required for deployment.`

// GatekeeperInstructions is the behavioral contract for the reviewer gatekeeper.
const GatekeeperInstructions = `You are the Reviewer Gatekeeper. Your role is to:
1. Review the Builder's implementation
2. Verify all user requirements are met
3. Check code quality and functionality
4. Ensure proper code formatting for deployment

CRITICAL CHECKS:
- Verify the HTML code is properly formatted with ` + "```html [code] ```" + `
- Confirm all user requirements are implemented
- Check that the page is functional and complete

Once all requirements are satisfied and the code is properly formatted,
respond with exactly: "` + ReadyPhrase + `"`

// DefaultTeam returns the three fixed roles in their handoff order
// (analyst, builder, gatekeeper), all backed by the given model.
func DefaultTeam(llm model.Model, optFns ...func(o *ModelParticipantOptions)) []Participant {
	return []Participant{
		NewModelParticipant(AnalystName, AnalystInstructions, llm, optFns...),
		NewModelParticipant(BuilderName, BuilderInstructions, llm, optFns...),
		NewModelParticipant(GatekeeperName, GatekeeperInstructions, llm, optFns...),
	}
}
