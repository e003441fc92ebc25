package planner

import (
	"fmt"

	"vmdesk.app/internal/core/domain"
)

var singleKeywords = Keywords{
	Research: []string{"research", "analyze", "study", "investigate", "find", "search", "explore", "learn"},
	Business: []string{"business", "company", "market", "strategy", "plan", "startup", "competitive"},
	Creative: []string{"create", "design", "build", "make", "write", "develop", "content"},
}

// buildSingle folds the research, analysis and presentation phases into one
// prompt for a single VM.
func buildSingle(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt
	category := Classify(p, singleKeywords)

	var prompt string
	switch category {
	case domain.CategoryResearch:
		prompt = fmt.Sprintf(`
INTELLIGENT RESEARCH & ANALYSIS TASK for: "%[1]s"

MULTI-STEP WORKFLOW:

PHASE 1 - RESEARCH:
1. Open browser and conduct comprehensive research on: %[1]s
2. Search multiple authoritative sources (news, academic, industry reports)
3. Gather current statistics, trends, and key data points
4. Take detailed notes and organize findings

PHASE 2 - ANALYSIS:
5. Open spreadsheet application
6. Create data analysis with charts and visualizations
7. Identify patterns, trends, and key insights
8. Generate comparative analysis and metrics

PHASE 3 - PRESENTATION:
9. Open presentation software
10. Create professional presentation with:
    - Executive summary of findings
    - Key data and visualizations
    - Insights and recommendations
    - Professional formatting and design

11. Save all outputs: 'research_notes.txt', 'analysis.xlsx', 'presentation.pptx'
12. Take screenshots of key findings
`, p)

	case domain.CategoryBusiness:
		prompt = fmt.Sprintf(`
INTELLIGENT BUSINESS ANALYSIS TASK for: "%[1]s"

COMPREHENSIVE BUSINESS WORKFLOW:

MARKET RESEARCH PHASE:
1. Research market conditions and industry landscape for: %[1]s
2. Analyze competitors and market opportunities
3. Gather financial data and industry benchmarks
4. Study customer needs and market trends

FINANCIAL ANALYSIS PHASE:
5. Open spreadsheet and create financial models
6. Build revenue projections and cost analysis
7. Calculate ROI and investment scenarios
8. Create business case with financial projections

STRATEGY & PRESENTATION PHASE:
9. Develop strategic recommendations
10. Create executive business presentation with:
    - Market opportunity analysis
    - Competitive positioning
    - Financial projections and ROI
    - Strategic roadmap and action plan
    - Risk analysis and mitigation

11. Generate final deliverables and executive summary
`, p)

	case domain.CategoryCreative:
		prompt = fmt.Sprintf(`
INTELLIGENT CREATIVE DEVELOPMENT TASK for: "%[1]s"

CREATIVE WORKFLOW PROCESS:

RESEARCH & INSPIRATION PHASE:
1. Research best practices and examples for: %[1]s
2. Gather inspiration, references, and benchmarks
3. Study target audience and requirements
4. Collect resources and creative assets

DEVELOPMENT & PROCESSING PHASE:
5. Process research into structured framework
6. Create content outlines and development plan
7. Build supporting materials and resources
8. Organize and structure creative elements

CREATION & PRESENTATION PHASE:
9. Create the final deliverable for: %[1]s
10. Design professional presentation showcasing:
    - Creative concept and approach
    - Development process and rationale
    - Final output with professional formatting
    - Implementation guidelines
    - Next steps and recommendations

11. Generate multiple format outputs and documentation
`, p)

	default:
		prompt = fmt.Sprintf(`
INTELLIGENT COMPREHENSIVE ANALYSIS TASK for: "%[1]s"

COMPLETE ANALYSIS WORKFLOW:

INFORMATION GATHERING:
1. Conduct thorough research on: %[1]s
2. Gather data from multiple reliable sources
3. Collect current information, trends, and insights
4. Document findings systematically

DATA PROCESSING & ANALYSIS:
5. Analyze and process all gathered information
6. Create structured analysis with visualizations
7. Identify key patterns, trends, and insights
8. Generate actionable recommendations

FINAL DELIVERABLE CREATION:
9. Create comprehensive presentation including:
    - Executive summary and key findings
    - Detailed analysis with supporting data
    - Visual representations and charts
    - Conclusions and recommendations
    - Implementation roadmap

10. Generate final polished deliverables
11. Create summary report and documentation
`, p)
	}

	return &domain.Plan{
		Category: category,
		Topic:    p,
		Stages: singleStage(0,
			task(1, "Research, analysis and presentation on one VM", prompt, 0, plainLabels),
		),
	}, nil
}

// buildVerbatim sends the user's instruction as is.
func buildVerbatim(req domain.Request) (*domain.Plan, error) {
	return &domain.Plan{
		Topic:  req.Prompt,
		Stages: singleStage(0, task(1, "Direct instruction", req.Prompt, 0, plainLabels)),
	}, nil
}

const checkInstruction = "Open the calculator app"

// buildCheck ignores the prompt; it only proves a session can be opened and driven.
func buildCheck(domain.Request) (*domain.Plan, error) {
	return &domain.Plan{
		Topic:  checkInstruction,
		Stages: singleStage(0, task(1, "Connection check", checkInstruction, 0, plainLabels)),
	}, nil
}
