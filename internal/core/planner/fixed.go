package planner

import (
	"fmt"
	"time"

	"vmdesk.app/internal/core/domain"
)

const masterTopic = "AI automation tools 2024"

const masterResearch = `
RESEARCH & ANALYSIS MISSION:

1. Open browser and research "AI automation tools 2024"
2. Find top 5 companies in this space and analyze:
   - Their main products and features
   - Pricing models
   - Market positioning
   - Recent news and developments

3. Open text editor and create detailed competitive analysis:
   - Company comparison table
   - Strengths and weaknesses
   - Market opportunities
   - Key insights for strategy

4. Save research as 'competitive_analysis.txt'
5. Take screenshot of your findings

This research will feed into VM2's financial analysis and VM3's presentation.
`

const masterProcessing = `
DATA PROCESSING & FINANCIAL MODELING MISSION:

1. Open spreadsheet application (Numbers/Excel)
2. Create comprehensive financial analysis for AI automation market:
   - Market size calculations ($50B+ market)
   - Revenue projections for next 3 years
   - Cost analysis for different business models
   - ROI calculations for automation investments

3. Build interactive charts and graphs:
   - Market growth trends (line chart)
   - Company revenue comparison (bar chart)
   - Cost breakdown analysis (pie chart)
   - Investment scenarios (scenario analysis)

4. Create financial dashboard with key metrics
5. Export as 'financial_analysis.xlsx'
6. Take screenshot of your dashboard

This financial data will be used in VM3's executive presentation.
`

const masterPresentation = `
PRESENTATION & DELIVERABLE CREATION MISSION:

1. Open presentation software (Keynote/PowerPoint)
2. Create executive-level presentation on "AI Automation Market Analysis":

   SLIDE STRUCTURE:
   - Title: "AI Automation Market Analysis 2024"
   - Executive Summary (key findings)
   - Market Overview & Size
   - Competitive Landscape (top 5 players)
   - Financial Projections & ROI
   - Strategic Recommendations
   - Investment Opportunities
   - Next Steps & Timeline

3. Use professional design with:
   - Consistent branding and colors
   - High-quality charts and visuals
   - Clean, executive-friendly layout

4. Create separate summary document (1-page brief)
5. Save presentation as 'AI_Automation_Analysis.pptx'
6. Take screenshot of key slides

This presentation combines research from VM1 and financial data from VM2.
`

func buildMaster(domain.Request) (*domain.Plan, error) {
	return &domain.Plan{
		Category: domain.CategoryBusiness,
		Topic:    masterTopic,
		Stages: singleStage(10*time.Second,
			task(1, "Research & competitive analysis", masterResearch, 0, plainLabels),
			task(2, "Data processing & financial modeling", masterProcessing, 0, plainLabels),
			task(3, "Presentation & final deliverable", masterPresentation, 0, plainLabels),
		),
	}, nil
}

const ecommerceTopic = "e-commerce trends 2024"

const (
	ecommerceResearch = `
E-COMMERCE RESEARCH:
1. Research top e-commerce trends for 2024
2. Analyze Amazon, Shopify, and emerging platforms
3. Study consumer behavior changes
4. Create market research document
`
	ecommerceAnalytics = `
E-COMMERCE ANALYTICS:
1. Create sales performance dashboards
2. Build customer acquisition cost models
3. Analyze conversion rate optimization
4. Generate financial projections
`
	ecommerceStrategy = `
E-COMMERCE STRATEGY:
1. Create business strategy presentation
2. Design marketing campaign materials
3. Build investor pitch deck
4. Create implementation roadmap
`
)

func buildEcommerce(domain.Request) (*domain.Plan, error) {
	return &domain.Plan{
		Category: domain.CategoryBusiness,
		Topic:    ecommerceTopic,
		Stages: singleStage(0,
			task(1, "E-commerce market research", ecommerceResearch, 0, plainLabels),
			task(2, "E-commerce data analytics", ecommerceAnalytics, 0, plainLabels),
			task(3, "E-commerce strategy presentation", ecommerceStrategy, 0, plainLabels),
		),
	}, nil
}

const distributedStagger = 5 * time.Second

func buildDistributed(req domain.Request) (*domain.Plan, error) {
	topic := req.Prompt

	vm1 := fmt.Sprintf(`
Open a browser and research %[1]s.
1. Search for the latest news and articles about %[1]s
2. Open 3-4 relevant websites
3. Take notes in a text editor about key findings
4. Save the research summary to a file called 'research_findings.txt'
`, topic)
	vm2 := fmt.Sprintf(`
1. Open a spreadsheet application (Numbers or Excel)
2. Create a comparison table analyzing different aspects of %[1]s
3. Add charts and graphs to visualize trends
4. Calculate statistics and create a summary
5. Export the analysis as 'data_analysis.csv'
`, topic)
	vm3 := fmt.Sprintf(`
1. Open presentation software (Keynote or PowerPoint)
2. Create a professional presentation about %[1]s
3. Include title slide, key findings, data visualization, and conclusions
4. Add a slide with recommendations and future outlook
5. Save the presentation as '%[2]s_presentation.pptx'
`, topic, Slug(topic))

	return &domain.Plan{
		Category: domain.CategoryResearch,
		Topic:    topic,
		Stages: singleStage(0,
			task(1, "Research and data gathering", vm1, 0, plainLabels),
			task(2, "Data processing and analysis", vm2, distributedStagger, plainLabels),
			task(3, "Presentation and final output", vm3, 2*distributedStagger, plainLabels),
		),
	}, nil
}
