package planner

import (
	"fmt"
	"time"

	"vmdesk.app/internal/core/domain"
)

var onePromptKeywords = Keywords{
	Research: []string{"research", "analyze", "study", "investigate", "explore", "find"},
	Business: []string{"business", "market", "strategy", "startup", "company", "competitive"},
	Creative: []string{"create", "design", "build", "develop", "make", "write"},
}

const onePromptMonitor = 5 * time.Second

var (
	onePromptResearch     = labels{waiting: "Ready", working: "Researching...", done: "Research Complete"}
	onePromptProcessing   = labels{waiting: "Ready", working: "Processing...", done: "Processing Complete"}
	onePromptPresentation = labels{waiting: "Ready", working: "Creating presentation...", done: "Presentation Complete"}
)

func buildOnePrompt(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt
	slug := Slug(p)
	category := Classify(p, onePromptKeywords)

	var focus [3]string
	var vm1, vm2, vm3 string
	switch category {
	case domain.CategoryResearch:
		focus = [3]string{
			"Comprehensive research and data gathering",
			"Data analysis and insights generation",
			"Research findings presentation",
		}
		vm1 = fmt.Sprintf(`
OPTIMIZED RESEARCH TASK for: "%[1]s"

SPEED-OPTIMIZED WORKFLOW (minimal screenshots):
1. Open browser and search for: %[1]s
2. Quickly scan top 3-4 results without taking screenshots
3. Copy key text data directly from reliable sources
4. Open text editor immediately and paste findings
5. Organize data efficiently: statistics, trends, key facts
6. Save as 'research_%[2]s.txt' quickly
7. Focus on text data collection, avoid visual browsing

PRIORITY: Speed and data collection over visual confirmation.
`, p, slug)
		vm2 = fmt.Sprintf(`
FAST DATA ANALYSIS for: "%[1]s"

SPEED-OPTIMIZED WORKFLOW (minimal screenshots):
1. Open spreadsheet application quickly
2. Create simple data tables with key metrics only
3. Build essential charts (avoid complex formatting):
   - Basic trend line chart
   - Simple bar chart for comparisons
   - Quick summary metrics
4. Focus on data insights over visual perfection
5. Export quickly as 'analysis_%[2]s.xlsx'
6. Prioritize speed: simple formatting, essential analysis only

PRIORITY: Fast insights over visual polish.
`, p, slug)
		vm3 = fmt.Sprintf(`
RAPID PRESENTATION for: "%[1]s"

SPEED-OPTIMIZED WORKFLOW (minimal screenshots):
1. Open presentation software and select basic template
2. Create streamlined presentation (5-7 slides max):
   - Title slide
   - Key findings (1-2 slides)
   - Essential data (1 slide)
   - Conclusions (1 slide)
3. Use simple formatting, avoid complex animations
4. Focus on content over design perfection
5. Save quickly as 'presentation_%[2]s.pptx'
6. Prioritize speed: essential slides only

PRIORITY: Fast deliverable over visual perfection.
`, p, slug)

	case domain.CategoryBusiness:
		focus = [3]string{
			"Market research and competitive analysis",
			"Financial modeling and business analytics",
			"Business strategy presentation",
		}
		vm1 = fmt.Sprintf(`
FAST BUSINESS RESEARCH for: "%[1]s"

SPEED-OPTIMIZED (minimal screenshots):
1. Quick search for market data and industry info
2. Copy key competitor information directly
3. Gather essential market size and trend data
4. Focus on text-based data collection
5. Save quickly as 'business_research_%[2]s.txt'
6. Prioritize speed over comprehensive browsing
`, p, slug)
		vm2 = fmt.Sprintf(`
RAPID BUSINESS ANALYSIS for: "%[1]s"

SPEED-OPTIMIZED (minimal screenshots):
1. Create basic financial model with essential metrics
2. Simple ROI calculations and cost estimates
3. Quick market projections (basic formulas)
4. Essential competitive positioning table
5. Export quickly as 'business_analysis_%[2]s.xlsx'
6. Focus on core numbers over complex modeling
`, p, slug)
		vm3 = fmt.Sprintf(`
FAST BUSINESS PRESENTATION for: "%[1]s"

SPEED-OPTIMIZED (minimal screenshots):
1. Create simple business presentation (5-6 slides)
2. Essential market data and key financial metrics
3. Basic recommendations and next steps
4. Use simple template, minimal formatting
5. Save quickly as 'business_plan_%[2]s.pptx'
6. Prioritize content delivery over design polish
`, p, slug)

	case domain.CategoryCreative:
		focus = [3]string{
			"Creative research and inspiration gathering",
			"Content development and structure",
			"Creative deliverable design",
		}
		vm1 = fmt.Sprintf(`
CREATIVE RESEARCH for: "%[1]s"

1. Research best practices and examples
2. Gather inspiration and reference materials
3. Study target audience and requirements
4. Collect creative assets and resources
5. Save research as 'creative_research_%[2]s.txt'
`, p, slug)
		vm2 = fmt.Sprintf(`
CREATIVE DEVELOPMENT for: "%[1]s"

1. Process research into structured framework
2. Create content outlines and development plan
3. Organize materials and structure elements
4. Build supporting resources and templates
5. Export as 'creative_framework_%[2]s.xlsx'
`, p, slug)
		vm3 = fmt.Sprintf(`
CREATIVE OUTPUT for: "%[1]s"

1. Create final creative deliverable
2. Design professional presentation of work
3. Add visual elements and formatting
4. Create multiple format outputs
5. Save as 'creative_output_%[2]s.pptx'
`, p, slug)

	default:
		focus = [3]string{
			"Information gathering and research",
			"Data processing and analysis",
			"Final deliverable creation",
		}
		vm1 = fmt.Sprintf(`
INFORMATION GATHERING for: "%[1]s"

1. Conduct thorough research on the topic
2. Gather data from multiple reliable sources
3. Collect current information and trends
4. Document findings systematically
5. Save as 'research_%[2]s.txt'
`, p, slug)
		vm2 = fmt.Sprintf(`
DATA PROCESSING for: "%[1]s"

1. Analyze and process gathered information
2. Create structured analysis with insights
3. Generate visualizations and charts
4. Identify key patterns and findings
5. Export as 'analysis_%[2]s.xlsx'
`, p, slug)
		vm3 = fmt.Sprintf(`
FINAL DELIVERABLE for: "%[1]s"

1. Create comprehensive presentation
2. Combine research and analysis
3. Design professional output format
4. Include summary and recommendations
5. Save as 'deliverable_%[2]s.pptx'
`, p, slug)
	}

	return &domain.Plan{
		Category: category,
		Topic:    p,
		Stages: singleStage(onePromptMonitor,
			task(1, focus[0], vm1, 0, onePromptResearch),
			task(2, focus[1], vm2, 0, onePromptProcessing),
			task(3, focus[2], vm3, 0, onePromptPresentation),
		),
	}, nil
}
