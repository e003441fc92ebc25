package planner

import (
	"fmt"
	"time"

	"vmdesk.app/internal/core/domain"
)

var delegateKeywords = Keywords{
	Research: []string{"research", "analyze", "study", "investigate", "find", "search", "explore"},
	Business: []string{"business", "company", "market", "strategy", "plan", "startup"},
	Creative: []string{"create", "design", "build", "make", "write", "develop"},
}

const delegateMonitor = 15 * time.Second

func buildDelegate(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt
	category := Classify(p, delegateKeywords)

	var vm1, vm2, vm3 string
	switch category {
	case domain.CategoryResearch:
		vm1 = fmt.Sprintf(`
RESEARCH MISSION for: "%[1]s"

1. Open browser and conduct comprehensive research on the topic
2. Gather data from multiple authoritative sources
3. Collect relevant statistics, facts, and current information
4. Take notes and organize findings systematically
5. Save research data as 'research_data.txt'

Focus on gathering raw information that VM2 can analyze and VM3 can present.
`, p)
		vm2 = fmt.Sprintf(`
ANALYSIS MISSION for: "%[1]s"

1. Open spreadsheet application
2. Process and analyze the research data
3. Create data visualizations and trends analysis
4. Generate insights and key findings
5. Build comparative analysis and metrics
6. Export analysis as 'data_analysis.xlsx'

Transform raw research into actionable insights for presentation.
`, p)
		vm3 = fmt.Sprintf(`
PRESENTATION MISSION for: "%[1]s"

1. Open presentation software
2. Create professional presentation combining research and analysis
3. Design clear, engaging slides with key findings
4. Include executive summary and recommendations
5. Add visual elements and professional formatting
6. Save as 'final_presentation.pptx'

Create compelling presentation of research findings and analysis.
`, p)

	case domain.CategoryBusiness:
		vm1 = fmt.Sprintf(`
BUSINESS RESEARCH for: "%[1]s"

1. Research market conditions and industry trends
2. Study competitors and market opportunities
3. Gather financial and market data
4. Collect case studies and best practices
5. Document findings for business analysis
`, p)
		vm2 = fmt.Sprintf(`
BUSINESS ANALYSIS for: "%[1]s"

1. Create financial models and projections
2. Analyze market data and competitive landscape
3. Build business case with ROI calculations
4. Generate strategic recommendations
5. Create implementation timeline and budget
`, p)
		vm3 = fmt.Sprintf(`
BUSINESS PRESENTATION for: "%[1]s"

1. Create executive business presentation
2. Include market analysis and financial projections
3. Add strategic recommendations and action plan
4. Design professional business deck
5. Create executive summary document
`, p)

	case domain.CategoryCreative:
		vm1 = fmt.Sprintf(`
CONTENT RESEARCH for: "%[1]s"

1. Research best practices and examples
2. Gather inspiration and reference materials
3. Study target audience and requirements
4. Collect relevant resources and assets
5. Document research for creative development
`, p)
		vm2 = fmt.Sprintf(`
CONTENT DEVELOPMENT for: "%[1]s"

1. Process research into structured content
2. Organize materials and create outlines
3. Develop content framework and structure
4. Create supporting materials and resources
5. Prepare content for final presentation
`, p)
		vm3 = fmt.Sprintf(`
CREATIVE OUTPUT for: "%[1]s"

1. Create final creative deliverable
2. Design professional presentation of work
3. Add visual elements and polished formatting
4. Create multiple format outputs
5. Prepare final presentation package
`, p)

	default:
		vm1 = fmt.Sprintf(`
INFORMATION GATHERING for: "%[1]s"

1. Research and gather relevant information about the topic
2. Use browser to find authoritative sources
3. Collect data, facts, and current information
4. Organize findings systematically
5. Prepare comprehensive information base
`, p)
		vm2 = fmt.Sprintf(`
DATA PROCESSING for: "%[1]s"

1. Analyze and process gathered information
2. Create structured analysis and insights
3. Generate charts, graphs, or visual representations
4. Identify patterns and key findings
5. Prepare analysis for presentation
`, p)
		vm3 = fmt.Sprintf(`
OUTPUT CREATION for: "%[1]s"

1. Create final deliverable presentation
2. Combine research and analysis into cohesive output
3. Design professional presentation format
4. Include summary and recommendations
5. Generate final polished deliverable
`, p)
	}

	return &domain.Plan{
		Category: category,
		Topic:    p,
		Stages: singleStage(delegateMonitor,
			task(1, "Research & data collection", vm1, 0, plainLabels),
			task(2, "Processing & analysis", vm2, 0, plainLabels),
			task(3, "Output & presentation", vm3, 0, plainLabels),
		),
	}, nil
}
