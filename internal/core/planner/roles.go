package planner

import (
	"fmt"
	"sort"
	"strings"

	"vmdesk.app/internal/core/domain"
)

// taskKind is a single-role job for one VM. The template takes the topic as
// argument 1 and its slug as argument 2.
type taskKind struct {
	role      domain.Role
	focus     string
	demoTopic string
	template  string
}

const defaultKind = "research"

var taskKinds = map[string]taskKind{
	"research-quick": {
		role:      domain.RoleResearch,
		focus:     "Quick research summary",
		demoTopic: "blockchain technology",
		template: `
Quick research task for %[1]s:
1. Open browser and search for %[1]s
2. Read the first 2-3 results
3. Open text editor and write a brief summary (3-4 bullet points)
4. Save as 'quick_research_%[2]s.txt'
`,
	},
	"research": {
		role:      domain.RoleResearch,
		focus:     "Comprehensive research report",
		demoTopic: "blockchain technology",
		template: `
Comprehensive research task for %[1]s:
1. Open browser and search for latest information about %[1]s
2. Visit 5-6 different authoritative websites
3. Open another tab and search for recent news about %[1]s
4. Open text editor and create detailed research notes including:
   - Key facts and statistics
   - Recent developments
   - Expert opinions
   - Future trends
5. Save the comprehensive report as 'research_%[2]s.txt'
`,
	},
	"competitive": {
		role:      domain.RoleResearch,
		focus:     "Competitive analysis",
		demoTopic: "electric vehicle market",
		template: `
Competitive analysis for %[1]s:
1. Search for top companies in %[1]s
2. Open websites of 3-4 major competitors
3. Research their products, pricing, and market position
4. Create a comparison document with findings
5. Save as 'competitive_analysis_%[2]s.txt'
`,
	},
	"analysis": {
		role:      domain.RoleProcessing,
		focus:     "Data analysis and visualization",
		demoTopic: "cryptocurrency market",
		template: `
Data analysis and visualization for %[1]s:
1. Open spreadsheet application (Numbers, Excel, or Google Sheets)
2. Create a comprehensive data analysis with:
   - Market size data
   - Growth trends over time
   - Geographic distribution
   - Key performance metrics
3. Add charts and graphs:
   - Bar charts for comparisons
   - Line graphs for trends
   - Pie charts for market share
4. Create pivot tables for deeper analysis
5. Export final analysis as 'analysis_%[2]s.xlsx'
`,
	},
	"financial": {
		role:      domain.RoleProcessing,
		focus:     "Financial model and projections",
		demoTopic: "tech startup",
		template: `
Financial modeling for %[1]s:
1. Open spreadsheet application
2. Create financial model including:
   - Revenue projections (3-year forecast)
   - Cost analysis
   - Profit & Loss statements
   - Cash flow projections
   - Break-even analysis
3. Add sensitivity analysis with different scenarios
4. Create charts showing financial trends
5. Save as 'financial_model_%[2]s.xlsx'
`,
	},
	"content": {
		role:      domain.RoleProcessing,
		focus:     "Structured content and summary",
		demoTopic: "market research report",
		template: `
Content processing for %[1]s:
1. Open text editor or word processor
2. Create structured content including:
   - Executive summary
   - Key findings organized by categories
   - Action items and recommendations
   - Timeline for implementation
3. Format document professionally with headers and bullet points
4. Create a separate summary document (1-page)
5. Save both as 'processed_%[2]s.docx' and 'summary_%[2]s.docx'
`,
	},
	"presentation": {
		role:      domain.RolePresentation,
		focus:     "Professional presentation",
		demoTopic: "market analysis",
		template: `
Professional presentation for %[1]s:
1. Open presentation software
2. Create comprehensive presentation with:
   - Title slide with agenda
   - Introduction and background (2-3 slides)
   - Detailed analysis and data (4-5 slides)
   - Charts, graphs, and visualizations (3-4 slides)
   - Case studies or examples (2-3 slides)
   - Conclusions and recommendations (2-3 slides)
   - Q&A slide
3. Use professional design with consistent formatting
4. Add animations and transitions where appropriate
5. Save as 'presentation_%[2]s.pptx'
`,
	},
	"presentation-executive": {
		role:      domain.RolePresentation,
		focus:     "Executive presentation",
		demoTopic: "market analysis",
		template: `
Executive presentation for %[1]s:
1. Open presentation software (Keynote, PowerPoint, or Google Slides)
2. Create executive-level presentation with:
   - Title slide with executive summary
   - Market overview (1-2 slides)
   - Key insights and findings (2-3 slides)
   - Strategic recommendations (1-2 slides)
   - Financial implications (1 slide)
   - Next steps and timeline (1 slide)
3. Use professional template with consistent branding
4. Add high-quality charts and visuals
5. Save as 'executive_%[2]s.pptx'
`,
	},
	"dashboard": {
		role:      domain.RolePresentation,
		focus:     "Visual dashboard",
		demoTopic: "sales performance",
		template: `
Dashboard creation for %[1]s:
1. Open presentation software or design tool
2. Create interactive dashboard with:
   - Key performance indicators (KPIs)
   - Real-time data visualizations
   - Trend analysis charts
   - Geographic data maps
   - Progress tracking meters
3. Use dashboard template with modern design
4. Add interactive elements and clear labels
5. Save as 'dashboard_%[2]s.pptx'
`,
	},
	"report": {
		role:      domain.RolePresentation,
		focus:     "Detailed report document",
		demoTopic: "quarterly review",
		template: `
Report creation for %[1]s:
1. Open word processor (Pages, Word, or Google Docs)
2. Create professional report with:
   - Executive summary (1 page)
   - Table of contents
   - Introduction and methodology
   - Detailed findings with supporting data
   - Charts and tables embedded in text
   - Conclusions and recommendations
   - Appendices with additional data
3. Format with professional styling and headers
4. Add page numbers and consistent formatting
5. Save as 'report_%[2]s.docx'
`,
	},
	"infographic": {
		role:      domain.RolePresentation,
		focus:     "Visual infographic",
		demoTopic: "industry trends",
		template: `
Infographic creation for %[1]s:
1. Open design software or presentation tool
2. Create visually appealing infographic with:
   - Eye-catching title and headers
   - Key statistics displayed prominently
   - Visual icons and graphics
   - Data flow charts or process diagrams
   - Color-coded sections for easy reading
3. Use modern design principles with good visual hierarchy
4. Ensure information is easy to digest at a glance
5. Save as 'infographic_%[2]s.png' and .pptx
`,
	},
}

func normalizeKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return defaultKind
	}
	return kind
}

// TaskKinds lists the kinds accepted by the task workflow.
func TaskKinds() []string {
	kinds := make([]string, 0, len(taskKinds))
	for k := range taskKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var roleLabels = map[domain.Role]labels{
	domain.RoleResearch:     {waiting: "Ready", working: "Researching...", done: "Research Complete"},
	domain.RoleProcessing:   {waiting: "Ready", working: "Processing...", done: "Processing Complete"},
	domain.RolePresentation: {waiting: "Ready", working: "Creating deliverable...", done: "Deliverable Complete"},
}

// buildTask runs one role's job on slot 1 regardless of the role.
func buildTask(req domain.Request) (*domain.Plan, error) {
	name := normalizeKind(req.Kind)
	kind, ok := taskKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	t := task(1, kind.focus, fmt.Sprintf(kind.template, req.Prompt, Slug(req.Prompt)), 0, roleLabels[kind.role])
	t.Role = kind.role

	return &domain.Plan{
		Category: domain.CategoryGeneral,
		Topic:    req.Prompt,
		Stages:   singleStage(0, t),
	}, nil
}
