package planner

import (
	"fmt"
	"time"

	"vmdesk.app/internal/core/domain"
)

// speedKeywords has no creative group; creative prompts fall through to general.
var speedKeywords = Keywords{
	Research: []string{"research", "analyze", "study"},
	Business: []string{"business", "market", "startup"},
}

const (
	speedMonitor = 3 * time.Second
	speedStagger = time.Minute
)

var (
	speedResearch     = labels{waiting: "Ready", working: "Speed Research...", done: "Research Complete"}
	speedProcessing   = labels{waiting: "Ready", working: "Speed Processing...", done: "Processing Complete"}
	speedPresentation = labels{waiting: "Ready", working: "Speed Presentation...", done: "Presentation Complete"}
)

func buildSpeed(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt
	slug := Slug(p)
	category := Classify(p, speedKeywords)

	var focus [3]string
	var vm1, vm2, vm3 string
	switch category {
	case domain.CategoryResearch:
		focus = [3]string{"Lightning-fast research collection", "Instant data processing", "Rapid presentation creation"}
		vm1 = fmt.Sprintf(`
LIGHTNING RESEARCH for: "%[1]s"

ULTRA-SPEED WORKFLOW:
1. Use Cmd+T for new tab (keyboard shortcut)
2. Type search query and hit Enter immediately
3. Cmd+C to copy key data from first 2 results ONLY
4. Cmd+Tab to switch to text editor instantly
5. Cmd+V to paste, add quick bullet points
6. Cmd+S to save as 'research_%[2]s.txt'

TIME TARGET: Complete in 2-3 minutes maximum
NO SCREENSHOTS, NO BROWSING, COPY-PASTE ONLY
`, p, slug)
		vm2 = fmt.Sprintf(`
INSTANT ANALYSIS for: "%[1]s"

ULTRA-SPEED WORKFLOW:
1. Cmd+Space to open Spotlight, type "Numbers" + Enter
2. Use pre-built template (avoid starting from scratch)
3. Create 3 columns only: Data, Value, Trend
4. Add basic chart (Cmd+Option+C for quick chart)
5. Cmd+S to save as 'analysis_%[2]s.xlsx'

TIME TARGET: Complete in 3-4 minutes maximum
BASIC CHARTS ONLY, NO COMPLEX FORMATTING
`, p, slug)
		vm3 = fmt.Sprintf(`
RAPID PRESENTATION for: "%[1]s"

ULTRA-SPEED WORKFLOW:
1. Cmd+Space, type "Keynote" + Enter
2. Select basic template (first option)
3. Create 4 slides ONLY:
   - Title (30 seconds)
   - Key Findings (1 minute)
   - Data Summary (1 minute)
   - Conclusion (30 seconds)
4. Cmd+S to save as 'presentation_%[2]s.pptx'

TIME TARGET: Complete in 3 minutes maximum
NO ANIMATIONS, BASIC TEXT ONLY
`, p, slug)

	case domain.CategoryBusiness:
		focus = [3]string{"Quick market research", "Fast financial basics", "Simple business deck"}
		vm1 = fmt.Sprintf(`
QUICK BUSINESS RESEARCH for: "%[1]s"

SPEED WORKFLOW:
1. Search for "%[1]s market size" immediately
2. Copy first statistic found (Cmd+C)
3. Search "competitors %[1]s"
4. Copy top 3 company names
5. Open TextEdit, paste all data
6. Save quickly as 'biz_research_%[2]s.txt'

TIME TARGET: 2 minutes maximum
`, p, slug)
		vm2 = fmt.Sprintf(`
BASIC FINANCIAL MODEL for: "%[1]s"

SPEED WORKFLOW:
1. Open Numbers with basic template
2. Create simple 3-year projection table
3. Add basic revenue/cost rows only
4. One simple bar chart
5. Save as 'biz_model_%[2]s.xlsx'

TIME TARGET: 3 minutes maximum
`, p, slug)
		vm3 = fmt.Sprintf(`
SIMPLE BUSINESS DECK for: "%[1]s"

SPEED WORKFLOW:
1. Keynote basic template
2. 5 slides only: Title, Problem, Solution, Market, Plan
3. Bullet points only, no graphics
4. Save as 'biz_deck_%[2]s.pptx'

TIME TARGET: 3 minutes maximum
`, p, slug)

	default:
		focus = [3]string{"Fast info gathering", "Quick processing", "Basic deliverable"}
		vm1 = fmt.Sprintf(`
FAST INFO GATHERING for: "%[1]s"

1. Quick Google search
2. Copy key facts from top 2 results
3. Save in text file immediately

TIME TARGET: 2 minutes
`, p)
		vm2 = fmt.Sprintf(`
QUICK PROCESSING for: "%[1]s"

1. Basic spreadsheet with key data
2. Simple summary table
3. Save quickly

TIME TARGET: 2 minutes
`, p)
		vm3 = fmt.Sprintf(`
BASIC DELIVERABLE for: "%[1]s"

1. Simple 3-slide presentation
2. Essential info only
3. Save and done

TIME TARGET: 2 minutes
`, p)
	}

	// VM2 starts once VM1 has some data, VM3 once both have.
	return &domain.Plan{
		Category: category,
		Topic:    p,
		Stages: singleStage(speedMonitor,
			task(1, focus[0], vm1, 0, speedResearch),
			task(2, focus[1], vm2, speedStagger, speedProcessing),
			task(3, focus[2], vm3, 2*speedStagger, speedPresentation),
		),
	}, nil
}
