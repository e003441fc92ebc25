package planner

import (
	"fmt"
	"time"

	"vmdesk.app/internal/core/domain"
)

// The pipeline workflows run VM1 alone first. VM2 and VM3 then read the files
// VM1 saved, VM3 a little behind VM2 so the analysis exists when it looks.

func buildPipeline(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt

	vm1 := fmt.Sprintf(`
VM1 RESEARCH TASK - DATA COLLECTION for: "%[1]s"

CRITICAL: Your research will be used by VM2 and VM3!

1. Open browser and research: %[1]s
2. Gather comprehensive data including:
   - Key statistics and numbers
   - Market trends and insights
   - Important facts and findings
   - Recent developments
   - Expert opinions and analysis

3. Open text editor and create detailed research file with:
   - Executive Summary (2-3 sentences)
   - Key Statistics (with numbers)
   - Market Trends (bullet points)
   - Important Findings (organized list)
   - Recent News/Developments
   - Expert Insights
   - Data Sources

4. SAVE AS: 'vm1_research_data.txt' (VM2 and VM3 will read this!)
5. Include ALL important data - VM2 needs this for analysis
6. Make data clear and organized for other VMs to use

VM2 IS WAITING FOR YOUR RESEARCH FILE!
`, p)
	vm2 := fmt.Sprintf(`
VM2 ANALYSIS TASK - PROCESS VM1'S RESEARCH for: "%[1]s"

CRITICAL: Use VM1's research data to create analysis!

1. First, locate and OPEN the file 'vm1_research_data.txt'
2. READ all the research data that VM1 collected
3. Open spreadsheet application (Numbers/Excel)
4. Create data analysis based on VM1's research:
   - Extract key numbers from VM1's file
   - Create data tables with VM1's statistics
   - Build charts using VM1's trend data
   - Add analysis based on VM1's findings

5. Create specific analysis:
   - Summary table of key metrics from VM1
   - Trend analysis chart using VM1's data
   - Comparison charts with VM1's statistics
   - Financial projections based on VM1's research

6. SAVE AS: 'vm2_analysis_data.xlsx' (VM3 will use this!)
7. Include references to VM1's research in your analysis

VM3 IS WAITING FOR YOUR ANALYSIS FILE!
YOU MUST USE VM1'S RESEARCH DATA!
`, p)
	vm3 := fmt.Sprintf(`
VM3 PRESENTATION TASK - COMBINE VM1 & VM2 DATA for: "%[1]s"

CRITICAL: Use both VM1's research AND VM2's analysis!

1. First, locate and OPEN 'vm1_research_data.txt'
2. READ VM1's research findings thoroughly
3. Then locate and OPEN 'vm2_analysis_data.xlsx'
4. REVIEW VM2's analysis and charts

5. Open presentation software (Keynote/PowerPoint)
6. Create comprehensive presentation using BOTH files:

   Slide 1: Title - "%[1]s Analysis"
   Slide 2: Executive Summary (from VM1's research)
   Slide 3: Key Research Findings (from VM1's file)
   Slide 4: Statistical Analysis (from VM2's spreadsheet)
   Slide 5: Trends & Insights (combining VM1 & VM2 data)
   Slide 6: Visual Charts (import from VM2's analysis)
   Slide 7: Conclusions & Recommendations (synthesize both)

7. IMPORT charts and data from VM2's Excel file
8. Reference specific findings from VM1's research
9. SAVE AS: 'vm3_final_presentation.pptx'

CREATE A PRESENTATION THAT SHOWS DATA FROM ALL 3 VMs!
YOU MUST REFERENCE BOTH VM1 AND VM2 FILES!
`, p)

	return &domain.Plan{
		Category: domain.CategoryResearch,
		Topic:    p,
		Stages: []domain.Stage{
			{
				Name:            "research",
				MonitorInterval: 5 * time.Second,
				Tasks: []domain.Task{
					task(1, "Research and save data for VM2 and VM3", vm1, 0,
						labels{waiting: "Ready", working: "Researching and collecting data...", done: "Research Complete - Data Saved"}),
				},
			},
			{
				Name:            "handoff",
				MonitorInterval: 8 * time.Second,
				RequirePrevious: true,
				Tasks: []domain.Task{
					task(2, "Analyze VM1's research file", vm2, 0,
						labels{waiting: "Waiting for VM1 data...", working: "Reading VM1's research file...", done: "Analysis Complete - Used VM1 Data"}),
					task(3, "Present VM1 and VM2 data", vm3, 10*time.Second,
						labels{waiting: "Waiting for VM1 & VM2 data...", working: "Reading VM1 & VM2 files...", done: "Presentation Complete - Used All Data"}),
				},
			},
		},
	}, nil
}

func buildVisible(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt

	vm1 := fmt.Sprintf(`
FAST RESEARCH WITH VISIBLE DATA SHARING for: "%[1]s"

SPEED-OPTIMIZED RESEARCH (2-3 minutes max):
1. Quick Google search for: %[1]s
2. Scan first 3 results quickly
3. Copy key statistics and facts immediately
4. Open TextEdit and create summary with:
   - 3 key statistics about %[1]s
   - 3 main trends
   - 3 important findings

5. VISIBLE DATA SHARING - Say out loud while typing:
   "SHARING RESEARCH DATA WITH VM2 AND VM3"
   "KEY FINDING 1: [state your finding]"
   "KEY FINDING 2: [state your finding]"
   "KEY FINDING 3: [state your finding]"

6. Save file as 'shared_research.txt' and announce:
   "VM1 RESEARCH COMPLETE - DATA SHARED WITH VM2 AND VM3"

CRITICAL: Make data sharing VISIBLE and VOCAL
TIME LIMIT: 3 minutes maximum
`, p)
	vm2 := fmt.Sprintf(`
FAST ANALYSIS USING VM1 DATA for: "%[1]s"

VISIBLE DATA INTEGRATION (2-3 minutes max):
1. FIRST - Open 'shared_research.txt' and read VM1's findings
2. ANNOUNCE: "VM2 RECEIVED DATA FROM VM1 - STARTING ANALYSIS"
3. Open Numbers/Excel quickly
4. Create simple table with VM1's statistics
5. Make basic chart using VM1's trend data

6. VISIBLE DATA SHARING - Announce your analysis:
   "VM2 ANALYSIS COMPLETE - SHARING WITH VM3"
   "ANALYSIS POINT 1: [based on VM1 data]"
   "ANALYSIS POINT 2: [based on VM1 data]"
   "TREND PROJECTION: [based on VM1 data]"

7. Save as 'shared_analysis.xlsx' and announce:
   "VM2 DATA PROCESSED AND SHARED WITH VM3"

CRITICAL: Show you're using VM1's data visibly
TIME LIMIT: 3 minutes maximum
`, p)
	vm3 := fmt.Sprintf(`
FAST PRESENTATION USING VM1 AND VM2 DATA for: "%[1]s"

VISIBLE DATA COMPILATION (3-4 minutes max):
1. FIRST - Open 'shared_research.txt' and announce:
   "VM3 RECEIVING RESEARCH DATA FROM VM1"
2. THEN - Open 'shared_analysis.xlsx' and announce:
   "VM3 RECEIVING ANALYSIS DATA FROM VM2"

3. Open Keynote/PowerPoint with basic template
4. Create 5 slides using BOTH VM1 and VM2 data:
   - Title: "%[1]s - 3-VM Analysis"
   - Research Findings (from VM1 file)
   - Data Analysis (from VM2 file)
   - Combined Insights (from both)
   - Conclusions

5. VISIBLE INTEGRATION - Announce while building:
   "INTEGRATING VM1 RESEARCH INTO SLIDE 2"
   "ADDING VM2 ANALYSIS TO SLIDE 3"
   "COMBINING ALL DATA FOR FINAL INSIGHTS"

6. Save as 'final_interconnected_presentation.pptx'
7. FINAL ANNOUNCEMENT: "3-VM INTERCONNECTED WORKFLOW COMPLETE!"

CRITICAL: Show visible integration of all VM data
TIME LIMIT: 4 minutes maximum
`, p)

	return &domain.Plan{
		Category: domain.CategoryResearch,
		Topic:    p,
		Stages: []domain.Stage{
			{
				Name:            "research",
				MonitorInterval: 3 * time.Second,
				Tasks: []domain.Task{
					task(1, "Fast research with announced findings", vm1, 0,
						labels{waiting: "Ready", working: "Fast Research...", done: "Research Complete - Data Shared"}),
				},
			},
			{
				Name:            "handoff",
				MonitorInterval: 4 * time.Second,
				Tasks: []domain.Task{
					task(2, "Analysis from shared_research.txt", vm2, 0,
						labels{waiting: "Ready", working: "Using VM1 Data...", done: "Analysis Complete - Data Shared"}),
					task(3, "Presentation from both shared files", vm3, 5*time.Second,
						labels{waiting: "Ready", working: "Using VM1 & VM2 Data...", done: "Presentation Complete - All Data Used"}),
				},
			},
		},
	}, nil
}

// SharedMemoryLayout is the section layout every VM edits in SHARED_MEMORY.txt.
func SharedMemoryLayout(topic string) string {
	return fmt.Sprintf(`=== SHARED MEMORY FOR ALL VMs ===
TASK: %[1]s
STATUS: Initialized

=== VM1 RESEARCH SECTION ===
[VM1 will write research findings here]

=== VM2 ANALYSIS SECTION ===
[VM2 will write analysis based on VM1 data here]

=== VM3 PRESENTATION SECTION ===
[VM3 will write presentation notes using VM1 & VM2 data here]

=== SHARED INSIGHTS ===
[All VMs can add insights here]

=== STATUS UPDATES ===
System: Shared memory initialized
`, topic)
}

func buildSharedMemory(req domain.Request) (*domain.Plan, error) {
	p := req.Prompt

	vm1 := fmt.Sprintf(`
VM1 RESEARCH WITH SHARED MEMORY ACCESS for: "%[1]s"

SHARED MEMORY INSTRUCTIONS:
1. Open TextEdit and create/open file called 'SHARED_MEMORY.txt'
2. Look for the "=== VM1 RESEARCH SECTION ===" header
3. Write your research findings under that section

RESEARCH WORKFLOW:
1. Quick Google search for: %[1]s
2. Gather key data from first 3-4 results
3. Update SHARED_MEMORY.txt with:

   === VM1 RESEARCH SECTION ===
   VM1 STATUS: Research in progress

   KEY STATISTICS:
   - [Add 3-4 key statistics about %[1]s]

   MARKET TRENDS:
   - [Add 3-4 current trends]

   IMPORTANT FINDINGS:
   - [Add 3-4 critical findings]

   RECENT DEVELOPMENTS:
   - [Add recent news/updates]

   VM1 STATUS: Research complete - Data available for VM2 & VM3

4. Save the file so VM2 and VM3 can access the data
5. Announce: "VM1 DATA WRITTEN TO SHARED MEMORY - AVAILABLE FOR ALL VMs"

TIME LIMIT: 3-4 minutes maximum
CRITICAL: All data goes into shared memory for other VMs to use
`, p)
	vm2 := fmt.Sprintf(`
VM2 ANALYSIS WITH SHARED MEMORY ACCESS for: "%[1]s"

SHARED MEMORY INSTRUCTIONS:
1. Open 'SHARED_MEMORY.txt' and READ VM1's research data
2. Find the "=== VM2 ANALYSIS SECTION ===" header
3. Write your analysis under that section using VM1's data

ANALYSIS WORKFLOW:
1. FIRST - Read VM1's research from shared memory
2. Announce: "VM2 READING VM1 DATA FROM SHARED MEMORY"
3. Open Numbers/Excel for analysis
4. Create analysis based on VM1's shared memory data
5. Update SHARED_MEMORY.txt with:

   === VM2 ANALYSIS SECTION ===
   VM2 STATUS: Analysis in progress using VM1 data

   DATA ANALYSIS (Based on VM1 research):
   - [Analysis of VM1's statistics]
   - [Trend projections using VM1 data]
   - [Financial implications from VM1 findings]

   CHARTS CREATED:
   - [Describe charts made with VM1 data]

   KEY INSIGHTS:
   - [Insights derived from VM1's research]

   RECOMMENDATIONS:
   - [Based on VM1's findings]

   VM2 STATUS: Analysis complete - Available for VM3

6. Save Excel file as 'analysis_using_shared_memory.xlsx'
7. Announce: "VM2 ANALYSIS WRITTEN TO SHARED MEMORY - USING VM1 DATA"

TIME LIMIT: 3-4 minutes maximum
CRITICAL: Use VM1's data from shared memory for your analysis
`, p)
	vm3 := fmt.Sprintf(`
VM3 PRESENTATION WITH SHARED MEMORY ACCESS for: "%[1]s"

SHARED MEMORY INSTRUCTIONS:
1. Open 'SHARED_MEMORY.txt' and READ both VM1 and VM2 data
2. Find the "=== VM3 PRESENTATION SECTION ===" header
3. Write your presentation notes under that section

PRESENTATION WORKFLOW:
1. FIRST - Read complete shared memory file
2. Announce: "VM3 READING ALL VM DATA FROM SHARED MEMORY"
3. Open Keynote/PowerPoint
4. Create presentation using ALL shared memory data
5. Update SHARED_MEMORY.txt with:

   === VM3 PRESENTATION SECTION ===
   VM3 STATUS: Creating presentation using all shared data

   PRESENTATION OUTLINE:
   Slide 1: Title - "%[1]s Analysis"
   Slide 2: Research Overview (from VM1 shared memory)
   Slide 3: Key Statistics (from VM1 shared memory)
   Slide 4: Data Analysis (from VM2 shared memory)
   Slide 5: Charts & Insights (from VM2 shared memory)
   Slide 6: Combined Recommendations (from all VM data)

   DATA SOURCES USED:
   - VM1 research data from shared memory
   - VM2 analysis data from shared memory
   - Combined insights from all VMs

   VM3 STATUS: Presentation complete using all shared memory data

6. Save presentation as 'final_shared_memory_presentation.pptx'
7. Update shared memory final status:

   === STATUS UPDATES ===
   VM1: Research complete
   VM2: Analysis complete
   VM3: Presentation complete
   ALL VMs: Shared memory workflow successful!

8. Announce: "VM3 PRESENTATION COMPLETE - USED ALL SHARED MEMORY DATA"

TIME LIMIT: 4-5 minutes maximum
CRITICAL: Use data from ALL VMs via shared memory
`, p)

	return &domain.Plan{
		Category:       domain.CategoryResearch,
		Topic:          p,
		SharedDocument: SharedMemoryLayout(p),
		Stages: []domain.Stage{
			{
				Name:            "research",
				MonitorInterval: 4 * time.Second,
				Tasks: []domain.Task{
					task(1, "Research into the VM1 section", vm1, 0,
						labels{waiting: "Ready", working: "Writing to shared memory...", done: "Research in shared memory"}),
				},
			},
			{
				Name:            "handoff",
				MonitorInterval: 5 * time.Second,
				Tasks: []domain.Task{
					task(2, "Analysis into the VM2 section", vm2, 0,
						labels{waiting: "Ready", working: "Reading shared memory & analyzing...", done: "Analysis in shared memory"}),
					task(3, "Presentation from every section", vm3, 30*time.Second,
						labels{waiting: "Ready", working: "Reading all shared memory & presenting...", done: "Presentation using all shared data"}),
				},
			},
		},
	}, nil
}
