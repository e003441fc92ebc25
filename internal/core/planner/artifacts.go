package planner

import "regexp"

var artifactPattern = regexp.MustCompile(`'([^'\s]+\.(?:txt|csv|xlsx|pptx|docx|png))'`)

// ExpectedArtifacts extracts the quoted file names an instruction asks the agent
// to save, in first-seen order without duplicates.
func ExpectedArtifacts(text string) []string {
	var names []string
	for _, m := range artifactPattern.FindAllStringSubmatch(text, -1) {
		names = appendUnique(names, m[1])
	}
	return names
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
