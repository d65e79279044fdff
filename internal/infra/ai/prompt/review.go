package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
)

// maxIssues caps how many issues go into one prompt.
const maxIssues = 50

// ReviewSystemPrompt frames the model as a code reviewer.
func ReviewSystemPrompt() string {
	return `You are a senior code reviewer. You receive static-analysis issues for a short code snippet.
Reply in plain text, no markdown code fences.

Requirements:
- Start with a one-paragraph summary of the overall risk.
- Then list the most important fixes, highest severity first, one line each, citing the rule id.
- Severity order: BLOCKER > CRITICAL > MAJOR > MINOR > INFO.
- Do not invent issues that are not in the list.`
}

// ReviewUserPrompt lists the run's issues, most severe first.
func ReviewUserPrompt(run *analyses.Run) string {
	issues := append([]analyses.Issue(nil), run.Issues...)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})
	if len(issues) > maxIssues {
		issues = issues[:maxIssues]
	}

	var b strings.Builder
	c := run.SeverityCounts
	fmt.Fprintf(&b, "Project %s has %d issues (blocker %d, critical %d, major %d, minor %d, info %d).\n",
		run.ProjectKey, run.IssuesCount, c.Blocker, c.Critical, c.Major, c.Minor, c.Info)
	for _, is := range issues {
		line := "-"
		if is.Line > 0 {
			line = fmt.Sprint(is.Line)
		}
		fmt.Fprintf(&b, "- [%s/%s] %s line %s: %s (rule %s)\n",
			is.Severity, is.Type, componentFile(is.Component), line, is.Message, is.Rule)
	}
	return b.String()
}

// componentFile drops the "<projectKey>:" prefix.
func componentFile(component string) string {
	if i := strings.IndexByte(component, ':'); i >= 0 {
		return component[i+1:]
	}
	return component
}
