package analyses

import (
	"strings"
	"time"

	"github.com/bryanwahyu/codescan/internal/domain/projects"
)

// RunID identifier type
type RunID string

// Severity enum, ordered BLOCKER > CRITICAL > MAJOR > MINOR > INFO
type Severity string

const (
	SeverityBlocker  Severity = "BLOCKER"
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityInfo     Severity = "INFO"
)

// Rank returns 5 for BLOCKER down to 1 for INFO, 0 for unknown values.
func (s Severity) Rank() int {
	switch Severity(strings.ToUpper(string(s))) {
	case SeverityBlocker:
		return 5
	case SeverityCritical:
		return 4
	case SeverityMajor:
		return 3
	case SeverityMinor:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// IssueType enum
type IssueType string

const (
	TypeBug             IssueType = "BUG"
	TypeVulnerability   IssueType = "VULNERABILITY"
	TypeCodeSmell       IssueType = "CODE_SMELL"
	TypeSecurityHotspot IssueType = "SECURITY_HOTSPOT"
)

// TextRange locates an issue inside its file.
type TextRange struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartOffset int `json:"startOffset,omitempty"`
	EndOffset   int `json:"endOffset,omitempty"`
}

// Issue is one finding reported by the engine, enriched with the rule's
// HTML description. Issues are immutable once stored.
type Issue struct {
	Key          string     `json:"key"`
	Rule         string     `json:"rule"`
	Severity     Severity   `json:"severity"`
	Type         IssueType  `json:"type"`
	Component    string     `json:"component"`
	Project      string     `json:"project,omitempty"`
	Line         int        `json:"line,omitempty"`
	TextRange    *TextRange `json:"textRange,omitempty"`
	Message      string     `json:"message"`
	Effort       string     `json:"effort,omitempty"`
	Debt         string     `json:"debt,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	SolutionHTML string     `json:"solutionHtml,omitempty"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Blocker  int `json:"blocker"`
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// CountSeverities tallies issues per severity. Unknown severities only count
// toward Total.
func CountSeverities(issues []Issue) SeverityCounts {
	var c SeverityCounts
	for _, is := range issues {
		switch is.Severity.Rank() {
		case 5:
			c.Blocker++
		case 4:
			c.Critical++
		case 3:
			c.Major++
		case 2:
			c.Minor++
		case 1:
			c.Info++
		}
		c.Total++
	}
	return c
}

// Run is one completed submission's results. The current result of a project
// is its most recently created run.
type Run struct {
	ID             RunID              `json:"id"`
	ProjectID      projects.ProjectID `json:"projectId"`
	ProjectKey     string             `json:"projectKey"`
	CreatedAt      time.Time          `json:"createdAt"`
	Issues         []Issue            `json:"issues"`
	IssuesCount    int                `json:"issuesCount"`
	SeverityCounts SeverityCounts     `json:"severityCounts"`
	DashboardURL   string             `json:"dashboardUrl,omitempty"`
}
