package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// YearPlaceholder is replaced by the 4-digit year found in the question. It
// is the only question-derived value that ever reaches a fallback query.
const YearPlaceholder = "{{year}}"

// Rule pairs a question predicate with a fixed query template. Match
// receives the lowercased question.
type Rule struct {
	Name     string
	Match    func(q string) bool
	Template string
}

// needsYear reports whether the template can only be rendered with a year.
func (r Rule) needsYear() bool {
	return strings.Contains(r.Template, YearPlaceholder)
}

var (
	yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	largestPattern  = regexp.MustCompile(`\b(biggest|largest|highest|maximum|max|most valuable|most expensive|top value)\b`)
	approvedPattern = regexp.MustCompile(`\b(approved?|approval|awarded|award|won|wins?|winning|accepted|successful|success)\b`)
	pendingPattern  = regexp.MustCompile(`\b(pending|open|ongoing|in progress|under review|submitted|awaiting|waiting)\b`)
	countPattern    = regexp.MustCompile(`\b(how many|count|number of|total number|amount of)\b`)
	recentPattern   = regexp.MustCompile(`\b(recent|recently|latest|newest|last|new)\b`)
	employeePattern = regexp.MustCompile(`\b(employees?|staff|people|persons?|workers?|team|colleagues?|department)\b`)
)

// ExtractYear returns the first 4-digit year between 1900 and 2099 in the
// question, or "".
func ExtractYear(question string) string {
	return yearPattern.FindString(question)
}

func hasYear(q string) bool { return ExtractYear(q) != "" }

// Status values are free text entered by users, so the filters match
// broadly instead of comparing against a single value.
const (
	approvedStatusFilter = "(Status LIKE '%approv%' OR Status LIKE '%award%' OR Status LIKE '%won%' OR Status LIKE '%accept%' OR Status LIKE '%success%')"
	pendingStatusFilter  = "(Status LIKE '%pend%' OR Status LIKE '%open%' OR Status LIKE '%progress%' OR Status LIKE '%review%' OR Status LIKE '%submit%')"
	yearFilter           = "(YEAR(SubmissionDate) = " + YearPlaceholder + " OR YEAR(AwardDate) = " + YearPlaceholder + " OR YEAR(CreatedDate) = " + YearPlaceholder + ")"
	tenderColumns        = "Id, ProjectName, TenderNumber, Client, Value, Status, SubmissionDate, AwardDate"
	employeeColumns      = "Id, FullName, Email, Department, Position"
	notDeleted           = sql.SoftDeletePredicate
)

// BuiltinRules returns the tender-domain rules in evaluation order. The
// generic rule is not included; the Selector always applies it last.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name: "largest_approved_tender_in_year",
			Match: func(q string) bool {
				return largestPattern.MatchString(q) && approvedPattern.MatchString(q) && hasYear(q)
			},
			Template: "SELECT TOP 1 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + approvedStatusFilter + " AND " + yearFilter + " ORDER BY Value DESC",
		},
		{
			Name: "largest_approved_tender",
			Match: func(q string) bool {
				return largestPattern.MatchString(q) && approvedPattern.MatchString(q)
			},
			Template: "SELECT TOP 1 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + approvedStatusFilter + " ORDER BY Value DESC",
		},
		{
			Name: "largest_tender_in_year",
			Match: func(q string) bool {
				return largestPattern.MatchString(q) && hasYear(q)
			},
			Template: "SELECT TOP 1 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + yearFilter + " ORDER BY Value DESC",
		},
		{
			Name:     "largest_tender",
			Match:    largestPattern.MatchString,
			Template: "SELECT TOP 1 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted + " ORDER BY Value DESC",
		},
		{
			Name: "count_employees",
			Match: func(q string) bool {
				return countPattern.MatchString(q) && employeePattern.MatchString(q)
			},
			Template: "SELECT COUNT(*) AS EmployeeCount FROM tenderEmployee WHERE " + notDeleted,
		},
		{
			Name: "count_tenders_in_year",
			Match: func(q string) bool {
				return countPattern.MatchString(q) && hasYear(q)
			},
			Template: "SELECT COUNT(*) AS TenderCount FROM tenderTender WHERE " + notDeleted + " AND " + yearFilter,
		},
		{
			Name:     "count_tenders",
			Match:    countPattern.MatchString,
			Template: "SELECT COUNT(*) AS TenderCount FROM tenderTender WHERE " + notDeleted,
		},
		{
			Name:  "pending_tenders",
			Match: pendingPattern.MatchString,
			Template: "SELECT TOP 50 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + pendingStatusFilter + " ORDER BY SubmissionDate DESC",
		},
		{
			Name:  "approved_tenders",
			Match: approvedPattern.MatchString,
			Template: "SELECT TOP 50 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + approvedStatusFilter + " ORDER BY AwardDate DESC",
		},
		{
			Name:     "employees",
			Match:    employeePattern.MatchString,
			Template: "SELECT TOP 50 " + employeeColumns + " FROM tenderEmployee WHERE " + notDeleted + " ORDER BY FullName",
		},
		{
			Name:     "recent_tenders",
			Match:    recentPattern.MatchString,
			Template: "SELECT TOP 10 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted + " ORDER BY CreatedDate DESC",
		},
		{
			Name:  "tenders_in_year",
			Match: hasYear,
			Template: "SELECT TOP 50 " + tenderColumns + " FROM tenderTender WHERE " + notDeleted +
				" AND " + yearFilter + " ORDER BY Value DESC",
		},
	}
}

// genericRuleName names the catch-all in Selections.
const genericRuleName = "recent_records"

// genericQuery is the catch-all: the most recent records of the entity the
// question refers to.
func genericQuery(e Entity) string {
	return fmt.Sprintf("SELECT TOP 10 %s FROM %s WHERE %s ORDER BY %s DESC",
		e.columnList(), e.Table, notDeleted, e.DateColumn)
}

// CheckTemplate verifies a template against the same rules generated SQL
// must pass: read-only validation, the syntax guard and the soft-delete
// filter. A sample year is substituted first.
func CheckTemplate(template string) error {
	rendered := strings.ReplaceAll(template, YearPlaceholder, "2024")
	if strings.Contains(rendered, "{{") {
		return fmt.Errorf("unknown placeholder in template")
	}
	if err := sql.Validate(rendered); err != nil {
		return err
	}
	if err := sql.GuardSyntax(rendered); err != nil {
		return err
	}
	if !sql.HasSoftDeleteFilter(rendered) {
		return fmt.Errorf("template does not filter %s", sql.SoftDeleteColumn)
	}
	return nil
}
