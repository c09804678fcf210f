// Package fallback selects a pre-audited query for a question when the
// generated query cannot be used.
package fallback

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
)

// Entity is a table the fallback queries know how to read.
type Entity struct {
	Table      string
	Columns    []string // columns selected by generic queries, in order
	DateColumn string   // recency ordering
	Keywords   []string // singular nouns that refer to the entity
}

// Entities of the tender database. The first entry is the default.
var Entities = []Entity{
	{
		Table:      "tenderTender",
		Columns:    []string{"Id", "ProjectName", "TenderNumber", "Client", "Value", "Status", "SubmissionDate", "AwardDate", "CreatedDate"},
		DateColumn: "CreatedDate",
		Keywords:   []string{"tender", "project", "bid", "contract", "proposal", "client", "value"},
	},
	{
		Table:      "tenderEmployee",
		Columns:    []string{"Id", "FullName", "Email", "Department", "Position", "CreatedDate"},
		DateColumn: "CreatedDate",
		Keywords:   []string{"employee", "staff", "person", "worker", "member", "team", "department", "colleague", "user"},
	},
}

var wordPattern = regexp.MustCompile(`[a-z]+`)

// MatchEntity returns the entity the question most likely refers to: the
// first question word whose singular form is an entity keyword decides.
// Questions that name no entity get the default.
func MatchEntity(lowerQuestion string) Entity {
	for _, word := range wordPattern.FindAllString(lowerQuestion, -1) {
		singular := inflection.Singular(word)
		for _, e := range Entities {
			for _, kw := range e.Keywords {
				if singular == kw || word == kw {
					return e
				}
			}
		}
	}
	return Entities[0]
}

// columnList renders the entity's columns for a SELECT list.
func (e Entity) columnList() string {
	return strings.Join(e.Columns, ", ")
}
