// Package search implements free-text matching over jobs in the relational
// store. Every whitespace-separated term must appear in the title, the
// description or the skill list, case-insensitively.
package search

import (
	"strings"

	"gorm.io/gorm"
)

const maxTerms = 8

// Terms normalizes a raw query into lower-case terms with LIKE wildcards
// stripped. At most maxTerms terms are kept.
func Terms(q string) []string {
	clean := strings.NewReplacer("%", " ", "_", " ", "\\", " ").Replace(strings.ToLower(q))
	fields := strings.Fields(clean)

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// Jobs returns a GORM scope filtering the jobs table by q. An empty query
// leaves the statement untouched.
func Jobs(q string) func(*gorm.DB) *gorm.DB {
	terms := Terms(q)
	return func(db *gorm.DB) *gorm.DB {
		for _, t := range terms {
			like := "%" + t + "%"
			db = db.Where(
				"(LOWER(jobs.title) LIKE ? OR LOWER(jobs.description) LIKE ? OR LOWER(CAST(jobs.skills AS TEXT)) LIKE ?)",
				like, like, like,
			)
		}
		return db
	}
}

// Users filters the users table by username or email.
func Users(q string) func(*gorm.DB) *gorm.DB {
	terms := Terms(q)
	return func(db *gorm.DB) *gorm.DB {
		for _, t := range terms {
			like := "%" + t + "%"
			db = db.Where("(LOWER(users.username) LIKE ? OR LOWER(users.email) LIKE ?)", like, like)
		}
		return db
	}
}
