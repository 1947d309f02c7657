// Package commitfilter provides composable commit predicates used to filter
// a logwalk.LogWalker's output: path-touches filters and a full-text/fuzzy
// search filter, translated from the original_source commit_filter.rs
// module's SearchFields/SearchOptions bitmasks.
package commitfilter

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/logwalk"
)

// SearchFields selects which parts of a commit a search filter examines.
type SearchFields uint32

const (
	// SearchMessageSummary matches against the first line of the commit message.
	SearchMessageSummary SearchFields = 1 << iota
	// SearchMessageBody matches against everything after the message's first line.
	SearchMessageBody
	// SearchFilenames matches against the paths touched by the commit.
	SearchFilenames
	// SearchAuthors matches against the commit author's name and email.
	SearchAuthors
)

// Contains reports whether all bits in other are set in f.
func (f SearchFields) Contains(other SearchFields) bool {
	return f&other == other
}

// SearchOptions tunes how the search pattern is matched.
type SearchOptions uint32

const (
	// SearchCaseSensitive disables case-folding before matching.
	SearchCaseSensitive SearchOptions = 1 << iota
	// SearchFuzzy enables fuzzy (subsequence) matching instead of substring matching.
	SearchFuzzy
)

// Contains reports whether all bits in other are set in o.
func (o SearchOptions) Contains(other SearchOptions) bool {
	return o&other == other
}

// SearchParams configures a full-text/fuzzy commit search filter.
type SearchParams struct {
	Pattern string
	Fields  SearchFields
	Options SearchOptions
}

// Search matches commit text against a configured pattern, either by plain
// substring containment or fuzzy subsequence matching.
type Search struct {
	pattern string
	options SearchOptions
}

// NewSearch builds a Search, lower-casing the pattern up front unless
// case-sensitive matching was requested, mirroring LogFilterSearch::new.
func NewSearch(params SearchParams) Search {
	pattern := params.Pattern
	if !params.Options.Contains(SearchCaseSensitive) {
		pattern = strings.ToLower(pattern)
	}

	return Search{pattern: pattern, options: params.Options}
}

// MatchText reports whether text satisfies the search's configured pattern
// and options.
func (s Search) MatchText(text string) bool {
	if s.options.Contains(SearchFuzzy) {
		return len(fuzzy.Find(s.pattern, []string{text})) > 0
	}

	if s.options.Contains(SearchCaseSensitive) {
		return strings.Contains(text, s.pattern)
	}

	return strings.Contains(strings.ToLower(text), s.pattern)
}

// splitMessage separates a commit message into its summary line and body,
// the way git itself treats the first line as a subject.
func splitMessage(message string) (summary, body string) {
	message = strings.TrimRight(message, "\n")

	idx := strings.IndexByte(message, '\n')
	if idx < 0 {
		return message, ""
	}

	return message[:idx], strings.TrimLeft(message[idx+1:], "\n")
}

// ByText returns a logwalk.Filter that includes a commit when any of the
// search's configured fields match its pattern, mirroring
// filter_commit_by_search.
func ByText(params SearchParams) logwalk.Filter {
	search := NewSearch(params)

	return func(repo *gitlib.Repository, hash gitlib.Hash) (bool, error) {
		commit, err := repo.LookupCommit(hash)
		if err != nil {
			return false, err
		}
		defer commit.Free()

		if params.Fields.Contains(SearchMessageSummary) || params.Fields.Contains(SearchMessageBody) {
			summary, body := splitMessage(commit.Message())

			if params.Fields.Contains(SearchMessageSummary) && search.MatchText(summary) {
				return true, nil
			}

			if params.Fields.Contains(SearchMessageBody) && body != "" && search.MatchText(body) {
				return true, nil
			}
		}

		if params.Fields.Contains(SearchFilenames) {
			matched, err := matchFilenames(repo, commit, search)
			if err != nil {
				return false, err
			}

			if matched {
				return true, nil
			}
		}

		if params.Fields.Contains(SearchAuthors) {
			author := commit.Author()
			if search.MatchText(author.Name) || search.MatchText(author.Email) {
				return true, nil
			}
		}

		return false, nil
	}
}

func matchFilenames(repo *gitlib.Repository, commit *gitlib.Commit, search Search) (bool, error) {
	tree, err := commit.Tree()
	if err != nil {
		return false, err
	}
	defer tree.Free()

	var parentTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return false, parentErr
		}
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return false, err
		}
		defer parentTree.Free()
	}

	changes, err := gitlib.TreeDiff(repo, parentTree, tree)
	if err != nil {
		return false, err
	}

	for _, change := range changes {
		if change.To.Name != "" && search.MatchText(change.To.Name) {
			return true, nil
		}

		if change.From.Name != "" && search.MatchText(change.From.Name) {
			return true, nil
		}
	}

	return false, nil
}

// And composes filters with logical AND: a commit is included only if every
// filter includes it. The first filter to exclude or error short-circuits
// the rest.
func And(filters ...logwalk.Filter) logwalk.Filter {
	return func(repo *gitlib.Repository, hash gitlib.Hash) (bool, error) {
		for _, filter := range filters {
			ok, err := filter(repo, hash)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	}
}

// DiffContainsPath re-exports logwalk.DiffContainsPath so callers that only
// import commitfilter get the full predicate surface in one place.
func DiffContainsPath(path string) logwalk.Filter {
	return logwalk.DiffContainsPath(path)
}
