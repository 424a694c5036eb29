package corpus

import "strings"

// SortOrder defines how records are ordered when listing the corpus.
type SortOrder int

const (
	// SortByCreatedDesc orders records newest first.
	SortByCreatedDesc SortOrder = iota
	// SortByCreatedAsc orders records oldest first.
	SortByCreatedAsc
)

// ListOptions controls which records are returned by a Store.
type ListOptions struct {
	Limit     int
	Offset    int
	Annotated *bool
	Order     SortOrder
	Query     string
}

// MaxListLimit caps a single page; evaluation reads the whole corpus with Limit < 0.
const MaxListLimit = 500

func (opts *ListOptions) applyDefaults() {
	if opts.Limit == 0 {
		opts.Limit = 50
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Order != SortByCreatedAsc {
		opts.Order = SortByCreatedDesc
	}
	opts.Query = strings.TrimSpace(opts.Query)
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of records returned. A negative limit returns all records.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) { opts.Limit = limit }
}

// WithOffset skips the first n matching records.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) { opts.Offset = offset }
}

// WithAnnotated filters records by whether they carry labels.
func WithAnnotated(annotated bool) ListOption {
	return func(opts *ListOptions) {
		opts.Annotated = new(bool)
		*opts.Annotated = annotated
	}
}

// WithSortOrder changes the returned order.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) { opts.Order = order }
}

// WithQuery filters records whose prompt contains the query, case-insensitively.
func WithQuery(query string) ListOption {
	return func(opts *ListOptions) { opts.Query = query }
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

// matches reports whether a record passes the non-paging filters.
func (opts ListOptions) matches(r Record) bool {
	if opts.Annotated != nil && r.Annotated() != *opts.Annotated {
		return false
	}
	if opts.Query != "" && !strings.Contains(strings.ToLower(r.Prompt), strings.ToLower(opts.Query)) {
		return false
	}
	return true
}

// page applies offset and limit to an already filtered and ordered slice.
func (opts ListOptions) page(records []Record) []Record {
	if opts.Offset >= len(records) {
		return []Record{}
	}
	records = records[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}
	return records
}
