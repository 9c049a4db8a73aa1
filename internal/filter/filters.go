package filter

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/siahsang/beatpost/internal/validator"
)

type Field string

const (
	FieldSkip   Field = "skip"
	FieldLimit  Field = "limit"
	FieldSortBy Field = "sort_by"
)

type Page struct {
	Skip  int64
	Limit int64
}

func NewPage(skip, limit int64) Page {
	return Page{
		Skip:  skip,
		Limit: limit,
	}
}

func (p Page) check(v *validator.Validator[Field]) {
	v.Check(p.Limit > 0, FieldLimit, "must be greater than 0")
	v.Check(p.Limit <= 100, FieldLimit, "must be a maximum of 100")
	v.Check(p.Skip >= 0, FieldSkip, "must be greater than or equal to 0")
	v.Check(p.Skip <= 10_000_000, FieldSkip, "must be a maximum of 10_000_000")
}

func (p Page) Validate() error {
	v := validator.New[Field]()
	p.check(v)
	return v.Err()
}

func (p Page) Values() url.Values {
	values := url.Values{}
	values.Set("skip", strconv.FormatInt(p.Skip, 10))
	values.Set("limit", strconv.FormatInt(p.Limit, 10))
	return values
}

type AuthorSort string

const (
	AuthorsByMojoDesc    AuthorSort = "mojo_desc"
	AuthorsByMojoAsc     AuthorSort = "mojo_asc"
	AuthorsByPostsDesc   AuthorSort = "posts_desc"
	AuthorsByPostsAsc    AuthorSort = "posts_asc"
	AuthorsByRatingDesc  AuthorSort = "rating_desc"
	AuthorsByRatingAsc   AuthorSort = "rating_asc"
	DefaultAuthorsSortBy            = AuthorsByMojoDesc
)

var authorSorts = []AuthorSort{
	AuthorsByMojoDesc, AuthorsByMojoAsc,
	AuthorsByPostsDesc, AuthorsByPostsAsc,
	AuthorsByRatingDesc, AuthorsByRatingAsc,
}

type AuthorsQuery struct {
	Page
	SortBy AuthorSort
	Search string
}

func DefaultAuthorsQuery() AuthorsQuery {
	return AuthorsQuery{Page: NewPage(0, 20), SortBy: DefaultAuthorsSortBy}
}

func (q AuthorsQuery) Validate() error {
	v := validator.New[Field]()
	q.check(v)
	v.Check(q.SortBy == "" || slices.Contains(authorSorts, q.SortBy), FieldSortBy, "unknown sort key")
	return v.Err()
}

func (q AuthorsQuery) Values() url.Values {
	values := q.Page.Values()
	if q.SortBy != "" {
		values.Set("sort_by", string(q.SortBy))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	return values
}

// PostsQuery lists the public post feed, optionally narrowed to one hashtag.
type PostsQuery struct {
	Page
	Hashtag string
}

func DefaultPostsQuery() PostsQuery {
	return PostsQuery{Page: NewPage(0, 20)}
}

func (q PostsQuery) Values() url.Values {
	values := q.Page.Values()
	if q.Hashtag != "" {
		values.Set("hashtag", q.Hashtag)
	}
	return values
}

type PostSort string

const (
	PostsByVisitsDesc  PostSort = "visits_desc"
	PostsByVisitsAsc   PostSort = "visits_asc"
	PostsByDateDesc    PostSort = "date_desc"
	PostsByDateAsc     PostSort = "date_asc"
	PostsByRatingDesc  PostSort = "rating_desc"
	PostsByRatingAsc   PostSort = "rating_asc"
	DefaultPostsSortBy          = PostsByDateDesc
)

var postSorts = []PostSort{
	PostsByVisitsDesc, PostsByVisitsAsc,
	PostsByDateDesc, PostsByDateAsc,
	PostsByRatingDesc, PostsByRatingAsc,
}

// UserPostsQuery lists one author's posts. A nil Archived returns both kinds.
type UserPostsQuery struct {
	Page
	SortBy   PostSort
	Search   string
	Archived *bool
}

func DefaultUserPostsQuery() UserPostsQuery {
	return UserPostsQuery{Page: NewPage(0, 100), SortBy: DefaultPostsSortBy}
}

func (q UserPostsQuery) Validate() error {
	v := validator.New[Field]()
	q.check(v)
	v.Check(q.SortBy == "" || slices.Contains(postSorts, q.SortBy), FieldSortBy, "unknown sort key")
	return v.Err()
}

func (q UserPostsQuery) Values() url.Values {
	values := q.Page.Values()
	if q.SortBy != "" {
		values.Set("sort_by", string(q.SortBy))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Archived != nil {
		values.Set("archived", strconv.FormatBool(*q.Archived))
	}
	return values
}
