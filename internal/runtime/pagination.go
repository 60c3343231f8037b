package runtime

import (
	"regexp"
	"strconv"
	"strings"
)

// PageInfo describes the current page.
type PageInfo struct {
	Current int `json:"current"`
	Size    int `json:"size"`
	Last    int `json:"last"`
}

// URLInfo links the current page to its neighbours.
type URLInfo struct {
	Current string `json:"current"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
}

// PaginationState is handed to a page as props.collection. End is
// inclusive.
type PaginationState struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Total  int      `json:"total"`
	Page   PageInfo `json:"page"`
	URL    URLInfo  `json:"url"`
	Params Params   `json:"params,omitempty"`
	Data   []any    `json:"data"`
}

var trailingPage = regexp.MustCompile(`(/\d+)?$`)

// withPage replaces or appends the trailing page segment of u.
func withPage(u string, page int) string {
	return trailingPage.ReplaceAllLiteralString(u, "/"+strconv.Itoa(page))
}

// prevURL is the previous page of u, where the first page has no suffix.
func prevURL(u string, current int) string {
	loc := trailingPage.FindStringIndex(u)
	prev := u[:loc[0]]
	if current-1 > 1 {
		prev += "/" + strconv.Itoa(current-1)
	}
	if prev == "" {
		prev = "/"
	}
	return prev
}

// Paginate computes the state of one request. currentPage is 0 when the
// path carries no page segment, in which case data passes through whole.
func Paginate(data []any, reqPath string, currentPage, pageSize int) PaginationState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(data)
	st := PaginationState{
		Start: 0,
		End:   total - 1,
		Total: total,
		Page:  PageInfo{Current: 1, Size: pageSize, Last: 1},
		URL:   URLInfo{Current: reqPath},
		Data:  data,
	}
	if currentPage <= 0 {
		return st
	}

	start := (currentPage - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	if start > total {
		start = total
	}

	st.Start = (currentPage - 1) * pageSize
	st.End = end - 1
	st.Page.Current = currentPage
	st.Page.Last = (total + pageSize - 1) / pageSize
	if end < total {
		st.URL.Next = withPage(reqPath, currentPage+1)
	}
	if currentPage > 1 {
		st.URL.Prev = prevURL(reqPath, currentPage)
	}
	st.Data = data[start:end]
	return st
}

// pageURLs lists every page URL below base.
func pageURLs(base string, last int) []string {
	base = strings.TrimSuffix(base, "/")
	out := make([]string, 0, last)
	for n := 1; n <= last; n++ {
		out = append(out, base+"/"+strconv.Itoa(n))
	}
	return out
}

// stripPage removes the trailing page segment of a request path.
func stripPage(reqPath string, currentPage int) string {
	if currentPage <= 0 {
		return reqPath
	}
	return strings.TrimSuffix(reqPath, "/"+strconv.Itoa(currentPage))
}
