package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// fakeWindow serves canned markup in place of a browser tab.
type fakeWindow struct {
	mutex sync.Mutex

	// pages are the successive renderings of the listing table.
	pages []string
	page  int
	info  string
	// pending is the number of row polls that report nothing yet.
	pending int

	content  string
	location string
	// byUrl and byClick are the detail views reachable from this tab.
	byUrl   map[string]string
	byClick map[string]string

	navigated   []string
	clicked     []string
	children    []*fakeWindow
	screenshots int
	closed      bool
}

func listingTable(rows ...string) string {
	if len(rows) == 0 {
		return `<table id="pagetable13"><tbody><tr class="odd"><td valign="top" colspan="10" class="dataTables_empty">No data available in table</td></tr></tbody></table>`
	}
	return `<table id="pagetable13"><thead><tr><th>Department</th></tr></thead><tbody>` + strings.Join(rows, "") + `</tbody></table>`
}

func listingRow(id, title string) string {
	return fmt.Sprintf(
		`<tr><td>Irrigation</td><td>NIT-%[1]s</td><td>Works</td><td><b>%[2]s</b></td><td>5,00,000</td>`+
			`<td>01-03-2024</td><td>02-03-2024</td><td>20-03-2024</td><td>%[1]s</td>`+
			`<td><a href="#" onclick="GetTenderInfo('%[1]s','O','R%[1]s')">View</a></td></tr>`,
		id, title,
	)
}

func (f *fakeWindow) count(markup, selector string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0
	}
	return doc.Find(selector).Length()
}

func (f *fakeWindow) table() string {
	if len(f.pages) == 0 {
		return ""
	}
	return f.pages[f.page]
}

func (f *fakeWindow) Navigate(_ context.Context, url string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.navigated = append(f.navigated, url)
	f.location = url
	if html, ok := f.byUrl[url]; ok {
		f.content = html
	}
	return nil
}

func (f *fakeWindow) Location(context.Context) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.location, nil
}

func (f *fakeWindow) Count(_ context.Context, selector string) (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch selector {
	case RowSelector:
		if f.pending > 0 {
			f.pending--
			return 0, nil
		}
		return f.count(f.table(), selector), nil
	case EmptySelector:
		if f.pending > 0 {
			return 0, nil
		}
		return f.count(f.table(), selector), nil
	case InfoSelector:
		if f.info == "" {
			return 0, nil
		}
		return 1, nil
	case NextSelector:
		if f.page < len(f.pages)-1 {
			return 1, nil
		}
		return 0, nil
	}
	return f.count(f.content, selector), nil
}

func (f *fakeWindow) OuterHTML(_ context.Context, selector string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch selector {
	case TableSelector:
		return f.table(), nil
	case InfoSelector:
		return fmt.Sprintf(`<div id="pagetable13_info">%s</div>`, f.info), nil
	case "html":
		return f.content, nil
	}
	return "", fmt.Errorf("unexpected selector %q", selector)
}

func (f *fakeWindow) Click(_ context.Context, selector string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.clicked = append(f.clicked, selector)
	if selector == NextSelector && f.page < len(f.pages)-1 {
		f.page++
	}
	return nil
}

func (f *fakeWindow) ClickNewWindow(_ context.Context, selector string) (Window, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.clicked = append(f.clicked, selector)
	html, ok := f.byClick[selector]
	if !ok {
		return nil, errors.New("no window opened")
	}
	child := &fakeWindow{content: html, location: "about:detail"}
	f.children = append(f.children, child)
	return child, nil
}

func (f *fakeWindow) NewWindow(context.Context) (Window, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	child := &fakeWindow{byUrl: f.byUrl}
	f.children = append(f.children, child)
	return child, nil
}

func (f *fakeWindow) Screenshot(context.Context) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.screenshots++
	return []byte("\x89PNG"), nil
}

func (f *fakeWindow) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	return nil
}
