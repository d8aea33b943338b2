package page

import (
	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/PuerkitoBio/goquery"
)

// OnReady is the document ready hook. Pages without a show-closed toggle have
// no filterable result list and are left untouched. It reports whether a
// filtering pass ran.
func OnReady(doc *goquery.Document) bool {
	if doc.Find(ShowClosedSelector).Length() == 0 {
		return false
	}

	filter.Apply(ReadConfig(doc), Rows(doc))
	return true
}
