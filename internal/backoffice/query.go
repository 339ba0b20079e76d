package backoffice

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// QueryDateLayout is how the report endpoint expects dates.
const QueryDateLayout = "2006/01/02"

// AllCurrencies selects every currency in the report's currency filter.
const AllCurrencies = -1

// PageQuery is one page request of the report endpoint.
type PageQuery struct {
	Report       ReportType
	Identifiers  []string
	Date         time.Time
	Page         int
	PageSize     int
	CurrencyType int
}

// Values encodes the query, the fixed parameters pin the sort to turnover and disable
// every filter that is not the identifier list and the day.
func (q PageQuery) Values() url.Values {
	day := q.Date.Format(QueryDateLayout)
	return url.Values{
		"resultBy":              {q.Report.resultBy()},
		"visibleColumns":        {""},
		"currencyType":          {strconv.Itoa(q.CurrencyType)},
		"searchStatus":          {"-99"},
		"userId":                {strings.Join(q.Identifiers, ",")},
		"affiliateInternalType": {"-1"},
		"searchTimeStart":       {day},
		"searchTimeEnd":         {day},
		"pageNumber":            {strconv.Itoa(q.Page)},
		"pageSize":              {strconv.Itoa(q.PageSize)},
		"sortCondition":         {"14"},
		"sortName":              {"turnover"},
		"sortOrder":             {"1"},
		"searchText":            {""},
	}
}
