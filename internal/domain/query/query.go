// Package query defines the structured identities of cached reads.
package query

import (
	"fmt"
	"strings"
)

// Kind identifies a family of cached reads
type Kind string

const (
	KindClients        Kind = "clients"
	KindClient         Kind = "client"
	KindClientProjects Kind = "client_projects"
	KindClientInvoices Kind = "client_invoices"
	KindClientHistory  Kind = "client_history"
	KindHistoryFeed    Kind = "history_feed"
	KindProjects       Kind = "projects"
	KindInvoices       Kind = "invoices"

	KindReportAging          Kind = "report_aging"
	KindReportPortfolio      Kind = "report_portfolio"
	KindReportMonthlyRevenue Kind = "report_monthly_revenue"
	KindReportTopClients     Kind = "report_top_clients"
	KindReportOnTimeSummary  Kind = "report_on_time_summary"
	KindReportOnTimeTop      Kind = "report_on_time_top"
)

// AllKinds lists every query kind
var AllKinds = []Kind{
	KindClients,
	KindClient,
	KindClientProjects,
	KindClientInvoices,
	KindClientHistory,
	KindHistoryFeed,
	KindProjects,
	KindInvoices,
	KindReportAging,
	KindReportPortfolio,
	KindReportMonthlyRevenue,
	KindReportTopClients,
	KindReportOnTimeSummary,
	KindReportOnTimeTop,
}

// clientOwned kinds always carry the owning client in Scope.ClientID
var clientOwned = map[Kind]bool{
	KindClient:         true,
	KindClientProjects: true,
	KindClientInvoices: true,
	KindClientHistory:  true,
}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// ClientOwned reports whether results of this kind belong to a single client
func (k Kind) ClientOwned() bool {
	return clientOwned[k]
}

// IsValid checks if the kind is one of the defined constants
func (k Kind) IsValid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Scope holds the parameters of a read. Unused fields stay zero.
type Scope struct {
	ClientID int64
	Search   string
	Types    string // comma separated history types
	Limit    int
	AsOf     string // YYYY-MM-DD of reports relative to the current date
}

// ID is the cache key of a read: kind plus parameters. It is comparable.
type ID struct {
	Kind  Kind
	Scope Scope
}

// String renders the id for logs and metrics labels
func (id ID) String() string {
	var b strings.Builder
	b.WriteString(string(id.Kind))
	if id.Scope.ClientID != 0 {
		fmt.Fprintf(&b, "/client=%d", id.Scope.ClientID)
	}
	if id.Scope.Search != "" {
		fmt.Fprintf(&b, "/search=%s", id.Scope.Search)
	}
	if id.Scope.Types != "" {
		fmt.Fprintf(&b, "/types=%s", id.Scope.Types)
	}
	if id.Scope.Limit != 0 {
		fmt.Fprintf(&b, "/limit=%d", id.Scope.Limit)
	}
	if id.Scope.AsOf != "" {
		fmt.Fprintf(&b, "/as_of=%s", id.Scope.AsOf)
	}
	return b.String()
}

// Clients lists clients matching search
func Clients(search string) ID {
	return ID{Kind: KindClients, Scope: Scope{Search: search}}
}

// Client reads one client
func Client(clientID int64) ID {
	return ID{Kind: KindClient, Scope: Scope{ClientID: clientID}}
}

// ClientProjects lists the projects of a client
func ClientProjects(clientID int64) ID {
	return ID{Kind: KindClientProjects, Scope: Scope{ClientID: clientID}}
}

// ClientInvoices lists the invoices of a client
func ClientInvoices(clientID int64) ID {
	return ID{Kind: KindClientInvoices, Scope: Scope{ClientID: clientID}}
}

// ClientHistory lists the audit trail of a client
func ClientHistory(clientID int64) ID {
	return ID{Kind: KindClientHistory, Scope: Scope{ClientID: clientID}}
}

// HistoryFeed is the global history filtered by types and limited by count
func HistoryFeed(types string, limit int) ID {
	return ID{Kind: KindHistoryFeed, Scope: Scope{Types: types, Limit: limit}}
}

// Projects lists projects matching search, optionally filtered by client
func Projects(search string, clientID int64) ID {
	return ID{Kind: KindProjects, Scope: Scope{Search: search, ClientID: clientID}}
}

// Invoices lists invoices matching search
func Invoices(search string) ID {
	return ID{Kind: KindInvoices, Scope: Scope{Search: search}}
}

// Report returns the id of a parameterless report
func Report(kind Kind) ID {
	return ID{Kind: kind}
}

// DatedReport returns the id of a report computed as of a calendar day, so
// the result of one day is never served on the next
func DatedReport(kind Kind, asOf string) ID {
	return ID{Kind: kind, Scope: Scope{AsOf: asOf}}
}

// OnTimeTop is the top-n on-time ranking
func OnTimeTop(n int) ID {
	return ID{Kind: KindReportOnTimeTop, Scope: Scope{Limit: n}}
}

// Pattern selects cached ids by kind, optionally narrowed to one client.
// ClientID zero matches every scope of the kind.
type Pattern struct {
	Kind     Kind
	ClientID int64
}

// Matches reports whether id is selected by the pattern
func (p Pattern) Matches(id ID) bool {
	if p.Kind != id.Kind {
		return false
	}
	return p.ClientID == 0 || p.ClientID == id.Scope.ClientID
}

// String renders the pattern for logs
func (p Pattern) String() string {
	if p.ClientID == 0 {
		return string(p.Kind) + "/*"
	}
	return fmt.Sprintf("%s/client=%d", p.Kind, p.ClientID)
}
