// Package invalidation maps each mutation kind to the queries it makes stale.
//
// The table is static and checkable: every mutation declares the entity kinds
// it writes and every query kind declares the entity kinds it reads, and
// Verify reports any query that could include written data but is missing
// from the mutation's edges.
package invalidation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/query"
)

// MutationKind identifies a write operation against the remote service
type MutationKind string

const (
	CreateClient     MutationKind = "create_client"
	UpdateClient     MutationKind = "update_client"
	DeleteClient     MutationKind = "delete_client"
	ActivateClient   MutationKind = "activate_client"
	DeactivateClient MutationKind = "deactivate_client"
	CreateProject    MutationKind = "create_project"
	UpdateProject    MutationKind = "update_project"
	SetProjectStatus MutationKind = "set_project_status"
	DeleteProject    MutationKind = "delete_project"
	CreateInvoice    MutationKind = "create_invoice"
	SendInvoiceEmail MutationKind = "send_invoice_email"
	RegisterPayment  MutationKind = "register_payment"
)

// AllMutationKinds lists every mutation kind
var AllMutationKinds = []MutationKind{
	CreateClient,
	UpdateClient,
	DeleteClient,
	ActivateClient,
	DeactivateClient,
	CreateProject,
	UpdateProject,
	SetProjectStatus,
	DeleteProject,
	CreateInvoice,
	SendInvoiceEmail,
	RegisterPayment,
}

// String returns the string representation of the mutation kind
func (k MutationKind) String() string {
	return string(k)
}

var (
	clientSide  = []entity.Kind{entity.KindClient, entity.KindHistory}
	projectSide = []entity.Kind{entity.KindProject, entity.KindHistory}
	invoiceSide = []entity.Kind{entity.KindInvoice, entity.KindHistory}
)

// DefaultWrites declares the entity kinds each mutation changes. Every client
// write appends to the client's history on the server. Deleting a client
// cascades to its projects and invoices; deleting a project clears the
// project reference of its invoices.
var DefaultWrites = map[MutationKind][]entity.Kind{
	CreateClient:     clientSide,
	UpdateClient:     clientSide,
	DeleteClient:     {entity.KindClient, entity.KindProject, entity.KindInvoice, entity.KindPayment, entity.KindHistory},
	ActivateClient:   clientSide,
	DeactivateClient: clientSide,
	CreateProject:    projectSide,
	UpdateProject:    projectSide,
	SetProjectStatus: projectSide,
	DeleteProject:    {entity.KindProject, entity.KindInvoice, entity.KindHistory},
	CreateInvoice:    invoiceSide,
	SendInvoiceEmail: nil,
	RegisterPayment:  {entity.KindPayment, entity.KindInvoice, entity.KindHistory},
}

// DefaultReads declares the entity kinds each query kind's results depend on.
// Invoice lists embed client names and payments; reports derive from invoices
// and payments.
var DefaultReads = map[query.Kind][]entity.Kind{
	query.KindClients:              {entity.KindClient},
	query.KindClient:               {entity.KindClient},
	query.KindClientProjects:       {entity.KindProject},
	query.KindClientInvoices:       {entity.KindInvoice, entity.KindPayment, entity.KindClient},
	query.KindClientHistory:        {entity.KindHistory},
	query.KindHistoryFeed:          {entity.KindHistory},
	query.KindProjects:             {entity.KindProject, entity.KindClient},
	query.KindInvoices:             {entity.KindInvoice, entity.KindPayment, entity.KindClient},
	query.KindReportAging:          {entity.KindInvoice, entity.KindPayment},
	query.KindReportPortfolio:      {entity.KindInvoice, entity.KindPayment},
	query.KindReportMonthlyRevenue: {entity.KindPayment},
	query.KindReportTopClients:     {entity.KindPayment, entity.KindInvoice, entity.KindClient},
	query.KindReportOnTimeSummary:  {entity.KindInvoice, entity.KindPayment, entity.KindClient},
	query.KindReportOnTimeTop:      {entity.KindInvoice, entity.KindPayment, entity.KindClient},
}

var reports = []query.Kind{
	query.KindReportAging,
	query.KindReportPortfolio,
	query.KindReportMonthlyRevenue,
	query.KindReportTopClients,
	query.KindReportOnTimeSummary,
	query.KindReportOnTimeTop,
}

func with(kinds []query.Kind, more ...query.Kind) []query.Kind {
	out := make([]query.Kind, 0, len(kinds)+len(more))
	out = append(out, more...)
	return append(out, kinds...)
}

var clientEdges = []query.Kind{
	query.KindClients,
	query.KindClient,
	query.KindClientHistory,
	query.KindHistoryFeed,
	query.KindProjects,
	query.KindInvoices,
	query.KindClientInvoices,
	query.KindReportTopClients,
	query.KindReportOnTimeSummary,
	query.KindReportOnTimeTop,
}

var projectEdges = []query.Kind{
	query.KindClientProjects,
	query.KindProjects,
	query.KindClientHistory,
	query.KindHistoryFeed,
}

// DefaultEdges is the invalidation table
var DefaultEdges = map[MutationKind][]query.Kind{
	CreateClient:     clientEdges,
	UpdateClient:     clientEdges,
	DeleteClient:     query.AllKinds,
	ActivateClient:   clientEdges,
	DeactivateClient: clientEdges,
	CreateProject:    projectEdges,
	UpdateProject:    projectEdges,
	SetProjectStatus: projectEdges,
	DeleteProject: with(reports, append([]query.Kind{
		query.KindInvoices,
		query.KindClientInvoices,
	}, projectEdges...)...),
	CreateInvoice: with(reports,
		query.KindInvoices,
		query.KindClientInvoices,
		query.KindClientHistory,
		query.KindHistoryFeed,
	),
	SendInvoiceEmail: nil,
	RegisterPayment: with(reports,
		query.KindInvoices,
		query.KindClientInvoices,
		query.KindClientHistory,
		query.KindHistoryFeed,
	),
}

// Graph is an invalidation table together with the declarations it is checked
// against
type Graph struct {
	edges  map[MutationKind][]query.Kind
	writes map[MutationKind][]entity.Kind
	reads  map[query.Kind][]entity.Kind
}

// New builds a graph from explicit tables
func New(edges map[MutationKind][]query.Kind, writes map[MutationKind][]entity.Kind, reads map[query.Kind][]entity.Kind) *Graph {
	return &Graph{edges: edges, writes: writes, reads: reads}
}

// Default returns the console's invalidation graph
func Default() *Graph {
	return New(DefaultEdges, DefaultWrites, DefaultReads)
}

// Targets returns the query kinds a mutation invalidates
func (g *Graph) Targets(kind MutationKind) []query.Kind {
	return append([]query.Kind(nil), g.edges[kind]...)
}

// Patterns returns the patterns to mark stale after a mutation settles.
// Client-owned query kinds are narrowed to clientID when it is known; every
// other kind is invalidated wholesale.
func (g *Graph) Patterns(kind MutationKind, clientID int64) []query.Pattern {
	targets := g.edges[kind]
	patterns := make([]query.Pattern, 0, len(targets))
	for _, k := range targets {
		p := query.Pattern{Kind: k}
		if k.ClientOwned() {
			p.ClientID = clientID
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// MissingEdge is a query kind that reads data a mutation writes but is not
// invalidated by it
type MissingEdge struct {
	Mutation MutationKind
	Query    query.Kind
	Entity   entity.Kind
}

func (m MissingEdge) String() string {
	return fmt.Sprintf("%s writes %s read by %s", m.Mutation, m.Entity, m.Query)
}

// Missing lists every absent edge, sorted
func (g *Graph) Missing() []MissingEdge {
	var missing []MissingEdge
	for mutation, written := range g.writes {
		targets := make(map[query.Kind]bool, len(g.edges[mutation]))
		for _, k := range g.edges[mutation] {
			targets[k] = true
		}
		for qk, read := range g.reads {
			if targets[qk] {
				continue
			}
			if e, ok := overlap(written, read); ok {
				missing = append(missing, MissingEdge{Mutation: mutation, Query: qk, Entity: e})
			}
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].String() < missing[j].String()
	})
	return missing
}

// Verify fails when an edge is missing, a mutation has no write declaration
// or a query kind has no read declaration
func (g *Graph) Verify() error {
	var problems []string
	for _, m := range AllMutationKinds {
		if _, ok := g.writes[m]; !ok {
			problems = append(problems, fmt.Sprintf("mutation %s declares no writes", m))
		}
	}
	for _, k := range query.AllKinds {
		if _, ok := g.reads[k]; !ok {
			problems = append(problems, fmt.Sprintf("query %s declares no reads", k))
		}
	}
	for _, m := range g.Missing() {
		problems = append(problems, "missing edge: "+m.String())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalidation graph incomplete: %s", strings.Join(problems, "; "))
	}
	return nil
}

func overlap(a, b []entity.Kind) (entity.Kind, bool) {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return x, true
			}
		}
	}
	return "", false
}
