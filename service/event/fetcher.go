package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/viant/nexus/tracing"
)

const (
	defaultChannelCapacity = 100
	defaultMaxPollInterval = 2 * time.Second
	initialPollInterval    = 100 * time.Millisecond
)

// eventsQuery pages events filtered by the wrapper type. The cursor and
// checkpoint narrow the window; nodes arrive in server-side order.
const eventsQuery = `query ($after: String, $atCheckpoint: UInt53, $filter: EventFilter!) {
  events(after: $after, filter: $filter) {
    pageInfo { endCursor }
    nodes {
      sequenceNumber
      transaction { digest }
      transactionModule { package { address } }
      contents { type { repr } json }
    }
  }
}`

// Page is one delivered batch. When Err is set the poll attempt failed and
// will be retried; Events and NextCursor are only meaningful when Err is
// nil.
type Page struct {
	Events     []*Event
	NextCursor string
	Err        error
}

// Fetcher polls a GraphQL endpoint for wrapped events and delivers parsed
// pages over a channel.
type Fetcher struct {
	url             string
	client          *http.Client
	parser          *Parser
	channelCapacity int
	maxPollInterval time.Duration
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithChannelCapacity sets the delivery channel buffer size.
func WithChannelCapacity(capacity int) Option {
	return func(f *Fetcher) {
		f.channelCapacity = capacity
	}
}

// WithMaxPollInterval caps the exponential backoff between polls.
func WithMaxPollInterval(interval time.Duration) Option {
	return func(f *Fetcher) {
		f.maxPollInterval = interval
	}
}

// WithClient sets the HTTP client used for queries.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher returns a fetcher polling the given GraphQL URL for events
// emitted by the supplied packages.
func NewFetcher(url string, packages Packages, options ...Option) *Fetcher {
	result := &Fetcher{
		url:             url,
		client:          http.DefaultClient,
		parser:          NewParser(packages),
		channelCapacity: defaultChannelCapacity,
		maxPollInterval: defaultMaxPollInterval,
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// Poll starts the polling loop and returns the delivery channel. Polling
// continues until the context is cancelled; the channel is closed on
// exit. Transport and decode failures are delivered as Page.Err and
// retried with doubling backoff; events that fail to parse are skipped.
func (f *Fetcher) Poll(ctx context.Context, fromCursor string, fromCheckpoint *uint64) <-chan Page {
	pages := make(chan Page, f.channelCapacity)
	go f.poll(ctx, pages, fromCursor, fromCheckpoint)
	return pages
}

func (f *Fetcher) poll(ctx context.Context, pages chan<- Page, cursor string, atCheckpoint *uint64) {
	defer close(pages)
	interval := initialPollInterval
	backoff := func() bool {
		ok := sleep(ctx, interval)
		interval = min(interval*2, f.maxPollInterval)
		return ok
	}
	for ctx.Err() == nil {
		nodes, endCursor, err := f.fetchPage(ctx, cursor, atCheckpoint)
		if err != nil {
			if !deliver(ctx, pages, Page{Err: err}) || !backoff() {
				return
			}
			continue
		}
		if len(nodes) == 0 {
			if !backoff() {
				return
			}
			continue
		}
		// A page with nodes but no end cursor cannot advance; retry
		// with backoff rather than spinning against the endpoint.
		if endCursor == "" {
			if !backoff() {
				return
			}
			continue
		}

		page := Page{NextCursor: endCursor}
		for _, node := range nodes {
			parsed, err := f.parseNode(node)
			if err != nil {
				continue
			}
			page.Events = append(page.Events, parsed)
		}
		cursor = endCursor
		atCheckpoint = nil
		if !deliver(ctx, pages, page) {
			return
		}
		interval = initialPollInterval
		if !sleep(ctx, interval) {
			return
		}
	}
}

// fetchPage issues one paginated query and returns the raw nodes.
func (f *Fetcher) fetchPage(ctx context.Context, cursor string, atCheckpoint *uint64) ([]gqlEventNode, string, error) {
	ctx, span := tracing.StartSpan(ctx, "event.fetchPage", "CLIENT")
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"event.cursor": cursor})

	variables := gqlVariables{
		AtCheckpoint: atCheckpoint,
		Filter:       gqlEventFilter{Type: f.parser.packages.WrapperType()},
	}
	if cursor != "" {
		variables.After = &cursor
	}
	body, err := json.Marshal(gqlRequest{Query: eventsQuery, Variables: variables})
	if err != nil {
		return nil, "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := f.client.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("event query returned status %d", response.StatusCode)
		return nil, "", err
	}
	var decoded gqlResponse
	if err = json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, "", err
	}
	if decoded.Data == nil || decoded.Data.Events == nil {
		err = fmt.Errorf("event query returned no data")
		return nil, "", err
	}
	events := decoded.Data.Events
	endCursor := ""
	if events.PageInfo.EndCursor != nil {
		endCursor = *events.PageInfo.EndCursor
	}
	span.WithAttributes(map[string]string{"event.nodes": strconv.Itoa(len(events.Nodes))})
	return events.Nodes, endCursor, nil
}

// parseNode validates node shape and hands the contents to the parser.
func (f *Fetcher) parseNode(node gqlEventNode) (*Event, error) {
	if node.Transaction == nil || node.Transaction.Digest == "" {
		return nil, fmt.Errorf("event node missing transaction digest")
	}
	if node.TransactionModule == nil || node.TransactionModule.Package == nil {
		return nil, fmt.Errorf("event node missing package address")
	}
	if node.Contents == nil || node.Contents.Type == nil {
		return nil, fmt.Errorf("event node missing contents")
	}
	return f.parser.Parse(
		uint64(node.SequenceNumber),
		node.Transaction.Digest,
		node.TransactionModule.Package.Address,
		node.Contents.Type.Repr,
		node.Contents.JSON,
	)
}

// deliver sends the page unless the context is cancelled first.
func deliver(ctx context.Context, pages chan<- Page, page Page) bool {
	select {
	case pages <- page:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleep waits for the interval, returning false when cancelled.
func sleep(ctx context.Context, interval time.Duration) bool {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type gqlRequest struct {
	Query     string       `json:"query"`
	Variables gqlVariables `json:"variables"`
}

type gqlVariables struct {
	After        *string        `json:"after,omitempty"`
	AtCheckpoint *uint64        `json:"atCheckpoint,omitempty"`
	Filter       gqlEventFilter `json:"filter"`
}

type gqlEventFilter struct {
	Type string `json:"type"`
}

type gqlResponse struct {
	Data *struct {
		Events *struct {
			PageInfo struct {
				EndCursor *string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []gqlEventNode `json:"nodes"`
		} `json:"events"`
	} `json:"data"`
}

type gqlEventNode struct {
	SequenceNumber U64 `json:"sequenceNumber"`
	Transaction    *struct {
		Digest string `json:"digest"`
	} `json:"transaction"`
	TransactionModule *struct {
		Package *struct {
			Address Address `json:"address"`
		} `json:"package"`
	} `json:"transactionModule"`
	Contents *struct {
		Type *struct {
			Repr string `json:"repr"`
		} `json:"type"`
		JSON json.RawMessage `json:"json"`
	} `json:"contents"`
}
