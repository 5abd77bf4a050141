// Package bgg provides a client for the BoardGameGeek XML API v2.
// It covers the two endpoints the bot needs: search and thing (detail).
package bgg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/RaneWallin/GameNightBot/internal/sanitize"
)

// DefaultBaseURL is the public BGG XML API v2 endpoint.
const DefaultBaseURL = "https://boardgamegeek.com/xmlapi2"

// Failure kinds for remote calls. Callers distinguish these from the
// zero-results case, which is not an error.
var (
	ErrTransport = errors.New("bgg: transport failure")
	ErrBadStatus = errors.New("bgg: unexpected status")
	ErrDecode    = errors.New("bgg: malformed response")
)

// SearchItem is one result row from the search endpoint.
type SearchItem struct {
	BGGID int64
	Name  string
	Year  string
}

// GameDetails is the detail record from the thing endpoint.
type GameDetails struct {
	BGGID       int64
	Name        string
	Publisher   string
	Designer    string
	MinPlayers  int
	MaxPlayers  int
	PlayingTime int
	Year        string
	ImageURL    string
}

// Client calls the BoardGameGeek XML API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

// New creates a BGG client. An empty baseURL selects the public API.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// xmlSearchItems mirrors the <items> envelope of the search endpoint.
type xmlSearchItems struct {
	Items []xmlSearchItem `xml:"item"`
}

type xmlSearchItem struct {
	ID    string `xml:"id,attr"`
	Names []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:"value,attr"`
	} `xml:"name"`
	Year struct {
		Value string `xml:"value,attr"`
	} `xml:"yearpublished"`
}

// xmlThingItems mirrors the <items> envelope of the thing endpoint.
type xmlThingItems struct {
	Items []xmlThingItem `xml:"item"`
}

type xmlThingItem struct {
	ID    string `xml:"id,attr"`
	Names []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:"value,attr"`
	} `xml:"name"`
	Year struct {
		Value string `xml:"value,attr"`
	} `xml:"yearpublished"`
	MinPlayers struct {
		Value string `xml:"value,attr"`
	} `xml:"minplayers"`
	MaxPlayers struct {
		Value string `xml:"value,attr"`
	} `xml:"maxplayers"`
	PlayingTime struct {
		Value string `xml:"value,attr"`
	} `xml:"playingtime"`
	Image string `xml:"image"`
	Links []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:"value,attr"`
	} `xml:"link"`
}

// Search queries the search endpoint for board games matching the query.
// The query must already be sanitized; percent-encoding happens here.
// An empty slice with a nil error means zero matches.
func (c *Client) Search(ctx context.Context, query string) ([]SearchItem, error) {
	url := fmt.Sprintf("%s/search?query=%s&type=boardgame", c.baseURL, sanitize.QueryParam(query))

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope xmlSearchItems
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	items := make([]SearchItem, 0, len(envelope.Items))
	for _, it := range envelope.Items {
		id, err := strconv.ParseInt(it.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad item id %q", ErrDecode, it.ID)
		}
		items = append(items, SearchItem{
			BGGID: id,
			Name:  primaryName(it.Names),
			Year:  it.Year.Value,
		})
	}
	return items, nil
}

// Details fetches the full record for one game by its BGG identifier.
func (c *Client) Details(ctx context.Context, bggID int64) (*GameDetails, error) {
	url := fmt.Sprintf("%s/thing?id=%d&stats=1", c.baseURL, bggID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope xmlThingItems
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(envelope.Items) == 0 {
		return nil, fmt.Errorf("%w: no item in thing response for id %d", ErrDecode, bggID)
	}

	it := envelope.Items[0]
	details := &GameDetails{
		BGGID:    bggID,
		Name:     primaryName(it.Names),
		Year:     it.Year.Value,
		ImageURL: it.Image,
	}
	details.MinPlayers, _ = strconv.Atoi(it.MinPlayers.Value)
	details.MaxPlayers, _ = strconv.Atoi(it.MaxPlayers.Value)
	details.PlayingTime, _ = strconv.Atoi(it.PlayingTime.Value)

	for _, link := range it.Links {
		switch link.Type {
		case "boardgamepublisher":
			if details.Publisher == "" {
				details.Publisher = link.Value
			}
		case "boardgamedesigner":
			if details.Designer == "" {
				details.Designer = link.Value
			}
		}
	}

	return details, nil
}

// get performs one HTTP GET and returns the raw body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode())
	}

	// The response body is pooled; copy before release.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// primaryName picks the primary name, falling back to the first listed.
func primaryName(names []struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}) string {
	for _, n := range names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(names) > 0 {
		return names[0].Value
	}
	return ""
}
