package assessment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/timeback/rosterdash/internal/auth/gateway"
)

// ErrContentUnavailable marks an item whose XML body could not be resolved:
// no content URL, a failed payload fetch, or a checksum mismatch. Item-level
// only; the hierarchy load still succeeds.
var ErrContentUnavailable = errors.New("item content unavailable")

// resolveConcurrency bounds in-flight payload fetches per Load call.
const resolveConcurrency = 8

type Fetcher struct {
	base   string
	gw     *gateway.Gateway
	httpc  *http.Client // payload fetches: pre-signed URLs must not carry the bearer
	logger *slog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(h *http.Client) Option { return func(f *Fetcher) { f.httpc = h } }
func WithLogger(l *slog.Logger) Option     { return func(f *Fetcher) { f.logger = l } }

func New(base string, gw *gateway.Gateway, opts ...Option) *Fetcher {
	f := &Fetcher{
		base:   strings.TrimSuffix(base, "/"),
		gw:     gw,
		httpc:  http.DefaultClient,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// LoadHierarchy fetches the test's part/section/item skeleton. A failure here
// is page-level: there is nothing to degrade to.
func (f *Fetcher) LoadHierarchy(ctx context.Context, testID string) ([]TestPart, error) {
	var out struct {
		TestParts []TestPart `json:"testParts"`
	}
	u := f.base + "/assessment-tests/" + url.PathEscape(testID) + "/test-parts"
	if err := f.gw.GetJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("load test hierarchy: %w", err)
	}
	return out.TestParts, nil
}

// Load resolves the complete test: hierarchy first, then every item's XML
// concurrently. It returns only once each item is terminal, with content or
// with its error recorded; a bad item never sinks the rest.
func (f *Fetcher) Load(ctx context.Context, testID string) ([]TestPart, error) {
	parts, err := f.LoadHierarchy(ctx, testID)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for pi := range parts {
		for si := range parts[pi].Sections {
			items := parts[pi].Sections[si].Items
			for ii := range items {
				it := &items[ii]
				g.Go(func() error {
					f.resolveItem(ctx, it)
					return ctx.Err()
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for pi := range parts {
		for si := range parts[pi].Sections {
			orderItems(parts[pi].Sections[si].Items)
		}
	}
	return parts, nil
}

// ResolveItem fetches one item's metadata and payload. Exposed for callers
// that render items individually.
func (f *Fetcher) ResolveItem(ctx context.Context, ref ItemRef) Item {
	it := Item{ItemRef: ref}
	f.resolveItem(ctx, &it)
	return it
}

func (f *Fetcher) resolveItem(ctx context.Context, it *Item) {
	var details itemDetails
	u := f.base + "/assessment-items/" + url.PathEscape(it.ID)
	if err := f.gw.GetJSON(ctx, u, &details); err != nil {
		it.Err = fmt.Errorf("%w: metadata: %v", ErrContentUnavailable, err)
		return
	}
	if details.Item.XMLURL == "" {
		// No fabricated fixture content here: an item without a content URL
		// surfaces as unavailable.
		it.Err = fmt.Errorf("%w: no content URL", ErrContentUnavailable)
		return
	}
	body, err := f.fetchXML(ctx, details.Item.XMLURL)
	if err != nil {
		f.logger.WarnContext(ctx, "item payload fetch failed", "item", it.ID, "error", err)
		it.Err = fmt.Errorf("%w: %v", ErrContentUnavailable, err)
		return
	}
	if h := details.Item.XMLHash; h != "" && !hashMatches(body, h) {
		it.Err = fmt.Errorf("%w: checksum mismatch", ErrContentUnavailable)
		return
	}
	it.XMLContent = body
}

// fetchXML pulls the payload from the pre-signed URL. Deliberately not routed
// through the gateway: object storage rejects requests carrying a bearer.
func (f *Fetcher) fetchXML(ctx context.Context, xmlURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, xmlURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hashMatches(body, wantHex string) bool {
	sum := sha256.Sum256([]byte(body))
	return strings.EqualFold(hex.EncodeToString(sum[:]), wantHex)
}

// orderItems restores display order after concurrent resolution: sequence
// ascending, source order for ties and for items without a sequence.
func orderItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
}
