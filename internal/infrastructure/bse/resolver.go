package bse

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

const resolveTimeout = 15 * time.Second

// Resolver extracts the attachment URL from an item's XBRL document.
// A document that does not parse is treated as upstream distress: the
// exchange serves truncated or HTML bodies when it is throttling.
type Resolver struct {
	client   *Client
	policy   resilience.Policy
	distress ports.DistressSignal
}

func NewResolver(client *Client, policy resilience.Policy, distress ports.DistressSignal) *Resolver {
	return &Resolver{client: client, policy: policy, distress: distress}
}

// Resolve returns the attachment URL for the given item, or ("", nil)
// when the document is well-formed but carries none.
func (r *Resolver) Resolve(ctx context.Context, id, scripCode string) (string, error) {
	params := url.Values{}
	params.Set("Bsenewid", id)
	params.Set("Scripcode", scripCode)

	var attachment string
	err := r.client.executor.Execute(ctx, "bse.resolve_attachment", r.policy, func(ctx context.Context) error {
		body, err := r.client.getBody(ctx, r.client.xbrlURL, params, resolveTimeout, "resolve attachment")
		if err != nil {
			return err
		}
		found, err := extractAttachmentURL(body)
		if err != nil {
			// Raised per attempt: the pool must throttle even when a
			// later retry gets a clean body.
			raiseDistress(r.distress)
			return domain.WrapError(domain.ErrUpstreamDistress, "parse xbrl document", err)
		}
		attachment = found
		return nil
	}, classifyExchangeError)
	if err != nil {
		return "", err
	}
	return attachment, nil
}

// extractAttachmentURL walks the XBRL token stream for the first
// AttachmentURL element. Matching on the local name only makes the
// lookup immune to namespace prefix churn across filings.
func extractAttachmentURL(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	inTarget := false
	var value strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "AttachmentURL" {
				inTarget = true
				value.Reset()
			}
		case xml.CharData:
			if inTarget {
				value.Write(t)
			}
		case xml.EndElement:
			if inTarget && t.Name.Local == "AttachmentURL" {
				if url := strings.TrimSpace(value.String()); url != "" {
					return url, nil
				}
				inTarget = false
			}
		}
	}
}
