package bse

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/storage/localfs"
)

const downloadTimeout = 90 * time.Second

// Downloader fetches attachments and media into scratch storage. Each
// download gets a unique scratch name so concurrent workers pulling
// the same company never collide.
type Downloader struct {
	client  *Client
	scratch *localfs.Scratch
	policy  resilience.Policy
}

func NewDownloader(client *Client, scratch *localfs.Scratch, policy resilience.Policy) *Downloader {
	return &Downloader{client: client, scratch: scratch, policy: policy}
}

// Fetch downloads rawURL into scratch space and returns the local
// path. file:// URLs short-circuit to the path they name, which keeps
// already-local fixtures out of the network path.
func (d *Downloader) Fetch(ctx context.Context, rawURL, hint string) (string, error) {
	if local, ok := strings.CutPrefix(rawURL, "file://"); ok {
		if _, err := os.Stat(local); err != nil {
			return "", fmt.Errorf("local attachment: %w", err)
		}
		return local, nil
	}

	key := scratchKey(rawURL, hint)
	var saved string
	err := d.client.executor.Execute(ctx, "bse.download_attachment", d.policy, func(ctx context.Context) error {
		p, err := d.downloadOnce(ctx, rawURL, key)
		if err != nil {
			return err
		}
		saved = p
		return nil
	}, classifyExchangeError)
	if err != nil {
		return "", err
	}
	return saved, nil
}

func (d *Downloader) downloadOnce(ctx context.Context, rawURL, key string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := d.client.newRequest(attemptCtx, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", newHTTPStatusError("download attachment", resp)
	}

	f, p, err := d.scratch.Create(key)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		d.scratch.Remove(p)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		d.scratch.Remove(p)
		return "", fmt.Errorf("close attachment: %w", err)
	}
	return p, nil
}

func (d *Downloader) Release(p string) {
	d.scratch.Remove(p)
}

func scratchKey(rawURL, hint string) string {
	ext := ".bin"
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = strings.ToLower(e)
		}
	}
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, hint)
	if slug == "" {
		slug = "attachment"
	}
	return fmt.Sprintf("%s_%s%s", slug, uuid.NewString()[:8], ext)
}
