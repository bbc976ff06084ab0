package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/sells-group/comps-intel/internal/model"
	"github.com/sells-group/comps-intel/internal/resilience"
)

const (
	defaultGraphURL  = "https://graph.microsoft.com/v1.0"
	defaultLoginURL  = "https://login.microsoftonline.com"
	graphScope       = "https://graph.microsoft.com/.default"
	defaultMaxBytes  = 100 << 20
	defaultGraphRate = 4
)

// GraphConfig identifies the document library and the app registration used
// to reach it.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string

	// BaseURL and TokenURL override the Microsoft endpoints.
	BaseURL  string
	TokenURL string

	RequestsPerSecond float64
	MaxBytes          int64
	Backoff           resilience.Backoff
}

// Graph downloads drive items through Microsoft Graph. When the direct path
// lookup 404s it falls back to a drive search by file name.
type Graph struct {
	cfg     GraphConfig
	api     *http.Client
	plain   *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewGraph builds a downloader that authenticates with the client
// credentials grant.
func NewGraph(cfg GraphConfig) (*Graph, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.DriveID == "" {
		return nil, eris.New("storage: graph client id, secret and drive id are required")
	}
	if cfg.TokenURL == "" {
		if cfg.TenantID == "" {
			return nil, eris.New("storage: graph tenant id is required")
		}
		cfg.TokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", defaultLoginURL, cfg.TenantID)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultGraphRate
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Backoff.Attempts <= 0 {
		cfg.Backoff = resilience.DefaultBackoff()
	}

	plain := &http.Client{Timeout: 2 * time.Minute}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{graphScope},
	}
	api := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, plain))
	api.Timeout = plain.Timeout

	return &Graph{
		cfg:     cfg,
		api:     api,
		plain:   plain,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: resilience.NewBreaker("graph", 5, 30*time.Second),
	}, nil
}

// Download fetches the item at the reference's relative path.
func (g *Graph) Download(ctx context.Context, ref model.FileReference) ([]byte, error) {
	rel := strings.TrimPrefix(strings.ReplaceAll(storagePath(ref), `\`, "/"), "/")
	if err := g.breaker.Allow(); err != nil {
		return nil, &DownloadError{Kind: KindOther, Path: ref.Path, Err: err}
	}

	data, err := g.download(ctx, rel)
	g.breaker.Record(err, resilience.IsTransient)
	if err != nil {
		var de *DownloadError
		if errors.As(err, &de) {
			de.Path = ref.Path
			return nil, de
		}
		return nil, &DownloadError{Kind: classifyTransport(err), Path: ref.Path, Err: err}
	}

	zap.L().Info("storage: downloaded",
		zap.String("path", rel),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

func (g *Graph) download(ctx context.Context, rel string) ([]byte, error) {
	itemURL := fmt.Sprintf("%s/drives/%s/root:/%s:/content", g.cfg.BaseURL, url.PathEscape(g.cfg.DriveID), escapePath(rel))

	data, err := g.get(ctx, g.api, itemURL, rel)
	if KindOf(err) != KindNotFound {
		return data, err
	}

	name := path.Base(rel)
	zap.L().Info("storage: direct path not found, searching by name",
		zap.String("path", rel),
		zap.String("name", name),
	)
	downloadURL, err := g.search(ctx, name)
	if err != nil {
		return nil, err
	}
	return g.get(ctx, g.plain, downloadURL, rel)
}

type searchResponse struct {
	Value []struct {
		Name        string `json:"name"`
		DownloadURL string `json:"@microsoft.graph.downloadUrl"`
	} `json:"value"`
}

// search returns a pre-authenticated download URL for the best name match.
func (g *Graph) search(ctx context.Context, name string) (string, error) {
	q := strings.ReplaceAll(name, "'", "''")
	searchURL := fmt.Sprintf("%s/drives/%s/root/search(q='%s')", g.cfg.BaseURL, url.PathEscape(g.cfg.DriveID), url.PathEscape(q))

	body, err := g.get(ctx, g.api, searchURL, name)
	if err != nil {
		return "", err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &DownloadError{Kind: KindOther, Path: name, Err: eris.Wrap(err, "decode search response")}
	}
	if len(resp.Value) == 0 {
		return "", &DownloadError{Kind: KindNotFound, Path: name, Err: eris.Errorf("no drive item named %q", name)}
	}

	item := resp.Value[0]
	for _, v := range resp.Value {
		if strings.EqualFold(v.Name, name) {
			item = v
			break
		}
	}
	if item.DownloadURL == "" {
		return "", &DownloadError{Kind: KindOther, Path: name, Err: eris.Errorf("no download url for %q", item.Name)}
	}
	return item.DownloadURL, nil
}

// get performs a rate-limited GET with retry on transient statuses.
func (g *Graph) get(ctx context.Context, hc *http.Client, target, label string) ([]byte, error) {
	return resilience.Retry(ctx, g.cfg.Backoff, "graph get", func(ctx context.Context) ([]byte, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, eris.Wrap(err, "storage: build request")
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, statusError(resp.StatusCode, label, strings.TrimSpace(string(msg)))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, g.cfg.MaxBytes+1))
		if err != nil {
			return nil, eris.Wrap(err, "storage: read body")
		}
		if int64(len(data)) > g.cfg.MaxBytes {
			return nil, &DownloadError{Kind: KindOther, Path: label, Err: eris.Errorf("file exceeds %d bytes", g.cfg.MaxBytes)}
		}
		return data, nil
	})
}

func statusError(code int, label, msg string) error {
	de := &DownloadError{Path: label, StatusCode: code, Err: eris.New(msg)}
	if msg == "" {
		de.Err = eris.New(http.StatusText(code))
	}
	switch {
	case code == http.StatusNotFound:
		de.Kind = KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		de.Kind = KindAuthFailure
	case resilience.TransientStatus(code):
		return resilience.Transient(de, code)
	}
	return de
}

func classifyTransport(err error) Kind {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return KindAuthFailure
	}
	return KindOther
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
