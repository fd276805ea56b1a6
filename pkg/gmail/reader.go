// Package gmail reads a Gmail mailbox as a synchronization source, using
// the History API for incremental runs and a bounded query scan otherwise.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/internal/resilience"
	syncpkg "github.com/atlasfleet/dispatch-cli/internal/sync"
)

const gmailUser = "me"

// api is the slice of the Gmail service the reader uses, split out so tests
// can substitute a fake.
type api interface {
	GetProfile(ctx context.Context) (*gmailapi.Profile, error)
	ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmailapi.ListHistoryResponse, error)
	ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*gmailapi.ListMessagesResponse, error)
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) (*gmailapi.MessagePartBody, error)
}

// Options configures the reader.
type Options struct {
	// Query restricts which messages the reader sees, in Gmail search
	// syntax (e.g. "label:inbox -label:processed").
	Query string
	// FetchConcurrency bounds parallel message hydration.
	FetchConcurrency int
}

// Reader implements the sync source over a Gmail mailbox.
type Reader struct {
	api   api
	opts  Options
	retry resilience.RetryConfig
}

// NewReader builds a Reader from a service-account credentials file,
// impersonating the delegated user via domain-wide delegation.
func NewReader(ctx context.Context, credentialsFile, delegatedUser string, opts Options) (*Reader, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "gmail: read credentials %s", credentialsFile)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: parse credentials")
	}
	jwtCfg.Subject = delegatedUser

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}

	return newReader(&liveAPI{svc: svc}, opts), nil
}

func newReader(a api, opts Options) *Reader {
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 5
	}
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryable
	return &Reader{api: a, opts: opts, retry: retry}
}

// retryable classifies googleapi errors by status code; anything else falls
// through to the generic network heuristics.
func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return resilience.IsTransientHTTPStatus(gerr.Code)
	}
	return resilience.IsTransient(err)
}

// CurrentPosition returns the mailbox's present history id. The watermark
// is left zero: it only advances as actual messages are observed.
func (r *Reader) CurrentPosition(ctx context.Context) (syncpkg.Position, error) {
	profile, err := resilience.DoVal(ctx, r.retry, r.api.GetProfile)
	if err != nil {
		return syncpkg.Position{}, eris.Wrap(err, "gmail: get profile")
	}
	return syncpkg.Position{HistoryID: profile.HistoryId}, nil
}

// ListRecent returns up to max messages matching the configured query,
// newest first as Gmail lists them.
func (r *Reader) ListRecent(ctx context.Context, max int64) ([]model.Message, error) {
	ids, err := r.listMessageIDs(ctx, r.opts.Query, max)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, ids)
}

// ListSince returns messages after the position. A position with a history
// id uses the History API; Gmail answering 404 means the history window has
// been truncated past our cursor, reported as ErrPositionExpired. A
// watermark-only position falls back to a time-bounded query scan.
func (r *Reader) ListSince(ctx context.Context, pos syncpkg.Position) ([]model.Message, error) {
	if pos.HistoryID == 0 {
		if pos.Watermark == 0 {
			return nil, eris.New("gmail: empty position")
		}
		query := joinQuery(r.opts.Query, fmt.Sprintf("after:%d", pos.Watermark))
		ids, err := r.listMessageIDs(ctx, query, 0)
		if err != nil {
			return nil, err
		}
		return r.hydrate(ctx, ids)
	}

	var ids []string
	pageToken := ""
	for {
		resp, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*gmailapi.ListHistoryResponse, error) {
			return r.api.ListHistory(ctx, pos.HistoryID, pageToken)
		})
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
				return nil, syncpkg.ErrPositionExpired
			}
			return nil, eris.Wrap(err, "gmail: list history")
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil {
					ids = append(ids, added.Message.Id)
				}
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return r.hydrate(ctx, dedupe(ids))
}

func (r *Reader) listMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		pageSize := int64(100)
		if max > 0 && max-int64(len(ids)) < pageSize {
			pageSize = max - int64(len(ids))
		}
		resp, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*gmailapi.ListMessagesResponse, error) {
			return r.api.ListMessages(ctx, query, pageSize, pageToken)
		})
		if err != nil {
			return nil, eris.Wrap(err, "gmail: list messages")
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || (max > 0 && int64(len(ids)) >= max) {
			break
		}
		pageToken = resp.NextPageToken
	}
	if max > 0 && int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// FetchByID fetches and hydrates a single message.
func (r *Reader) FetchByID(ctx context.Context, id string) (model.Message, error) {
	raw, err := r.getMessage(ctx, id)
	if err != nil {
		return model.Message{}, eris.Wrapf(err, "gmail: get message %s", id)
	}
	msg, err := r.convert(ctx, raw)
	if err != nil {
		return model.Message{}, err
	}
	return *msg, nil
}

func (r *Reader) getMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*gmailapi.Message, error) {
		return r.api.GetMessage(ctx, id)
	})
}

// hydrate fetches full messages for the ids with bounded concurrency,
// preserving list order. Transient fetch errors are retried; a message that
// still cannot be fetched or converted is logged and dropped rather than
// failing the batch.
func (r *Reader) hydrate(ctx context.Context, ids []string) ([]model.Message, error) {
	out := make([]*model.Message, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FetchConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			raw, err := r.getMessage(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return eris.Wrapf(err, "gmail: get message %s", id)
				}
				var gerr *googleapi.Error
				if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
					zap.L().Warn("gmail: message vanished before fetch", zap.String("message_id", id))
				} else {
					zap.L().Warn("gmail: message fetch failed, skipping",
						zap.String("message_id", id), zap.Error(err))
				}
				return nil
			}

			msg, err := r.convert(ctx, raw)
			if err != nil {
				zap.L().Warn("gmail: message conversion failed, skipping",
					zap.String("message_id", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[i] = msg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(ids))
	for _, m := range out {
		if m != nil {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func joinQuery(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + " " + extra
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// liveAPI implements api over the real Gmail service.
type liveAPI struct {
	svc *gmailapi.Service
}

func (a *liveAPI) GetProfile(ctx context.Context) (*gmailapi.Profile, error) {
	return a.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
}

func (a *liveAPI) ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmailapi.ListHistoryResponse, error) {
	call := a.svc.Users.History.List(gmailUser).
		StartHistoryId(startHistoryID).
		HistoryTypes("messageAdded").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (a *liveAPI) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*gmailapi.ListMessagesResponse, error) {
	call := a.svc.Users.Messages.List(gmailUser).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (a *liveAPI) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	return a.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
}

func (a *liveAPI) GetAttachment(ctx context.Context, messageID, attachmentID string) (*gmailapi.MessagePartBody, error) {
	return a.svc.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
}
