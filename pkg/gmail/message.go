package gmail

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/internal/resilience"
)

// maxInlineAttachment caps how much attachment data is pulled inline.
// Larger attachments keep their metadata but no content.
const maxInlineAttachment = 1 << 20

// convert maps a full-format Gmail message onto the domain message,
// fetching text attachment bodies so they can feed extraction.
func (r *Reader) convert(ctx context.Context, raw *gmailapi.Message) (*model.Message, error) {
	if raw.Payload == nil {
		return nil, eris.Errorf("gmail: message %s has no payload", raw.Id)
	}

	msg := &model.Message{
		ID:         raw.Id,
		Subject:    header(raw.Payload, "Subject"),
		Sender:     header(raw.Payload, "From"),
		ReceivedAt: time.UnixMilli(raw.InternalDate).UTC(),
		HistoryID:  raw.HistoryId,
	}

	var plain, html strings.Builder
	collectBody(raw.Payload, &plain, &html)
	if plain.Len() > 0 {
		msg.Body = plain.String()
	} else {
		msg.Body = html.String()
	}

	for _, part := range flattenParts(raw.Payload) {
		if part.Filename == "" || part.Body == nil {
			continue
		}
		att := model.Attachment{
			Filename: part.Filename,
			MIMEType: part.MimeType,
			Size:     part.Body.Size,
		}
		if att.IsText() && part.Body.Size <= maxInlineAttachment {
			data, err := r.attachmentData(ctx, raw.Id, part.Body)
			if err != nil {
				zap.L().Warn("gmail: attachment fetch failed",
					zap.String("message_id", raw.Id),
					zap.String("filename", part.Filename),
					zap.Error(err),
				)
			} else {
				att.Data = data
			}
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	return msg, nil
}

func (r *Reader) attachmentData(ctx context.Context, messageID string, body *gmailapi.MessagePartBody) ([]byte, error) {
	if body.Data != "" {
		return decodeBody(body.Data)
	}
	if body.AttachmentId == "" {
		return nil, nil
	}
	fetched, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*gmailapi.MessagePartBody, error) {
		return r.api.GetAttachment(ctx, messageID, body.AttachmentId)
	})
	if err != nil {
		return nil, eris.Wrap(err, "gmail: get attachment")
	}
	if fetched == nil || fetched.Data == "" {
		return nil, nil
	}
	return decodeBody(fetched.Data)
}

func header(payload *gmailapi.MessagePart, name string) string {
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// collectBody walks the MIME tree accumulating text/plain and text/html
// bodies separately so plain text wins when both exist.
func collectBody(part *gmailapi.MessagePart, plain, html *strings.Builder) {
	if part == nil {
		return
	}
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data, err := decodeBody(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain"):
				plain.Write(data)
			case strings.HasPrefix(part.MimeType, "text/html"):
				html.Write(data)
			}
		}
	}
	for _, child := range part.Parts {
		collectBody(child, plain, html)
	}
}

func flattenParts(part *gmailapi.MessagePart) []*gmailapi.MessagePart {
	if part == nil {
		return nil
	}
	out := []*gmailapi.MessagePart{part}
	for _, child := range part.Parts {
		out = append(out, flattenParts(child)...)
	}
	return out
}

// decodeBody decodes Gmail's base64url body data, tolerating both padded
// and unpadded forms.
func decodeBody(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: decode body")
	}
	return b, nil
}
