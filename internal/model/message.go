// Package model defines the core data types shared across the ingestion pipeline.
package model

import (
	"strings"
	"time"
)

// Attachment is a single file attached to a source message.
type Attachment struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Data     []byte `json:"-"`
}

// IsText reports whether the attachment carries text content that can be
// fed to classification and extraction alongside the message body.
func (a Attachment) IsText() bool {
	return strings.HasPrefix(a.MIMEType, "text/")
}

// Message is the immutable unit of work produced by the source reader.
// Pipeline stages never mutate it; all mutable state lives on the
// processing context.
type Message struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
	HistoryID   uint64       `json:"history_id,omitempty"`
}

// Content assembles the text handed to the classification and extraction
// services: subject, sender, body, and any text attachments.
func (m Message) Content() string {
	var b strings.Builder
	b.WriteString("Subject: " + m.Subject + "\n")
	b.WriteString("From: " + m.Sender + "\n\n")
	b.WriteString(m.Body)
	for _, att := range m.Attachments {
		if !att.IsText() || len(att.Data) == 0 {
			continue
		}
		b.WriteString("\n\n--- Attachment: " + att.Filename + " ---\n")
		b.Write(att.Data)
	}
	return b.String()
}
