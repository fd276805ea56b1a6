package model

import "time"

// Classification is the outcome of the mail classification service.
type Classification string

// Classification values form a closed set; anything the classifier cannot
// place lands in ClassificationOther.
const (
	ClassificationUnknown Classification = ""
	ClassificationOrder   Classification = "ORDER"
	ClassificationInvoice Classification = "INVOICE"
	ClassificationOther   Classification = "OTHER"
)

// IsOrder reports whether the message was classified as a transport order.
func (c Classification) IsOrder() bool { return c == ClassificationOrder }

// OrderDraft is the structured transport-order candidate built up by the
// extraction and geocoding stages. Coordinates stay nil until a resolution
// tier produces a validated pair; stages must never synthesize placeholders.
type OrderDraft struct {
	LoadingAddress       string       `json:"loading_address"`
	UnloadingAddress     string       `json:"unloading_address"`
	LoadingDate          string       `json:"loading_date"`
	UnloadingDate        string       `json:"unloading_date"`
	LoadingCoordinates   *Coordinates `json:"loading_coordinates,omitempty"`
	UnloadingCoordinates *Coordinates `json:"unloading_coordinates,omitempty"`
	CargoDescription     string       `json:"cargo_description"`
	Weight               string       `json:"weight"`
	VehicleType          string       `json:"vehicle_type"`
	SpecialRequirements  string       `json:"special_requirements,omitempty"`
	ReferenceNumber      string       `json:"reference_number,omitempty"`

	// Provenance, copied from the source message.
	MessageID      string    `json:"message_id"`
	MessageSubject string    `json:"message_subject"`
	MessageSender  string    `json:"message_sender"`
	ReceivedAt     time.Time `json:"received_at"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// FillProvenance copies message identity fields onto the draft if they are
// not already populated. Safe to call from any stage.
func (d *OrderDraft) FillProvenance(m Message, processedAt time.Time) {
	if d.MessageID == "" {
		d.MessageID = m.ID
	}
	if d.MessageSubject == "" {
		d.MessageSubject = m.Subject
	}
	if d.MessageSender == "" {
		d.MessageSender = m.Sender
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = m.ReceivedAt
	}
	if d.ProcessedAt.IsZero() {
		d.ProcessedAt = processedAt
	}
}

// Order is the persisted form of a completed draft, keyed uniquely by the
// source message id.
type Order struct {
	ID        string     `json:"id"`
	Draft     OrderDraft `json:"draft"`
	CreatedAt time.Time  `json:"created_at"`
}
