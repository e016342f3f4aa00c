package dispatch

import "github.com/ignite/sales-celebrations/internal/domain"

// Envelope is the webhook payload wrapping one Adaptive Card attachment.
type Envelope struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	Content     Card   `json:"content"`
}

type Card struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
}

// Element is a card body element. Only the fields used by celebration cards
// are modelled.
type Element struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	URL    string `json:"url,omitempty"`
	Facts  []Fact `json:"facts,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

const (
	cardSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion     = "1.4"
	cardContentType = "application/vnd.microsoft.card.adaptive"
)

func title(t domain.CelebrationType) string {
	switch t {
	case domain.CelebrationTGL:
		return "🔧 Tech Generated Lead!"
	default:
		return "🎉 Big Sale!"
	}
}

// BuildCard renders msg as an Adaptive Card envelope.
func BuildCard(msg Message) Envelope {
	body := []Element{
		{Type: "TextBlock", Text: title(msg.Type), Size: "Large", Weight: "Bolder"},
		{Type: "TextBlock", Text: msg.Text, Wrap: true},
	}
	if msg.GIFURL != "" {
		body = append(body, Element{Type: "Image", URL: msg.GIFURL})
	}

	var facts []Fact
	if msg.Seller != "" {
		facts = append(facts, Fact{Title: "Salesperson", Value: msg.Seller})
	}
	if msg.Customer != "" {
		facts = append(facts, Fact{Title: "Customer", Value: msg.Customer})
	}
	if msg.Amount != "" && msg.Type == domain.CelebrationBigSale {
		facts = append(facts, Fact{Title: "Amount", Value: msg.Amount})
	}
	if len(facts) > 0 {
		body = append(body, Element{Type: "FactSet", Facts: facts})
	}

	return Envelope{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: cardContentType,
			Content: Card{
				Schema:  cardSchema,
				Type:    "AdaptiveCard",
				Version: cardVersion,
				Body:    body,
			},
		}},
	}
}
