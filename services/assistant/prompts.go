package assistant

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/upb/order-desk/models"
)

// FallbackReply is returned when the provider answers with an empty message
const FallbackReply = "I could not come up with an answer about your orders just now. " +
	"Please rephrase the question or try again in a moment."

const systemPromptText = `You are Order Desk, an assistant that helps a small business owner manage their customer orders.
Today is {{.Today}}.

Rules:
- Answer only questions about the orders listed below and how to use Order Desk.
- Never invent orders, prices or statuses. If the answer is not in the data, say so.
- Order statuses move pending -> confirmed -> shipped. Pending and confirmed orders can be cancelled. Shipped and cancelled orders are final.
- Amounts are in cents in the data; present them as currency with two decimals.
- Keep answers short and concrete.

{{template "summary" .}}`

const orderSummaryText = `{{define "summary"}}Order counts by status:
{{- range .Counts}}
- {{.Status}}: {{.Count}}
{{- else}}
- no orders yet
{{- end}}

{{if .Orders}}Most recent orders (newest first, up to {{len .Orders}}):
{{- range .Orders}}
- {{.ID}} | {{.Customer}} | {{.Quantity}} x {{.Product}} | {{.Total}} | {{.Status}} | created {{.Created}}
{{- end}}{{else}}The user has no orders on file.{{end}}{{end}}`

var systemPrompt = template.Must(
	template.Must(template.New("system").Parse(systemPromptText)).Parse(orderSummaryText),
)

// statusOrder fixes the order in which counts are listed
var statusOrder = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusShipped,
	models.OrderStatusCancelled,
}

type promptData struct {
	Today  string
	Counts []statusCount
	Orders []orderLine
}

type statusCount struct {
	Status models.OrderStatus
	Count  int
}

type orderLine struct {
	ID       string
	Customer string
	Product  string
	Quantity int
	Total    string
	Status   models.OrderStatus
	Created  string
}

// renderSystemPrompt builds the system message from the caller's orders
func renderSystemPrompt(now time.Time, counts map[models.OrderStatus]int, orders []*models.Order) (string, error) {
	data := promptData{Today: now.UTC().Format("2006-01-02")}

	for _, status := range statusOrder {
		if n := counts[status]; n > 0 {
			data.Counts = append(data.Counts, statusCount{Status: status, Count: n})
		}
	}

	for _, o := range orders {
		data.Orders = append(data.Orders, orderLine{
			ID:       o.ID.String(),
			Customer: singleLine(o.CustomerName),
			Product:  singleLine(o.Product),
			Quantity: o.Quantity,
			Total:    formatCents(o.TotalCents()),
			Status:   o.Status,
			Created:  o.CreatedAt.UTC().Format("2006-01-02"),
		})
	}

	var b strings.Builder
	if err := systemPrompt.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

// singleLine keeps user-supplied fields from breaking the one-order-per-line layout
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
