// Package ticket renders the admission ticket of a confirmed reservation
// as a single-page PDF.
package ticket

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// DateLayout is how the event date is printed on a ticket.
const DateLayout = "Monday 2 January 2006, 15:04 MST"

// Renderer produces ticket documents.
type Renderer struct {
	loc *time.Location
}

// NewRenderer returns a Renderer printing dates in loc (UTC when nil).
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// Render lays out v on an A4 page and returns the PDF bytes. v must have
// its event and participant attached.
func (r *Renderer) Render(v *model.ReservationView) ([]byte, error) {
	if v.Event == nil || v.Participant == nil {
		return nil, errors.New("ticket: reservation view is missing event or participant")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+v.ID, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, tr("Event Ticket"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(v.Event.Title), "", "L", false)
	pdf.Ln(2)

	rows := []struct{ label, value string }{
		{"Date", v.Event.Date.In(r.loc).Format(DateLayout)},
		{"Location", v.Event.Location},
		{"Participant", v.Participant.FullName},
		{"Email", v.Participant.Email},
		{"Status", string(v.Status)},
		{"Reservation", v.ID},
	}
	if v.Comment != "" {
		rows = append(rows, struct{ label, value string }{"Comment", v.Comment})
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(35, 8, tr(row.label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 8, tr(row.value), "", "L", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, tr("Present this ticket at the entrance. It is valid for one person only."), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ticket: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
