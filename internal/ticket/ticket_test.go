package ticket

import (
	"bytes"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

func TestRenderProducesPDF(t *testing.T) {
	v := &model.ReservationView{
		Reservation: model.Reservation{
			ID:      "r-1",
			Status:  model.ReservationConfirmed,
			Comment: "Vegetarian meal, please",
		},
		Event: &model.Event{
			Title:    "Go Workshop – Café edition",
			Date:     time.Date(2026, 11, 3, 18, 30, 0, 0, time.UTC),
			Location: "Room 4",
		},
		Participant: &model.UserSummary{FullName: "Ada Lovelace", Email: "ada@example.com"},
	}

	out, err := NewRenderer(nil).Render(v)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 8)])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Error("output has no PDF trailer")
	}
}

func TestRenderRequiresJoins(t *testing.T) {
	if _, err := NewRenderer(nil).Render(&model.ReservationView{}); err == nil {
		t.Fatal("Render succeeded without event and participant")
	}
}
