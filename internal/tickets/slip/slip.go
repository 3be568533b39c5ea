package slip

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// 80mm receipt paper.
var pageSize = gopdf.Rect{W: 226, H: 400}

type Generator struct {
	FontPath string
}

func NewGenerator(fontPath string) *Generator {
	return &Generator{FontPath: fontPath}
}

// Generate renders a printable ticket slip with the queue name, the ticket
// number, its position and wait estimate, and the QR image.
func (g *Generator) Generate(ticket *models.Ticket, queueName string, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: pageSize})
	pdf.AddPage()

	if err := pdf.AddTTFFont("slip", g.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if err := pdf.SetFont("slip", "", 12); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(20)
	pdf.SetY(24)
	if err := pdf.Cell(nil, queueName); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if err := pdf.SetFont("slip", "", 40); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(20)
	pdf.SetY(50)
	if err := pdf.Cell(nil, ticket.Number); err != nil {
		return nil, fmt.Errorf("failed to write number: %w", err)
	}

	if err := pdf.SetFont("slip", "", 10); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetY(110)
	for _, line := range slipLines(ticket) {
		pdf.SetX(20)
		if err := pdf.Cell(nil, line); err != nil {
			return nil, fmt.Errorf("failed to write ticket info: %w", err)
		}
		pdf.Br(16)
	}

	if len(qrCode) > 0 {
		addQRCode(pdf, qrCode, pdf.GetY()+10)
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func slipLines(ticket *models.Ticket) []string {
	lines := []string{
		fmt.Sprintf("Issued: %s", ticket.CreatedAt.Format("2006-01-02 15:04")),
	}
	if ticket.CustomerName != "" {
		lines = append(lines, "Name: "+ticket.CustomerName)
	}
	if ticket.Priority == models.PriorityHigh {
		lines = append(lines, "Priority service")
	}
	if ticket.Status == models.StatusWaiting {
		lines = append(lines,
			fmt.Sprintf("Position: %d", ticket.Position),
			fmt.Sprintf("Estimated wait: %d min", ticket.EstimatedWaitTime))
	}
	return lines
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte, y float64) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.SetX(20)
		pdf.Cell(nil, "QR code unavailable")
		return
	}

	rect := &gopdf.Rect{W: 140, H: 140}
	if err := pdf.ImageFrom(img, (pageSize.W-rect.W)/2, y, rect); err != nil {
		pdf.SetX(20)
		pdf.Cell(nil, "QR code unavailable")
	}
}
