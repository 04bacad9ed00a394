package pdfdoc

import (
	"context"
	"fmt"
)

// TextRun is a positioned piece of text. Y is the baseline measured from the top of the page.
type TextRun struct {
	X, Y     float64
	W        float64
	FontSize float64
	Font     string
	S        string
}

// Text returns the page's text runs in content order.
func (d *Document) Text(ctx context.Context, page Page) ([]TextRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var runs []TextRun
	err := safely(func() error {
		for _, t := range page.raw.Content().Text {
			if t.S == "" {
				continue
			}
			runs = append(runs, TextRun{
				X:        t.X - page.originX,
				Y:        page.originY + page.Height - t.Y,
				W:        t.W,
				FontSize: t.FontSize,
				Font:     t.Font,
				S:        t.S,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("page %d text: %w", page.Index, err)
	}
	return runs, nil
}
