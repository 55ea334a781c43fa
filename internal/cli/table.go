package cli

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

// StockRow is one line of the inventory report.
type StockRow struct {
	ID       string
	Title    string
	ISBN     string
	Price    decimal.Decimal
	Quantity int
}

// RenderInventory renders rows as a table. Titles at or below lowStock are
// flagged; a negative threshold disables flagging. colorize paints flagged
// quantities red.
func RenderInventory(rows []StockRow, lowStock int, colorize bool) string {
	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{"ID", "Title", "ISBN", "Price", "Stock", ""})

	var units int
	value := decimal.Zero
	low := 0
	for _, r := range rows {
		qty := strconv.Itoa(r.Quantity)
		flag := ""
		if lowStock >= 0 && r.Quantity <= lowStock {
			low++
			flag = "LOW"
			if colorize {
				qty = text.FgRed.Sprint(qty)
				flag = text.FgRed.Sprint(flag)
			}
		}
		tw.AppendRow(table.Row{r.ID, r.Title, r.ISBN, r.Price.StringFixed(2), qty, flag})
		units += r.Quantity
		value = value.Add(r.Price.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}

	tw.AppendFooter(table.Row{"", strconv.Itoa(len(rows)) + " titles", strconv.Itoa(low) + " low", value.StringFixed(2), strconv.Itoa(units), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
