package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/cli"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
)

const inventoryPageSize = 50

type remoteFlags struct {
	url   string
	token string
}

func (r *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.url, "url", os.Getenv("BOOKSTORE_URL"), "Base URL of a running bookstore server")
	cmd.Flags().StringVar(&r.token, "token", os.Getenv("BOOKSTORE_TOKEN"), "Bearer token sent with requests")
}

func (r remoteFlags) client() *httputil.APIClient {
	return httputil.NewAPIClient(httputil.APIClientConfig{
		BaseURL: r.url,
		Token:   r.token,
		Timeout: 15 * time.Second,
	})
}

type bookPage struct {
	Data []struct {
		ID       string          `json:"id"`
		Title    string          `json:"title"`
		ISBN     string          `json:"isbn"`
		Price    decimal.Decimal `json:"price"`
		Quantity int             `json:"quantity"`
	} `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func newInventoryCommand() *cobra.Command {
	var (
		remote   remoteFlags
		lowStock int
	)
	cmd := &cobra.Command{
		Use:         "inventory",
		Short:       "Print stock levels of a running server",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remote.url == "" {
				remote.url = "http://localhost:3000"
			}
			rows, err := fetchInventory(cmd, remote.client())
			if err != nil {
				return err
			}
			p := printer(cmd)
			if len(rows) == 0 {
				p.Info("catalog is empty")
				return nil
			}
			fmt.Fprintln(p.Writer(), cli.RenderInventory(rows, lowStock, p.Colorize()))
			return nil
		},
	}
	remote.register(cmd)
	cmd.Flags().IntVar(&lowStock, "low", 5, "Flag titles with at most this many copies (negative disables)")
	return cmd
}

func fetchInventory(cmd *cobra.Command, client *httputil.APIClient) ([]cli.StockRow, error) {
	var rows []cli.StockRow
	for page := 1; ; page++ {
		resp, err := client.Get(cmd.Context(), fmt.Sprintf("/api/books?page=%d&limit=%d", page, inventoryPageSize))
		if err != nil {
			return nil, err
		}
		var body bookPage
		if err := httputil.DecodeResponse(resp, &body); err != nil {
			return nil, err
		}
		for _, b := range body.Data {
			rows = append(rows, cli.StockRow{ID: b.ID, Title: b.Title, ISBN: b.ISBN, Price: b.Price, Quantity: b.Quantity})
		}
		if len(body.Data) == 0 || page >= body.Pagination.TotalPages {
			return rows, nil
		}
	}
}
