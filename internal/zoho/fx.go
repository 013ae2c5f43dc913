package zoho

import (
	"github.com/snowdenHM/bill/internal/zoho/client"
	"github.com/snowdenHM/bill/internal/zoho/service"
	"go.uber.org/fx"
)

var Module = fx.Module("zoho.service",
	fx.Provide(
		client.NewTokenClient,
		client.NewBooksClient,
		func(c *client.TokenClient) service.TokenExchanger { return c },
		func(c *client.BooksClient) service.MastersAPI { return c },
		service.NewService,
	),
)
