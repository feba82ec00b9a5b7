package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{"?page=3&limit=10", Pagination{Page: 3, Limit: 10, Offset: 20}},
		{"?page=-1&limit=0", Pagination{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{"?page=x&limit=y", Pagination{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{"?page=2&limit=5000", Pagination{Page: 2, Limit: MaxLimit, Offset: MaxLimit}},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			var got Pagination
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				got = ParsePagination(c)
				return nil
			})

			_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
