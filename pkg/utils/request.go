package utils

import (
	"github.com/gin-gonic/gin"

	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// PaginationFromQuery lee limit, cursor, sortBy y sortOrder de la query string.
// Los valores inválidos se normalizan más adelante, nunca se rechazan.
func PaginationFromQuery(c *gin.Context) sharedQuery.PaginationRequest {
	return sharedQuery.ParseRequest(c.Query("limit"), c.Query("cursor"), c.Query("sortBy"), c.Query("sortOrder"))
}
