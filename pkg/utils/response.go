package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// CacheRefreshFailedMessage se devuelve cuando la escritura se guardó pero la
// invalidación falló: el cliente no debe reintentar la escritura.
const CacheRefreshFailedMessage = "change was saved but caches could not be refreshed"

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendItem responde una lectura indicando si salió de la caché.
func SendItem(c *gin.Context, data interface{}, fromCache bool) {
	c.JSON(http.StatusOK, gin.H{
		"data":      data,
		"fromCache": fromCache,
	})
}

// SendPage responde un listado paginado: data, hasMore, nextCursor y fromCache.
func SendPage[T any](c *gin.Context, page sharedQuery.PaginationResult[T], fromCache bool) {
	data := page.Data
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       data,
		"hasMore":    page.HasMore,
		"nextCursor": page.NextCursor,
		"fromCache":  fromCache,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendForbidden(c *gin.Context, message string) {
	SendError(c, http.StatusForbidden, message)
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}

// SendCacheRefreshFailed es el 500 de una escritura confirmada cuya invalidación falló.
func SendCacheRefreshFailed(c *gin.Context) {
	SendInternalServerError(c, CacheRefreshFailedMessage)
}
