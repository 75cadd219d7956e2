package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hisaab/internal/page"
)

// GetPage returns the top-level page layout
// @Summary     Page layout
// @Description Signed-out callers get the hero view; signed-in callers get navigation, the entry form and the transaction panel.
// @Tags        page
// @Produce     json
// @Param       Authorization header string false "Bearer token"
// @Success     200 {object} page.Layout "Layout"
// @Router      /page [get]
func GetPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": page.Compose(getSession(c))})
}
